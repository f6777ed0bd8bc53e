// Package http provides the HTTP server for the playbook engine.
package http

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sdap/playbook/internal/domain"
	"github.com/sdap/playbook/internal/service"
	v1 "github.com/sdap/playbook/internal/transport/http/v1"
)

// NewServer creates and configures the HTTP server.
func NewServer(svc *service.Service) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestIdentity())

	handler := v1.NewHandler(svc)
	handler.RegisterRoutes(e)

	return e
}

// requestIdentity lifts the caller's bearer token into the request
// context so executors that act as the caller can use it.
func requestIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
				ctx := domain.WithRequestIdentity(c.Request().Context(), token)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}
