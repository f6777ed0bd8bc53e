// Package v1 provides the versioned HTTP API handlers.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sdap/playbook/internal/domain"
	"github.com/sdap/playbook/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/playbooks/:playbook_id/runs", h.StartRun)
	e.GET("/v1/runs/:run_id", h.GetRun)
	e.GET("/v1/runs/:run_id/results", h.GetRunResults)
	e.GET("/v1/runs/:run_id/events", h.GetRunEvents)

	e.POST("/v1/documents/:document_id/index", h.IndexDocument)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

func problem(c echo.Context, status int, detail string) error {
	return c.JSON(status, domain.NewProblem(status, detail))
}
