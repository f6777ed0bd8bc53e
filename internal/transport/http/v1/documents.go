package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sdap/playbook/internal/domain"
	"github.com/sdap/playbook/internal/service"
)

// IndexDocument runs the indexing pipeline for one parsed document.
// POST /v1/documents/:document_id/index
func (h *Handler) IndexDocument(c echo.Context) error {
	ctx := c.Request().Context()
	documentID := c.Param("document_id")

	var req domain.IndexDocumentRequest
	if err := c.Bind(&req); err != nil {
		return problem(c, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(documentID) == "" {
		return problem(c, http.StatusBadRequest, "document_id is required")
	}

	result, err := h.service.IndexDocument(ctx, documentID, &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return problem(c, http.StatusBadRequest, err.Error())
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return problem(c, http.StatusInternalServerError, "indexing cancelled: "+err.Error())
		}
		return problem(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
