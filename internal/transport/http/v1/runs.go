package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sdap/playbook/internal/domain"
	"github.com/sdap/playbook/internal/service"
)

// StartRun starts a playbook run against a document.
// POST /v1/playbooks/:playbook_id/runs
func (h *Handler) StartRun(c echo.Context) error {
	ctx := c.Request().Context()
	playbookID := c.Param("playbook_id")

	var req domain.StartRunRequest
	if err := c.Bind(&req); err != nil {
		return problem(c, http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.service.StartRun(ctx, playbookID, &req)
	if err != nil {
		if errors.Is(err, service.ErrPlaybookNotFound) {
			return problem(c, http.StatusNotFound, err.Error())
		}
		if errors.Is(err, service.ErrInvalidRequest) {
			return problem(c, http.StatusBadRequest, err.Error())
		}
		return problem(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusAccepted, resp)
}

// GetRun returns one run's status.
// GET /v1/runs/:run_id
func (h *Handler) GetRun(c echo.Context) error {
	ctx := c.Request().Context()

	run, err := h.service.GetRun(ctx, c.Param("run_id"))
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			return problem(c, http.StatusNotFound, err.Error())
		}
		return problem(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, run)
}

// GetRunResults returns a run with its node outputs.
// GET /v1/runs/:run_id/results
func (h *Handler) GetRunResults(c echo.Context) error {
	ctx := c.Request().Context()

	results, err := h.service.GetRunResults(ctx, c.Param("run_id"))
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			return problem(c, http.StatusNotFound, err.Error())
		}
		return problem(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, results)
}

// GetRunEvents returns a run's event log.
// GET /v1/runs/:run_id/events
func (h *Handler) GetRunEvents(c echo.Context) error {
	ctx := c.Request().Context()

	events, err := h.service.GetRunEvents(ctx, c.Param("run_id"))
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			return problem(c, http.StatusNotFound, err.Error())
		}
		return problem(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"events": events})
}
