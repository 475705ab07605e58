package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/tracker/internal/application/services"
	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// CreateWorkLogRequest is the body of POST /work-logs
type CreateWorkLogRequest struct {
	Date        string `json:"date" validate:"required"`
	StartTime   string `json:"startTime" validate:"required"`
	EndTime     string `json:"endTime" validate:"required"`
	Description string `json:"description" validate:"required,max=1000"`
}

// WorkLogHandler handles work-hours log requests
type WorkLogHandler struct {
	logs    ports.WorkLogService
	streams StreamGauge
	logger  *logger.Logger
}

// NewWorkLogHandler creates a new work log handler
func NewWorkLogHandler(logs ports.WorkLogService, streams StreamGauge, logger *logger.Logger) *WorkLogHandler {
	return &WorkLogHandler{
		logs:    logs,
		streams: gaugeOrNop(streams),
		logger:  logger.WithComponent("worklog_handler"),
	}
}

// CreateWorkLog godoc
// @Summary Log worked hours
// @Description Record a block of work on a day. An end before the start is an overnight shift.
// @Tags work-logs
// @Accept json
// @Produce json
// @Param request body CreateWorkLogRequest true "Work log data"
// @Success 201 {object} entities.WorkLog
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /work-logs [post]
func (h *WorkLogHandler) CreateWorkLog(c echo.Context) error {
	user := CurrentUser(c)

	var req CreateWorkLogRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	id, err := h.logs.Add(ctx, req.Date, req.StartTime, req.EndTime, req.Description, user.ID)
	if err != nil {
		return err
	}

	entry, err := h.logs.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, entry)
}

// ListWorkLogs godoc
// @Summary List work logs
// @Description All of the user's work logs, newest day first, with the total worked hours
// @Tags work-logs
// @Produce json
// @Success 200 {object} services.WorkLogSummary
// @Security BearerAuth
// @Router /work-logs [get]
func (h *WorkLogHandler) ListWorkLogs(c echo.Context) error {
	logs, err := h.logs.List(c.Request().Context(), CurrentUser(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, services.Summarize(logs))
}

// StreamWorkLogs godoc
// @Summary Stream work logs
// @Description Server-sent "work-logs" events carrying the list and total on every change
// @Tags work-logs
// @Produce text/event-stream
// @Security BearerAuth
// @Router /work-logs/stream [get]
func (h *WorkLogHandler) StreamWorkLogs(c echo.Context) error {
	ownerID := CurrentUser(c).ID
	return stream(c, h.streams, h.logger, "work-logs",
		func(ctx context.Context, fn func([]entities.WorkLog)) (ports.CancelFunc, error) {
			return h.logs.Subscribe(ctx, ownerID, fn)
		},
		func(logs []entities.WorkLog) any { return services.Summarize(logs) })
}

// DeleteWorkLog godoc
// @Summary Delete a work log
// @Description Deleting an entry that no longer exists succeeds
// @Tags work-logs
// @Param id path string true "Work log ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /work-logs/{id} [delete]
func (h *WorkLogHandler) DeleteWorkLog(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	user := CurrentUser(c)

	entry, err := h.logs.Get(ctx, id)
	if entities.IsNotFound(err) {
		return c.NoContent(http.StatusNoContent)
	}
	if err != nil {
		return err
	}
	if entry.OwnerID != user.ID {
		h.logger.LogSecurityEvent("foreign_work_log_access", user.ID, c.RealIP(), map[string]interface{}{"work_log_id": id})
		return entities.NewNotFoundError("DeleteWorkLog", entities.CollectionWorkLogs, id)
	}

	if err := h.logs.Delete(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
