package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// CreateTaskRequest is the body of POST /tasks
type CreateTaskRequest struct {
	Title   string     `json:"title" validate:"required,max=500"`
	Date    string     `json:"date" validate:"required,datetime=2006-01-02"`
	DueDate *time.Time `json:"dueDate,omitempty"`
}

// UpdateTaskRequest is the body of PATCH /tasks/:id. Absent fields are left unchanged.
type UpdateTaskRequest struct {
	Title        *string    `json:"title,omitempty" validate:"omitempty,max=500"`
	Completed    *bool      `json:"completed,omitempty"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	ClearDueDate bool       `json:"clearDueDate,omitempty"`
}

// DatesResponse lists the calendar days that carry tasks
type DatesResponse struct {
	Dates []string `json:"dates"`
}

// TaskHandler handles task-related requests
type TaskHandler struct {
	tasks   ports.TaskService
	loc     *time.Location
	streams StreamGauge
	logger  *logger.Logger
	now     func() time.Time
}

// NewTaskHandler creates a new task handler. Days are resolved in loc.
func NewTaskHandler(tasks ports.TaskService, loc *time.Location, streams StreamGauge, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:   tasks,
		loc:     loc,
		streams: gaugeOrNop(streams),
		logger:  logger.WithComponent("task_handler"),
		now:     time.Now,
	}
}

// CreateTask godoc
// @Summary Create a task
// @Description Create a task on a calendar day for the signed-in user
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body CreateTaskRequest true "Task data"
// @Success 201 {object} entities.Task
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	user := CurrentUser(c)

	var req CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	day, err := parseDay(req.Date, h.loc, h.now())
	if err != nil {
		return requestError("CreateTask", err)
	}

	ctx := c.Request().Context()
	id, err := h.tasks.Add(ctx, req.Title, user.ID, day, req.DueDate)
	if err != nil {
		return err
	}

	task, err := h.tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, task)
}

// ListTasks godoc
// @Summary List a day's tasks
// @Description Tasks of the given day, newest first. Defaults to today.
// @Tags tasks
// @Produce json
// @Param date query string false "Day as YYYY-MM-DD"
// @Success 200 {array} entities.Task
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	day, err := parseDay(c.QueryParam("date"), h.loc, h.now())
	if err != nil {
		return requestError("ListTasks", err)
	}

	tasks, err := h.tasks.ListForDate(c.Request().Context(), CurrentUser(c).ID, day)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tasks)
}

// StreamTasks godoc
// @Summary Stream a day's tasks
// @Description Server-sent "tasks" events carrying the full list on every change
// @Tags tasks
// @Produce text/event-stream
// @Param date query string false "Day as YYYY-MM-DD"
// @Security BearerAuth
// @Router /tasks/stream [get]
func (h *TaskHandler) StreamTasks(c echo.Context) error {
	day, err := parseDay(c.QueryParam("date"), h.loc, h.now())
	if err != nil {
		return requestError("StreamTasks", err)
	}

	ownerID := CurrentUser(c).ID
	return stream(c, h.streams, h.logger, "tasks",
		func(ctx context.Context, fn func([]entities.Task)) (ports.CancelFunc, error) {
			return h.tasks.SubscribeForDate(ctx, ownerID, day, fn)
		},
		func(tasks []entities.Task) any { return tasks })
}

// ListDates godoc
// @Summary Days with tasks
// @Description Calendar days in the month (or from/to range) that have at least one task
// @Tags tasks
// @Produce json
// @Param month query string false "Month as YYYY-MM"
// @Param from query string false "First day as YYYY-MM-DD"
// @Param to query string false "Last day as YYYY-MM-DD"
// @Success 200 {object} DatesResponse
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/dates [get]
func (h *TaskHandler) ListDates(c echo.Context) error {
	window, err := parseDateRange(c, h.loc, h.now())
	if err != nil {
		return requestError("ListDates", err)
	}

	dates, err := h.tasks.DatesWithTasks(c.Request().Context(), CurrentUser(c).ID, window.Start, window.End)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, datesResponse(dates))
}

// StreamDates godoc
// @Summary Stream days with tasks
// @Description Server-sent "dates" events whenever the set of marked days may have changed
// @Tags tasks
// @Produce text/event-stream
// @Param month query string false "Month as YYYY-MM"
// @Security BearerAuth
// @Router /tasks/dates/stream [get]
func (h *TaskHandler) StreamDates(c echo.Context) error {
	window, err := parseDateRange(c, h.loc, h.now())
	if err != nil {
		return requestError("StreamDates", err)
	}

	ownerID := CurrentUser(c).ID
	return stream(c, h.streams, h.logger, "dates",
		func(ctx context.Context, fn func(map[string]struct{})) (ports.CancelFunc, error) {
			return h.tasks.SubscribeDatesWithTasks(ctx, ownerID, window.Start, window.End, fn)
		},
		func(dates map[string]struct{}) any { return datesResponse(dates) })
}

// UpdateTask godoc
// @Summary Update a task
// @Description Change the title, completion or due date of one of the user's tasks
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body UpdateTaskRequest true "Changes"
// @Success 200 {object} entities.Task
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [patch]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	var req UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := h.ownedTask(ctx, "UpdateTask", id, CurrentUser(c)); err != nil {
		return err
	}

	patch := entities.TaskPatch{
		Title:        req.Title,
		Completed:    req.Completed,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
	}
	if err := h.tasks.Update(ctx, id, patch); err != nil {
		return err
	}

	task, err := h.tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

// DeleteTask godoc
// @Summary Delete a task
// @Description Deleting a task that no longer exists succeeds
// @Tags tasks
// @Param id path string true "Task ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	user := CurrentUser(c)

	if _, err := h.tasks.Get(ctx, id); entities.IsNotFound(err) {
		return c.NoContent(http.StatusNoContent)
	}
	if _, err := h.ownedTask(ctx, "DeleteTask", id, user); err != nil {
		return err
	}

	if err := h.tasks.Delete(ctx, id); err != nil {
		return err
	}
	h.logger.LogUserAction(user.ID, "task_deleted", map[string]interface{}{"task_id": id})
	return c.NoContent(http.StatusNoContent)
}

// ownedTask loads a task and hides it from everyone but its owner
func (h *TaskHandler) ownedTask(ctx context.Context, op, id string, user *entities.User) (*entities.Task, error) {
	task, err := h.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.OwnerID != user.ID {
		h.logger.LogSecurityEvent("foreign_task_access", user.ID, "", map[string]interface{}{"task_id": id, "op": op})
		return nil, entities.NewNotFoundError(op, entities.CollectionTasks, id)
	}
	return task, nil
}

func datesResponse(dates map[string]struct{}) DatesResponse {
	keys := make([]string, 0, len(dates))
	for k := range dates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return DatesResponse{Dates: keys}
}
