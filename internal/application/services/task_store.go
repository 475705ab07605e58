package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskmaster/tracker/internal/domain/datewindow"
	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// TaskStore persists dated tasks in the document store
type TaskStore struct {
	store  ports.DocumentStore
	loc    *time.Location
	logger *logger.Logger
	now    func() time.Time
}

// NewTaskStore creates a task store. Calendar days are resolved in loc.
func NewTaskStore(store ports.DocumentStore, loc *time.Location, logger *logger.Logger) *TaskStore {
	return &TaskStore{
		store:  store,
		loc:    loc,
		logger: logger.WithComponent("task_store"),
		now:    time.Now,
	}
}

// Add creates an open task and returns its ID
func (s *TaskStore) Add(ctx context.Context, title, ownerID string, taskDate time.Time, dueDate *time.Time) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", entities.NewValidationError("TaskStore.Add", entities.ErrEmptyTitle)
	}
	if ownerID == "" {
		return "", entities.NewValidationError("TaskStore.Add", entities.ErrMissingOwner)
	}
	if taskDate.IsZero() {
		return "", entities.NewValidationError("TaskStore.Add", entities.ErrMissingDate)
	}

	now := s.now()
	task := entities.Task{
		Title:     title,
		Completed: false,
		TaskDate:  taskDate,
		DueDate:   dueDate,
		CreatedAt: now,
		UpdatedAt: now,
		OwnerID:   ownerID,
	}

	id, err := s.store.Add(ctx, entities.CollectionTasks, taskToDocument(task))
	if err != nil {
		return "", fmt.Errorf("failed to add task: %w", err)
	}

	s.logger.LogUserAction(ownerID, "task_created", map[string]interface{}{
		"task_id":   id,
		"task_date": datewindow.DateKey(taskDate.In(s.loc)),
	})
	return id, nil
}

// Update applies a partial change and refreshes updatedAt
func (s *TaskStore) Update(ctx context.Context, id string, patch entities.TaskPatch) error {
	fields := map[string]any{
		fieldUpdatedAt: ports.EncodeTimestamp(s.now()),
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return entities.NewValidationError("TaskStore.Update", entities.ErrEmptyTitle)
		}
		fields[fieldTitle] = title
	}
	if patch.Completed != nil {
		fields[fieldCompleted] = *patch.Completed
	}
	if patch.ClearDueDate {
		fields[fieldDueDate] = nil
	} else if patch.DueDate != nil {
		fields[fieldDueDate] = ports.EncodeTimestamp(*patch.DueDate)
	}

	if err := s.store.Update(ctx, entities.CollectionTasks, id, fields); err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	s.logger.Debugw("Task updated", "task_id", id, "timestamp_only", patch.IsEmpty())
	return nil
}

// Delete removes a task
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, entities.CollectionTasks, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// Get loads one task
func (s *TaskStore) Get(ctx context.Context, id string) (*entities.Task, error) {
	doc, err := s.store.Get(ctx, entities.CollectionTasks, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	task, err := taskFromDocument(*doc)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListForDate returns the owner's tasks on taskDate's calendar day,
// newest taskDate first, then newest created first.
func (s *TaskStore) ListForDate(ctx context.Context, ownerID string, taskDate time.Time) ([]entities.Task, error) {
	docs, err := s.store.Find(ctx, s.dayQuery(ownerID, taskDate))
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return decodeTasks(docs)
}

// SubscribeForDate delivers the day's full task list now and after every change
func (s *TaskStore) SubscribeForDate(ctx context.Context, ownerID string, taskDate time.Time, onChange func([]entities.Task)) (ports.CancelFunc, error) {
	cancel, err := s.store.Watch(ctx, s.dayQuery(ownerID, taskDate), func(docs []ports.Document) {
		tasks, err := decodeTasks(docs)
		if err != nil {
			s.logger.Warnw("Skipping malformed tasks in snapshot", "owner_id", ownerID, "error", err)
		}
		onChange(tasks)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to tasks: %w", err)
	}
	return cancel, nil
}

// DatesWithTasks returns the date keys of days in [rangeStart, rangeEnd] holding at least one task
func (s *TaskStore) DatesWithTasks(ctx context.Context, ownerID string, rangeStart, rangeEnd time.Time) (map[string]struct{}, error) {
	docs, err := s.store.Find(ctx, s.rangeQuery(ownerID, rangeStart, rangeEnd))
	if err != nil {
		return nil, fmt.Errorf("failed to load task dates: %w", err)
	}
	tasks, err := decodeTasks(docs)
	if err != nil {
		return nil, err
	}
	return s.dateKeys(tasks), nil
}

// DatesWithTasksInMonth is DatesWithTasks over month's MonthBounds
func (s *TaskStore) DatesWithTasksInMonth(ctx context.Context, ownerID string, month time.Time) (map[string]struct{}, error) {
	r := datewindow.MonthBounds(month.In(s.loc))
	return s.DatesWithTasks(ctx, ownerID, r.Start, r.End)
}

// SubscribeDatesWithTasks keeps a calendar's markers live
func (s *TaskStore) SubscribeDatesWithTasks(ctx context.Context, ownerID string, rangeStart, rangeEnd time.Time, onChange func(map[string]struct{})) (ports.CancelFunc, error) {
	cancel, err := s.store.Watch(ctx, s.rangeQuery(ownerID, rangeStart, rangeEnd), func(docs []ports.Document) {
		tasks, err := decodeTasks(docs)
		if err != nil {
			s.logger.Warnw("Skipping malformed tasks in snapshot", "owner_id", ownerID, "error", err)
		}
		onChange(s.dateKeys(tasks))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to task dates: %w", err)
	}
	return cancel, nil
}

func (s *TaskStore) dayQuery(ownerID string, taskDate time.Time) ports.Query {
	day := datewindow.DayBounds(taskDate.In(s.loc))
	return s.rangeQuery(ownerID, day.Start, day.End).
		Order(fieldTaskDate, ports.Desc).
		Order(fieldCreatedAt, ports.Desc)
}

func (s *TaskStore) rangeQuery(ownerID string, start, end time.Time) ports.Query {
	return ports.Query{Collection: entities.CollectionTasks}.
		Where(fieldOwnerID, ports.OpEqual, ownerID).
		Where(fieldTaskDate, ports.OpGreaterOrEqual, ports.EncodeTimestamp(start)).
		Where(fieldTaskDate, ports.OpLessOrEqual, ports.EncodeTimestamp(end))
}

func (s *TaskStore) dateKeys(tasks []entities.Task) map[string]struct{} {
	keys := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		keys[datewindow.DateKey(t.TaskDate.In(s.loc))] = struct{}{}
	}
	return keys
}

// decodeTasks converts every decodable document and joins the errors of the rest
func decodeTasks(docs []ports.Document) ([]entities.Task, error) {
	tasks := make([]entities.Task, 0, len(docs))
	var errs []error
	for _, doc := range docs {
		task, err := taskFromDocument(doc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, errors.Join(errs...)
}
