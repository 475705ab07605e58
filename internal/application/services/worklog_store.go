package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskmaster/tracker/internal/domain/datewindow"
	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/domain/worktime"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// WorkLogSummary is a list of work logs with its derived total
type WorkLogSummary struct {
	Logs           []entities.WorkLog `json:"logs"`
	Count          int                `json:"count"`
	TotalHours     float64            `json:"totalHours"`
	TotalFormatted string             `json:"totalFormatted"`
}

// Summarize derives the total for a delivered list; totals are never stored
func Summarize(logs []entities.WorkLog) WorkLogSummary {
	if logs == nil {
		logs = []entities.WorkLog{}
	}
	total := worktime.TotalHours(logs)
	return WorkLogSummary{
		Logs:           logs,
		Count:          len(logs),
		TotalHours:     total,
		TotalFormatted: worktime.FormatHours(total),
	}
}

// WorkLogStore persists work-hours entries in the document store
type WorkLogStore struct {
	store  ports.DocumentStore
	logger *logger.Logger
	now    func() time.Time
}

// NewWorkLogStore creates a work log store
func NewWorkLogStore(store ports.DocumentStore, logger *logger.Logger) *WorkLogStore {
	return &WorkLogStore{
		store:  store,
		logger: logger.WithComponent("worklog_store"),
		now:    time.Now,
	}
}

// Add records a work log. An end time before the start time is an overnight entry.
func (s *WorkLogStore) Add(ctx context.Context, date, startTime, endTime, description, ownerID string) (string, error) {
	const op = "WorkLogStore.Add"

	description = strings.TrimSpace(description)
	switch {
	case description == "":
		return "", entities.NewValidationError(op, entities.ErrEmptyDescription)
	case date == "":
		return "", entities.NewValidationError(op, entities.ErrMissingDate)
	case startTime == "" || endTime == "":
		return "", entities.NewValidationError(op, entities.ErrMissingTime)
	case ownerID == "":
		return "", entities.NewValidationError(op, entities.ErrMissingOwner)
	}
	if _, err := time.Parse(datewindow.KeyLayout, date); err != nil {
		return "", entities.NewValidationError(op, entities.ErrInvalidDate)
	}
	for _, clock := range []string{startTime, endTime} {
		if _, err := worktime.ParseClock(clock); err != nil {
			return "", entities.NewValidationError(op, entities.ErrInvalidClock)
		}
	}

	now := s.now()
	entry := entities.WorkLog{
		Date:        date,
		StartTime:   startTime,
		EndTime:     endTime,
		Description: description,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	id, err := s.store.Add(ctx, entities.CollectionWorkLogs, workLogToDocument(entry))
	if err != nil {
		return "", fmt.Errorf("failed to add work log: %w", err)
	}

	s.logger.LogUserAction(ownerID, "work_logged", map[string]interface{}{
		"work_log_id": id,
		"date":        date,
		"hours":       worktime.ComputeHours(startTime, endTime),
		"overnight":   entry.IsOvernight(),
	})
	return id, nil
}

// Delete removes a work log
func (s *WorkLogStore) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, entities.CollectionWorkLogs, id); err != nil {
		return fmt.Errorf("failed to delete work log: %w", err)
	}
	return nil
}

// Get loads one work log
func (s *WorkLogStore) Get(ctx context.Context, id string) (*entities.WorkLog, error) {
	doc, err := s.store.Get(ctx, entities.CollectionWorkLogs, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get work log: %w", err)
	}
	entry, err := workLogFromDocument(*doc)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns the owner's logs, newest date first, then latest start first
func (s *WorkLogStore) List(ctx context.Context, ownerID string) ([]entities.WorkLog, error) {
	docs, err := s.store.Find(ctx, s.ownerQuery(ownerID))
	if err != nil {
		return nil, fmt.Errorf("failed to list work logs: %w", err)
	}
	return decodeWorkLogs(docs)
}

// Subscribe delivers the owner's full log list now and after every change
func (s *WorkLogStore) Subscribe(ctx context.Context, ownerID string, onChange func([]entities.WorkLog)) (ports.CancelFunc, error) {
	cancel, err := s.store.Watch(ctx, s.ownerQuery(ownerID), func(docs []ports.Document) {
		logs, err := decodeWorkLogs(docs)
		if err != nil {
			s.logger.Warnw("Skipping malformed work logs in snapshot", "owner_id", ownerID, "error", err)
		}
		onChange(logs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to work logs: %w", err)
	}
	return cancel, nil
}

func (s *WorkLogStore) ownerQuery(ownerID string) ports.Query {
	return ports.Query{Collection: entities.CollectionWorkLogs}.
		Where(fieldOwnerID, ports.OpEqual, ownerID).
		Order(fieldDate, ports.Desc).
		Order(fieldStartTime, ports.Desc)
}

func decodeWorkLogs(docs []ports.Document) ([]entities.WorkLog, error) {
	logs := make([]entities.WorkLog, 0, len(docs))
	var errs []error
	for _, doc := range docs {
		entry, err := workLogFromDocument(doc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		logs = append(logs, entry)
	}
	return logs, errors.Join(errs...)
}
