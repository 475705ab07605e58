package services

import (
	"fmt"
	"time"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

// Stored field names
const (
	fieldTitle       = "title"
	fieldCompleted   = "completed"
	fieldTaskDate    = "taskDate"
	fieldDueDate     = "dueDate"
	fieldCreatedAt   = "createdAt"
	fieldUpdatedAt   = "updatedAt"
	fieldOwnerID     = "ownerId"
	fieldDate        = "date"
	fieldStartTime   = "startTime"
	fieldEndTime     = "endTime"
	fieldDescription = "description"
)

func taskToDocument(t entities.Task) map[string]any {
	fields := map[string]any{
		fieldTitle:     t.Title,
		fieldCompleted: t.Completed,
		fieldTaskDate:  ports.EncodeTimestamp(t.TaskDate),
		fieldCreatedAt: ports.EncodeTimestamp(t.CreatedAt),
		fieldUpdatedAt: ports.EncodeTimestamp(t.UpdatedAt),
		fieldOwnerID:   t.OwnerID,
	}
	if t.DueDate != nil {
		fields[fieldDueDate] = ports.EncodeTimestamp(*t.DueDate)
	}
	return fields
}

func taskFromDocument(doc ports.Document) (entities.Task, error) {
	task := entities.Task{
		ID:        doc.ID,
		Title:     doc.String(fieldTitle),
		Completed: doc.Bool(fieldCompleted),
		OwnerID:   doc.String(fieldOwnerID),
	}

	var err error
	if task.TaskDate, err = requiredTimestamp(doc, fieldTaskDate); err != nil {
		return entities.Task{}, err
	}
	if task.CreatedAt, err = requiredTimestamp(doc, fieldCreatedAt); err != nil {
		return entities.Task{}, err
	}
	if task.UpdatedAt, err = requiredTimestamp(doc, fieldUpdatedAt); err != nil {
		return entities.Task{}, err
	}

	due, ok, err := doc.Timestamp(fieldDueDate)
	if err != nil {
		return entities.Task{}, err
	}
	if ok {
		task.DueDate = &due
	}
	return task, nil
}

func workLogToDocument(w entities.WorkLog) map[string]any {
	return map[string]any{
		fieldDate:        w.Date,
		fieldStartTime:   w.StartTime,
		fieldEndTime:     w.EndTime,
		fieldDescription: w.Description,
		fieldOwnerID:     w.OwnerID,
		fieldCreatedAt:   ports.EncodeTimestamp(w.CreatedAt),
		fieldUpdatedAt:   ports.EncodeTimestamp(w.UpdatedAt),
	}
}

func workLogFromDocument(doc ports.Document) (entities.WorkLog, error) {
	log := entities.WorkLog{
		ID:          doc.ID,
		Date:        doc.String(fieldDate),
		StartTime:   doc.String(fieldStartTime),
		EndTime:     doc.String(fieldEndTime),
		Description: doc.String(fieldDescription),
		OwnerID:     doc.String(fieldOwnerID),
	}

	var err error
	if log.CreatedAt, err = requiredTimestamp(doc, fieldCreatedAt); err != nil {
		return entities.WorkLog{}, err
	}
	if log.UpdatedAt, err = requiredTimestamp(doc, fieldUpdatedAt); err != nil {
		return entities.WorkLog{}, err
	}
	return log, nil
}

func requiredTimestamp(doc ports.Document, field string) (time.Time, error) {
	t, ok, err := doc.Timestamp(field)
	if err != nil {
		return time.Time{}, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	if !ok {
		return time.Time{}, fmt.Errorf("document %s: missing %s", doc.ID, field)
	}
	return t, nil
}
