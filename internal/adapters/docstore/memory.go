package docstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// MemoryStore keeps documents in process. Used for development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
	feed        ports.ChangeFeed
	logger      *logger.Logger
}

// NewMemoryStore creates an empty store publishing writes on feed
func NewMemoryStore(feed ports.ChangeFeed, log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		feed:        feed,
		logger:      log.WithComponent("docstore.memory"),
	}
}

func (s *MemoryStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := validateName("collection", collection); err != nil {
		return "", entities.NewValidationError("Add", err)
	}
	if err := validateFields("Add", fields); err != nil {
		return "", err
	}

	id := uuid.NewString()
	doc := dropNils(copyFields(fields))

	s.mu.Lock()
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]map[string]any)
	}
	s.collections[collection][id] = doc
	s.mu.Unlock()

	s.publish(ctx, collection)
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (*ports.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.collections[collection][id]
	if !ok {
		return nil, entities.NewNotFoundError("Get", collection, id)
	}
	return &ports.Document{ID: id, Fields: copyFields(fields)}, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := validateFields("Update", fields); err != nil {
		return err
	}

	s.mu.Lock()
	current, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return entities.NewNotFoundError("Update", collection, id)
	}
	next := copyFields(current)
	mergeFields(next, fields)
	s.collections[collection][id] = next
	s.mu.Unlock()

	s.publish(ctx, collection)
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	_, existed := s.collections[collection][id]
	delete(s.collections[collection], id)
	s.mu.Unlock()

	if existed {
		s.publish(ctx, collection)
	}
	return nil
}

func (s *MemoryStore) Find(_ context.Context, q ports.Query) ([]ports.Document, error) {
	if err := validateQuery("Find", q); err != nil {
		return nil, err
	}

	s.mu.RLock()
	docs := make([]ports.Document, 0)
	for id, fields := range s.collections[q.Collection] {
		doc := ports.Document{ID: id, Fields: fields}
		if matches(doc, q.Filters) {
			docs = append(docs, ports.Document{ID: id, Fields: copyFields(fields)})
		}
	}
	s.mu.RUnlock()

	sortDocuments(docs, q.OrderBy)
	return docs, nil
}

func (s *MemoryStore) Watch(ctx context.Context, q ports.Query, fn ports.SnapshotFunc) (ports.CancelFunc, error) {
	if err := validateQuery("Watch", q); err != nil {
		return nil, err
	}
	return watch(ctx, s.feed, q, s.Find, fn, s.logger)
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) publish(ctx context.Context, collection string) {
	if err := s.feed.Publish(ctx, collection); err != nil {
		s.logger.Warnw("Failed to publish change", "collection", collection, "error", err)
	}
}

func dropNils(fields map[string]any) map[string]any {
	for k, v := range fields {
		if v == nil {
			delete(fields, k)
		}
	}
	return fields
}
