package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/database"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// dialect holds the SQL that differs between the JSON implementations
type dialect struct {
	// field extracts a top-level JSON string field
	field func(name string) string
	// jsonParam wraps a bound JSON text parameter
	jsonParam string
	// lock is appended to the read of a read-modify-write
	lock string
	now  string
}

var dialects = map[string]dialect{
	"postgres": {
		field:     func(name string) string { return fmt.Sprintf("(fields->>'%s')", name) },
		jsonParam: "CAST(? AS jsonb)",
		lock:      " FOR UPDATE",
		now:       "NOW()",
	},
	"sqlite": {
		field:     func(name string) string { return fmt.Sprintf("json_extract(fields, '$.%s')", name) },
		jsonParam: "json(?)",
		now:       "strftime('%Y-%m-%dT%H:%M:%fZ', 'now')",
	},
}

type documentRow struct {
	ID     string `db:"id"`
	Fields []byte `db:"fields"`
}

// SQLStore keeps every collection in one documents table with JSON fields.
// Field names are validated before they are interpolated into SQL.
type SQLStore struct {
	db      *database.DB
	dialect dialect
	feed    ports.ChangeFeed
	logger  *logger.Logger
}

// NewSQLStore creates a store on an open, migrated database
func NewSQLStore(db *database.DB, feed ports.ChangeFeed, log *logger.Logger) (*SQLStore, error) {
	d, ok := dialects[db.Driver()]
	if !ok {
		return nil, fmt.Errorf("no document dialect for driver %q", db.Driver())
	}
	return &SQLStore{
		db:      db,
		dialect: d,
		feed:    feed,
		logger:  log.WithComponent("docstore.sql").WithFields("driver", db.Driver()),
	}, nil
}

func (s *SQLStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := validateName("collection", collection); err != nil {
		return "", entities.NewValidationError("Add", err)
	}
	if err := validateFields("Add", fields); err != nil {
		return "", err
	}

	raw, err := json.Marshal(dropNils(copyFields(fields)))
	if err != nil {
		return "", fmt.Errorf("failed to encode fields: %w", err)
	}

	id := uuid.NewString()
	query := s.db.DB.Rebind(fmt.Sprintf(
		"INSERT INTO documents (collection, id, fields) VALUES (?, ?, %s)", s.dialect.jsonParam))
	if _, err := s.db.DB.ExecContext(ctx, query, collection, id, string(raw)); err != nil {
		return "", entities.NewTransportError("Add", err)
	}

	s.publish(ctx, collection)
	return id, nil
}

func (s *SQLStore) Get(ctx context.Context, collection, id string) (*ports.Document, error) {
	var row documentRow
	query := s.db.DB.Rebind("SELECT id, fields FROM documents WHERE collection = ? AND id = ?")
	err := s.db.DB.GetContext(ctx, &row, query, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entities.NewNotFoundError("Get", collection, id)
	}
	if err != nil {
		return nil, entities.NewTransportError("Get", err)
	}
	return decodeRow(row)
}

func (s *SQLStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := validateFields("Update", fields); err != nil {
		return err
	}

	err := s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var row documentRow
		query := tx.Rebind("SELECT id, fields FROM documents WHERE collection = ? AND id = ?" + s.dialect.lock)
		err := tx.GetContext(ctx, &row, query, collection, id)
		if errors.Is(err, sql.ErrNoRows) {
			return entities.NewNotFoundError("Update", collection, id)
		}
		if err != nil {
			return entities.NewTransportError("Update", err)
		}

		doc, err := decodeRow(row)
		if err != nil {
			return err
		}
		mergeFields(doc.Fields, fields)

		raw, err := json.Marshal(doc.Fields)
		if err != nil {
			return fmt.Errorf("failed to encode fields: %w", err)
		}
		update := tx.Rebind(fmt.Sprintf(
			"UPDATE documents SET fields = %s, updated_at = %s WHERE collection = ? AND id = ?",
			s.dialect.jsonParam, s.dialect.now))
		if _, err := tx.ExecContext(ctx, update, string(raw), collection, id); err != nil {
			return entities.NewTransportError("Update", err)
		}
		return nil
	})
	if err != nil {
		var appErr *entities.Error
		if errors.As(err, &appErr) {
			return err
		}
		return entities.NewTransportError("Update", err)
	}

	s.publish(ctx, collection)
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *SQLStore) Delete(ctx context.Context, collection, id string) error {
	query := s.db.DB.Rebind("DELETE FROM documents WHERE collection = ? AND id = ?")
	res, err := s.db.DB.ExecContext(ctx, query, collection, id)
	if err != nil {
		return entities.NewTransportError("Delete", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.publish(ctx, collection)
	}
	return nil
}

func (s *SQLStore) Find(ctx context.Context, q ports.Query) ([]ports.Document, error) {
	if err := validateQuery("Find", q); err != nil {
		return nil, err
	}

	query, args := s.buildFind(q)
	var rows []documentRow
	if err := s.db.DB.SelectContext(ctx, &rows, s.db.DB.Rebind(query), args...); err != nil {
		return nil, entities.NewTransportError("Find", err)
	}

	docs := make([]ports.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := decodeRow(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

func (s *SQLStore) buildFind(q ports.Query) (string, []any) {
	var b strings.Builder
	args := []any{q.Collection}

	b.WriteString("SELECT id, fields FROM documents WHERE collection = ?")
	for _, f := range q.Filters {
		fmt.Fprintf(&b, " AND %s %s ?", s.dialect.field(f.Field), sqlOperator(f.Op))
		args = append(args, f.Value)
	}

	b.WriteString(" ORDER BY ")
	for _, o := range q.OrderBy {
		dir := "ASC"
		if o.Direction == ports.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, "COALESCE(%s, '') %s, ", s.dialect.field(o.Field), dir)
	}
	b.WriteString("id ASC")

	return b.String(), args
}

func (s *SQLStore) Watch(ctx context.Context, q ports.Query, fn ports.SnapshotFunc) (ports.CancelFunc, error) {
	if err := validateQuery("Watch", q); err != nil {
		return nil, err
	}
	return watch(ctx, s.feed, q, s.Find, fn, s.logger)
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

func (s *SQLStore) publish(ctx context.Context, collection string) {
	if err := s.feed.Publish(ctx, collection); err != nil {
		s.logger.Warnw("Failed to publish change", "collection", collection, "error", err)
	}
}

func sqlOperator(op ports.Op) string {
	if op == ports.OpEqual {
		return "="
	}
	return string(op)
}

func decodeRow(row documentRow) (*ports.Document, error) {
	fields := make(map[string]any)
	if err := json.Unmarshal(row.Fields, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", row.ID, err)
	}
	return &ports.Document{ID: row.ID, Fields: fields}, nil
}
