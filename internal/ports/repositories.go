package ports

import (
	"context"
	"fmt"
	"time"
)

// Op is a filter comparison operator
type Op string

const (
	OpEqual          Op = "=="
	OpGreaterOrEqual Op = ">="
	OpLessOrEqual    Op = "<="
)

// Direction is a sort direction
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Filter restricts a query to documents whose field compares to Value.
// Values are strings; timestamps are compared in their encoded form.
type Filter struct {
	Field string
	Op    Op
	Value string
}

// Order sorts query results by a string field
type Order struct {
	Field     string
	Direction Direction
}

// Query selects documents of one collection. Results are ordered by OrderBy,
// then by document ID.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    []Order
}

// Where appends a filter and returns the query
func (q Query) Where(field string, op Op, value string) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// Order appends an ordering and returns the query
func (q Query) Order(field string, dir Direction) Query {
	q.OrderBy = append(append([]Order(nil), q.OrderBy...), Order{Field: field, Direction: dir})
	return q
}

// Document is a stored record. Field values are JSON scalars:
// string, bool, float64 or nil.
type Document struct {
	ID     string
	Fields map[string]any
}

// String returns the string field or "" when absent
func (d Document) String(field string) string {
	s, _ := d.Fields[field].(string)
	return s
}

// Bool returns the bool field or false when absent
func (d Document) Bool(field string) bool {
	b, _ := d.Fields[field].(bool)
	return b
}

// Timestamp decodes a stored timestamp field. ok is false when the field is absent.
func (d Document) Timestamp(field string) (t time.Time, ok bool, err error) {
	s, present := d.Fields[field].(string)
	if !present || s == "" {
		return time.Time{}, false, nil
	}
	t, err = DecodeTimestamp(s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("field %s: %w", field, err)
	}
	return t, true, nil
}

// CancelFunc stops a watch. It is safe to call more than once. It blocks until a
// delivery already in progress returns, so it must not be called from inside the callback.
type CancelFunc func()

// SnapshotFunc receives the full current result set of a watched query
type SnapshotFunc func(docs []Document)

// DocumentStore defines the interface for hosted-document-database operations
type DocumentStore interface {
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)
	Get(ctx context.Context, collection, id string) (*Document, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Find(ctx context.Context, q Query) ([]Document, error)
	Watch(ctx context.Context, q Query, fn SnapshotFunc) (CancelFunc, error)
	Ping(ctx context.Context) error
}

// ChangeFeed carries collection-level change notifications between writers and watchers
type ChangeFeed interface {
	Publish(ctx context.Context, collection string) error
	// Subscribe returns a channel that receives a value after each change to the
	// collection. Notifications may be coalesced. The returned func releases the subscription.
	Subscribe(ctx context.Context, collection string) (<-chan struct{}, func(), error)
	Close() error
}

// TimestampLayout is fixed width, so encoded timestamps sort chronologically as strings.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// EncodeTimestamp converts an instant into its stored form
func EncodeTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// DecodeTimestamp converts a stored timestamp back into an instant
func DecodeTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}
