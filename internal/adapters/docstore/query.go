// Package docstore implements ports.DocumentStore in memory and on SQL
// databases, with realtime watches driven by a ports.ChangeFeed.
package docstore

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateName(kind, name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	return nil
}

func validateQuery(op string, q ports.Query) error {
	if err := validateName("collection", q.Collection); err != nil {
		return entities.NewValidationError(op, err)
	}
	for _, f := range q.Filters {
		if err := validateName("field", f.Field); err != nil {
			return entities.NewValidationError(op, err)
		}
		switch f.Op {
		case ports.OpEqual, ports.OpGreaterOrEqual, ports.OpLessOrEqual:
		default:
			return entities.NewValidationError(op, fmt.Errorf("unsupported operator %q", f.Op))
		}
	}
	for _, o := range q.OrderBy {
		if err := validateName("field", o.Field); err != nil {
			return entities.NewValidationError(op, err)
		}
	}
	return nil
}

func matches(doc ports.Document, filters []ports.Filter) bool {
	for _, f := range filters {
		v, ok := doc.Fields[f.Field].(string)
		if !ok {
			return false
		}
		c := strings.Compare(v, f.Value)
		switch f.Op {
		case ports.OpEqual:
			if c != 0 {
				return false
			}
		case ports.OpGreaterOrEqual:
			if c < 0 {
				return false
			}
		case ports.OpLessOrEqual:
			if c > 0 {
				return false
			}
		}
	}
	return true
}

// sortDocuments orders by the query's fields with absent values as "", then by ID.
func sortDocuments(docs []ports.Document, orders []ports.Order) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range orders {
			a, _ := docs[i].Fields[o.Field].(string)
			b, _ := docs[j].Fields[o.Field].(string)
			if c := strings.Compare(a, b); c != 0 {
				if o.Direction == ports.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return docs[i].ID < docs[j].ID
	})
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// mergeFields applies an update; a nil value removes the field.
func mergeFields(dst, update map[string]any) {
	for k, v := range update {
		if v == nil {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
}

func validateFields(op string, fields map[string]any) error {
	for k, v := range fields {
		if err := validateName("field", k); err != nil {
			return entities.NewValidationError(op, err)
		}
		switch v.(type) {
		case nil, string, bool, float64:
		default:
			return entities.NewValidationError(op, fmt.Errorf("field %s has unsupported type %T", k, v))
		}
	}
	return nil
}
