// Package changecapture computes per-field changes for the rows touched by
// one unit of work.
//
// Rows describe themselves through the Record interface instead of
// reflection, so each model decides which values are auditable. The Tracker
// remembers the first state seen for every row, consolidates repeated
// touches of the same row and diffs original against final state when the
// unit of work is about to commit.
package changecapture

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field is one named value of a record.
type Field struct {
	Name  string
	Value any
}

// Record is implemented by every row that takes part in change capture.
type Record interface {
	// EntityType names the kind of row, e.g. "DocumentLineItem".
	EntityType() string
	// EntityKey renders the primary key. An empty key is recorded as UNKNOWN.
	EntityKey() string
	// Fields lists the current values in a stable order.
	Fields() []Field
}

// Excluded reports whether a field never produces a change entry.
// Concurrency tokens and framework-internal fields are skipped.
func Excluded(name string) bool {
	switch name {
	case "Version", "RowVersion":
		return true
	}
	return strings.HasSuffix(name, "TimeStamp") || strings.HasPrefix(name, "__")
}

// Format renders a value as the text stored in the audit log.
// Nil and nil pointers render as nil.
func Format(v any) *string {
	s, ok := format(v)
	if !ok {
		return nil
	}
	return &s
}

func format(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case *string:
		if x == nil {
			return "", false
		}
		return *x, true
	case bool:
		return strconv.FormatBool(x), true
	case *bool:
		if x == nil {
			return "", false
		}
		return strconv.FormatBool(*x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case *int64:
		if x == nil {
			return "", false
		}
		return strconv.FormatInt(*x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case *float64:
		if x == nil {
			return "", false
		}
		return strconv.FormatFloat(*x, 'f', -1, 64), true
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), true
	case *time.Time:
		if x == nil {
			return "", false
		}
		return x.UTC().Format(time.RFC3339Nano), true
	case []byte:
		if x == nil {
			return "", false
		}
		return base64.StdEncoding.EncodeToString(x), true
	case fmt.Stringer:
		return x.String(), true
	default:
		return fmt.Sprint(x), true
	}
}
