package retention

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Envelope field names addressable by conditions. Any other field name is
// resolved against Record.Data, with dots descending into nested objects.
const (
	FieldID             = "id"
	FieldOrganizationID = "organizationId"
	FieldCreatedAt      = "createdAt"
)

// Lookup resolves field on r.
func Lookup(r *Record, field string) (any, bool) {
	switch field {
	case FieldID:
		return r.ID, true
	case FieldOrganizationID:
		return r.OrganizationID, true
	case FieldCreatedAt:
		return r.CreatedAt, true
	}

	var cur any = r.Data
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Matches reports whether r satisfies c.
func (c Condition) Matches(r *Record) bool {
	v, found := Lookup(r, c.Field)

	switch c.Operator {
	case OpEquals:
		return found && equalValues(v, c.Value)
	case OpNotEquals:
		return !found || !equalValues(v, c.Value)
	case OpGreaterThan:
		cmp, ok := compareValues(v, c.Value)
		return found && ok && cmp > 0
	case OpLessThan:
		cmp, ok := compareValues(v, c.Value)
		return found && ok && cmp < 0
	case OpContains:
		return found && containsFold(v, c.Value)
	case OpExists:
		return found == wantExists(c.Value)
	}
	return false
}

// MatchAll reports whether r satisfies every condition. An empty list
// matches everything.
func MatchAll(conds []Condition, r *Record) bool {
	for _, c := range conds {
		if !c.Matches(r) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Equal(tb)
		}
	}
	return stringOf(a) == stringOf(b)
}

// compareValues orders a against b numerically, or else as instants.
func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Compare(tb), true
		}
	}
	return 0, false
}

func containsFold(v, needle any) bool {
	n := strings.ToLower(stringOf(needle))
	if items, ok := v.([]any); ok {
		for _, item := range items {
			if strings.ToLower(stringOf(item)) == n {
				return true
			}
		}
		return false
	}
	return strings.Contains(strings.ToLower(stringOf(v)), n)
}

func wantExists(v any) bool {
	switch b := v.(type) {
	case nil:
		return true
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func stringOf(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case time.Time:
		return s.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}
