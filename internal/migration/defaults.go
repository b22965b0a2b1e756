package migration

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultValue computes the value written into documents missing field d.
// Lists and references have no computable default and yield nil, which is
// stored as an explicit null.
func DefaultValue(d FieldDescriptor, now time.Time) any {
	switch d.Kind {
	case KindDate:
		return today(now)
	case KindString:
		return ""
	case KindBoolean:
		return false
	case KindIdentity:
		return uuid.Nil.String()
	case KindNumber:
		if d.Zero != nil {
			return d.Zero
		}
		return int32(0)
	case KindEnum, KindObject:
		return d.Zero
	default:
		return nil
	}
}

func today(now time.Time) time.Time {
	y, m, day := now.UTC().Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// coerce converts a directive-supplied default to the representation of the
// field kind. Values read from YAML arrive as strings, ints and floats.
func coerce(d FieldDescriptor, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch d.Kind {
	case KindDate:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			for _, layout := range dateLayouts {
				if parsed, err := time.Parse(layout, t); err == nil {
					return parsed.UTC(), nil
				}
			}
			return nil, fmt.Errorf("field %s: %q is not a date", d.Name, t)
		case int:
			return time.Unix(int64(t), 0).UTC(), nil
		}
	case KindString, KindIdentity, KindEnum:
		if s, ok := v.(string); ok {
			if d.Kind == KindIdentity {
				if _, err := uuid.Parse(s); err != nil && s != "" {
					return nil, fmt.Errorf("field %s: %w", d.Name, err)
				}
			}
			return s, nil
		}
	case KindBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindNumber:
		switch n := v.(type) {
		case int, int32, int64, float32, float64:
			return n, nil
		}
	default:
		return v, nil
	}
	return nil, fmt.Errorf("field %s: %v (%T) is not a %s value", d.Name, v, v, d.Kind)
}
