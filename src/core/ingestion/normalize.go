package ingestion

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// missingSentinel is the literal pandas-style placeholder some file
// exports carry for absent values. Text coercion maps it to "".
const missingSentinel = "nan"

// datetimeLayouts are tried in order when parsing datetime fields.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Normalize coerces every field declared in the schema to its declared
// type. Malformed individual values degrade to type-appropriate defaults
// and never fail; the only fatal condition is a required field missing
// with no declared default, which aborts the whole load. ordinal is the
// zero-based position of the record, used in error reporting.
func Normalize(record RawRecord, schema []FieldSchema, ordinal int) (NormalizedRecord, error) {
	out := make(NormalizedRecord, len(schema))
	for _, field := range schema {
		value, present := record[field.Name]
		if !present || value == nil {
			if field.Default != nil {
				out[field.Name] = coerce(field.Type, field.Default)
				continue
			}
			if field.Required {
				return nil, &SchemaViolationError{Field: field.Name, Record: ordinal}
			}
			out[field.Name] = coerce(field.Type, nil)
			continue
		}
		out[field.Name] = coerce(field.Type, value)
	}
	return out, nil
}

// coerce converts a single value to the given field type. It never fails:
// unparsable values collapse to the type's zero-equivalent, a deliberately
// lenient policy that favors field availability over strictness.
func coerce(t FieldType, value interface{}) interface{} {
	switch t {
	case FieldTypeText:
		return coerceText(value)
	case FieldTypeInteger:
		return coerceInteger(value)
	case FieldTypeFloat:
		return coerceFloat(value)
	case FieldTypeBoolean:
		return coerceBoolean(value)
	case FieldTypeDatetime:
		return coerceDatetime(value)
	case FieldTypeJSON:
		return coerceJSON(value)
	}
	return value
}

func coerceText(value interface{}) string {
	if value == nil {
		return ""
	}
	s := stringify(value)
	if strings.EqualFold(s, missingSentinel) {
		return ""
	}
	return s
}

func coerceInteger(value interface{}) int64 {
	switch v := value.(type) {
	case nil:
		return 0
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
		return 0
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return int64(f)
		}
		return 0
	default:
		return 0
	}
}

func coerceFloat(value interface{}) float64 {
	switch v := value.(type) {
	case nil:
		return 0.0
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
		return 0.0
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
		return 0.0
	default:
		return 0.0
	}
}

// boolean truth set matches the source system: case-insensitive
// {"true", "1", "yes", "y"}; everything else is false.
func coerceBoolean(value interface{}) bool {
	if b, ok := value.(bool); ok {
		return b
	}
	switch strings.ToLower(strings.TrimSpace(stringify(value))) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

// coerceDatetime parses into a canonical time.Time. Unparsable values
// become the zero time, not an error.
func coerceDatetime(value interface{}) time.Time {
	switch v := value.(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return v
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range datetimeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts
			}
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}

// coerceJSON parses string values as structured data; on parse failure it
// substitutes an empty structure and continues. Already-structured values
// pass through.
func coerceJSON(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return map[string]interface{}{}
	case map[string]interface{}:
		return v
	case []interface{}:
		return v
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return map[string]interface{}{}
		}
		var parsed interface{}
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			return map[string]interface{}{}
		}
		return parsed
	default:
		return map[string]interface{}{}
	}
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
