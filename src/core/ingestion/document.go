package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document is the unit stored in the vector index: embeddable text plus
// a flat, store-safe metadata mapping. Documents are immutable once
// projected and carry a fresh random id, never a source key.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]interface{}
}

// Tags are extra metadata entries stamped on every document of a run,
// such as the reader kind and, for file-backed sources, the file path.
type Tags map[string]interface{}

// Project builds one Document from a normalized record. Text is the
// trimmed values of textFields joined by a single space, in declared
// order. It returns nil when the resulting text is empty or
// whitespace-only; callers must skip nil documents.
//
// When metadataFields is empty, metadata carries every non-text field of
// the record plus the tags; otherwise exactly the configured fields plus
// the tags. All values pass through sanitizeValue.
func Project(record NormalizedRecord, textFields []string, metadataFields []string, tags Tags) *Document {
	parts := make([]string, 0, len(textFields))
	for _, name := range textFields {
		value, ok := record[name]
		if !ok || value == nil {
			continue
		}
		piece := strings.TrimSpace(stringify(value))
		if piece != "" {
			parts = append(parts, piece)
		}
	}
	text := strings.Join(parts, " ")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	metadata := make(map[string]interface{})
	for key, value := range tags {
		setSanitized(metadata, key, value)
	}

	if len(metadataFields) > 0 {
		for _, name := range metadataFields {
			if value, ok := record[name]; ok {
				setSanitized(metadata, name, value)
			}
		}
	} else {
		isText := make(map[string]bool, len(textFields))
		for _, name := range textFields {
			isText[name] = true
		}
		for key, value := range record {
			if !isText[key] {
				setSanitized(metadata, key, value)
			}
		}
	}

	return &Document{
		ID:       uuid.New().String(),
		Text:     text,
		Metadata: metadata,
	}
}

// setSanitized stores the store-safe form of value under key, or drops
// the key entirely when the value sanitizes to nothing.
func setSanitized(metadata map[string]interface{}, key string, value interface{}) {
	if clean, ok := sanitizeValue(value); ok {
		metadata[key] = clean
	}
}

// sanitizeValue maps an arbitrary value to a store-safe scalar:
// strings, numbers and booleans pass through, lists become comma-joined
// strings, maps become JSON strings and nils are dropped (ok=false).
// Zero timestamps count as null and are dropped too.
func sanitizeValue(value interface{}) (interface{}, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case string:
		return v, true
	case bool:
		return v, true
	case int, int32, int64, float32, float64:
		return v, true
	case time.Time:
		if v.IsZero() {
			return nil, false
		}
		return v.Format(time.RFC3339), true
	case []interface{}:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = stringify(item)
		}
		return strings.Join(parts, ", "), true
	case []string:
		return strings.Join(v, ", "), true
	case map[string]interface{}:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		return string(encoded), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}
