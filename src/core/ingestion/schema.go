package ingestion

import (
	"fmt"
)

// FieldType enumerates the value types a source field can be coerced to.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeInteger  FieldType = "integer"
	FieldTypeFloat    FieldType = "float"
	FieldTypeDatetime FieldType = "datetime"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeJSON     FieldType = "json"
)

// Valid reports whether the field type is one of the supported types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeInteger, FieldTypeFloat, FieldTypeDatetime, FieldTypeBoolean, FieldTypeJSON:
		return true
	}
	return false
}

// FieldSchema declares the type and requiredness contract for one source field.
type FieldSchema struct {
	Name     string      `json:"name"`
	Type     FieldType   `json:"type"`
	Required bool        `json:"required"`
	Default  interface{} `json:"default_value,omitempty"`
}

// RawRecord is a loosely-typed record as produced by a source reader.
// Values may be strings, numbers, booleans, nil or nested structures.
type RawRecord = map[string]interface{}

// NormalizedRecord holds every declared field coerced to its schema type.
type NormalizedRecord map[string]interface{}

// Config parameterizes one ingestion run. It arrives already parsed from
// the transport layer and is validated once, before any I/O begins.
type Config struct {
	Schema         []FieldSchema `json:"field_schema"`
	TextFields     []string      `json:"text_fields"`
	MetadataFields []string      `json:"metadata_fields,omitempty"`
	BatchSize      int           `json:"batch_size,omitempty"`
}

// DefaultBatchSize bounds the in-memory document accumulator.
const DefaultBatchSize = 100

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Schema) == 0 {
		return fmt.Errorf("field schema is required")
	}
	declared := make(map[string]FieldSchema, len(c.Schema))
	for _, f := range c.Schema {
		if f.Name == "" {
			return fmt.Errorf("field schema entry has empty name")
		}
		if !f.Type.Valid() {
			return fmt.Errorf("field %q has unsupported type %q", f.Name, f.Type)
		}
		if _, dup := declared[f.Name]; dup {
			return fmt.Errorf("field %q declared twice", f.Name)
		}
		declared[f.Name] = f
	}

	if len(c.TextFields) == 0 {
		return fmt.Errorf("at least one text field is required")
	}
	for _, name := range c.TextFields {
		if _, ok := declared[name]; !ok {
			return fmt.Errorf("text field %q not found in field schema", name)
		}
	}
	for _, name := range c.MetadataFields {
		if _, ok := declared[name]; !ok {
			return fmt.Errorf("metadata field %q not found in field schema", name)
		}
	}

	if c.BatchSize < 0 {
		return fmt.Errorf("batch size must be positive")
	}
	return nil
}

// EffectiveBatchSize returns the configured batch size or the default.
func (c *Config) EffectiveBatchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return DefaultBatchSize
}
