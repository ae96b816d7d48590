package ingestion

import "fmt"

// SchemaViolationError is returned when a required field with no default
// is absent from a record. It aborts the whole load; batches flushed
// before the violating record remain indexed.
type SchemaViolationError struct {
	Field  string
	Record int // zero-based position of the record in iteration order
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("required field %q missing with no default at record %d", e.Field, e.Record)
}
