package ingestion_test

import (
	"errors"
	"testing"
	"time"

	"datachat/src/core/ingestion"
)

func TestNormalizeCoercion(t *testing.T) {
	tests := []struct {
		name  string
		field ingestion.FieldSchema
		value interface{}
		want  interface{}
	}{
		{
			name:  "text passthrough",
			field: ingestion.FieldSchema{Name: "f", Type: ingestion.FieldTypeText},
			value: "hello",
			want:  "hello",
		},
		{
			name:  "text from number",
			field: ingestion.FieldSchema{Name: "f", Type: ingestion.FieldTypeText},
			value: 42,
			want:  "42",
		},
		{
			name:  "text nan sentinel becomes empty",
			field: ingestion.FieldSchema{Name: "f", Type: ingestion.FieldTypeText},
			value: "NaN",
			want:  "",
		},
		{
			name:  "integer from string",
			field: ingestion.FieldSchema{Name: "f", Type: ingestion.FieldTypeInteger},
			value: "17",
			want:  int64(17),
		},
		{
			name:  "integer from float string truncates",
			field: ingestion.FieldSchema{Name: "f", Type: ingestion.FieldTypeInteger},
			value: "17.9",
			want:  int64(17),
		},
		{
			name:  "integer from garbage degrades to zero",
			field: ingestion.FieldSchema{Name: "f", Type: ingestion.FieldTypeInteger},
			value: "abc",
			want:  int64(0),
		},
		{
			name:  "integer from bool",
			field: ingestion.FieldSchema{Name: "f", Type: ingestion.FieldTypeInteger},
			value: true,
			want:  int64(1),
		},
		{
			name:  "float from string",
			field: ingestion.FieldSchema{Name: "f", Type: ingestion.FieldTypeFloat},
			value: "3.25",
			want:  3.25,
		},
		{
			name:  "float from garbage degrades to zero",
			field: ingestion.FieldSchema{Name: "f", Type: ingestion.FieldTypeFloat},
			value: "not a number",
			want:  0.0,
		},
		{
			name:  "boolean truthy strings",
			field: ingestion.FieldSchema{Name: "f", Type: ingestion.FieldTypeBoolean},
			value: "Yes",
			want:  true,
		},
		{
			name:  "boolean anything else is false",
			field: ingestion.FieldSchema{Name: "f", Type: ingestion.FieldTypeBoolean},
			value: "maybe",
			want:  false,
		},
		{
			name:  "datetime date only",
			field: ingestion.FieldSchema{Name: "f", Type: ingestion.FieldTypeDatetime},
			value: "2024-03-01",
			want:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "datetime unparsable degrades to zero time",
			field: ingestion.FieldSchema{Name: "f", Type: ingestion.FieldTypeDatetime},
			value: "last tuesday",
			want:  time.Time{},
		},
		{
			name:  "json from string",
			field: ingestion.FieldSchema{Name: "f", Type: ingestion.FieldTypeJSON},
			value: `{"a": 1}`,
			want:  map[string]interface{}{"a": float64(1)},
		},
		{
			name:  "json from garbage degrades to empty object",
			field: ingestion.FieldSchema{Name: "f", Type: ingestion.FieldTypeJSON},
			value: "{broken",
			want:  map[string]interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := ingestion.RawRecord{"f": tt.value}
			got, err := ingestion.Normalize(record, []ingestion.FieldSchema{tt.field}, 0)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}

			switch want := tt.want.(type) {
			case time.Time:
				ts, ok := got["f"].(time.Time)
				if !ok || !ts.Equal(want) {
					t.Errorf("Normalize() = %v, want %v", got["f"], want)
				}
			case map[string]interface{}:
				gotMap, ok := got["f"].(map[string]interface{})
				if !ok || len(gotMap) != len(want) {
					t.Fatalf("Normalize() = %v, want %v", got["f"], want)
				}
				for k, v := range want {
					if gotMap[k] != v {
						t.Errorf("Normalize() [%s] = %v, want %v", k, gotMap[k], v)
					}
				}
			default:
				if got["f"] != tt.want {
					t.Errorf("Normalize() = %v (%T), want %v (%T)", got["f"], got["f"], tt.want, tt.want)
				}
			}
		})
	}
}

func TestNormalizeMissingFields(t *testing.T) {
	schema := []ingestion.FieldSchema{
		{Name: "title", Type: ingestion.FieldTypeText, Required: true},
		{Name: "price", Type: ingestion.FieldTypeFloat, Default: 9.99},
		{Name: "views", Type: ingestion.FieldTypeInteger},
	}

	t.Run("required missing aborts", func(t *testing.T) {
		_, err := ingestion.Normalize(ingestion.RawRecord{"price": 1.0}, schema, 4)
		var sve *ingestion.SchemaViolationError
		if !errors.As(err, &sve) {
			t.Fatalf("Normalize() error = %v, want SchemaViolationError", err)
		}
		if sve.Field != "title" || sve.Record != 4 {
			t.Errorf("SchemaViolationError = %+v, want field title at record 4", sve)
		}
	})

	t.Run("required nil aborts", func(t *testing.T) {
		_, err := ingestion.Normalize(ingestion.RawRecord{"title": nil}, schema, 0)
		var sve *ingestion.SchemaViolationError
		if !errors.As(err, &sve) {
			t.Fatalf("Normalize() error = %v, want SchemaViolationError", err)
		}
	})

	t.Run("default fills missing", func(t *testing.T) {
		got, err := ingestion.Normalize(ingestion.RawRecord{"title": "x"}, schema, 0)
		if err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		if got["price"] != 9.99 {
			t.Errorf("price = %v, want default 9.99", got["price"])
		}
	})

	t.Run("optional missing coerces nil", func(t *testing.T) {
		got, err := ingestion.Normalize(ingestion.RawRecord{"title": "x"}, schema, 0)
		if err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		if got["views"] != int64(0) {
			t.Errorf("views = %v, want 0", got["views"])
		}
	})

	t.Run("undeclared fields are dropped", func(t *testing.T) {
		got, err := ingestion.Normalize(ingestion.RawRecord{"title": "x", "rogue": "y"}, schema, 0)
		if err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		if _, ok := got["rogue"]; ok {
			t.Errorf("undeclared field survived normalization: %v", got)
		}
	})
}

// A declared text field with a null value coerces to the empty string,
// so downstream it is kept as an empty metadata entry rather than
// dropped the way an undeclared null would be.
func TestNormalizedNilTextFieldSurvivesAsEmptyMetadata(t *testing.T) {
	schema := []ingestion.FieldSchema{
		{Name: "title", Type: ingestion.FieldTypeText, Required: true},
		{Name: "category", Type: ingestion.FieldTypeText},
	}

	got, err := ingestion.Normalize(ingestion.RawRecord{"title": "kettle", "category": nil}, schema, 0)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got["category"] != "" {
		t.Fatalf("category = %v (%T), want empty string", got["category"], got["category"])
	}

	doc := ingestion.Project(got, []string{"title"}, []string{"category"}, nil)
	if doc == nil {
		t.Fatal("Project() returned nil for a record with text")
	}
	category, ok := doc.Metadata["category"]
	if !ok {
		t.Fatal("category missing from metadata, want empty string entry")
	}
	if category != "" {
		t.Errorf("category = %v, want empty string", category)
	}
}
