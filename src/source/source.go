package source

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrNotFound indicates the file, table or collection does not exist.
	ErrNotFound = errors.New("source not found")
	// ErrConnection indicates the source is unreachable or refused auth.
	ErrConnection = errors.New("source connection failed")
)

// Kind identifies one of the closed set of source reader variants.
type Kind string

const (
	KindCSV      Kind = "csv"
	KindPostgres Kind = "postgresql"
	KindMongo    Kind = "mongodb"
)

// Record is a raw record as read from a source: an unstructured mapping
// of field name to loosely-typed value.
type Record = map[string]interface{}

// Reader streams records from one data source. A Reader is exclusively
// owned by a single ingestion run; implementations hold a live
// connection or file handle between Open and Close and must release it
// on Close regardless of how iteration ended.
type Reader interface {
	// Open acquires the connection or file handle and validates that the
	// source exists. It fails with ErrNotFound or ErrConnection.
	Open(ctx context.Context) error
	// ReadChunk returns up to size records. It returns io.EOF (with no
	// records) once the source is exhausted. Malformed individual
	// records are skipped with a warning, never returned.
	ReadChunk(ctx context.Context, size int) ([]Record, error)
	// ReadSchema reports the source's view of its field types, keyed by
	// field name.
	ReadSchema(ctx context.Context) (map[string]string, error)
	// Close releases the underlying handle. Safe to call more than once.
	Close() error
}

// CSVConfig configures a file-backed delimited-text reader.
type CSVConfig struct {
	FilePath  string   `json:"file_path"`
	Delimiter string   `json:"delimiter,omitempty"` // default ","
	Encoding  string   `json:"encoding,omitempty"`  // IANA/WHATWG name, default UTF-8
	HasHeader bool     `json:"has_header"`
	Columns   []string `json:"columns,omitempty"` // required when HasHeader is false
	SkipRows  int      `json:"skip_rows,omitempty"`
	MaxRows   int      `json:"max_rows,omitempty"` // 0 means unbounded

	// Optional object-storage staging: when Bucket and Object are set the
	// worker downloads the object to a temporary file and rewrites
	// FilePath before opening the reader.
	Bucket string `json:"bucket,omitempty"`
	Object string `json:"object,omitempty"`
}

// PostgresConfig configures a row-store reader that streams a projection
// query over named columns.
type PostgresConfig struct {
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	User     string   `json:"user"`
	Password string   `json:"password"`
	Database string   `json:"database"`
	Table    string   `json:"table"`
	Columns  []string `json:"columns"`
	MaxRows  int      `json:"max_rows,omitempty"`
}

// MongoConfig configures a document-store reader that streams a find
// with a field projection excluding the internal identity field.
type MongoConfig struct {
	URI        string   `json:"uri"`
	Database   string   `json:"database"`
	Collection string   `json:"collection"`
	Fields     []string `json:"fields"`
	MaxRows    int      `json:"max_rows,omitempty"`
}

// Config is the tagged union over the closed set of reader variants.
// Exactly one of the variant configs must be set, matching Kind.
type Config struct {
	Kind     Kind            `json:"kind"`
	CSV      *CSVConfig      `json:"csv,omitempty"`
	Postgres *PostgresConfig `json:"postgresql,omitempty"`
	Mongo    *MongoConfig    `json:"mongodb,omitempty"`
}

// Validate checks that the config names exactly one variant and that the
// variant's mandatory parameters are present.
func (c *Config) Validate() error {
	switch c.Kind {
	case KindCSV:
		if c.CSV == nil {
			return fmt.Errorf("csv source config is required for kind %q", c.Kind)
		}
		if c.CSV.FilePath == "" && (c.CSV.Bucket == "" || c.CSV.Object == "") {
			return fmt.Errorf("csv source requires file_path or bucket/object")
		}
		if !c.CSV.HasHeader && len(c.CSV.Columns) == 0 {
			return fmt.Errorf("csv source without header requires column names")
		}
		if utf8.RuneCountInString(c.CSV.Delimiter) > 1 {
			return fmt.Errorf("csv delimiter must be a single character, got %q", c.CSV.Delimiter)
		}
	case KindPostgres:
		if c.Postgres == nil {
			return fmt.Errorf("postgresql source config is required for kind %q", c.Kind)
		}
		if c.Postgres.Table == "" {
			return fmt.Errorf("postgresql source requires a table name")
		}
		if len(c.Postgres.Columns) == 0 {
			return fmt.Errorf("postgresql source requires a column projection")
		}
	case KindMongo:
		if c.Mongo == nil {
			return fmt.Errorf("mongodb source config is required for kind %q", c.Kind)
		}
		if c.Mongo.Collection == "" {
			return fmt.Errorf("mongodb source requires a collection name")
		}
	default:
		return fmt.Errorf("unsupported source kind: %q", c.Kind)
	}
	return nil
}

// NewReader constructs the reader for the configured variant. The
// returned reader is not yet open.
func NewReader(cfg Config) (Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case KindCSV:
		return NewCSVReader(*cfg.CSV), nil
	case KindPostgres:
		return NewPostgresReader(*cfg.Postgres), nil
	case KindMongo:
		return NewMongoReader(*cfg.Mongo), nil
	}
	return nil, fmt.Errorf("unsupported source kind: %q", cfg.Kind)
}
