package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"datachat/src/log"
)

// CSVReader streams records from a delimited text file without ever
// materializing the full file in memory.
type CSVReader struct {
	cfg     CSVConfig
	file    *os.File
	reader  *csv.Reader
	header  []string
	emitted int
	closed  bool
}

// NewCSVReader creates a reader for the given file configuration.
func NewCSVReader(cfg CSVConfig) *CSVReader {
	if cfg.Delimiter == "" {
		cfg.Delimiter = ","
	}
	return &CSVReader{cfg: cfg}
}

// Open opens the file, skips leading rows and consumes the header row
// when the file has one.
func (r *CSVReader) Open(ctx context.Context) error {
	file, err := os.Open(r.cfg.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("csv file %s: %w", r.cfg.FilePath, ErrNotFound)
		}
		return fmt.Errorf("failed to open csv file %s: %w", r.cfg.FilePath, err)
	}
	r.file = file
	r.closed = false

	var src io.Reader = file
	if r.cfg.Encoding != "" {
		enc, err := htmlindex.Get(r.cfg.Encoding)
		if err != nil {
			r.Close()
			return fmt.Errorf("unsupported csv encoding %q: %w", r.cfg.Encoding, err)
		}
		src = transform.NewReader(file, enc.NewDecoder())
	}

	cr := csv.NewReader(src)
	delim, _ := utf8.DecodeRuneInString(r.cfg.Delimiter)
	cr.Comma = delim
	// Field counts are checked per row so a malformed row can be
	// quarantined instead of failing the whole read.
	cr.FieldsPerRecord = -1
	r.reader = cr

	for i := 0; i < r.cfg.SkipRows; i++ {
		if _, err := cr.Read(); err != nil {
			if err == io.EOF {
				break
			}
			r.Close()
			return fmt.Errorf("failed to skip leading rows: %w", err)
		}
	}

	if r.cfg.HasHeader {
		header, err := cr.Read()
		if err != nil {
			if err == io.EOF {
				// Empty file with a declared header: nothing to read.
				r.header = nil
				return nil
			}
			r.Close()
			return fmt.Errorf("failed to read csv header: %w", err)
		}
		r.header = header
	} else {
		r.header = r.cfg.Columns
	}

	return nil
}

// ReadChunk reads up to size rows and maps them to records keyed by the
// header columns. Rows whose field count does not match the header are
// skipped with a warning.
func (r *CSVReader) ReadChunk(ctx context.Context, size int) ([]Record, error) {
	if r.reader == nil {
		return nil, fmt.Errorf("csv reader is not open")
	}
	if size <= 0 {
		size = 1
	}

	records := make([]Record, 0, size)
	for len(records) < size {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		if r.cfg.MaxRows > 0 && r.emitted >= r.cfg.MaxRows {
			if len(records) == 0 {
				return nil, io.EOF
			}
			return records, nil
		}

		row, err := r.reader.Read()
		if err == io.EOF {
			if len(records) == 0 {
				return nil, io.EOF
			}
			return records, nil
		}
		if err != nil {
			log.Info("skipping malformed csv row", "file", r.cfg.FilePath, "reason", err.Error())
			continue
		}
		if len(row) != len(r.header) {
			log.Info("skipping csv row with unexpected field count",
				"file", r.cfg.FilePath, "expected", len(r.header), "got", len(row))
			continue
		}

		record := make(Record, len(r.header))
		for i, name := range r.header {
			record[name] = row[i]
		}
		records = append(records, record)
		r.emitted++
	}
	return records, nil
}

// ReadSchema reports every column as "text"; delimited files carry no
// type information of their own.
func (r *CSVReader) ReadSchema(ctx context.Context) (map[string]string, error) {
	if r.header == nil {
		return nil, fmt.Errorf("csv reader is not open")
	}
	schema := make(map[string]string, len(r.header))
	for _, name := range r.header {
		schema[name] = "text"
	}
	return schema, nil
}

// Close releases the file handle.
func (r *CSVReader) Close() error {
	if r.closed || r.file == nil {
		return nil
	}
	r.closed = true
	return r.file.Close()
}
