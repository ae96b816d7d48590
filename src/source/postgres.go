package source

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresReader streams rows of a projection query over named columns.
// Rows are pulled from the server-side cursor as chunks are requested;
// the full result set is never materialized.
type PostgresReader struct {
	cfg     PostgresConfig
	db      *gorm.DB
	rows    *sql.Rows
	cols    []string
	emitted int
}

// NewPostgresReader creates a reader for the given connection and table.
func NewPostgresReader(cfg PostgresConfig) *PostgresReader {
	return &PostgresReader{cfg: cfg}
}

// Open connects, verifies the table exists and starts the streaming
// projection query.
func (r *PostgresReader) Open(ctx context.Context) error {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		r.cfg.Host, r.cfg.User, r.cfg.Password, r.cfg.Database, r.cfg.Port)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	r.db = db

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	var count int64
	err = db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", r.cfg.Table).
		Scan(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check table existence: %w", err)
	}
	if count == 0 {
		r.Close()
		return fmt.Errorf("table %s: %w", r.cfg.Table, ErrNotFound)
	}

	query := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(quoteIdentifiers(r.cfg.Columns), ", "), quoteIdentifier(r.cfg.Table))
	if r.cfg.MaxRows > 0 {
		query += fmt.Sprintf(" LIMIT %d", r.cfg.MaxRows)
	}

	rows, err := db.WithContext(ctx).Raw(query).Rows()
	if err != nil {
		r.Close()
		return fmt.Errorf("failed to query table %s: %w", r.cfg.Table, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		r.Close()
		return fmt.Errorf("failed to read result columns: %w", err)
	}
	r.rows = rows
	r.cols = cols
	return nil
}

// ReadChunk scans up to size rows from the open cursor.
func (r *PostgresReader) ReadChunk(ctx context.Context, size int) ([]Record, error) {
	if r.rows == nil {
		return nil, fmt.Errorf("postgres reader is not open")
	}
	if size <= 0 {
		size = 1
	}

	records := make([]Record, 0, size)
	for len(records) < size {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		if !r.rows.Next() {
			if err := r.rows.Err(); err != nil {
				return records, fmt.Errorf("row iteration failed: %w", err)
			}
			if len(records) == 0 {
				return nil, io.EOF
			}
			return records, nil
		}

		values := make([]interface{}, len(r.cols))
		pointers := make([]interface{}, len(r.cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := r.rows.Scan(pointers...); err != nil {
			return records, fmt.Errorf("failed to scan row: %w", err)
		}

		record := make(Record, len(r.cols))
		for i, name := range r.cols {
			// Text columns arrive as []byte from the driver.
			if b, ok := values[i].([]byte); ok {
				record[name] = string(b)
			} else {
				record[name] = values[i]
			}
		}
		records = append(records, record)
		r.emitted++
	}
	return records, nil
}

// ReadSchema queries information_schema for the table's column types.
func (r *PostgresReader) ReadSchema(ctx context.Context) (map[string]string, error) {
	if r.db == nil {
		return nil, fmt.Errorf("postgres reader is not open")
	}
	type columnInfo struct {
		ColumnName string
		DataType   string
	}
	var cols []columnInfo
	err := r.db.WithContext(ctx).
		Raw(`SELECT column_name, data_type FROM information_schema.columns
		     WHERE table_name = ? ORDER BY ordinal_position`, r.cfg.Table).
		Scan(&cols).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read table schema: %w", err)
	}
	schema := make(map[string]string, len(cols))
	for _, c := range cols {
		schema[c.ColumnName] = c.DataType
	}
	return schema, nil
}

// Close ends row iteration and closes the connection pool.
func (r *PostgresReader) Close() error {
	if r.rows != nil {
		r.rows.Close()
		r.rows = nil
	}
	if r.db != nil {
		if sqlDB, err := r.db.DB(); err == nil {
			sqlDB.Close()
		}
		r.db = nil
	}
	return nil
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdentifiers(names []string) []string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quoteIdentifier(name)
	}
	return quoted
}
