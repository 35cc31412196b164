package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	_ "github.com/lib/pq" // postgres driver
	"go.uber.org/zap"

	"github.com/erp/invoicer/internal/domain/invoice"
	"github.com/erp/invoicer/internal/infrastructure/config"
)

// postgresColumns maps table columns onto invoice fields, in select order.
var postgresColumns = []struct {
	column string
	field  invoice.Field
}{
	{"bill_to", invoice.FieldBillTo},
	{"ship_to", invoice.FieldShipTo},
	{"invoice_number", invoice.FieldInvoiceNumber},
	{"date", invoice.FieldDate},
	{"description", invoice.FieldDescription},
	{"price", invoice.FieldPrice},
	{"gst", invoice.FieldGST},
	{"total_price", invoice.FieldTotalPrice},
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresSource reads invoice rows from a table with one column per field.
type PostgresSource struct {
	db     *sql.DB
	table  string
	logger *zap.Logger
}

// OpenPostgresSource connects using the configured DSN.
func OpenPostgresSource(cfg *config.PostgresSourceConfig, logger *zap.Logger) (*PostgresSource, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	src, err := NewPostgresSource(db, cfg.Table, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return src, nil
}

// NewPostgresSource wraps an open database handle.
func NewPostgresSource(db *sql.DB, table string, logger *zap.Logger) (*PostgresSource, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresSource{db: db, table: table, logger: logger}, nil
}

// Query returns the select statement used by FetchRecords.
func (s *PostgresSource) Query() string {
	q := "SELECT id"
	for _, c := range postgresColumns {
		q += ", " + c.column + "::text"
	}
	return q + " FROM " + s.table + " ORDER BY id"
}

// FetchRecords reads every row ordered by id. The row number reported for
// a record is its id. NULL columns are left out of the record so they
// surface as missing fields.
func (s *PostgresSource) FetchRecords(ctx context.Context) ([]invoice.RowRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.Query())
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.table, err)
	}
	defer rows.Close()

	var records []invoice.RowRecord
	for rows.Next() {
		var id int
		values := make([]sql.NullString, len(postgresColumns))
		dest := make([]any, 0, len(values)+1)
		dest = append(dest, &id)
		for i := range values {
			dest = append(dest, &values[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", s.table, err)
		}

		data := make(map[string]string, len(postgresColumns))
		for i, c := range postgresColumns {
			if values[i].Valid {
				data[string(c.field)] = values[i].String
			}
		}
		records = append(records, invoice.NewRowRecord(id, data))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.table, err)
	}

	s.logger.Debug("database rows loaded",
		zap.String("table", s.table),
		zap.Int("rows", len(records)))

	return records, nil
}

// Close closes the database handle.
func (s *PostgresSource) Close() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}
