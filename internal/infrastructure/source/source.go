// Package source provides the collaborators that fetch invoice rows:
// a local CSV export, a Google Sheets worksheet and a PostgreSQL table.
package source

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/erp/invoicer/internal/domain/invoice"
	"github.com/erp/invoicer/internal/infrastructure/config"
)

// Source yields invoice rows in source order.
type Source interface {
	FetchRecords(ctx context.Context) ([]invoice.RowRecord, error)
	Close() error
}

// New opens the source selected by cfg.Kind.
func New(ctx context.Context, cfg *config.SourceConfig, logger *zap.Logger) (Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Kind {
	case config.SourceCSV:
		delim := ','
		if cfg.CSV.Delimiter != "" {
			delim, _ = utf8.DecodeRuneInString(cfg.CSV.Delimiter)
		}
		return NewCSVSource(cfg.CSV.Path, WithCSVDelimiter(delim), WithCSVLogger(logger)), nil
	case config.SourceSheets:
		return NewSheetsSource(ctx, &cfg.Sheets, logger)
	case config.SourcePostgres:
		return OpenPostgresSource(&cfg.Postgres, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// RecordsFromTable turns a header row plus data rows into records.
// firstRow is the source line number of rows[0]. Blank rows are skipped
// but still consume a line number.
func RecordsFromTable(headers []string, rows [][]string, firstRow int) []invoice.RowRecord {
	records := make([]invoice.RowRecord, 0, len(rows))
	for i, values := range rows {
		data := zipRow(headers, values)
		if isBlank(data) {
			continue
		}
		records = append(records, invoice.NewRowRecord(firstRow+i, data))
	}
	return records
}

func isBlank(data map[string]string) bool {
	for _, v := range data {
		if v != "" {
			return false
		}
	}
	return true
}
