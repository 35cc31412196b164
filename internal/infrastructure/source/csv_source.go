package source

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/erp/invoicer/internal/domain/invoice"
)

// CSVSource reads invoice rows from a CSV export of the spreadsheet.
type CSVSource struct {
	path      string
	delimiter rune
	logger    *zap.Logger
}

// CSVSourceOption configures a CSVSource
type CSVSourceOption func(*CSVSource)

// WithCSVDelimiter sets the field delimiter
func WithCSVDelimiter(d rune) CSVSourceOption {
	return func(s *CSVSource) {
		s.delimiter = d
	}
}

// WithCSVLogger sets the logger
func WithCSVLogger(logger *zap.Logger) CSVSourceOption {
	return func(s *CSVSource) {
		s.logger = logger
	}
}

// NewCSVSource creates a source for the file at path. The file is opened
// on every FetchRecords call.
func NewCSVSource(path string, opts ...CSVSourceOption) *CSVSource {
	s := &CSVSource{
		path:      path,
		delimiter: ',',
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the CSV file path
func (s *CSVSource) Path() string {
	return s.path
}

// FetchRecords reads every non-blank row. Row numbers are file line
// numbers, the header being line 1.
func (s *CSVSource) FetchRecords(ctx context.Context) ([]invoice.RowRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV source: %w", err)
	}
	defer f.Close()

	parser, err := NewCSVParser(f, WithDelimiter(s.delimiter))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	rows, err := parser.ReadAllRows()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	records := make([]invoice.RowRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, invoice.NewRowRecord(row.LineNumber, row.Data))
	}

	s.logger.Debug("CSV rows loaded",
		zap.String("path", s.path),
		zap.Int("rows", len(records)))

	return records, nil
}

// Close is a no-op; the file is closed after each read.
func (s *CSVSource) Close() error {
	return nil
}
