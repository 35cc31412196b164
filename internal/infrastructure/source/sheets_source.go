package source

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/erp/invoicer/internal/domain/invoice"
	"github.com/erp/invoicer/internal/infrastructure/config"
)

// SheetsSource reads invoice rows from a Google Sheets range. The first row
// of the range holds the column headings.
type SheetsSource struct {
	service       *sheets.Service
	spreadsheetID string
	readRange     string
	logger        *zap.Logger
}

// NewSheetsSource authenticates with the service-account credentials file
// and prepares a client. Extra client options are appended, which lets
// callers point the client at another endpoint.
func NewSheetsSource(ctx context.Context, cfg *config.SheetsSourceConfig, logger *zap.Logger, opts ...option.ClientOption) (*SheetsSource, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOpts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	readRange := cfg.Range
	if readRange == "" {
		readRange = "Sheet1"
	}

	return &SheetsSource{
		service:       svc,
		spreadsheetID: cfg.SpreadsheetID,
		readRange:     readRange,
		logger:        logger,
	}, nil
}

// FetchRecords reads the range. Numbers come back unformatted so that a
// currency-formatted price cell still parses; dates keep their display text.
func (s *SheetsSource) FetchRecords(ctx context.Context) ([]invoice.RowRecord, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", s.readRange, err)
	}

	records, err := RecordsFromValues(resp.Values)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", s.readRange, err)
	}

	s.logger.Debug("sheet rows loaded",
		zap.String("spreadsheet_id", s.spreadsheetID),
		zap.String("range", s.readRange),
		zap.Int("rows", len(records)))

	return records, nil
}

// Close is a no-op; the client holds no open connections of its own.
func (s *SheetsSource) Close() error {
	return nil
}

// RecordsFromValues converts a values grid, header row first, into records.
// Sheet rows are numbered from 1, so the first data row is row 2.
func RecordsFromValues(values [][]interface{}) ([]invoice.RowRecord, error) {
	if len(values) == 0 {
		return nil, ErrMissingHeader
	}

	headers := cellStrings(values[0])
	rows := make([][]string, 0, len(values)-1)
	for _, v := range values[1:] {
		rows = append(rows, cellStrings(v))
	}
	return RecordsFromTable(headers, rows, 2), nil
}

func cellStrings(cells []interface{}) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = cellString(c)
	}
	return out
}

func cellString(c interface{}) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
