package source

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/invoicer/internal/domain/invoice"
)

var pgColumns = []string{"id", "bill_to", "ship_to", "invoice_number", "date", "description", "price", "gst", "total_price"}

func newMockSource(t *testing.T, table string) (*PostgresSource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	src, err := NewPostgresSource(db, table, nil)
	require.NoError(t, err)
	return src, mock
}

func TestPostgresSource_Query(t *testing.T) {
	src, _ := newMockSource(t, "billing.invoice_rows")
	assert.Equal(t,
		"SELECT id, bill_to::text, ship_to::text, invoice_number::text, date::text, description::text, price::text, gst::text, total_price::text FROM billing.invoice_rows ORDER BY id",
		src.Query())
}

func TestPostgresSource_FetchRecords(t *testing.T) {
	src, mock := newMockSource(t, "invoice_rows")

	rows := sqlmock.NewRows(pgColumns).
		AddRow(1, "Acme", "Acme Warehouse", "1001", "2024-01-01", "Courier Service", "500.00", "0.18", "590.00").
		AddRow(7, "Globex", nil, "1002", "2024-01-02", "Parcel", "250", "0.12", "280")
	mock.ExpectQuery(src.Query()).WillReturnRows(rows)

	records, err := src.FetchRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 1, records[0].Row)
	assert.Equal(t, "1001", records[0].InvoiceNumber())
	total, err := records[0].Require(invoice.FieldTotalPrice)
	require.NoError(t, err)
	assert.Equal(t, "590.00", total)

	assert.Equal(t, 7, records[1].Row)
	_, ok := records[1].Get(invoice.FieldShipTo)
	assert.False(t, ok, "NULL columns are left out")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_QueryError(t *testing.T) {
	src, mock := newMockSource(t, "invoice_rows")
	mock.ExpectQuery(src.Query()).WillReturnError(errors.New("relation does not exist"))

	_, err := src.FetchRecords(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query invoice_rows")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_RowError(t *testing.T) {
	src, mock := newMockSource(t, "invoice_rows")
	rows := sqlmock.NewRows(pgColumns).
		AddRow(1, "Acme", "Acme Warehouse", "1001", "2024-01-01", "Courier Service", "500.00", "0.18", "590.00").
		RowError(0, errors.New("connection reset"))
	mock.ExpectQuery(src.Query()).WillReturnRows(rows)

	_, err := src.FetchRecords(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestNewPostgresSource_TableName(t *testing.T) {
	tests := []struct {
		table string
		valid bool
	}{
		{"invoice_rows", true},
		{"billing.invoice_rows", true},
		{"_rows2", true},
		{"", false},
		{"rows; DROP TABLE x", false},
		{"1rows", false},
		{"a.b.c", false},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			_, err := NewPostgresSource(nil, tt.table, nil)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestPostgresSource_Close(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	src, err := NewPostgresSource(db, "invoice_rows", nil)
	require.NoError(t, err)
	assert.NoError(t, src.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
