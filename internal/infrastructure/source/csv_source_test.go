package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/invoicer/internal/domain/invoice"
)

const sampleCSV = `Bill To,Ship To,Invoice Number,Date,Description,Price,GST,Total Price
Acme,Acme Warehouse,1001,2024-01-01,Courier Service,500.00,0.18,590.00

Globex,Globex Dock,1002,2024-01-02,Express Parcel,250,0.12,280
`

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invoices.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVSource_FetchRecords(t *testing.T) {
	src := NewCSVSource(writeCSV(t, sampleCSV))

	records, err := src.FetchRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, 2, first.Row)
	assert.Equal(t, "1001", first.InvoiceNumber())
	billTo, err := first.Require(invoice.FieldBillTo)
	require.NoError(t, err)
	assert.Equal(t, "Acme", billTo)
	total, err := first.Require(invoice.FieldTotalPrice)
	require.NoError(t, err)
	assert.Equal(t, "590.00", total)

	assert.Equal(t, 4, records[1].Row)
	assert.Equal(t, "1002", records[1].InvoiceNumber())
	assert.NoError(t, src.Close())
}

func TestCSVSource_CanonicalHeadings(t *testing.T) {
	path := writeCSV(t, "BillTo;ShipTo;InvoiceNumber;Date;Description;Price;GST;TotalPrice\nA;B;7;d;x;1;0.1;1.1\n")
	src := NewCSVSource(path, WithCSVDelimiter(';'))

	records, err := src.FetchRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "7", records[0].InvoiceNumber())
}

func TestCSVSource_MissingColumn(t *testing.T) {
	path := writeCSV(t, "Bill To,Invoice Number\nAcme,1001\n")

	records, err := NewCSVSource(path).FetchRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = records[0].Require(invoice.FieldShipTo)
	var missing *invoice.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, invoice.FieldShipTo, missing.Field)
	assert.Equal(t, 2, missing.Row)
}

func TestCSVSource_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := NewCSVSource(filepath.Join(t.TempDir(), "nope.csv")).FetchRecords(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := NewCSVSource(writeCSV(t, "")).FetchRecords(context.Background())
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewCSVSource(writeCSV(t, sampleCSV)).FetchRecords(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
