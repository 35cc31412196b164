package source

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCSVParser(t *testing.T) {
	t.Run("Valid UTF-8 CSV", func(t *testing.T) {
		parser, err := NewCSVParser(strings.NewReader("Bill To,Ship To\nAcme,Acme Warehouse"))
		require.NoError(t, err)
		require.NotNil(t, parser)
	})

	t.Run("UTF-8 BOM is stripped", func(t *testing.T) {
		parser, err := NewCSVParser(strings.NewReader("\xEF\xBB\xBFBill To,Date\nAcme,2024-01-01"))
		require.NoError(t, err)
		require.NoError(t, parser.ParseHeader())
		assert.Equal(t, "Bill To", parser.Headers()[0])
	})

	t.Run("Empty file returns error", func(t *testing.T) {
		parser, err := NewCSVParser(strings.NewReader(""))
		assert.Nil(t, parser)
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("Invalid encoding returns error", func(t *testing.T) {
		_, err := NewCSVParser(strings.NewReader("Bill To\n\xff\xfe"))
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})

	t.Run("Multi-byte rune on the peek boundary", func(t *testing.T) {
		content := strings.Repeat("a", 4095) + "₹"
		_, err := NewCSVParser(strings.NewReader(content))
		assert.NoError(t, err)
	})

	t.Run("Custom delimiter", func(t *testing.T) {
		parser, err := NewCSVParser(strings.NewReader("Price;GST\n500;0.18"), WithDelimiter(';'))
		require.NoError(t, err)
		require.NoError(t, parser.ParseHeader())
		assert.Equal(t, []string{"Price", "GST"}, parser.Headers())
	})
}

func TestParseHeader(t *testing.T) {
	t.Run("Header with spaces trimmed", func(t *testing.T) {
		parser, _ := NewCSVParser(strings.NewReader("  Bill To  , Invoice Number \nAcme,1001"))
		require.NoError(t, parser.ParseHeader())
		assert.Equal(t, []string{"Bill To", "Invoice Number"}, parser.Headers())
	})

	t.Run("Only a newline", func(t *testing.T) {
		parser, err := NewCSVParser(strings.NewReader("\n"))
		require.NoError(t, err)
		assert.ErrorIs(t, parser.ParseHeader(), ErrMissingHeader)
	})
}

func TestReadRow(t *testing.T) {
	t.Run("Read single row", func(t *testing.T) {
		parser, _ := NewCSVParser(strings.NewReader("Invoice Number,Price\n1001, 500.00 "))
		require.NoError(t, parser.ParseHeader())

		row, err := parser.ReadRow()
		require.NoError(t, err)
		assert.Equal(t, 2, row.LineNumber)
		assert.Equal(t, "1001", row.Data["Invoice Number"])
		assert.Equal(t, "500.00", row.Data["Price"])

		_, err = parser.ReadRow()
		assert.Equal(t, io.EOF, err)
	})

	t.Run("Row with missing columns", func(t *testing.T) {
		parser, _ := NewCSVParser(strings.NewReader("Invoice Number,Price,GST\n1001"))
		require.NoError(t, parser.ParseHeader())

		row, err := parser.ReadRow()
		require.NoError(t, err)
		assert.Equal(t, "1001", row.Data["Invoice Number"])
		assert.Equal(t, "", row.Data["GST"])
	})

	t.Run("Extra columns are dropped", func(t *testing.T) {
		parser, _ := NewCSVParser(strings.NewReader("Invoice Number\n1001,extra"))
		require.NoError(t, parser.ParseHeader())

		row, err := parser.ReadRow()
		require.NoError(t, err)
		assert.Len(t, row.Data, 1)
	})

	t.Run("Quoted field with delimiter", func(t *testing.T) {
		parser, _ := NewCSVParser(strings.NewReader("Bill To,Date\n\"Acme, Ltd\",2024-01-01"))
		require.NoError(t, parser.ParseHeader())

		row, err := parser.ReadRow()
		require.NoError(t, err)
		assert.Equal(t, "Acme, Ltd", row.Data["Bill To"])
	})
}

func TestReadAllRows(t *testing.T) {
	csv := "Invoice Number,Price\n1001,500\n,\n1002,250\n"
	parser, _ := NewCSVParser(strings.NewReader(csv))
	require.NoError(t, parser.ParseHeader())

	rows, err := parser.ReadAllRows()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// The blank line 3 is skipped but still counted
	assert.Equal(t, 2, rows[0].LineNumber)
	assert.Equal(t, 4, rows[1].LineNumber)
	assert.Equal(t, "1002", rows[1].Data["Invoice Number"])
}

func TestRow_IsEmpty(t *testing.T) {
	assert.True(t, (&Row{Data: map[string]string{"a": "", "b": ""}}).IsEmpty())
	assert.False(t, (&Row{Data: map[string]string{"a": "", "b": "x"}}).IsEmpty())
}
