package printing

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/erp/invoicer/internal/domain/printing"
)

func TestNewGofpdfRenderer(t *testing.T) {
	t.Run("nil config uses the bundled font", func(t *testing.T) {
		r, err := NewGofpdfRenderer(nil)
		require.NoError(t, err)
		assert.Empty(t, r.config.FontPath)
		assert.False(t, r.config.CoreFonts)
		assert.NotNil(t, r.logger)
	})

	t.Run("missing font file", func(t *testing.T) {
		_, err := NewGofpdfRenderer(&GofpdfConfig{FontPath: filepath.Join(t.TempDir(), "nope.ttf")})
		var renderErr *RenderError
		require.ErrorAs(t, err, &renderErr)
		assert.Equal(t, ErrCodeFontNotFound, renderErr.Code)
	})

	t.Run("bold font without regular font", func(t *testing.T) {
		_, err := NewGofpdfRenderer(&GofpdfConfig{BoldFontPath: "bold.ttf"})
		var renderErr *RenderError
		require.ErrorAs(t, err, &renderErr)
		assert.Equal(t, ErrCodeFontNotFound, renderErr.Code)
	})
}

// utf16Text is how gofpdf writes s into a page stream for a UTF-8 font:
// UTF-16BE with the PDF string delimiters escaped.
func utf16Text(t *testing.T, s string) string {
	t.Helper()
	enc, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder().String(s)
	require.NoError(t, err)
	return strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`, "\r", `\r`).Replace(enc)
}

func TestGofpdfRenderer_Render(t *testing.T) {
	r, err := NewGofpdfRenderer(&GofpdfConfig{DisableCompression: true})
	require.NoError(t, err)
	defer r.Close()

	result, err := r.Render(context.Background(), &RenderRequest{Document: testDocument()})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(result.PDFData, []byte("%PDF-")))
	assert.Equal(t, 1, result.PageCount)
	assert.Equal(t, 1, estimatePageCount(result.PDFData))
	assert.Positive(t, result.RenderDuration)

	pdf := string(result.PDFData)
	assert.Contains(t, pdf, "/FontFile2", "the bundled font is embedded")
	assert.Contains(t, pdf, utf16Text(t, "INVOICE"))
	assert.Contains(t, pdf, utf16Text(t, "Courier Service"))
	assert.Contains(t, pdf, utf16Text(t, "₹500.00"))
	assert.NotContains(t, pdf, utf16Text(t, "Rs."))
}

func TestGofpdfRenderer_Render_CoreFonts(t *testing.T) {
	r, err := NewGofpdfRenderer(&GofpdfConfig{CoreFonts: true, DisableCompression: true})
	require.NoError(t, err)

	result, err := r.Render(context.Background(), &RenderRequest{Document: testDocument()})
	require.NoError(t, err)

	// Core fonts write single-byte text straight into the page stream
	pdf := string(result.PDFData)
	assert.NotContains(t, pdf, "/FontFile2")
	assert.Contains(t, pdf, "INVOICE")
	assert.Contains(t, pdf, "Courier Service")
	assert.Contains(t, pdf, "Rs.500.00")
}

func TestGofpdfRenderer_Render_Landscape(t *testing.T) {
	r, err := NewGofpdfRenderer(nil)
	require.NoError(t, err)

	doc := testDocument()
	doc.Page.Orientation = printing.OrientationLandscape

	result, err := r.Render(context.Background(), &RenderRequest{Document: doc})
	require.NoError(t, err)
	assert.Equal(t, 1, result.PageCount)
}

func TestGofpdfRenderer_Render_Errors(t *testing.T) {
	r, err := NewGofpdfRenderer(nil)
	require.NoError(t, err)

	t.Run("invalid document", func(t *testing.T) {
		doc := testDocument()
		doc.Page.Size = printing.PaperSize("B5")

		_, err := r.Render(context.Background(), &RenderRequest{Document: doc})
		var renderErr *RenderError
		require.ErrorAs(t, err, &renderErr)
		assert.Equal(t, ErrCodeInvalidDocument, renderErr.Code)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := r.Render(ctx, &RenderRequest{Document: testDocument()})
		var renderErr *RenderError
		require.ErrorAs(t, err, &renderErr)
		assert.Equal(t, ErrCodeRenderCancelled, renderErr.Code)
	})
}

func TestEncodeCP1252(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain ascii", "plain ascii"},
		{"₹500.00", "Rs.500.00"},
		{"café", "caf\xe9"},
		{"€5", "\x805"},
		{"日本", "??"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, encodeCP1252(tt.input))
		})
	}
}
