package printing

import (
	"bytes"
	"context"
	_ "embed"
	"os"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/erp/invoicer/internal/domain/printing"
)

const (
	coreFontFamily = "Arial"
	utf8FontFamily = "InvoiceSans"
	pdfCreator     = "invoicer"
)

// DejaVu Sans covers U+20B9 and the Latin, Greek and Cyrillic ranges.
var (
	//go:embed fonts/DejaVuSans.ttf
	bundledRegular []byte
	//go:embed fonts/DejaVuSans-Bold.ttf
	bundledBold []byte
)

// coreFontFallbacks replaces runes the Windows-1252 core fonts cannot show.
var coreFontFallbacks = map[rune]string{
	'₹': "Rs.",
}

// GofpdfConfig contains configuration for the gofpdf renderer
type GofpdfConfig struct {
	// FontPath is a UTF-8 TrueType font for regular text (optional).
	// Without it the bundled DejaVu Sans is used.
	FontPath string
	// BoldFontPath is the bold variant; FontPath is reused when empty
	BoldFontPath string
	// CoreFonts draws with the built-in Arial core font instead of the
	// bundled one. Text is transcoded to Windows-1252.
	CoreFonts bool
	// DisableCompression writes uncompressed page streams
	DisableCompression bool
	// Logger for debug output
	Logger *zap.Logger
}

// GofpdfRenderer draws documents directly with gofpdf at their absolute
// coordinates.
type GofpdfRenderer struct {
	config *GofpdfConfig
	logger *zap.Logger
	engine Engine
}

// NewGofpdfRenderer creates a new gofpdf-based PDF renderer
func NewGofpdfRenderer(config *GofpdfConfig) (*GofpdfRenderer, error) {
	if config == nil {
		config = &GofpdfConfig{}
	}
	if config.BoldFontPath != "" && config.FontPath == "" {
		return nil, NewRenderError(ErrCodeFontNotFound, "bold font configured without a regular font", nil)
	}
	for _, path := range []string{config.FontPath, config.BoldFontPath} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return nil, NewRenderError(ErrCodeFontNotFound, "font file not found: "+path, err)
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GofpdfRenderer{
		config: config,
		logger: logger,
	}, nil
}

// Render draws the document on a single gofpdf page
func (r *GofpdfRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := contextError(ctx, req.Timeout); err != nil {
		return nil, err
	}

	startTime := time.Now()
	doc := req.Document

	pdf := r.newPDF(doc.Page, req.title())
	canvas := r.newCanvas(pdf)

	pdf.AddPage()
	if err := r.engine.Draw(canvas, doc); err != nil {
		return nil, NewRenderError(ErrCodeInvalidDocument, "document is not drawable", err)
	}
	if pdf.Err() {
		r.logger.Error("gofpdf rendering failed", zap.Error(pdf.Error()))
		return nil, NewRenderError(ErrCodeRenderFailed, "gofpdf rendering failed", pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "failed to write PDF", err)
	}
	if buf.Len() == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}

	renderDuration := time.Since(startTime)
	pageCount := pdf.PageCount()

	r.logger.Debug("PDF rendered",
		zap.String("title", req.title()),
		zap.Int("bytes", buf.Len()),
		zap.Int("pages", pageCount),
		zap.Duration("duration", renderDuration))

	return &RenderResult{
		PDFData:        buf.Bytes(),
		PageCount:      pageCount,
		RenderDuration: renderDuration,
	}, nil
}

// newPDF creates an Fpdf for the page setup with automatic page breaks off,
// so blocks land exactly at their coordinates.
func (r *GofpdfRenderer) newPDF(page printing.Page, title string) *gofpdf.Fpdf {
	width, height := page.Size.Dimensions()
	orientation := "P"
	if page.Orientation == printing.OrientationLandscape {
		orientation = "L"
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: width, Ht: height},
	})
	pdf.SetMargins(page.Margins.Left, page.Margins.Top, page.Margins.Right)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(!r.config.DisableCompression)
	pdf.SetCatalogSort(true)
	pdf.SetCreator(pdfCreator, true)
	if title != "" {
		pdf.SetTitle(title, true)
	}
	return pdf
}

func (r *GofpdfRenderer) newCanvas(pdf *gofpdf.Fpdf) *gofpdfCanvas {
	switch {
	case r.config.FontPath != "":
		pdf.AddUTF8Font(utf8FontFamily, "", r.config.FontPath)
		bold := r.config.BoldFontPath
		if bold == "" {
			bold = r.config.FontPath
		}
		pdf.AddUTF8Font(utf8FontFamily, "B", bold)
	case r.config.CoreFonts:
		return &gofpdfCanvas{pdf: pdf, family: coreFontFamily, encode: encodeCP1252}
	default:
		pdf.AddUTF8FontFromBytes(utf8FontFamily, "", bundledRegular)
		pdf.AddUTF8FontFromBytes(utf8FontFamily, "B", bundledBold)
	}
	return &gofpdfCanvas{pdf: pdf, family: utf8FontFamily, encode: func(s string) string { return s }}
}

// Close releases resources held by the renderer
func (r *GofpdfRenderer) Close() error {
	return nil
}

// gofpdfCanvas adapts an Fpdf page to the Canvas interface
type gofpdfCanvas struct {
	pdf    *gofpdf.Fpdf
	family string
	encode func(string) string
}

func (c *gofpdfCanvas) SetFont(style printing.FontStyle, size float64) {
	c.pdf.SetFont(c.family, string(style), size)
}

func (c *gofpdfCanvas) Cell(x, y, w, h float64, text string, align printing.Align, border bool) {
	borderStr := ""
	if border {
		borderStr = "1"
	}
	c.pdf.SetXY(x, y)
	c.pdf.CellFormat(w, h, c.encode(text), borderStr, 0, string(align), false, 0, "")
}

// encodeCP1252 transcodes UTF-8 text for the core fonts. Runes outside
// Windows-1252 use coreFontFallbacks or become '?'.
func encodeCP1252(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if fb, ok := coreFontFallbacks[r]; ok {
			sb.WriteString(fb)
			continue
		}
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			sb.WriteByte('?')
			continue
		}
		sb.WriteByte(b)
	}
	return sb.String()
}

// Ensure GofpdfRenderer implements PDFRenderer
var _ PDFRenderer = (*GofpdfRenderer)(nil)

// Ensure gofpdfCanvas implements Canvas
var _ Canvas = (*gofpdfCanvas)(nil)
