package printing

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/erp/invoicer/internal/domain/printing"
)

const (
	defaultChromeTimeout = 30 * time.Second
	defaultScale         = 1.0
	// cellPaddingMM matches gofpdf's default cell margin
	cellPaddingMM = 1.0
)

// ChromedpConfig contains configuration for the chromedp renderer
type ChromedpConfig struct {
	// DefaultTimeout for rendering operations
	DefaultTimeout time.Duration
	// RemoteURL is the URL of a remote Chrome/Chromium instance (optional)
	// If empty, chromedp will launch a new browser instance
	RemoteURL string
	// Headless mode (default: true)
	Headless bool
	// DisableGPU disables GPU hardware acceleration (default: true for server environments)
	DisableGPU bool
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// Scale for rendering (default: 1.0)
	Scale float64
	// FontFamily is the CSS font stack of every cell
	FontFamily string
	// Logger for debug output
	Logger *zap.Logger
}

// ChromedpRenderer converts documents to absolutely positioned HTML and
// prints them with Chrome DevTools Protocol
type ChromedpRenderer struct {
	config      *ChromedpConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedpRenderer creates a new chromedp-based PDF renderer
func NewChromedpRenderer(config *ChromedpConfig) (*ChromedpRenderer, error) {
	if config == nil {
		config = &ChromedpConfig{}
	}

	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = defaultChromeTimeout
	}
	if config.Scale == 0 {
		config.Scale = defaultScale
	}
	if config.FontFamily == "" {
		config.FontFamily = "Arial, Helvetica, sans-serif"
	}
	// Default to headless and disable GPU for server environments
	if !config.Headless {
		config.Headless = true
	}
	if !config.DisableGPU {
		config.DisableGPU = true
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	renderer := &ChromedpRenderer{
		config: config,
		logger: logger,
	}
	renderer.initAllocator()

	return renderer, nil
}

// initAllocator initializes the Chrome allocator
func (r *ChromedpRenderer) initAllocator() {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.config.Headless),
		chromedp.Flag("disable-gpu", r.config.DisableGPU),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("font-render-hinting", "none"),
	)

	if r.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}

	if r.config.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), r.config.RemoteURL)
	} else {
		r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
}

// Render prints the document's HTML rendition to PDF
func (r *ChromedpRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	startTime := time.Now()

	timeout := req.Timeout
	if timeout == 0 {
		timeout = r.config.DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	html, err := r.BuildHTML(req)
	if err != nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "failed to build HTML", err)
	}
	params := r.buildPrintParams(req.Document.Page)

	// The browser context must derive from the allocator, but it still has
	// to stop when the caller's deadline passes.
	browserCtx, browserCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	var pdfData []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(params.paperWidth).
				WithPaperHeight(params.paperHeight).
				WithMarginTop(0).
				WithMarginRight(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithScale(params.scale).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfData = data
			return nil
		}),
	)

	if err != nil {
		if rerr := contextError(ctx, timeout); rerr != nil {
			return nil, rerr
		}
		r.logger.Error("chromedp rendering failed", zap.Error(err))
		return nil, NewRenderError(ErrCodeRenderFailed, "chromedp execution failed", err)
	}

	if len(pdfData) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}

	pageCount := estimatePageCount(pdfData)
	renderDuration := time.Since(startTime)

	r.logger.Debug("PDF rendered",
		zap.String("title", req.title()),
		zap.Int("bytes", len(pdfData)),
		zap.Int("pages", pageCount),
		zap.Duration("duration", renderDuration))

	return &RenderResult{
		PDFData:        pdfData,
		PageCount:      pageCount,
		RenderDuration: renderDuration,
	}, nil
}

// printParams holds the parameters for PDF printing
type printParams struct {
	paperWidth  float64
	paperHeight float64
	scale       float64
}

// buildPrintParams sizes the paper to the page. Block coordinates are
// measured from the paper edge, so print margins are always zero and the
// orientation is already folded into the width and height.
func (r *ChromedpRenderer) buildPrintParams(p printing.Page) *printParams {
	width, height := p.Dimensions()
	return &printParams{
		paperWidth:  mmToInches(width),
		paperHeight: mmToInches(height),
		scale:       r.config.Scale,
	}
}

var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
{{.PageCSS}}
body { margin: 0; }
.cell { position: absolute; box-sizing: border-box; white-space: nowrap; overflow: hidden; }
.border { border: 0.2mm solid #000; }
</style>
</head>
<body>
{{range .Cells}}<div class="cell{{if .Border}} border{{end}}" style="{{.Style}}">{{.Text}}</div>
{{end}}</body>
</html>
`))

type htmlCell struct {
	Style  template.CSS
	Text   string
	Border bool
}

// htmlCanvas records engine output as absolutely positioned cells
type htmlCanvas struct {
	fontFamily string
	style      printing.FontStyle
	size       float64
	cells      []htmlCell
}

func (c *htmlCanvas) SetFont(style printing.FontStyle, size float64) {
	c.style = style
	c.size = size
}

func (c *htmlCanvas) Cell(x, y, w, h float64, text string, align printing.Align, border bool) {
	weight := "normal"
	if c.style == printing.FontBold {
		weight = "bold"
	}
	style := fmt.Sprintf(
		"left:%.2fmm;top:%.2fmm;width:%.2fmm;height:%.2fmm;line-height:%.2fmm;"+
			"padding:0 %.1fmm;font-family:%s;font-size:%.1fpt;font-weight:%s;text-align:%s",
		x, y, w, h, h, cellPaddingMM, c.fontFamily, c.size, weight, cssAlign(align))
	c.cells = append(c.cells, htmlCell{Style: template.CSS(style), Text: text, Border: border})
}

func cssAlign(a printing.Align) string {
	switch a {
	case printing.AlignCenter:
		return "center"
	case printing.AlignRight:
		return "right"
	default:
		return "left"
	}
}

// BuildHTML returns the HTML rendition of the request's document. Every
// cell is placed at the same millimeter coordinates the gofpdf renderer
// uses.
func (r *ChromedpRenderer) BuildHTML(req *RenderRequest) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}

	canvas := &htmlCanvas{fontFamily: r.config.FontFamily}
	var engine Engine
	if err := engine.Draw(canvas, req.Document); err != nil {
		return "", err
	}

	width, height := req.Document.Page.Dimensions()
	data := struct {
		Title   string
		PageCSS template.CSS
		Cells   []htmlCell
	}{
		Title:   req.title(),
		PageCSS: template.CSS(fmt.Sprintf("@page { size: %.1fmm %.1fmm; margin: 0; }", width, height)),
		Cells:   canvas.cells,
	}

	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Close releases resources held by the renderer
func (r *ChromedpRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

// mmToInches converts millimeters to inches
func mmToInches(mm float64) float64 {
	return mm / 25.4
}

// Ensure ChromedpRenderer implements PDFRenderer
var _ PDFRenderer = (*ChromedpRenderer)(nil)

// Ensure htmlCanvas implements Canvas
var _ Canvas = (*htmlCanvas)(nil)
