package printing

import (
	"bytes"
	"context"
	"time"

	"github.com/erp/invoicer/internal/domain/printing"
)

// RenderRequest contains the parameters for rendering a document to PDF
type RenderRequest struct {
	// Document is the block list to draw
	Document *printing.Document
	// Title for the PDF document metadata, defaults to Document.Title
	Title string
	// Timeout overrides the default rendering timeout
	Timeout time.Duration
}

// title returns the metadata title of the request
func (r *RenderRequest) title() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Document.Title
}

// RenderResult contains the output from PDF rendering
type RenderResult struct {
	// PDFData is the raw PDF file content
	PDFData []byte
	// PageCount is the number of pages in the PDF
	PageCount int
	// RenderDuration is how long the rendering took
	RenderDuration time.Duration
}

// PDFRenderer defines the interface for rendering documents to PDF
type PDFRenderer interface {
	// Render draws a document into a PDF
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)
	// Close releases any resources held by the renderer
	Close() error
}

// RenderError represents an error during PDF rendering
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering failures
const (
	ErrCodeRenderTimeout   = "RENDER_TIMEOUT"
	ErrCodeRenderCancelled = "RENDER_CANCELLED"
	ErrCodeRenderFailed    = "RENDER_FAILED"
	ErrCodeInvalidDocument = "INVALID_DOCUMENT"
	ErrCodeFontNotFound    = "FONT_NOT_FOUND"
	ErrCodeStorageFailed   = "STORAGE_FAILED"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// validateRequest rejects requests no renderer can draw
func validateRequest(req *RenderRequest) error {
	if req == nil {
		return NewRenderError(ErrCodeInvalidDocument, "render request is nil", nil)
	}
	if req.Document == nil {
		return NewRenderError(ErrCodeInvalidDocument, "document is nil", nil)
	}
	if err := req.Document.Validate(); err != nil {
		return NewRenderError(ErrCodeInvalidDocument, "document is not drawable", err)
	}
	return nil
}

// contextError maps a done context to a timeout or cancellation error
func contextError(ctx context.Context, timeout time.Duration) *RenderError {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return NewRenderError(ErrCodeRenderTimeout, "PDF rendering timed out after "+timeout.String(), ctx.Err())
	case context.Canceled:
		return NewRenderError(ErrCodeRenderCancelled, "PDF rendering was cancelled", ctx.Err())
	}
	return nil
}

// estimatePageCount estimates the page count from PDF data
// This is a simple heuristic that counts "/Type /Page" occurrences
func estimatePageCount(pdfData []byte) int {
	count := bytes.Count(pdfData, []byte("/Type /Page"))
	// "/Type /Pages" also matches, subtract the parent objects
	parentCount := bytes.Count(pdfData, []byte("/Type /Pages"))
	count = count - parentCount
	return max(count, 1)
}
