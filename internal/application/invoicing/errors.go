package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/invoicer/internal/domain/invoice"
	infra "github.com/erp/invoicer/internal/infrastructure/printing"
)

// Row error codes that do not come from the domain or the renderer
const (
	ErrCodeFileWrite = "FILE_WRITE_FAILED"
	ErrCodeCancelled = "CANCELLED"
	ErrCodeInternal  = "INTERNAL_ERROR"
)

// RowError reports why one record was not rendered
type RowError struct {
	Row           int    `json:"row"`
	InvoiceNumber string `json:"invoice_number,omitempty"`
	Field         string `json:"field,omitempty"`
	Code          string `json:"code"`
	Message       string `json:"message"`
}

// Error implements the error interface
func (e RowError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "row %d", e.Row)
	if e.InvoiceNumber != "" {
		fmt.Fprintf(&sb, " (invoice %s)", e.InvoiceNumber)
	}
	if e.Field != "" {
		fmt.Fprintf(&sb, ", field '%s'", e.Field)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	return sb.String()
}

// NewRowError classifies err for the record it came from.
func NewRowError(rec invoice.RowRecord, err error) RowError {
	code, field := Classify(err)
	return RowError{
		Row:           rec.Row,
		InvoiceNumber: rec.InvoiceNumber(),
		Field:         field,
		Code:          code,
		Message:       err.Error(),
	}
}

// Classify maps an error to its error code and, for field errors, the
// offending field name. A cancelled context wins over any wrapping error.
func Classify(err error) (code, field string) {
	var missing *invoice.MissingFieldError
	var invalid *invoice.InvalidFieldError
	var writeErr *infra.FileWriteError
	var renderErr *infra.RenderError

	switch {
	case errors.Is(err, context.Canceled):
		return ErrCodeCancelled, ""
	case errors.As(err, &missing):
		return missing.Code(), missing.Field.String()
	case errors.As(err, &invalid):
		return invalid.Code(), invalid.Field.String()
	case errors.As(err, &writeErr):
		return ErrCodeFileWrite, ""
	case errors.As(err, &renderErr):
		return renderErr.Code, ""
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeCancelled, ""
	default:
		return ErrCodeInternal, ""
	}
}

// ErrorCollection keeps the first maxErrors row errors and counts the rest.
type ErrorCollection struct {
	errors     []RowError
	maxErrors  int
	totalCount int
	byCode     map[string]int
}

// NewErrorCollection creates a new ErrorCollection with a maximum error limit
func NewErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors <= 0 {
		maxErrors = 100
	}
	return &ErrorCollection{
		errors:    make([]RowError, 0, min(maxErrors, 16)),
		maxErrors: maxErrors,
		byCode:    make(map[string]int),
	}
}

// Add adds an error to the collection
func (ec *ErrorCollection) Add(err RowError) {
	ec.totalCount++
	ec.byCode[err.Code]++
	if len(ec.errors) < ec.maxErrors {
		ec.errors = append(ec.errors, err)
	}
}

// Errors returns the collected errors
func (ec *ErrorCollection) Errors() []RowError {
	return ec.errors
}

// TotalCount returns the number of errors added, kept or not
func (ec *ErrorCollection) TotalCount() int {
	return ec.totalCount
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollection) HasErrors() bool {
	return ec.totalCount > 0
}

// IsTruncated returns true if some errors were not kept
func (ec *ErrorCollection) IsTruncated() bool {
	return ec.totalCount > ec.maxErrors
}

// ErrorSummary counts all added errors by code, including those not kept
func (ec *ErrorCollection) ErrorSummary() map[string]int {
	summary := make(map[string]int, len(ec.byCode))
	for code, n := range ec.byCode {
		summary[code] = n
	}
	return summary
}

// String lists the kept errors, one per line
func (ec *ErrorCollection) String() string {
	if !ec.HasErrors() {
		return "no errors"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d error(s) found", ec.totalCount)
	if ec.IsTruncated() {
		fmt.Fprintf(&sb, " (showing first %d)", ec.maxErrors)
	}
	sb.WriteString(":\n")
	for _, err := range ec.errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}
