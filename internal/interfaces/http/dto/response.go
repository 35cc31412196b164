// Package dto holds the JSON bodies of the invoice HTTP API.
package dto

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error ErrorInfo `json:"error"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message, field string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorInfo{
			Code:    code,
			Message: message,
			Field:   field,
		},
	}
}

// StoredInvoice describes a rendered invoice written to storage
type StoredInvoice struct {
	Row            int    `json:"row,omitempty"`
	InvoiceNumber  string `json:"invoice_number"`
	FileName       string `json:"file_name"`
	URL            string `json:"url,omitempty"`
	Size           int64  `json:"size"`
	TotalsMismatch bool   `json:"totals_mismatch,omitempty"`
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Engine  string `json:"engine,omitempty"`
}
