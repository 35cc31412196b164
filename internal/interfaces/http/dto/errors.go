package dto

import (
	"net/http"

	"github.com/erp/invoicer/internal/application/invoicing"
	"github.com/erp/invoicer/internal/domain/invoice"
	"github.com/erp/invoicer/internal/infrastructure/printing"
)

// Request error codes
const (
	// ErrCodeInvalidJSON is used when the request body is not a JSON object of strings
	ErrCodeInvalidJSON = "INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	// ErrCodeNotFound is used when a stored file does not exist
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeStorageDisabled is used when storing is requested without storage
	ErrCodeStorageDisabled = "STORAGE_DISABLED"
	// ErrCodeInvalidQuery is used for a malformed query parameter
	ErrCodeInvalidQuery = "INVALID_QUERY"
	// ErrCodeInvalidFileName is used for a file name that is not a bare name
	ErrCodeInvalidFileName = "INVALID_FILE_NAME"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// Request errors
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeStorageDisabled: http.StatusConflict,
	ErrCodeInvalidQuery:    http.StatusBadRequest,
	ErrCodeInvalidFileName: http.StatusBadRequest,

	// Row validation errors -> 400 Bad Request
	invoice.ErrCodeMissingField: http.StatusBadRequest,
	invoice.ErrCodeInvalidField: http.StatusBadRequest,

	// Layout and font problems come from configuration, not the caller
	printing.ErrCodeInvalidDocument: http.StatusInternalServerError,
	printing.ErrCodeFontNotFound:    http.StatusInternalServerError,

	printing.ErrCodeRenderTimeout:   http.StatusGatewayTimeout,
	printing.ErrCodeRenderCancelled: http.StatusServiceUnavailable,
	printing.ErrCodeRenderFailed:    http.StatusInternalServerError,
	printing.ErrCodeStorageFailed:   http.StatusInternalServerError,

	invoicing.ErrCodeFileWrite: http.StatusInternalServerError,
	invoicing.ErrCodeCancelled: http.StatusServiceUnavailable,
	invoicing.ErrCodeInternal:  http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorFromError classifies err into an error body and its status code.
func ErrorFromError(err error) (int, ErrorResponse) {
	code, field := invoicing.Classify(err)
	return GetHTTPStatus(code), NewErrorResponse(code, err.Error(), field)
}
