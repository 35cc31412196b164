package dto

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erp/invoicer/internal/domain/invoice"
	"github.com/erp/invoicer/internal/infrastructure/printing"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{invoice.ErrCodeMissingField, http.StatusBadRequest},
		{invoice.ErrCodeInvalidField, http.StatusBadRequest},
		{ErrCodeInvalidJSON, http.StatusBadRequest},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeNotFound, http.StatusNotFound},
		{printing.ErrCodeRenderTimeout, http.StatusGatewayTimeout},
		{printing.ErrCodeRenderCancelled, http.StatusServiceUnavailable},
		{printing.ErrCodeRenderFailed, http.StatusInternalServerError},
		{"SOMETHING_NEW", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestErrorFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{
			name:       "missing field",
			err:        &invoice.MissingFieldError{Field: invoice.FieldGST},
			wantStatus: http.StatusBadRequest,
			wantCode:   invoice.ErrCodeMissingField,
			wantField:  "GST",
		},
		{
			name:       "wrapped invalid field",
			err:        fmt.Errorf("build: %w", &invoice.InvalidFieldError{Field: invoice.FieldPrice, Value: "abc"}),
			wantStatus: http.StatusBadRequest,
			wantCode:   invoice.ErrCodeInvalidField,
			wantField:  "Price",
		},
		{
			name:       "render failure",
			err:        printing.NewRenderError(printing.ErrCodeRenderFailed, "boom", nil),
			wantStatus: http.StatusInternalServerError,
			wantCode:   printing.ErrCodeRenderFailed,
		},
		{
			name:       "cancelled",
			err:        context.Canceled,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "CANCELLED",
		},
		{
			name:       "cancelled render",
			err:        fmt.Errorf("render row 2: %w", printing.NewRenderError(printing.ErrCodeRenderCancelled, "PDF rendering was cancelled", context.Canceled)),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "CANCELLED",
		},
		{
			name:       "render timeout",
			err:        printing.NewRenderError(printing.ErrCodeRenderTimeout, "PDF rendering timed out after 30s", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   printing.ErrCodeRenderTimeout,
		},
		{
			name:       "unknown",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ErrorFromError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, tt.wantField, body.Error.Field)
			assert.Equal(t, tt.err.Error(), body.Error.Message)
		})
	}
}
