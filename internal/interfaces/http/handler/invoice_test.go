package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/invoicer/internal/application/invoicing"
	"github.com/erp/invoicer/internal/infrastructure/printing"
	"github.com/erp/invoicer/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubRenderer returns a fixed PDF and remembers the last document title
type stubRenderer struct {
	mu    sync.Mutex
	err   error
	title string
}

func (r *stubRenderer) Render(ctx context.Context, req *printing.RenderRequest) (*printing.RenderResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	r.title = req.Document.Title
	r.mu.Unlock()
	return &printing.RenderResult{PDFData: []byte("%PDF-1.4 " + req.Document.Title), PageCount: 1}, nil
}

func (r *stubRenderer) Close() error { return nil }

const validBody = `{
	"Bill To": "Acme Corp, 1 Main St",
	"Ship To": "Acme Warehouse",
	"Invoice Number": "1001",
	"Date": "2024-01-15",
	"Description": "Courier Service",
	"Price": "100.00",
	"GST": "18",
	"Total Price": "118.00"
}`

type testEnv struct {
	router   *gin.Engine
	renderer *stubRenderer
	dir      string
}

func newTestEnv(t *testing.T, withStorage bool) *testEnv {
	t.Helper()
	renderer := &stubRenderer{}

	var storage printing.PDFStorage
	dir := t.TempDir()
	if withStorage {
		fs, err := printing.NewFileSystemStorage(&printing.FileSystemStorageConfig{BasePath: dir})
		require.NoError(t, err)
		storage = fs
	}

	service := invoicing.NewInvoiceService(nil, renderer, storage, invoicing.Options{}, zaptest.NewLogger(t))
	h := NewInvoiceHandler(service, storage)

	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))
	router.GET("/health", NewHealthHandler("1.2.3", "gofpdf").Health)

	return &testEnv{router: router, renderer: renderer, dir: dir}
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorInfo {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error
}

func TestInvoiceHandler_Render(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(http.MethodPost, "/api/v1/invoices/render", validBody)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=invoice_1001.pdf", w.Header().Get("Content-Disposition"))
	assert.Equal(t, "1001", w.Header().Get(HeaderInvoiceNumber))
	assert.Empty(t, w.Header().Get(HeaderTotalsMismatch))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
	assert.Equal(t, "Invoice 1001", env.renderer.title)

	// Nothing is stored without ?store=true
	entries, err := os.ReadDir(env.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInvoiceHandler_Render_Store(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(http.MethodPost, "/api/v1/invoices/render?store=true", validBody)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/api/v1/invoices/files/invoice_1001.pdf", w.Header().Get("Location"))

	written, err := os.ReadFile(filepath.Join(env.dir, "invoice_1001.pdf"))
	require.NoError(t, err)
	assert.Equal(t, w.Body.Bytes(), written)

	// The stored file is served back
	w = env.do(http.MethodGet, "/api/v1/invoices/files/invoice_1001.pdf", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, written, w.Body.Bytes())
}

func TestInvoiceHandler_Render_CanonicalFieldNames(t *testing.T) {
	env := newTestEnv(t, false)

	body := `{"BillTo":"A","ShipTo":"B","InvoiceNumber":7,"Date":"2024-02-01",
		"Description":"Parcel","Price":250.5,"GST":12,"TotalPrice":"280.56","Notes":null}`
	w := env.do(http.MethodPost, "/api/v1/invoices/render", body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "attachment; filename=invoice_7.pdf", w.Header().Get("Content-Disposition"))
}

func TestInvoiceHandler_Render_TotalsMismatch(t *testing.T) {
	env := newTestEnv(t, false)

	body := strings.Replace(validBody, `"118.00"`, `"120.00"`, 1)
	w := env.do(http.MethodPost, "/api/v1/invoices/render", body)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get(HeaderTotalsMismatch))
}

func TestInvoiceHandler_Render_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		body       string
		storage    bool
		renderErr  error
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{
			name:       "missing field",
			body:       strings.Replace(validBody, `"GST": "18",`, ``, 1),
			wantStatus: http.StatusBadRequest,
			wantCode:   "MISSING_FIELD",
			wantField:  "GST",
		},
		{
			name:       "blank field",
			body:       strings.Replace(validBody, `"Ship To": "Acme Warehouse"`, `"Ship To": "  "`, 1),
			wantStatus: http.StatusBadRequest,
			wantCode:   "MISSING_FIELD",
			wantField:  "ShipTo",
		},
		{
			name:       "invalid price",
			body:       strings.Replace(validBody, `"100.00"`, `"abc"`, 1),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_FIELD",
			wantField:  "Price",
		},
		{
			name:       "not json",
			body:       `Bill To,Ship To`,
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeInvalidJSON,
		},
		{
			name:       "nested value",
			body:       `{"Bill To": {"name": "x"}}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeInvalidJSON,
		},
		{
			name:       "bad store flag",
			target:     "/api/v1/invoices/render?store=maybe",
			body:       validBody,
			storage:    true,
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeInvalidQuery,
			wantField:  "store",
		},
		{
			name:       "store without storage",
			target:     "/api/v1/invoices/render?store=true",
			body:       validBody,
			wantStatus: http.StatusConflict,
			wantCode:   dto.ErrCodeStorageDisabled,
		},
		{
			name:       "renderer failure",
			body:       validBody,
			renderErr:  printing.NewRenderError(printing.ErrCodeRenderFailed, "gofpdf: boom", nil),
			wantStatus: http.StatusInternalServerError,
			wantCode:   printing.ErrCodeRenderFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.storage)
			env.renderer.err = tt.renderErr
			target := tt.target
			if target == "" {
				target = "/api/v1/invoices/render"
			}

			w := env.do(http.MethodPost, target, tt.body)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			info := decodeError(t, w)
			assert.Equal(t, tt.wantCode, info.Code)
			assert.Equal(t, tt.wantField, info.Field)
			assert.NotEmpty(t, info.Message)
		})
	}
}

func TestInvoiceHandler_Render_CancelledRequest(t *testing.T) {
	renderer, err := printing.NewGofpdfRenderer(nil)
	require.NoError(t, err)
	service := invoicing.NewInvoiceService(nil, renderer, nil, invoicing.Options{}, zaptest.NewLogger(t))

	router := gin.New()
	NewInvoiceHandler(service, nil).RegisterRoutes(router.Group("/api/v1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/render", strings.NewReader(validBody)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
	assert.Equal(t, invoicing.ErrCodeCancelled, decodeError(t, w).Code)
}

func TestInvoiceHandler_GetFile_Errors(t *testing.T) {
	tests := []struct {
		name       string
		storage    bool
		file       string
		wantStatus int
		wantCode   string
	}{
		{"missing file", true, "invoice_404.pdf", http.StatusNotFound, dto.ErrCodeNotFound},
		{"backslash traversal", true, "..%5Csecret.pdf", http.StatusBadRequest, dto.ErrCodeInvalidFileName},
		{"no storage", false, "invoice_1.pdf", http.StatusConflict, dto.ErrCodeStorageDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.storage)
			w := env.do(http.MethodGet, "/api/v1/invoices/files/"+tt.file, "")

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, decodeError(t, w).Code)
		})
	}
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.HealthResponse{Status: "ok", Version: "1.2.3", Engine: "gofpdf"}, resp)
}

func TestRecordValues(t *testing.T) {
	raw, err := recordValues(map[string]any{
		"Price":   250.5,
		"GST":     float64(18),
		"Date":    "2024-01-15",
		"Missing": nil,
		"Paid":    true,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Price": "250.5",
		"GST":   "18",
		"Date":  "2024-01-15",
		"Paid":  "true",
	}, raw)

	_, err = recordValues(map[string]any{"Items": []any{"a"}})
	assert.Error(t, err)
}
