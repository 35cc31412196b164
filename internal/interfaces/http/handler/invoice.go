// Package handler implements the invoice HTTP endpoints.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/invoicer/internal/application/invoicing"
	"github.com/erp/invoicer/internal/domain/invoice"
	"github.com/erp/invoicer/internal/infrastructure/logger"
	"github.com/erp/invoicer/internal/infrastructure/printing"
	"github.com/erp/invoicer/internal/interfaces/http/dto"
)

const pdfContentType = "application/pdf"

// Response headers set on rendered invoices
const (
	HeaderInvoiceNumber  = "X-Invoice-Number"
	HeaderTotalsMismatch = "X-Invoice-Totals-Mismatch"
)

// InvoiceRenderer is the part of the invoicing service the handler needs
type InvoiceRenderer interface {
	RenderDocument(ctx context.Context, rec invoice.RowRecord) (*invoicing.RenderOutcome, error)
	RenderInvoice(ctx context.Context, rec invoice.RowRecord) (*invoicing.RenderOutcome, error)
}

// InvoiceHandler serves single-invoice rendering and stored files
type InvoiceHandler struct {
	renderer InvoiceRenderer
	storage  printing.PDFStorage
}

// NewInvoiceHandler creates a new InvoiceHandler. storage may be nil, in
// which case ?store=true and the files endpoint are refused.
func NewInvoiceHandler(renderer InvoiceRenderer, storage printing.PDFStorage) *InvoiceHandler {
	return &InvoiceHandler{
		renderer: renderer,
		storage:  storage,
	}
}

// RegisterRoutes registers the invoice routes under the API group
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := rg.Group("/invoices")
	invoices.POST("/render", h.Render)
	invoices.GET("/files/:name", h.GetFile)
}

// Render godoc
// @Summary      Render an invoice
// @Description  Renders one invoice row to a PDF. The body is a JSON object
// @Description  keyed by field name (BillTo) or column heading (Bill To).
// @Tags         invoices
// @Accept       json
// @Produce      application/pdf
// @Param        store  query  bool  false  "Also write the PDF to storage"
// @Success      200  {file}  binary
// @Success      201  {file}  binary
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      413  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /invoices/render [post]
func (h *InvoiceHandler) Render(c *gin.Context) {
	store := false
	if raw := c.Query("store"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.error(c, http.StatusBadRequest, dto.ErrCodeInvalidQuery, "store must be a boolean", "store")
			return
		}
		store = v
	}
	if store && h.storage == nil {
		h.error(c, http.StatusConflict, dto.ErrCodeStorageDisabled, "storage is not configured", "")
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size", "")
			return
		}
		h.error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "request body must be a JSON object: "+err.Error(), "")
		return
	}

	raw, err := recordValues(body)
	if err != nil {
		h.error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, err.Error(), "")
		return
	}
	rec := invoice.NewRowRecord(0, raw)

	var outcome *invoicing.RenderOutcome
	if store {
		outcome, err = h.renderer.RenderInvoice(c.Request.Context(), rec)
	} else {
		outcome, err = h.renderer.RenderDocument(c.Request.Context(), rec)
	}
	if err != nil {
		status, resp := dto.ErrorFromError(err)
		logger.L(c.Request.Context()).Warn("invoice render request failed",
			zap.String("code", resp.Error.Code),
			zap.String("field", resp.Error.Field),
			zap.Error(err))
		c.AbortWithStatusJSON(status, resp)
		return
	}

	status := http.StatusOK
	if store {
		status = http.StatusCreated
		if outcome.URL != "" {
			c.Header("Location", outcome.URL)
		}
	}
	c.Header("Content-Disposition", "attachment; filename="+outcome.FileName)
	c.Header(HeaderInvoiceNumber, outcome.InvoiceNumber)
	if outcome.TotalsMismatch {
		c.Header(HeaderTotalsMismatch, "true")
	}
	c.Data(status, pdfContentType, outcome.PDF)
}

// GetFile godoc
// @Summary      Download a stored invoice
// @Tags         invoices
// @Produce      application/pdf
// @Param        name  path  string  true  "File name, e.g. invoice_1001.pdf"
// @Success      200  {file}  binary
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /invoices/files/{name} [get]
func (h *InvoiceHandler) GetFile(c *gin.Context) {
	if h.storage == nil {
		h.error(c, http.StatusConflict, dto.ErrCodeStorageDisabled, "storage is not configured", "")
		return
	}

	name := c.Param("name")
	if err := printing.ValidateFileName(name); err != nil {
		h.error(c, http.StatusBadRequest, dto.ErrCodeInvalidFileName, err.Error(), "name")
		return
	}

	rc, err := h.storage.Get(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, printing.ErrPDFNotFound) {
			h.error(c, http.StatusNotFound, dto.ErrCodeNotFound, "invoice file not found: "+name, "")
			return
		}
		status, resp := dto.ErrorFromError(err)
		logger.L(c.Request.Context()).Error("failed to read stored invoice",
			zap.String("file", name), zap.Error(err))
		c.AbortWithStatusJSON(status, resp)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, pdfContentType, rc, map[string]string{
		"Content-Disposition": "inline; filename=" + name,
	})
}

func (h *InvoiceHandler) error(c *gin.Context, status int, code, message, field string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(code, message, field))
}

// recordValues flattens a JSON object into raw cell text. Numbers keep
// their shortest decimal form; send strings to keep exact formatting.
func recordValues(body map[string]any) (map[string]string, error) {
	raw := make(map[string]string, len(body))
	for key, v := range body {
		switch val := v.(type) {
		case nil:
			// null is the same as an absent column
		case string:
			raw[key] = val
		case float64:
			raw[key] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			raw[key] = strconv.FormatBool(val)
		default:
			return nil, fmt.Errorf("field %q must be a string or number", key)
		}
	}
	return raw, nil
}
