// Package invoicing turns invoice rows into stored one-page PDFs.
package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erp/invoicer/internal/domain/invoice"
	infra "github.com/erp/invoicer/internal/infrastructure/printing"
	"github.com/erp/invoicer/internal/infrastructure/logger"
)

const tracerName = "github.com/erp/invoicer/internal/application/invoicing"

// RecordSource yields the rows to render, in source order.
type RecordSource interface {
	FetchRecords(ctx context.Context) ([]invoice.RowRecord, error)
}

// Metrics receives per-record and per-batch measurements. outcome is
// "ok" or the record's error code.
type Metrics interface {
	RecordInvoice(ctx context.Context, outcome string, dryRun bool, d time.Duration)
	RecordBatch(ctx context.Context, dryRun bool, succeeded, failed, skipped int, d time.Duration)
}

// outcomeOK is the metrics outcome of a record that succeeded
const outcomeOK = "ok"

// Options configures an InvoiceService
type Options struct {
	// Seller is printed in the company block of every invoice
	Seller   invoice.Company
	Currency invoice.Currency
	// Workers is the number of records rendered concurrently, at least 1
	Workers int
	// MaxErrors caps the row errors kept in a batch summary
	MaxErrors int
	// Timeout bounds rendering of a single invoice, 0 for the renderer default
	Timeout time.Duration
	// Metrics is optional
	Metrics Metrics
}

// RenderOutcome describes one rendered invoice
type RenderOutcome struct {
	Row            int    `json:"row"`
	InvoiceNumber  string `json:"invoice_number"`
	FileName       string `json:"file_name"`
	Path           string `json:"path,omitempty"`
	URL            string `json:"url,omitempty"`
	Size           int64  `json:"size"`
	TotalsMismatch bool   `json:"totals_mismatch,omitempty"`
	PDF            []byte `json:"-"`
}

// BatchSummary reports a RenderAll or Validate pass. Files and Errors are
// ordered by source row; ErrorsByCode counts every failed row, including
// those beyond the kept Errors.
type BatchSummary struct {
	RunID        string          `json:"run_id"`
	DryRun       bool            `json:"dry_run"`
	Total        int             `json:"total"`
	Succeeded    int             `json:"succeeded"`
	Failed       int             `json:"failed"`
	Skipped      int             `json:"skipped"`
	Warnings     int             `json:"warnings"`
	Files        []RenderOutcome `json:"files,omitempty"`
	Errors       []RowError      `json:"errors,omitempty"`
	TotalErrors  int             `json:"total_errors"`
	ErrorsByCode map[string]int  `json:"errors_by_code,omitempty"`
	Truncated    bool            `json:"truncated,omitempty"`
	Duration     time.Duration   `json:"duration"`
}

// OK reports whether every record succeeded
func (s *BatchSummary) OK() bool {
	return s.Failed == 0 && s.Skipped == 0
}

// InvoiceService renders invoices from row records
type InvoiceService struct {
	source   RecordSource
	renderer infra.PDFRenderer
	storage  infra.PDFStorage
	opts     Options
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewInvoiceService creates a new InvoiceService. source may be nil when
// only single records are rendered.
func NewInvoiceService(
	source RecordSource,
	renderer infra.PDFRenderer,
	storage infra.PDFStorage,
	opts Options,
	logger *zap.Logger,
) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Currency.Symbol == "" {
		opts.Currency = invoice.DefaultCurrency()
	}
	return &InvoiceService{
		source:   source,
		renderer: renderer,
		storage:  storage,
		opts:     opts,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// BuildInvoice validates a record and builds its invoice. A totals
// mismatch is logged and otherwise ignored.
func (s *InvoiceService) BuildInvoice(ctx context.Context, rec invoice.RowRecord) (*invoice.Invoice, error) {
	inv, err := invoice.FromRecord(rec, s.opts.Seller, s.opts.Currency)
	if err != nil {
		return nil, err
	}
	if !inv.TotalsConsistent() {
		s.log(ctx).Warn("invoice totals disagree",
			zap.Int("row", rec.Row),
			zap.String("total", inv.Total.StringFixed(2)),
			zap.String("computed", inv.ComputedTotal().StringFixed(2)))
	}
	return inv, nil
}

// RenderDocument builds and renders a record without storing it.
func (s *InvoiceService) RenderDocument(ctx context.Context, rec invoice.RowRecord) (*RenderOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "invoicing.RenderDocument",
		trace.WithAttributes(attribute.Int("invoice.row", rec.Row)))
	defer span.End()

	outcome, err := s.render(ctx, rec)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return outcome, nil
}

// RenderInvoice builds, renders and stores one record as
// invoice_<number>.pdf. Nothing is written when the record is invalid.
func (s *InvoiceService) RenderInvoice(ctx context.Context, rec invoice.RowRecord) (*RenderOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "invoicing.RenderInvoice",
		trace.WithAttributes(attribute.Int("invoice.row", rec.Row)))
	defer span.End()

	outcome, err := s.renderAndStore(ctx, rec)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return outcome, nil
}

func (s *InvoiceService) renderAndStore(ctx context.Context, rec invoice.RowRecord) (*RenderOutcome, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("no PDF storage configured")
	}

	start := time.Now()
	outcome, err := s.render(ctx, rec)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithInvoiceNumber(ctx, outcome.InvoiceNumber)
	stored, err := s.storage.Store(ctx, &infra.StoreRequest{
		FileName: outcome.FileName,
		PDFData:  outcome.PDF,
	})
	if err != nil {
		return nil, err
	}
	outcome.Path = stored.Path
	outcome.URL = stored.URL
	outcome.Size = stored.Size

	s.log(ctx).Info("invoice rendered",
		zap.Int("row", rec.Row),
		zap.String("file", outcome.FileName),
		zap.String("path", outcome.Path),
		zap.Int64("size", outcome.Size),
		zap.Duration("duration", time.Since(start)))

	return outcome, nil
}

func (s *InvoiceService) render(ctx context.Context, rec invoice.RowRecord) (*RenderOutcome, error) {
	if s.renderer == nil {
		return nil, fmt.Errorf("no PDF renderer configured")
	}
	if number := rec.InvoiceNumber(); number != "" {
		ctx = logger.WithInvoiceNumber(ctx, number)
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("invoice.number", number))
	}

	inv, err := s.BuildInvoice(ctx, rec)
	if err != nil {
		return nil, err
	}

	result, err := s.renderer.Render(ctx, &infra.RenderRequest{
		Document: Layout(inv),
		Timeout:  s.opts.Timeout,
	})
	if err != nil {
		return nil, err
	}

	return &RenderOutcome{
		Row:            rec.Row,
		InvoiceNumber:  inv.Number,
		FileName:       inv.FileName(),
		Size:           int64(len(result.PDFData)),
		TotalsMismatch: !inv.TotalsConsistent(),
		PDF:            result.PDFData,
	}, nil
}

// RenderAll renders every record of the source. A failing record is
// logged and counted and the batch moves on; the error return is for a
// failed fetch or a cancelled context.
func (s *InvoiceService) RenderAll(ctx context.Context) (*BatchSummary, error) {
	return s.runBatch(ctx, false)
}

// Validate checks every record of the source without rendering or
// writing anything.
func (s *InvoiceService) Validate(ctx context.Context) (*BatchSummary, error) {
	return s.runBatch(ctx, true)
}

type recordResult struct {
	outcome *RenderOutcome
	err     error
	skipped bool
}

func (s *InvoiceService) runBatch(ctx context.Context, dryRun bool) (*BatchSummary, error) {
	if s.source == nil {
		return nil, fmt.Errorf("no record source configured")
	}

	start := time.Now()
	runID := uuid.New().String()
	ctx = logger.WithRunID(logger.WithContext(ctx, s.logger), runID)

	ctx, span := s.tracer.Start(ctx, "invoicing.Batch",
		trace.WithAttributes(
			attribute.String("batch.run_id", runID),
			attribute.Bool("batch.dry_run", dryRun)))
	defer span.End()

	records, err := s.source.FetchRecords(ctx)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}

	log := logger.L(ctx)
	log.Info("batch started",
		zap.Int("records", len(records)),
		zap.Int("workers", s.opts.Workers),
		zap.Bool("dry_run", dryRun))
	s.warnDuplicates(ctx, records)

	results := make([]recordResult, len(records))
	for i := range results {
		results[i].skipped = true
	}

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, rec := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = s.processRecord(ctx, rec, dryRun)
			return nil
		})
	}
	_ = g.Wait()

	summary := s.summarize(records, results, dryRun)
	summary.RunID = runID
	summary.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("batch.total", summary.Total),
		attribute.Int("batch.failed", summary.Failed))
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordBatch(ctx, dryRun, summary.Succeeded, summary.Failed, summary.Skipped, summary.Duration)
	}

	log.Info("batch finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", summary.Duration))

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *InvoiceService) processRecord(ctx context.Context, rec invoice.RowRecord, dryRun bool) recordResult {
	ctx, span := s.tracer.Start(ctx, "invoicing.Record",
		trace.WithAttributes(attribute.Int("invoice.row", rec.Row)))
	defer span.End()

	if number := rec.InvoiceNumber(); number != "" {
		ctx = logger.WithInvoiceNumber(ctx, number)
	}

	start := time.Now()
	var res recordResult
	if dryRun {
		inv, err := s.BuildInvoice(ctx, rec)
		if err == nil {
			err = Layout(inv).Validate()
		}
		if err == nil {
			res.outcome = &RenderOutcome{
				Row:            rec.Row,
				InvoiceNumber:  inv.Number,
				FileName:       inv.FileName(),
				TotalsMismatch: !inv.TotalsConsistent(),
			}
		}
		res.err = err
	} else {
		outcome, err := s.renderAndStore(ctx, rec)
		if outcome != nil {
			// Batches keep only the file metadata
			outcome.PDF = nil
			res.outcome = outcome
		}
		res.err = err
	}

	outcome := outcomeOK
	if res.err != nil {
		recordError(span, res.err)
		code, field := Classify(res.err)
		outcome = code
		s.log(ctx).Error("invoice failed",
			zap.Int("row", rec.Row),
			zap.String("code", code),
			zap.String("field", field),
			zap.Error(res.err))
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordInvoice(ctx, outcome, dryRun, time.Since(start))
	}
	return res
}

func (s *InvoiceService) summarize(records []invoice.RowRecord, results []recordResult, dryRun bool) *BatchSummary {
	errs := NewErrorCollection(s.opts.MaxErrors)
	summary := &BatchSummary{
		DryRun: dryRun,
		Total:  len(records),
	}

	for i, res := range results {
		switch {
		case res.skipped:
			summary.Skipped++
		case res.err != nil:
			summary.Failed++
			errs.Add(NewRowError(records[i], res.err))
		default:
			summary.Succeeded++
			summary.Files = append(summary.Files, *res.outcome)
			if res.outcome.TotalsMismatch {
				summary.Warnings++
			}
		}
	}

	summary.Errors = errs.Errors()
	summary.TotalErrors = errs.TotalCount()
	if errs.HasErrors() {
		summary.ErrorsByCode = errs.ErrorSummary()
	}
	summary.Truncated = errs.IsTruncated()
	return summary
}

func (s *InvoiceService) warnDuplicates(ctx context.Context, records []invoice.RowRecord) {
	seen := make(map[string]int, len(records))
	for _, rec := range records {
		number := rec.InvoiceNumber()
		if number == "" {
			continue
		}
		if first, ok := seen[number]; ok {
			logger.L(ctx).Warn("duplicate invoice number, later row overwrites the file",
				zap.String("invoice", number),
				zap.Int("first_row", first),
				zap.Int("row", rec.Row))
			continue
		}
		seen[number] = rec.Row
	}
}

// log returns a context logger over the service logger unless the context
// already carries one.
func (s *InvoiceService) log(ctx context.Context) *logger.ContextLogger {
	if _, ok := ctx.Value(logger.LoggerKey).(*zap.Logger); ok {
		return logger.L(ctx)
	}
	return logger.WithLogger(ctx, s.logger)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
