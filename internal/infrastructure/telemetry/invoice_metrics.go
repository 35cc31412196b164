package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys of the invoice metrics
var (
	AttrOutcome = attribute.Key("outcome")
	AttrDryRun  = attribute.Key("dry_run")
)

// OutcomeOK labels a record that rendered; failures carry their error code.
const OutcomeOK = "ok"

// Histogram bucket boundaries, in seconds
var (
	renderBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	batchBuckets  = []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900}
)

// ErrMeterNil is returned by NewInvoiceMetrics for a nil meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// InvoiceMetrics records per-invoice and per-batch rendering metrics.
type InvoiceMetrics struct {
	invoices       metric.Int64Counter
	renderDuration metric.Float64Histogram
	batches        metric.Int64Counter
	batchRecords   metric.Int64Counter
	batchDuration  metric.Float64Histogram
}

// NewInvoiceMetrics creates the invoice instruments on meter.
func NewInvoiceMetrics(meter metric.Meter) (*InvoiceMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &InvoiceMetrics{}
	var err error

	if m.invoices, err = meter.Int64Counter("invoicer_invoices_total",
		metric.WithDescription("Invoices processed, by outcome"),
		metric.WithUnit("{invoices}")); err != nil {
		return nil, instrumentError("invoicer_invoices_total", err)
	}
	if m.renderDuration, err = meter.Float64Histogram("invoicer_invoice_duration_seconds",
		metric.WithDescription("Time to validate, render and store one invoice"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(renderBuckets...)); err != nil {
		return nil, instrumentError("invoicer_invoice_duration_seconds", err)
	}
	if m.batches, err = meter.Int64Counter("invoicer_batches_total",
		metric.WithDescription("Batch runs completed"),
		metric.WithUnit("{batches}")); err != nil {
		return nil, instrumentError("invoicer_batches_total", err)
	}
	if m.batchRecords, err = meter.Int64Counter("invoicer_batch_records_total",
		metric.WithDescription("Records seen by batch runs, by outcome"),
		metric.WithUnit("{records}")); err != nil {
		return nil, instrumentError("invoicer_batch_records_total", err)
	}
	if m.batchDuration, err = meter.Float64Histogram("invoicer_batch_duration_seconds",
		metric.WithDescription("Wall time of a batch run"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(batchBuckets...)); err != nil {
		return nil, instrumentError("invoicer_batch_duration_seconds", err)
	}

	return m, nil
}

func instrumentError(name string, err error) error {
	return fmt.Errorf("failed to create instrument %s: %w", name, err)
}

// RecordInvoice counts one processed record. outcome is OutcomeOK or an
// error code. Only successful records are timed.
func (m *InvoiceMetrics) RecordInvoice(ctx context.Context, outcome string, dryRun bool, d time.Duration) {
	dry := AttrDryRun.Bool(dryRun)
	m.invoices.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome), dry))
	if outcome == OutcomeOK {
		m.renderDuration.Record(ctx, d.Seconds(), metric.WithAttributes(dry))
	}
}

// RecordBatch records the totals of a finished batch.
func (m *InvoiceMetrics) RecordBatch(ctx context.Context, dryRun bool, succeeded, failed, skipped int, d time.Duration) {
	dry := AttrDryRun.Bool(dryRun)
	m.batches.Add(ctx, 1, metric.WithAttributes(dry))
	for outcome, n := range map[string]int{"succeeded": succeeded, "failed": failed, "skipped": skipped} {
		m.batchRecords.Add(ctx, int64(n), metric.WithAttributes(dry, AttrOutcome.String(outcome)))
	}
	m.batchDuration.Record(ctx, d.Seconds(), metric.WithAttributes(dry))
}
