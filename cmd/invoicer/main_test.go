package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zaptest"

	"github.com/erp/invoicer/internal/application/invoicing"
	"github.com/erp/invoicer/internal/domain/invoice"
	"github.com/erp/invoicer/internal/infrastructure/config"
	"github.com/erp/invoicer/internal/infrastructure/printing"
	"github.com/erp/invoicer/internal/infrastructure/storage"
)

const rowsCSV = `Bill To,Ship To,Invoice Number,Date,Description,Price,GST,Total Price
Acme,Acme Warehouse,1001,2024-01-01,Courier Service,500.00,0.18,590.00
Globex,Globex Dock,1002,2024-01-02,Express Parcel,250,0.12,280
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeConfig(t *testing.T) string {
	return writeFile(t, "invoicer.toml", `
[log]
level = "error"
output = "stderr"
`)
}

// captureExit stops cli.Exit from terminating the test binary.
func captureExit(t *testing.T) *int {
	t.Helper()
	code := -1
	prev := cli.OsExiter
	cli.OsExiter = func(c int) { code = c }
	t.Cleanup(func() { cli.OsExiter = prev })
	return &code
}

func TestRenderCommand(t *testing.T) {
	csvPath := writeFile(t, "invoices.csv", rowsCSV)
	outDir := t.TempDir()

	var out bytes.Buffer
	app := newCLI()
	app.Writer = &out

	err := app.Run([]string{"invoicer", "--config", writeConfig(t),
		"render", "--source-csv", csvPath, "--output-dir", outDir})
	require.NoError(t, err)

	for _, name := range []string{"invoice_1001.pdf", "invoice_1002.pdf"} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		require.NoError(t, err, name)
		assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), name)
	}
	assert.Contains(t, out.String(), "2 rows: 2 rendered, 0 failed, 0 skipped")
}

func TestValidateCommand_JSONSummaryAndExitCode(t *testing.T) {
	csvPath := writeFile(t, "invoices.csv", rowsCSV+"Initech,Initech HQ,1003,2024-01-03,Parcel,abc,0.18,1\n")
	outDir := t.TempDir()
	code := captureExit(t)

	var out bytes.Buffer
	app := newCLI()
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}

	err := app.Run([]string{"invoicer", "--config", writeConfig(t),
		"validate", "--source-csv", csvPath, "--output-dir", outDir, "--format", "json"})
	require.Error(t, err)
	assert.Equal(t, 2, *code)

	var summary invoicing.BatchSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.True(t, summary.DryRun)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "1003", summary.Errors[0].InvoiceNumber)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "validate writes no files")
}

func TestBatchCommand_UnknownFormat(t *testing.T) {
	app := newCLI()
	err := app.Run([]string{"invoicer", "render", "--format", "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown summary format "xml"`)
}

// interruptedSource hands out its rows and then cancels the batch, as a
// SIGINT right after the fetch would.
type interruptedSource struct {
	records []invoice.RowRecord
	cancel  context.CancelFunc
}

func (s *interruptedSource) FetchRecords(ctx context.Context) ([]invoice.RowRecord, error) {
	s.cancel()
	return s.records, nil
}

func TestRunBatch_InterruptedPrintsSummary(t *testing.T) {
	log := zaptest.NewLogger(t)
	renderer, err := printing.NewGofpdfRenderer(nil)
	require.NoError(t, err)
	store, err := printing.NewFileSystemStorage(&printing.FileSystemStorageConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &interruptedSource{cancel: cancel, records: []invoice.RowRecord{
		invoice.NewRowRecord(2, map[string]string{"Invoice Number": "1001"}),
		invoice.NewRowRecord(3, map[string]string{"Invoice Number": "1002"}),
	}}
	svc := invoicing.NewInvoiceService(src, renderer, store, invoicing.Options{}, log)

	var out bytes.Buffer
	err = runBatch(ctx, svc, log, false, &out, "text")
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, out.String(), "2 rows: 0 rendered, 0 failed, 2 skipped")
}

func TestWriteSummary_Text(t *testing.T) {
	s := &invoicing.BatchSummary{
		Total:     3,
		Succeeded: 1,
		Failed:    2,
		Files: []invoicing.RenderOutcome{
			{Row: 2, InvoiceNumber: "1001", FileName: "invoice_1001.pdf", Path: "out/invoice_1001.pdf", TotalsMismatch: true},
		},
		Errors: []invoicing.RowError{
			{Row: 3, InvoiceNumber: "1002", Field: "Price", Code: "INVALID_FIELD", Message: "not a number"},
		},
		TotalErrors: 2,
		Truncated:   true,
		Duration:    1500 * time.Millisecond,
	}

	var out bytes.Buffer
	require.NoError(t, writeSummary(&out, s, "text"))

	text := out.String()
	assert.Contains(t, text, "row 2: invoice 1001 -> out/invoice_1001.pdf (totals disagree)")
	assert.Contains(t, text, "row 3")
	assert.Contains(t, text, "... 1 more errors")
	assert.Contains(t, text, "3 rows: 1 rendered, 2 failed, 0 skipped in 1.5s")
}

func TestLoadConfig_Overrides(t *testing.T) {
	var got *config.Config
	app := newCLI()
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "show-config",
		Flags: batchFlags(),
		Action: func(c *cli.Context) error {
			var err error
			got, err = loadConfig(c)
			return err
		},
	})

	err := app.Run([]string{"invoicer", "--config", writeConfig(t), "--log-level", "debug",
		"show-config", "--source-csv", "rows.csv", "--output-dir", "out", "--workers", "4"})
	require.NoError(t, err)

	assert.Equal(t, "debug", got.Log.Level)
	assert.Equal(t, config.SourceCSV, got.Source.Kind)
	assert.Equal(t, "rows.csv", got.Source.CSV.Path)
	assert.Equal(t, config.OutputFilesystem, got.Output.Kind)
	assert.Equal(t, "out", got.Output.Dir)
	assert.Equal(t, 4, got.Render.Workers)
}

func TestNewRenderer(t *testing.T) {
	log := zaptest.NewLogger(t)

	r, err := newRenderer(&config.RenderConfig{Engine: config.EngineGofpdf}, log)
	require.NoError(t, err)
	assert.IsType(t, &printing.GofpdfRenderer{}, r)

	r, err = newRenderer(&config.RenderConfig{Engine: config.EngineChromedp, Timeout: time.Second}, log)
	require.NoError(t, err)
	assert.IsType(t, &printing.ChromedpRenderer{}, r)
	assert.NoError(t, r.Close())

	_, err = newRenderer(&config.RenderConfig{Engine: "wkhtml"}, log)
	assert.Error(t, err)
}

func TestNewStorage(t *testing.T) {
	log := zaptest.NewLogger(t)
	ctx := context.Background()

	s, err := newStorage(ctx, &config.OutputConfig{Kind: config.OutputFilesystem, Dir: t.TempDir()}, log)
	require.NoError(t, err)
	assert.IsType(t, &printing.FileSystemStorage{}, s)

	s, err = newStorage(ctx, &config.OutputConfig{Kind: config.OutputS3, S3: config.S3Config{
		Endpoint:     "http://localhost:9000",
		Bucket:       "invoices",
		AccessKey:    "key",
		SecretKey:    "secret",
		UsePathStyle: true,
	}}, log)
	require.NoError(t, err)
	assert.IsType(t, &storage.S3Storage{}, s)

	_, err = newStorage(ctx, &config.OutputConfig{Kind: config.OutputS3}, log)
	assert.Error(t, err)

	_, err = newStorage(ctx, &config.OutputConfig{Kind: "ftp"}, log)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	app := newCLI()
	app.Writer = &out

	require.NoError(t, app.Run([]string{"invoicer", "version"}))
	assert.Equal(t, "invoicer dev\n", out.String())
}
