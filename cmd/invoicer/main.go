// Command invoicer renders invoice rows from a CSV export, a Google Sheets
// worksheet or a PostgreSQL table into one-page PDF invoices.
//
//	invoicer render --source-csv invoices.csv --output-dir out
//	invoicer validate
//	invoicer serve
//	invoicer version
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/erp/invoicer/internal/application/invoicing"
	"github.com/erp/invoicer/internal/infrastructure/config"
	"github.com/erp/invoicer/internal/infrastructure/logger"
	"github.com/erp/invoicer/internal/interfaces/http/handler"
	"github.com/erp/invoicer/internal/interfaces/http/middleware"
	"github.com/erp/invoicer/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "invoicer:", err)
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:    "invoicer",
		Usage:   "render invoice rows into PDF invoices",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a TOML config file",
				EnvVars: []string{"INVOICER_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override log.level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "render",
				Usage:  "render every row of the source into the output",
				Flags:  batchFlags(),
				Action: batchAction(false),
			},
			{
				Name:   "validate",
				Usage:  "check every row without writing any file",
				Flags:  batchFlags(),
				Action: batchAction(true),
			},
			{
				Name:   "serve",
				Usage:  "serve the HTTP render API",
				Action: serveAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "override http.addr",
					},
				},
			},
			{
				Name:  "version",
				Usage: "print the version",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprintln(c.App.Writer, c.App.Name, version)
					return err
				},
			},
		},
	}
}

func batchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "source-csv",
			Usage: "read rows from this CSV file instead of the configured source",
		},
		&cli.StringFlag{
			Name:  "output-dir",
			Usage: "write PDFs to this directory instead of the configured output",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "override render.workers",
		},
		&cli.StringFlag{
			Name:  "format",
			Value: "text",
			Usage: "summary format, text or json",
		},
	}
}

// loadConfig reads the config file and applies the command line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("source-csv") {
		cfg.Source.Kind = config.SourceCSV
		cfg.Source.CSV.Path = c.String("source-csv")
	}
	if c.IsSet("output-dir") {
		cfg.Output.Kind = config.OutputFilesystem
		cfg.Output.Dir = c.String("output-dir")
	}
	if c.IsSet("workers") {
		cfg.Render.Workers = c.Int("workers")
	}
	if c.IsSet("addr") {
		cfg.HTTP.Addr = c.String("addr")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func batchAction(dryRun bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		format := c.String("format")
		if format != "text" && format != "json" {
			return fmt.Errorf("unknown summary format %q", format)
		}

		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.close()

		return runBatch(ctx, a.service, a.log, dryRun, c.App.Writer, format)
	}
}

// runBatch renders or validates every row and prints the summary. An
// interrupted run still prints what it finished before returning the error.
func runBatch(ctx context.Context, svc *invoicing.InvoiceService, log *zap.Logger, dryRun bool, w io.Writer, format string) error {
	var summary *invoicing.BatchSummary
	var err error
	if dryRun {
		summary, err = svc.Validate(ctx)
	} else {
		summary, err = svc.RenderAll(ctx)
	}

	if summary != nil {
		if werr := writeSummary(w, summary, format); werr != nil && err == nil {
			err = werr
		}
	}
	if err != nil {
		log.Error("Batch aborted", zap.Error(err))
		return err
	}
	if !summary.OK() {
		return cli.Exit("", 2)
	}
	return nil
}

// writeSummary prints a batch summary as indented JSON or as one line per
// file and error.
func writeSummary(w io.Writer, s *invoicing.BatchSummary, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	for _, f := range s.Files {
		where := f.Path
		if where == "" {
			where = f.FileName
		}
		line := fmt.Sprintf("row %d: invoice %s -> %s", f.Row, f.InvoiceNumber, where)
		if f.TotalsMismatch {
			line += " (totals disagree)"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	for _, e := range s.Errors {
		if _, err := fmt.Fprintln(w, e.Error()); err != nil {
			return err
		}
	}
	if s.Truncated {
		fmt.Fprintf(w, "... %d more errors\n", s.TotalErrors-len(s.Errors))
	}

	verb := "rendered"
	if s.DryRun {
		verb = "valid"
	}
	_, err := fmt.Fprintf(w, "%d rows: %d %s, %d failed, %d skipped in %s\n",
		s.Total, s.Succeeded, verb, s.Failed, s.Skipped, s.Duration.Round(time.Millisecond))
	return err
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	a, err := newApp(c.Context, cfg, false)
	if err != nil {
		return err
	}
	defer a.close()
	log := a.log

	engine := router.NewEngine(router.Config{
		Logger:      logger.Named(log, "http"),
		Invoices:    handler.NewInvoiceHandler(a.service, a.storage),
		Health:      handler.NewHealthHandler(version, cfg.Render.Engine),
		MaxBodySize: cfg.HTTP.MaxBodySize,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.App.Name,
			Enabled:     cfg.Telemetry.Enabled,
		},
	})

	srv := &http.Server{
		Addr:           cfg.HTTP.Addr,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("engine", cfg.Render.Engine),
			zap.String("output", cfg.Output.Kind),
			zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-serveErr:
		if ok {
			log.Error("Server failed", zap.Error(err))
			return err
		}
		return nil
	case <-quit:
	}

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	log.Info("Server exited")
	return nil
}
