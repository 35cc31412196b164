package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/erp/invoicer/internal/application/invoicing"
	"github.com/erp/invoicer/internal/domain/invoice"
	"github.com/erp/invoicer/internal/infrastructure/config"
	"github.com/erp/invoicer/internal/infrastructure/logger"
	"github.com/erp/invoicer/internal/infrastructure/printing"
	"github.com/erp/invoicer/internal/infrastructure/source"
	"github.com/erp/invoicer/internal/infrastructure/storage"
	"github.com/erp/invoicer/internal/infrastructure/telemetry"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	telemetry *telemetry.Providers
	source    source.Source
	renderer  printing.PDFRenderer
	storage   printing.PDFStorage
	service   *invoicing.InvoiceService
}

// newApp wires the application from cfg. withSource opens the configured
// row source; the HTTP server renders single records and skips it.
func newApp(ctx context.Context, cfg *config.Config, withSource bool) (*app, error) {
	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	logCfg.Output = cfg.Log.Output
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		Logs:              cfg.Telemetry.Logs,
		ServiceName:       cfg.App.Name,
		ServiceVersion:    version,
	}, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.telemetry = providers
	a.log = providers.Logs.Bridge(log, logLevel(cfg.Log.Level))

	var metrics invoicing.Metrics
	if providers.Meter.IsEnabled() {
		m, err := telemetry.NewInvoiceMetrics(providers.Meter.Meter(cfg.App.Name))
		if err != nil {
			a.close()
			return nil, err
		}
		metrics = m
	}

	if withSource {
		src, err := source.New(ctx, &cfg.Source, a.log)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to open %s source: %w", cfg.Source.Kind, err)
		}
		a.source = src
	}

	renderer, err := newRenderer(&cfg.Render, a.log)
	if err != nil {
		a.close()
		return nil, err
	}
	a.renderer = renderer

	store, err := newStorage(ctx, &cfg.Output, a.log)
	if err != nil {
		a.close()
		return nil, err
	}
	a.storage = store

	var src invoicing.RecordSource
	if a.source != nil {
		src = a.source
	}
	a.service = invoicing.NewInvoiceService(src, a.renderer, a.storage, invoicing.Options{
		Seller: invoice.Company{
			Name:          cfg.Company.Name,
			AddressLines:  cfg.Company.AddressLines,
			TaxID:         cfg.Company.TaxID,
			ContactPerson: cfg.Company.ContactPerson,
		},
		Currency:  invoice.Currency{Symbol: cfg.Render.CurrencySymbol},
		Workers:   cfg.Render.Workers,
		MaxErrors: cfg.Render.MaxErrors,
		Timeout:   cfg.Render.Timeout,
		Metrics:   metrics,
	}, a.log)

	return a, nil
}

// newRenderer builds the renderer for the configured engine
func newRenderer(cfg *config.RenderConfig, log *zap.Logger) (printing.PDFRenderer, error) {
	switch cfg.Engine {
	case config.EngineChromedp:
		r, err := printing.NewChromedpRenderer(&printing.ChromedpConfig{
			DefaultTimeout: cfg.Timeout,
			RemoteURL:      cfg.Chrome.RemoteURL,
			NoSandbox:      cfg.Chrome.NoSandbox,
			Logger:         log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize chromedp renderer: %w", err)
		}
		return r, nil
	case config.EngineGofpdf, "":
		r, err := printing.NewGofpdfRenderer(&printing.GofpdfConfig{
			FontPath:     cfg.FontPath,
			BoldFontPath: cfg.BoldFontPath,
			CoreFonts:    cfg.CoreFonts,
			Logger:       log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gofpdf renderer: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown render engine %q", cfg.Engine)
	}
}

// newStorage builds the PDF storage for the configured output kind
func newStorage(ctx context.Context, cfg *config.OutputConfig, log *zap.Logger) (printing.PDFStorage, error) {
	switch cfg.Kind {
	case config.OutputS3:
		s3, err := storage.NewS3Storage(&cfg.S3,
			storage.WithLogger(log),
			storage.WithPresignExpiration(cfg.S3.PresignExpiration))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 storage: %w", err)
		}
		if cfg.S3.CreateBucket {
			if err := s3.EnsureBucket(ctx); err != nil {
				return nil, err
			}
		}
		return s3, nil
	case config.OutputFilesystem, "":
		fs, err := printing.NewFileSystemStorage(&printing.FileSystemStorageConfig{
			BasePath: cfg.Dir,
			BaseURL:  cfg.BaseURL,
			Logger:   log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize output directory: %w", err)
		}
		return fs, nil
	default:
		return nil, fmt.Errorf("unknown output kind %q", cfg.Kind)
	}
}

// close releases everything newApp opened, in reverse order.
func (a *app) close() error {
	var errs []error
	if a.renderer != nil {
		errs = append(errs, a.renderer.Close())
	}
	if a.source != nil {
		errs = append(errs, a.source.Close())
	}
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		errs = append(errs, a.telemetry.Shutdown(ctx))
		cancel()
	}
	_ = logger.Sync(a.log)
	return errors.Join(errs...)
}

func logLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
