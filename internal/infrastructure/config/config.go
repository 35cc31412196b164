package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. INVOICER_OUTPUT_DIR
const EnvPrefix = "INVOICER"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	Source    SourceConfig
	Company   CompanyConfig
	Render    RenderConfig
	Output    OutputConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `validate:"required"`
	Env  string `validate:"required"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
	Output string `validate:"required"` // stdout, stderr, or file path
}

// Source kinds
const (
	SourceCSV      = "csv"
	SourceSheets   = "sheets"
	SourcePostgres = "postgres"
)

// SourceConfig selects where invoice rows come from
type SourceConfig struct {
	Kind     string `validate:"oneof=csv sheets postgres"`
	CSV      CSVSourceConfig
	Sheets   SheetsSourceConfig
	Postgres PostgresSourceConfig
}

// CSVSourceConfig holds settings for a local CSV export
type CSVSourceConfig struct {
	Path      string
	Delimiter string `validate:"max=1"`
}

// SheetsSourceConfig holds Google Sheets settings
type SheetsSourceConfig struct {
	SpreadsheetID   string
	Range           string
	CredentialsFile string
}

// PostgresSourceConfig holds database connection settings
type PostgresSourceConfig struct {
	Host     string
	Port     int `validate:"min=1,max=65535"`
	User     string
	Password string
	DBName   string
	SSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	Table    string
	// MaxOpenConns caps the pool; rows are read by one query
	MaxOpenConns int `validate:"min=1"`
}

// CompanyConfig is the static seller block printed on every invoice
type CompanyConfig struct {
	Name          string `validate:"required"`
	AddressLines  []string
	TaxID         string
	ContactPerson string
}

// Render engines
const (
	EngineGofpdf   = "gofpdf"
	EngineChromedp = "chromedp"
)

// RenderConfig holds renderer and batch settings
type RenderConfig struct {
	Engine         string `validate:"oneof=gofpdf chromedp"`
	CurrencySymbol string `validate:"required"`
	FontPath       string
	BoldFontPath   string
	CoreFonts      bool
	Workers        int           `validate:"min=1,max=64"`
	MaxErrors      int           `validate:"min=1"`
	Timeout        time.Duration `validate:"min=0"`
	Chrome         ChromeConfig
}

// ChromeConfig holds chromedp settings
type ChromeConfig struct {
	RemoteURL string
	NoSandbox bool
}

// Output kinds
const (
	OutputFilesystem = "filesystem"
	OutputS3         = "s3"
)

// OutputConfig selects where rendered PDFs are written
type OutputConfig struct {
	Kind    string `validate:"oneof=filesystem s3"`
	Dir     string
	BaseURL string
	S3      S3Config
}

// S3Config holds S3-compatible object storage settings
type S3Config struct {
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	Prefix            string
	UseSSL            bool
	UsePathStyle      bool
	CreateBucket      bool
	PresignExpiration time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr           string        `validate:"required"`
	ReadTimeout    time.Duration `validate:"gt=0"`
	WriteTimeout   time.Duration `validate:"gt=0"`
	IdleTimeout    time.Duration `validate:"gt=0"`
	MaxHeaderBytes int           `validate:"gt=0"`
	MaxBodySize    int64         `validate:"gt=0"`
}

// TelemetryConfig holds OpenTelemetry export settings
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	Insecure          bool
	SamplingRatio     float64       `validate:"min=0,max=1"`
	ExportInterval    time.Duration `validate:"min=0"`
	// Logs also ships log entries to the collector
	Logs bool
}

// Load loads configuration from a TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with INVOICER_ prefix (e.g., INVOICER_OUTPUT_DIR)
// 2. the config file: path when given, otherwise invoicer.toml in ., ./config or /etc/invoicer
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("invoicer")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/invoicer")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
			// Config file not found is OK, we'll use defaults and env vars
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Source: SourceConfig{
			Kind: v.GetString("source.kind"),
			CSV: CSVSourceConfig{
				Path:      v.GetString("source.csv.path"),
				Delimiter: v.GetString("source.csv.delimiter"),
			},
			Sheets: SheetsSourceConfig{
				SpreadsheetID:   v.GetString("source.sheets.spreadsheet_id"),
				Range:           v.GetString("source.sheets.range"),
				CredentialsFile: v.GetString("source.sheets.credentials_file"),
			},
			Postgres: PostgresSourceConfig{
				Host:         v.GetString("source.postgres.host"),
				Port:         v.GetInt("source.postgres.port"),
				User:         v.GetString("source.postgres.user"),
				Password:     v.GetString("source.postgres.password"),
				DBName:       v.GetString("source.postgres.dbname"),
				SSLMode:      v.GetString("source.postgres.sslmode"),
				Table:        v.GetString("source.postgres.table"),
				MaxOpenConns: v.GetInt("source.postgres.max_open_conns"),
			},
		},
		Company: CompanyConfig{
			Name:          v.GetString("company.name"),
			AddressLines:  v.GetStringSlice("company.address_lines"),
			TaxID:         v.GetString("company.tax_id"),
			ContactPerson: v.GetString("company.contact_person"),
		},
		Render: RenderConfig{
			Engine:         v.GetString("render.engine"),
			CurrencySymbol: v.GetString("render.currency_symbol"),
			FontPath:       v.GetString("render.font_path"),
			BoldFontPath:   v.GetString("render.bold_font_path"),
			CoreFonts:      v.GetBool("render.core_fonts"),
			Workers:        v.GetInt("render.workers"),
			MaxErrors:      v.GetInt("render.max_errors"),
			Timeout:        v.GetDuration("render.timeout"),
			Chrome: ChromeConfig{
				RemoteURL: v.GetString("render.chrome.remote_url"),
				NoSandbox: v.GetBool("render.chrome.no_sandbox"),
			},
		},
		Output: OutputConfig{
			Kind:    v.GetString("output.kind"),
			Dir:     v.GetString("output.dir"),
			BaseURL: v.GetString("output.base_url"),
			S3: S3Config{
				Endpoint:          v.GetString("output.s3.endpoint"),
				Region:            v.GetString("output.s3.region"),
				Bucket:            v.GetString("output.s3.bucket"),
				AccessKey:         v.GetString("output.s3.access_key"),
				SecretKey:         v.GetString("output.s3.secret_key"),
				Prefix:            v.GetString("output.s3.prefix"),
				UseSSL:            v.GetBool("output.s3.use_ssl"),
				UsePathStyle:      v.GetBool("output.s3.use_path_style"),
				CreateBucket:      v.GetBool("output.s3.create_bucket"),
				PresignExpiration: v.GetDuration("output.s3.presign_expiration"),
			},
		},
		HTTP: HTTPConfig{
			Addr:           v.GetString("http.addr"),
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			Insecure:          v.GetBool("telemetry.insecure"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			Logs:              v.GetBool("telemetry.logs"),
		},
	}
	if !v.IsSet("telemetry.sampling_ratio") {
		cfg.Telemetry.SamplingRatio = 1.0
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	cfg := &Config{Telemetry: TelemetryConfig{SamplingRatio: 1.0}}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "invoicer"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}

	if cfg.Source.Kind == "" {
		cfg.Source.Kind = SourceCSV
	}
	if cfg.Source.CSV.Path == "" {
		cfg.Source.CSV.Path = "invoices.csv"
	}
	if cfg.Source.Sheets.Range == "" {
		cfg.Source.Sheets.Range = "Sheet1"
	}
	if cfg.Source.Postgres.Host == "" {
		cfg.Source.Postgres.Host = "localhost"
	}
	if cfg.Source.Postgres.Port == 0 {
		cfg.Source.Postgres.Port = 5432
	}
	if cfg.Source.Postgres.User == "" {
		cfg.Source.Postgres.User = "postgres"
	}
	if cfg.Source.Postgres.DBName == "" {
		cfg.Source.Postgres.DBName = "invoices"
	}
	if cfg.Source.Postgres.SSLMode == "" {
		cfg.Source.Postgres.SSLMode = "disable"
	}
	if cfg.Source.Postgres.Table == "" {
		cfg.Source.Postgres.Table = "invoice_rows"
	}
	if cfg.Source.Postgres.MaxOpenConns == 0 {
		cfg.Source.Postgres.MaxOpenConns = 2
	}

	// The seller block is static; these are the details the tool has
	// always printed.
	if cfg.Company.Name == "" {
		cfg.Company.Name = "PATEL BROTHER'S INTERNATIONAL COURIER"
		if len(cfg.Company.AddressLines) == 0 {
			cfg.Company.AddressLines = []string{
				"25, Ashirwad Society,",
				"Old Padra Road, Vadodara, Akota,",
				"Gujarat - 390020",
			}
		}
		if cfg.Company.TaxID == "" {
			cfg.Company.TaxID = "24BBFPP0580H1ZR"
		}
		if cfg.Company.ContactPerson == "" {
			cfg.Company.ContactPerson = "Pate Nishaben S"
		}
	}

	if cfg.Render.Engine == "" {
		cfg.Render.Engine = EngineGofpdf
	}
	if cfg.Render.CurrencySymbol == "" {
		cfg.Render.CurrencySymbol = "₹"
	}
	if cfg.Render.Workers == 0 {
		cfg.Render.Workers = 1
	}
	if cfg.Render.MaxErrors == 0 {
		cfg.Render.MaxErrors = 100
	}
	if cfg.Render.Timeout == 0 {
		cfg.Render.Timeout = 30 * time.Second
	}

	if cfg.Output.Kind == "" {
		cfg.Output.Kind = OutputFilesystem
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "."
	}
	if cfg.Output.BaseURL == "" {
		cfg.Output.BaseURL = "/api/v1/invoices/files"
	}
	if cfg.Output.S3.Region == "" {
		cfg.Output.S3.Region = "us-east-1"
	}
	if cfg.Output.S3.PresignExpiration == 0 {
		cfg.Output.S3.PresignExpiration = 15 * time.Minute
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints, then the settings each selected
// source and output kind needs.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config %s: failed %q (value %v)", configKey(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.Source.Kind {
	case SourceCSV:
		if c.Source.CSV.Path == "" {
			return fmt.Errorf("source.csv.path is required for the csv source")
		}
	case SourceSheets:
		if c.Source.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("source.sheets.spreadsheet_id is required for the sheets source")
		}
		if c.Source.Sheets.CredentialsFile == "" {
			return fmt.Errorf("source.sheets.credentials_file is required for the sheets source")
		}
	case SourcePostgres:
		if c.Source.Postgres.Table == "" {
			return fmt.Errorf("source.postgres.table is required for the postgres source")
		}
	}

	if c.Render.BoldFontPath != "" && c.Render.FontPath == "" {
		return fmt.Errorf("render.bold_font_path requires render.font_path")
	}

	if c.Output.Kind == OutputS3 {
		if c.Output.S3.Bucket == "" {
			return fmt.Errorf("output.s3.bucket is required for s3 output")
		}
		if c.Output.S3.AccessKey == "" || c.Output.S3.SecretKey == "" {
			return fmt.Errorf("output.s3.access_key and output.s3.secret_key are required for s3 output")
		}
	}

	if c.App.Env == "production" && c.Source.Kind == SourcePostgres && c.Source.Postgres.SSLMode == "disable" {
		return fmt.Errorf("source.postgres.sslmode cannot be 'disable' in production")
	}

	return nil
}

// configKey turns a validator namespace like Config.Render.MaxErrors into
// the TOML key render.max_errors.
func configKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snakeCase(p)
	}
	return strings.Join(parts, ".")
}

func snakeCase(s string) string {
	var sb strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower {
				sb.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// DSN returns the database connection string with properly escaped values
func (d *PostgresSourceConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
