// Package config loads the immutable application configuration from file and
// environment and bootstraps the global logger. Components never read ambient
// state; everything they need arrives through Config.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Extraction  ExtractionConfig  `yaml:"extraction" mapstructure:"extraction"`
	RecordStore RecordStoreConfig `yaml:"recordstore" mapstructure:"recordstore"`
	Ledger      LedgerConfig      `yaml:"ledger" mapstructure:"ledger"`
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// ExtractionConfig addresses the document-understanding processor.
type ExtractionConfig struct {
	// Endpoint is the regional API base URL; empty derives it from Location.
	Endpoint    string `yaml:"endpoint" mapstructure:"endpoint"`
	Project     string `yaml:"project" mapstructure:"project"`
	Location    string `yaml:"location" mapstructure:"location"`
	ProcessorID string `yaml:"processor_id" mapstructure:"processor_id"`
	Token       string `yaml:"token" mapstructure:"token"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RecordStoreConfig holds record-store credentials and the invoice app. The
// master app fields are only needed by `master sync`.
type RecordStoreConfig struct {
	Domain         string `yaml:"domain" mapstructure:"domain"`
	AppID          string `yaml:"app_id" mapstructure:"app_id"`
	APIToken       string `yaml:"api_token" mapstructure:"api_token"`
	MasterAppID    string `yaml:"master_app_id" mapstructure:"master_app_id"`
	MasterAPIToken string `yaml:"master_api_token" mapstructure:"master_api_token"`

	// FieldMappingPath points at the YAML table translating canonical invoice
	// attributes to the target app's field codes. Mapping is deployment
	// configuration, not code.
	FieldMappingPath string  `yaml:"field_mapping_path" mapstructure:"field_mapping_path"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// LedgerConfig configures the idempotency ledger backend.
type LedgerConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	Path        string `yaml:"path" mapstructure:"path"`     // sqlite file
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PipelineConfig holds the pipeline tunables.
type PipelineConfig struct {
	// InputLocation is the directory the CLI commands read documents from.
	InputLocation string `yaml:"input_location" mapstructure:"input_location"`

	// OutputLocation is where audit JSON documents are written.
	OutputLocation string `yaml:"output_location" mapstructure:"output_location"`

	CompanyMasterPath string `yaml:"company_master_path" mapstructure:"company_master_path"`

	// FuzzyMatchThreshold is the minimum similarity (0-1) a fuzzy vendor
	// match must meet; a candidate exactly at the threshold matches.
	FuzzyMatchThreshold float64 `yaml:"fuzzy_match_threshold" mapstructure:"fuzzy_match_threshold"`

	// AmountTolerance bounds the allowed gap between the line-item sum and
	// the invoice total before an amount-mismatch warning is recorded.
	AmountTolerance float64 `yaml:"amount_tolerance" mapstructure:"amount_tolerance"`

	// MaxUpsertRetries is the total attempt bound for record-store calls.
	MaxUpsertRetries int `yaml:"max_upsert_retries" mapstructure:"max_upsert_retries"`

	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ServerConfig configures the event webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml (optional) and INVOICE_-prefixed
// environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("INVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Credential and endpoint keys default empty so environment values are
	// visible to Unmarshal.
	for _, key := range []string{
		"extraction.endpoint", "extraction.project", "extraction.processor_id", "extraction.token",
		"recordstore.domain", "recordstore.app_id", "recordstore.api_token",
		"recordstore.master_app_id", "recordstore.master_api_token", "recordstore.field_mapping_path",
		"ledger.database_url",
		"pipeline.output_location", "pipeline.company_master_path",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("extraction.location", "us")
	v.SetDefault("extraction.timeout_secs", 60)
	v.SetDefault("recordstore.rate_limit", 5)
	v.SetDefault("ledger.driver", "sqlite")
	v.SetDefault("ledger.path", "invoice-ledger.db")
	v.SetDefault("pipeline.input_location", "inbox")
	v.SetDefault("pipeline.fuzzy_match_threshold", 0.8)
	v.SetDefault("pipeline.amount_tolerance", 0.01)
	v.SetDefault("pipeline.max_upsert_retries", 4)
	v.SetDefault("pipeline.max_concurrent", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the options the pipeline cannot run without. A missing
// required option is a startup failure, never a per-event one.
func (c *Config) Validate() error {
	var missing []string

	if c.Extraction.Project == "" {
		missing = append(missing, "extraction.project")
	}
	if c.Extraction.ProcessorID == "" {
		missing = append(missing, "extraction.processor_id")
	}
	if c.RecordStore.Domain == "" {
		missing = append(missing, "recordstore.domain")
	}
	if c.RecordStore.AppID == "" {
		missing = append(missing, "recordstore.app_id")
	}
	if c.RecordStore.APIToken == "" {
		missing = append(missing, "recordstore.api_token")
	}
	if c.Pipeline.OutputLocation == "" {
		missing = append(missing, "pipeline.output_location")
	}
	if c.Pipeline.CompanyMasterPath == "" {
		missing = append(missing, "pipeline.company_master_path")
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing required options: %s", strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
