package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/evolbiolab/paperval/internal/compare"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Compare CompareConfig `yaml:"compare" mapstructure:"compare"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`
	Prepare PrepareConfig `yaml:"prepare" mapstructure:"prepare"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CompareConfig sets the default field comparison options. Command line
// flags override these per invocation.
type CompareConfig struct {
	NumericTolerance float64 `yaml:"numeric_tolerance" mapstructure:"numeric_tolerance"`
	FuzzyStrings     bool    `yaml:"fuzzy_strings" mapstructure:"fuzzy_strings"`
	ListOrderMatters bool    `yaml:"list_order_matters" mapstructure:"list_order_matters"`
}

// Options converts the configured defaults into comparison options.
func (c CompareConfig) Options() compare.Options {
	return compare.Options{
		NumericTolerance: c.NumericTolerance,
		FuzzyStrings:     c.FuzzyStrings,
		OrderedLists:     c.ListOrderMatters,
	}
}

// ReportConfig configures report generation.
type ReportConfig struct {
	IssueThreshold float64 `yaml:"issue_threshold" mapstructure:"issue_threshold"`
	MetricsPath    string  `yaml:"metrics_path" mapstructure:"metrics_path"`
	TextPath       string  `yaml:"text_path" mapstructure:"text_path"`
}

// PrepareConfig configures validation set sampling.
type PrepareConfig struct {
	SampleSize int    `yaml:"sample_size" mapstructure:"sample_size"`
	Strategy   string `yaml:"strategy" mapstructure:"strategy"`
	Seed       int64  `yaml:"seed" mapstructure:"seed"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the configuration is usable for the given mode.
// Modes correspond to command groups: "evaluate" covers validation runs,
// "prepare" covers sampling, "store" covers run persistence, and "serve"
// covers the HTTP API.
func (c *Config) Validate(mode string) error {
	switch mode {
	case "evaluate":
		if c.Report.IssueThreshold < 0 || c.Report.IssueThreshold > 1 {
			return eris.Errorf("config: report.issue_threshold %.2f outside [0, 1]", c.Report.IssueThreshold)
		}
		return nil
	case "prepare":
		if c.Prepare.SampleSize < 1 {
			return eris.Errorf("config: prepare.sample_size must be at least 1, got %d", c.Prepare.SampleSize)
		}
		switch c.Prepare.Strategy {
		case "random", "stratified", "diverse":
		default:
			return eris.Errorf("config: unknown prepare.strategy %q", c.Prepare.Strategy)
		}
		return nil
	case "store":
		return c.validateStore()
	case "serve":
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			return eris.Errorf("config: invalid server.port %d", c.Server.Port)
		}
		return c.validateStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required (set PAPERVAL_STORE_DATABASE_URL)")
		}
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	return nil
}

// Load reads configuration from config.yaml and environment variables.
// Environment variables use the PAPERVAL_ prefix with underscores,
// e.g. PAPERVAL_STORE_DRIVER overrides store.driver.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PAPERVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "paperval.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("compare.numeric_tolerance", 0.0)
	v.SetDefault("compare.fuzzy_strings", false)
	v.SetDefault("compare.list_order_matters", false)
	v.SetDefault("report.issue_threshold", 0.7)
	v.SetDefault("report.metrics_path", "validation_metrics.json")
	v.SetDefault("report.text_path", "validation_report.txt")
	v.SetDefault("prepare.sample_size", 20)
	v.SetDefault("prepare.strategy", "random")
	v.SetDefault("prepare.seed", 42)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger builds a zap logger from the log configuration and installs
// it as the global logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrapf(err, "config: parse log level %q", cfg.Level)
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}

	zap.ReplaceGlobals(logger)
	return nil
}
