package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/campaign-hub/internal/reconcile"
	"github.com/sells-group/campaign-hub/internal/resilience"
	"github.com/sells-group/campaign-hub/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig      `yaml:"store" mapstructure:"store"`
	Sources   SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	Reconcile reconcile.Config `yaml:"reconcile" mapstructure:"reconcile"`
	Report    ReportConfig     `yaml:"report" mapstructure:"report"`
	Server    ServerConfig     `yaml:"server" mapstructure:"server"`
	Log       LogConfig        `yaml:"log" mapstructure:"log"`
	Retry     RetryConfig      `yaml:"retry" mapstructure:"retry"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// SourcesConfig locates the file-based sources.
type SourcesConfig struct {
	BaselineDir          string `yaml:"baseline_dir" mapstructure:"baseline_dir"`
	SnapshotCacheTTLSecs int    `yaml:"snapshot_cache_ttl_secs" mapstructure:"snapshot_cache_ttl_secs"`
	AliasesPath          string `yaml:"aliases_path" mapstructure:"aliases_path"`
}

// SnapshotCacheTTL returns the snapshot cache lifetime.
func (s SourcesConfig) SnapshotCacheTTL() time.Duration {
	return time.Duration(s.SnapshotCacheTTLSecs) * time.Second
}

// ReportConfig configures the report command.
type ReportConfig struct {
	MaxConcurrentCampaigns int `yaml:"max_concurrent_campaigns" mapstructure:"max_concurrent_campaigns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RetryConfig configures retries of source and store reads.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// Resilience converts the retry section to a resilience.RetryConfig.
func (r RetryConfig) Resilience() resilience.RetryConfig {
	return resilience.FromRetryConfig(r.MaxAttempts, r.InitialBackoffMs, r.MaxBackoffMs)
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CAMPAIGN_HUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "campaign-hub.db")
	v.SetDefault("sources.baseline_dir", "data/baseline")
	v.SetDefault("sources.snapshot_cache_ttl_secs", 300)
	v.SetDefault("sources.aliases_path", "")
	v.SetDefault("report.max_concurrent_campaigns", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 100)
	v.SetDefault("retry.max_backoff_ms", 2000)

	// Read config file (optional)
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

// Validate checks the settings a command needs. mode is the command name.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry.max_attempts must be >= 1")
	}
	if err := c.Reconcile.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Sources.BaselineDir == "" {
			errs = append(errs, "sources.baseline_dir is required")
		}
	case "report":
		if c.Report.MaxConcurrentCampaigns < 1 || c.Report.MaxConcurrentCampaigns > 32 {
			errs = append(errs, "report.max_concurrent_campaigns must be between 1 and 32")
		}
		if c.Sources.BaselineDir == "" {
			errs = append(errs, "sources.baseline_dir is required")
		}
	case "override", "import", "migrate":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
