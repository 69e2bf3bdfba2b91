// Package config loads the application configuration from config.yaml and
// PRICESCOUT_* environment overrides, and initializes the global logger.
package config

import (
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Input   InputConfig             `yaml:"input" mapstructure:"input"`
	Output  OutputConfig            `yaml:"output" mapstructure:"output"`
	Store   StoreConfig             `yaml:"store" mapstructure:"store"`
	Search  SearchConfig            `yaml:"search" mapstructure:"search"`
	Sources map[string]SourceConfig `yaml:"sources" mapstructure:"sources"`
	Log     LogConfig               `yaml:"log" mapstructure:"log"`
}

// InputConfig describes the input workbook.
type InputConfig struct {
	File       string `yaml:"file" mapstructure:"file"`
	Sheet      string `yaml:"sheet" mapstructure:"sheet"`
	NameColumn string `yaml:"name_column" mapstructure:"name_column"`
}

// OutputConfig describes where result workbooks and checkpoints go.
// Checkpoints live in a scratch subdirectory of Dir so a clean run can
// leave the output directory holding only the final artifact.
type OutputConfig struct {
	Dir           string `yaml:"dir" mapstructure:"dir"`
	CheckpointDir string `yaml:"checkpoint_dir" mapstructure:"checkpoint_dir"`
}

// StoreConfig configures the run log database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SearchConfig tunes query-to-result matching inside source workers.
type SearchConfig struct {
	MinSimilarity float64 `yaml:"min_similarity" mapstructure:"min_similarity"`
	MaxResults    int     `yaml:"max_results" mapstructure:"max_results"`
}

// RetryConfig holds per-source retry knobs.
type RetryConfig struct {
	MaxAttempts          int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffFactor        float64 `yaml:"backoff_factor" mapstructure:"backoff_factor"`
	RetryableStatusCodes []int   `yaml:"retryable_status_codes" mapstructure:"retryable_status_codes"`
}

// CircuitConfig holds per-source circuit breaker knobs. A zero
// FailureThreshold disables the breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// SourceConfig holds everything one storefront needs: HTTP client limits,
// pacing, retry policy, and batch/checkpoint cadence.
type SourceConfig struct {
	Enabled            bool          `yaml:"enabled" mapstructure:"enabled"`
	BaseURL            string        `yaml:"base_url" mapstructure:"base_url"`
	UserAgent          string        `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs        int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxConcurrent      int           `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	ConnectionPoolSize int           `yaml:"connection_pool_size" mapstructure:"connection_pool_size"`
	RequestDelayMs     int           `yaml:"request_delay_ms" mapstructure:"request_delay_ms"`
	BatchSize          int           `yaml:"batch_size" mapstructure:"batch_size"`
	CheckpointInterval int           `yaml:"checkpoint_interval" mapstructure:"checkpoint_interval"`
	InterBatchDelayMs  int           `yaml:"inter_batch_delay_ms" mapstructure:"inter_batch_delay_ms"`
	Retry              RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit            CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// Timeout returns the per-request timeout.
func (sc SourceConfig) Timeout() time.Duration {
	return time.Duration(sc.TimeoutSecs) * time.Second
}

// RequestDelay returns the minimum spacing between request starts.
func (sc SourceConfig) RequestDelay() time.Duration {
	return time.Duration(sc.RequestDelayMs) * time.Millisecond
}

// InterBatchDelay returns the pause between consecutive batches.
func (sc SourceConfig) InterBatchDelay() time.Duration {
	return time.Duration(sc.InterBatchDelayMs) * time.Millisecond
}

// WithDefaults fills unset knobs. Viper's SetDefault cannot reach into
// map values, so per-source defaults are applied here.
func (sc SourceConfig) WithDefaults() SourceConfig {
	if sc.UserAgent == "" {
		sc.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}
	if sc.TimeoutSecs <= 0 {
		sc.TimeoutSecs = 10
	}
	if sc.MaxConcurrent <= 0 {
		sc.MaxConcurrent = 50
	}
	if sc.ConnectionPoolSize <= 0 {
		sc.ConnectionPoolSize = 100
	}
	if sc.RequestDelayMs < 0 {
		sc.RequestDelayMs = 0
	}
	if sc.BatchSize <= 0 {
		sc.BatchSize = 50
	}
	if sc.CheckpointInterval <= 0 {
		sc.CheckpointInterval = 50
	}
	if sc.InterBatchDelayMs < 0 {
		sc.InterBatchDelayMs = 0
	}
	if sc.Retry.MaxAttempts <= 0 {
		sc.Retry.MaxAttempts = 3
	}
	if sc.Retry.BackoffFactor <= 0 {
		sc.Retry.BackoffFactor = 0.3
	}
	if len(sc.Retry.RetryableStatusCodes) == 0 {
		sc.Retry.RetryableStatusCodes = []int{429, 500, 502, 503, 504}
	}
	return sc
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from the given file (or ./config.yaml when
// path is empty) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PRICESCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("input.sheet", "")
	v.SetDefault("input.name_column", "product_name")
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.checkpoint_dir", "")
	v.SetDefault("store.path", "price-scout.db")
	v.SetDefault("search.min_similarity", 0.5)
	v.SetDefault("search.max_results", 5)
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

	for name, sc := range cfg.Sources {
		cfg.Sources[name] = sc.WithDefaults()
	}

	return &cfg, nil
}

// Source returns the configuration for the named source.
func (c *Config) Source(name string) (SourceConfig, error) {
	sc, ok := c.Sources[name]
	if !ok {
		return SourceConfig{}, eris.Errorf("config: source %q not configured", name)
	}
	return sc, nil
}

// EnabledSources returns the names of enabled sources, sorted for
// deterministic runs.
func (c *Config) EnabledSources() []string {
	var names []string
	for name, sc := range c.Sources {
		if sc.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Validate checks the parts of the configuration every run needs.
func (c *Config) Validate() error {
	if c.Input.File == "" {
		return eris.New("config: input.file is required")
	}
	if c.Input.NameColumn == "" {
		return eris.New("config: input.name_column is required")
	}
	if len(c.EnabledSources()) == 0 {
		return eris.New("config: no enabled sources")
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
