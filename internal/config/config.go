package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Agmarknet AgmarknetConfig `yaml:"agmarknet" mapstructure:"agmarknet"`
	Sync      SyncConfig      `yaml:"sync" mapstructure:"sync"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// AgmarknetConfig configures the data.gov.in Agmarknet price API client.
type AgmarknetConfig struct {
	APIKey         string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	ResourceID     string `yaml:"resource_id" mapstructure:"resource_id"`
	PageSize       int    `yaml:"page_size" mapstructure:"page_size"`
	RequestDelayMS int    `yaml:"request_delay_ms" mapstructure:"request_delay_ms"`
	MaxRetries     int    `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRecords     int    `yaml:"max_records" mapstructure:"max_records"`
}

// RequestDelay returns the minimum inter-request delay as a duration.
func (c AgmarknetConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMS) * time.Millisecond
}

// Timeout returns the per-request timeout as a duration.
func (c AgmarknetConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// SyncConfig configures the sync orchestrator and bulk importer.
type SyncConfig struct {
	ChunkSize        int      `yaml:"chunk_size" mapstructure:"chunk_size"`
	DateBatchSize    int      `yaml:"date_batch_size" mapstructure:"date_batch_size"`
	InterDatePauseMS int      `yaml:"inter_date_pause_ms" mapstructure:"inter_date_pause_ms"`
	States           []string `yaml:"states" mapstructure:"states"`
	Commodities      []string `yaml:"commodities" mapstructure:"commodities"`
	HealthWindowDays int      `yaml:"health_window_days" mapstructure:"health_window_days"`
}

// Pause returns the pause between sequential per-date syncs.
func (c SyncConfig) Pause() time.Duration {
	return time.Duration(c.InterDatePauseMS) * time.Millisecond
}

// ServerConfig configures the HTTP trigger server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// SchedulerConfig configures the in-process cron triggers.
type SchedulerConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	DailySpec    string `yaml:"daily_spec" mapstructure:"daily_spec"`
	HourlySpec   string `yaml:"hourly_spec" mapstructure:"hourly_spec"`
	HourlySync   bool   `yaml:"hourly_sync" mapstructure:"hourly_sync"`
	BackfillDays int    `yaml:"backfill_days" mapstructure:"backfill_days"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AGRIGURU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("agmarknet.api_key", "")
	v.SetDefault("agmarknet.base_url", "https://api.data.gov.in/resource")
	v.SetDefault("agmarknet.resource_id", "9ef84268-d588-465a-a308-a864a43d0070")
	v.SetDefault("agmarknet.page_size", 1000)
	v.SetDefault("agmarknet.request_delay_ms", 200)
	v.SetDefault("agmarknet.max_retries", 3)
	v.SetDefault("agmarknet.timeout_secs", 15)
	v.SetDefault("agmarknet.max_records", 100000)
	v.SetDefault("sync.chunk_size", 1000)
	v.SetDefault("sync.date_batch_size", 10)
	v.SetDefault("sync.inter_date_pause_ms", 1000)
	v.SetDefault("sync.health_window_days", 7)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.daily_spec", "30 6 * * *")
	v.SetDefault("scheduler.hourly_spec", "0 9-18 * * *")
	v.SetDefault("scheduler.hourly_sync", false)
	v.SetDefault("scheduler.backfill_days", 7)

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
