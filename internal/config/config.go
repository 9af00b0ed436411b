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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Assembly AssemblyConfig `yaml:"assembly" mapstructure:"assembly"`
	Render   RenderConfig   `yaml:"render" mapstructure:"render"`
	Blob     BlobConfig     `yaml:"blob" mapstructure:"blob"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// IngestConfig configures CSV validation and ingestion.
type IngestConfig struct {
	MaxFileBytes     int64   `yaml:"max_file_bytes" mapstructure:"max_file_bytes"`
	MinRows          int     `yaml:"min_rows" mapstructure:"min_rows"`
	MaxRows          int     `yaml:"max_rows" mapstructure:"max_rows"`
	ChunkSize        int     `yaml:"chunk_size" mapstructure:"chunk_size"`
	ErrorRateLimit   float64 `yaml:"error_rate_limit" mapstructure:"error_rate_limit"` // fraction, e.g. 0.05
}

// PipelineConfig configures the report state machine and queue workers.
type PipelineConfig struct {
	MaxRetries     int `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelaySecs int `yaml:"retry_delay_secs" mapstructure:"retry_delay_secs"`
	Workers        int `yaml:"workers" mapstructure:"workers"`
}

// AssemblyConfig configures report assembly tuning.
type AssemblyConfig struct {
	TuningPath string `yaml:"tuning_path" mapstructure:"tuning_path"` // optional YAML overrides
}

// RenderConfig configures the external HTML/PDF render service client.
type RenderConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// BlobConfig configures artifact storage.
type BlobConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("ADVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "advisor.db")
	v.SetDefault("ingest.max_file_bytes", int64(50*1024*1024))
	v.SetDefault("ingest.min_rows", 1)
	v.SetDefault("ingest.max_rows", 50000)
	v.SetDefault("ingest.chunk_size", 1000)
	v.SetDefault("ingest.error_rate_limit", 0.05)
	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.retry_delay_secs", 30)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("render.base_url", "http://localhost:9090")
	v.SetDefault("render.timeout_secs", 120)
	v.SetDefault("render.requests_per_sec", 2.0)
	v.SetDefault("render.max_retries", 3)
	v.SetDefault("blob.dir", "artifacts")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
