// Package config provides configuration management for tvqos using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort            = 8080
	defaultServerTimeout         = 30 * time.Second
	defaultShutdownTimeout       = 10 * time.Second
	defaultMaxOpenConns          = 25
	defaultMaxIdleConns          = 10
	defaultConnMaxIdleTime       = 30 * time.Minute
	defaultPollInterval          = 30 * time.Second
	defaultWorkerCount           = 10
	defaultTaskDeadline          = 60 * time.Second
	defaultUDPTimeout            = 5 * time.Second
	defaultMinTSPackets          = 100
	defaultBufferCapPerPacket    = 64 * 1024 / 7 // ~64KiB / 7 packets, recommended ceiling basis
	defaultHTTPFetchTimeout      = 10 * time.Second
	defaultSegmentTargetSeconds  = 6
	defaultSegmentTolerancePct   = 10
	defaultMinPlaylistSegments   = 3
	defaultMinSegmentSizeBytes   = 50_000
	defaultMaxDownloadSeconds    = 5
	defaultSnapshotInterval      = 60 * time.Second
	defaultSnapshotDuration      = 2 * time.Second
	defaultCircuitBreakerThresh  = 3
	defaultCircuitBreakerTimeout = 30 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	HLS       HLSConfig       `mapstructure:"hls"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig holds the ambient status/health HTTP surface configuration.
// This is never the configuration CRUD API named as out-of-scope in the spec —
// it exposes only /health and /status, both read-only.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds the reference configuration-store adapter's connection
// settings. Any store implementing InputSourceRepository is a legal substitute.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds file storage configuration for snapshot artifacts.
type StorageConfig struct {
	BaseDir  string `mapstructure:"base_dir"`
	TempDir  string `mapstructure:"temp_dir"`
	SnapDir  string `mapstructure:"snapshot_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// SchedulerConfig holds the monitoring cycle/scheduler configuration (§4.1/§4.1b/§5).
type SchedulerConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	CronExpression   string        `mapstructure:"cron_expression"` // overrides PollInterval when set, per §4.1b
	WorkerCount      int           `mapstructure:"worker_count"`    // W, the parallelism bound
	TaskDeadline     time.Duration `mapstructure:"task_deadline"`   // per-input hard deadline
}

// CaptureConfig holds UDP Capture and analyzer-adjacent settings (§4.2-§4.5).
type CaptureConfig struct {
	UDPTimeout   time.Duration `mapstructure:"udp_timeout"`
	MinTSPackets int           `mapstructure:"min_ts_packets"`
	BufferCap    ByteSize      `mapstructure:"buffer_cap"`
}

// HLSConfig holds HLS Validator settings (§4.6).
type HLSConfig struct {
	PackagerBaseURL      string        `mapstructure:"packager_base_url"`
	FetchTimeout         time.Duration `mapstructure:"fetch_timeout"`
	TargetSegmentSeconds float64       `mapstructure:"target_segment_seconds"`
	TolerancePercent     float64       `mapstructure:"tolerance_percent"`
	MinPlaylistSegments  int           `mapstructure:"min_playlist_segments"`
	MinSegmentSizeBytes  int64         `mapstructure:"min_segment_size_bytes"`
	MaxDownloadSeconds   float64       `mapstructure:"max_download_seconds"`
}

// SnapshotConfig holds Snapshot Coordinator settings (§4.7).
type SnapshotConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Interval      time.Duration `mapstructure:"interval"`
	Directory     string        `mapstructure:"directory"`
	BinaryPath    string        `mapstructure:"binary_path"`     // explicit override; empty = auto-detect
	BinaryEnvVar  string        `mapstructure:"binary_env_var"`  // env var consulted before PATH lookup
	FrameDuration time.Duration `mapstructure:"frame_duration"`  // bounded duration requested from the grabber
}

// MetricsConfig holds Metric Emitter / time-series sink settings (§4.8/§6).
type MetricsConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Token     string `mapstructure:"token"`
	Org       string `mapstructure:"org"`
	Bucket    string `mapstructure:"bucket"`
	RetryMax  int    `mapstructure:"retry_max"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with TVQOS_ and use underscores for nesting.
// Example: TVQOS_SCHEDULER_POLL_INTERVAL=30s.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/tvqos")
		v.AddConfigPath("$HOME/.tvqos")
	}

	v.SetEnvPrefix("TVQOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "tvqos.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.temp_dir", "temp")
	v.SetDefault("storage.snapshot_dir", "snapshots")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("scheduler.poll_interval", defaultPollInterval)
	v.SetDefault("scheduler.cron_expression", "")
	v.SetDefault("scheduler.worker_count", defaultWorkerCount)
	v.SetDefault("scheduler.task_deadline", defaultTaskDeadline)

	v.SetDefault("capture.udp_timeout", defaultUDPTimeout)
	v.SetDefault("capture.min_ts_packets", defaultMinTSPackets)
	v.SetDefault("capture.buffer_cap", "2MiB")

	v.SetDefault("hls.packager_base_url", "")
	v.SetDefault("hls.fetch_timeout", defaultHTTPFetchTimeout)
	v.SetDefault("hls.target_segment_seconds", defaultSegmentTargetSeconds)
	v.SetDefault("hls.tolerance_percent", defaultSegmentTolerancePct)
	v.SetDefault("hls.min_playlist_segments", defaultMinPlaylistSegments)
	v.SetDefault("hls.min_segment_size_bytes", defaultMinSegmentSizeBytes)
	v.SetDefault("hls.max_download_seconds", defaultMaxDownloadSeconds)

	v.SetDefault("snapshot.enabled", true)
	v.SetDefault("snapshot.interval", defaultSnapshotInterval)
	v.SetDefault("snapshot.directory", "")
	v.SetDefault("snapshot.binary_path", "")
	v.SetDefault("snapshot.binary_env_var", "TVQOS_SNAPSHOT_BINARY")
	v.SetDefault("snapshot.frame_duration", defaultSnapshotDuration)

	v.SetDefault("metrics.endpoint", "")
	v.SetDefault("metrics.token", "")
	v.SetDefault("metrics.org", "")
	v.SetDefault("metrics.bucket", "tvqos")
	v.SetDefault("metrics.retry_max", 3)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Scheduler.WorkerCount < 1 {
		return fmt.Errorf("scheduler.worker_count must be at least 1")
	}
	if c.Scheduler.PollInterval <= 0 && c.Scheduler.CronExpression == "" {
		return fmt.Errorf("scheduler.poll_interval must be positive when cron_expression is unset")
	}

	if c.Capture.MinTSPackets < 1 {
		return fmt.Errorf("capture.min_ts_packets must be at least 1")
	}

	if c.HLS.MinPlaylistSegments < 1 {
		return fmt.Errorf("hls.min_playlist_segments must be at least 1")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SnapshotPath returns the effective snapshot directory, defaulting to
// {StorageConfig.BaseDir}/{StorageConfig.SnapDir} when unset.
func (c *SnapshotConfig) SnapshotPath(storage StorageConfig) string {
	if c.Directory != "" {
		return c.Directory
	}
	return fmt.Sprintf("%s/%s", storage.BaseDir, storage.SnapDir)
}

// TempPath returns the full path to the temp directory.
func (c *StorageConfig) TempPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.TempDir)
}
