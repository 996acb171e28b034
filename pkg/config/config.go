// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < env < flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ethoflow/ethoflow/internal/model"
)

// Config holds all ethoflow configuration.
type Config struct {
	Version int `yaml:"version"`

	Sampling   SamplingConfig   `yaml:"sampling"`
	Export     ExportConfig     `yaml:"export"`
	Storage    StorageConfig    `yaml:"storage"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SamplingConfig holds defaults for sampling runs.
type SamplingConfig struct {
	Interval                      string `yaml:"interval"` // seconds, 3 decimals
	IncludeModifiers              bool   `yaml:"include_modifiers"`
	ExcludeBehaviorsWithoutEvents bool   `yaml:"exclude_behaviors_without_events"`
	Workers                       int    `yaml:"workers"` // 0 = GOMAXPROCS

	// AllowEventBounds uses the last event time when media length is unknown.
	AllowEventBounds bool `yaml:"allow_event_bounds"`
}

// ExportConfig controls result export.
type ExportConfig struct {
	Format      string `yaml:"format"`    // tsv | csv | html | xlsx | ods | parquet
	Dir         string `yaml:"dir"`       // local directory or s3://bucket/prefix
	Overwrite   string `yaml:"overwrite"` // overwrite | skip | fail
	Compression string `yaml:"compression"`
}

// StorageConfig configures remote output destinations.
type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config for S3 and S3-compatible object stores.
type S3Config struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// CheckpointConfig controls resumable exports.
type CheckpointConfig struct {
	Backend       string        `yaml:"backend"` // none | file | redis
	Dir           string        `yaml:"dir"`
	RedisAddress  string        `yaml:"redis_address"`
	RedisPassword string        `yaml:"redis_password"`
	RedisPrefix   string        `yaml:"redis_prefix"`
	TTL           time.Duration `yaml:"ttl"`
}

// TelemetryConfig for optional tracing.
type TelemetryConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Endpoint      string  `yaml:"endpoint"`
	Insecure      bool    `yaml:"insecure"`
	SamplingRatio float64 `yaml:"sampling_ratio"`
}

// LoggingConfig for the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	ethoflowDir := filepath.Join(homeDir, ".ethoflow")

	return &Config{
		Version: 1,
		Sampling: SamplingConfig{
			Interval: "1.0",
			Workers:  0,
		},
		Export: ExportConfig{
			Format:      "tsv",
			Dir:         ".",
			Overwrite:   OverwriteFail,
			Compression: "snappy",
		},
		Checkpoint: CheckpointConfig{
			Backend:     "none",
			Dir:         filepath.Join(ethoflowDir, "checkpoints"),
			RedisPrefix: "ethoflow:checkpoints:",
			TTL:         7 * 24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			Endpoint:      "localhost:4317",
			Insecure:      true,
			SamplingRatio: 1.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Overwrite policies for existing output files.
const (
	OverwriteAll  = "overwrite"
	OverwriteSkip = "skip"
	OverwriteFail = "fail"
)

// Options is the explicit set of recognized sampling option names, resolved
// from configuration and handed to the engine by the caller.
type Options struct {
	Interval                      model.Time
	IncludeModifiers              bool
	ExcludeBehaviorsWithoutEvents bool
	AllowEventBounds              bool
	Workers                       int
}

// SamplingOptions resolves the sampling section.
func (c *Config) SamplingOptions() (Options, error) {
	interval, err := model.ParseTime(c.Sampling.Interval)
	if err != nil {
		return Options{}, fmt.Errorf("sampling.interval: %w", err)
	}
	workers := c.Sampling.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return Options{
		Interval:                      interval,
		IncludeModifiers:              c.Sampling.IncludeModifiers,
		ExcludeBehaviorsWithoutEvents: c.Sampling.ExcludeBehaviorsWithoutEvents,
		AllowEventBounds:              c.Sampling.AllowEventBounds,
		Workers:                       workers,
	}, nil
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	if _, err := NormalizeLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := NormalizeLogFormat(c.Logging.Format); err != nil {
		return err
	}
	switch c.Export.Overwrite {
	case OverwriteAll, OverwriteSkip, OverwriteFail:
	default:
		return fmt.Errorf("export.overwrite must be one of overwrite, skip, fail (got %q)", c.Export.Overwrite)
	}
	switch c.Checkpoint.Backend {
	case "", "none", "file", "redis":
	default:
		return fmt.Errorf("checkpoint.backend must be one of none, file, redis (got %q)", c.Checkpoint.Backend)
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be within [0, 1]")
	}
	if _, err := c.SamplingOptions(); err != nil {
		return err
	}
	return nil
}

// NormalizeLogLevel validates and lowercases known logging levels.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unknown log level %q", level)
	}
}

// NormalizeLogFormat validates and lowercases known log formats.
func NormalizeLogFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text", "console":
		return "text", nil
	case "json":
		return "json", nil
	default:
		return "", fmt.Errorf("unknown log format %q", format)
	}
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	search []string // candidate files, lowest priority first
	paths  []string // files that were loaded
}

// NewManager creates a manager searching the standard locations.
func NewManager() *Manager {
	return &Manager{
		config: Default(),
		search: defaultConfigPaths(),
	}
}

// NewManagerWithPaths creates a manager searching only the given files.
func NewManagerWithPaths(paths ...string) *Manager {
	return &Manager{
		config: Default(),
		search: paths,
	}
}

// Load loads configuration from all sources in priority order.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()
	m.paths = nil

	for _, path := range m.search {
		if err := m.loadFile(path); err != nil {
			// Missing files are expected; malformed ones are not.
			if !os.IsNotExist(err) {
				return fmt.Errorf("load %s: %w", path, err)
			}
		} else {
			m.paths = append(m.paths, path)
		}
	}

	m.loadEnv()

	return m.config.Validate()
}

// LoadFile merges an explicit config file on top of the current values.
func (m *Manager) LoadFile(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadFile(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	m.paths = append(m.paths, path)
	return m.config.Validate()
}

func defaultConfigPaths() []string {
	var paths []string

	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/ethoflow/config.yaml")
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".ethoflow", "config.yaml"))
	}

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".ethoflow.yaml"))
	}

	return paths
}

// loadFile decodes a file over the current config. Keys absent from the
// file keep their current values.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	merged := *m.config
	if err := yaml.Unmarshal(data, &merged); err != nil {
		return err
	}
	m.config = &merged
	return nil
}

// loadEnv applies ETHOFLOW_* environment overrides.
func (m *Manager) loadEnv() {
	if v := os.Getenv("ETHOFLOW_INTERVAL"); v != "" {
		m.config.Sampling.Interval = v
	}
	if v := os.Getenv("ETHOFLOW_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			m.config.Sampling.Workers = n
		}
	}
	if v := os.Getenv("ETHOFLOW_FORMAT"); v != "" {
		m.config.Export.Format = v
	}
	if v := os.Getenv("ETHOFLOW_OUTPUT_DIR"); v != "" {
		m.config.Export.Dir = v
	}
	if v := os.Getenv("ETHOFLOW_LOG_LEVEL"); v != "" {
		m.config.Logging.Level = v
	}
	if v := os.Getenv("ETHOFLOW_REDIS_ADDR"); v != "" {
		m.config.Checkpoint.RedisAddress = v
	}
	if v := os.Getenv("ETHOFLOW_OTLP_ENDPOINT"); v != "" {
		m.config.Telemetry.Endpoint = v
		m.config.Telemetry.Enabled = true
	}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// Marshal renders the current configuration as YAML.
func (m *Manager) Marshal() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return yaml.Marshal(m.config)
}

// Save writes the current config to the user config file.
func (m *Manager) Save() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(home, ".ethoflow")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	data, err := m.Marshal()
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0644)
}
