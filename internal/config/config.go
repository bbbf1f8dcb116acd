package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Service names, used to pick defaults.
const (
	Vision  = "vision"
	Tabular = "tabular"
)

// DefaultPath is the file read for service when no config file is given and
// it exists, e.g. "vision.yaml".
func DefaultPath(service string) string {
	return service + ".yaml"
}

// ServerConfig HTTP listener settings
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MaxUploadSize   string        `yaml:"max_upload_size"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TempDir         string        `yaml:"temp_dir"`
}

// LogConfig logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ModelConfig model artifact settings
type ModelConfig struct {
	Path         string `yaml:"path"`
	MetadataPath string `yaml:"metadata_path"`
	Device       string `yaml:"device"`
	LibraryPath  string `yaml:"onnxruntime_lib"`
}

// VisionConfig DICOM preprocessing settings
type VisionConfig struct {
	ImageSize        int     `yaml:"image_size"`
	WindowMin        float64 `yaml:"window_min"`
	WindowMax        float64 `yaml:"window_max"`
	DefaultThreshold float64 `yaml:"default_threshold"`
}

// SentryConfig error reporting settings; an empty DSN disables reporting.
type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// Config is the full configuration of one service.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Model  ModelConfig  `yaml:"model"`
	Vision VisionConfig `yaml:"vision"`
	Sentry SentryConfig `yaml:"sentry"`
}

// Default returns the built-in configuration for service.
func Default(service string) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            "0.0.0.0:8000",
			MaxUploadSize:   "64MB",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Model: ModelConfig{
			Path:   "model.onnx",
			Device: "auto",
		},
		Vision: VisionConfig{
			ImageSize:        224,
			WindowMin:        -1000,
			WindowMax:        2000,
			DefaultThreshold: 0.5,
		},
	}
	if service == Vision {
		cfg.Model.Path = "deit_best_model.onnx"
	}
	return cfg
}

// Load builds the configuration for service: defaults, then the YAML file at
// path (or DefaultPath(service) when present), then environment variables, including
// those from a .env file.
func Load(service, path string) (*Config, error) {
	cfg := Default(service)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath(service)
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	for name, dst := range map[string]*string{
		"LISTEN_ADDR":     &c.Server.Addr,
		"MODEL_PATH":      &c.Model.Path,
		"DEVICE":          &c.Model.Device,
		"ONNXRUNTIME_LIB": &c.Model.LibraryPath,
		"LOG_LEVEL":       &c.Log.Level,
		"SENTRY_DSN":      &c.Sentry.DSN,
	} {
		if v, ok := os.LookupEnv(name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.Model.Path == "" {
		return errors.New("model.path must not be empty")
	}
	if _, err := c.MaxUploadBytes(); err != nil {
		return err
	}
	if c.Vision.ImageSize <= 0 {
		return fmt.Errorf("vision.image_size must be positive, got %d", c.Vision.ImageSize)
	}
	if c.Vision.WindowMin >= c.Vision.WindowMax {
		return fmt.Errorf("vision.window_min (%v) must be below window_max (%v)", c.Vision.WindowMin, c.Vision.WindowMax)
	}
	return nil
}

// MaxUploadBytes parses Server.MaxUploadSize, e.g. "64MB".
func (c *Config) MaxUploadBytes() (int64, error) {
	n, err := units.RAMInBytes(c.Server.MaxUploadSize)
	if err != nil {
		return 0, fmt.Errorf("server.max_upload_size: %w", err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("server.max_upload_size must be positive, got %q", c.Server.MaxUploadSize)
	}
	return n, nil
}
