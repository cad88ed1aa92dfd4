// Package config loads service configuration from a YAML file with MUDRA_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Detector   DetectorConfig   `yaml:"detector"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	History    HistoryConfig    `yaml:"history"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	APIToken     string        `yaml:"api_token"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// StaticDir, if set, is served at / for the browser client.
	StaticDir string `yaml:"static_dir"`
}

type StorageConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type ClassifierConfig struct {
	// ModelPath points at an ONNX export. Empty runs in degraded mode.
	ModelPath string        `yaml:"model_path"`
	InputSize int           `yaml:"input_size"`
	Labels    []string      `yaml:"labels"`
	Timeout   time.Duration `yaml:"timeout"`
	Seed      uint64        `yaml:"seed"`
}

type DetectorConfig struct {
	// Enabled turns on image input through the MediaPipe helper.
	Enabled       bool    `yaml:"enabled"`
	Script        string  `yaml:"script"`
	Python        string  `yaml:"python"`
	MaxHands      int     `yaml:"max_hands"`
	MinConfidence float64 `yaml:"min_confidence"`
}

type RecognizerConfig struct {
	BulkConcurrency int `yaml:"bulk_concurrency"`
}

type HistoryConfig struct {
	MaxPerPage int `yaml:"max_per_page"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":5000",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
			Path:   filepath.Join(defaultDataDir(), "mudra.db"),
		},
		Classifier: ClassifierConfig{
			InputSize: 84,
			Timeout:   2 * time.Second,
		},
		Detector: DetectorConfig{
			MaxHands:      2,
			MinConfidence: 0.5,
		},
		Recognizer: RecognizerConfig{
			BulkConcurrency: 4,
		},
		History: HistoryConfig{
			MaxPerPage: 100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "mudra")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".mudra")
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides and validates the result. A missing file is an error only when
// path was given explicitly.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Storage.Driver))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Recognizer.BulkConcurrency < 1 {
		errs = append(errs, errors.New("recognizer.bulk_concurrency must be >= 1"))
	}
	if c.History.MaxPerPage < 1 {
		errs = append(errs, errors.New("history.max_per_page must be >= 1"))
	}
	if c.Classifier.Timeout <= 0 {
		errs = append(errs, errors.New("classifier.timeout must be positive"))
	}
	return errors.Join(errs...)
}
