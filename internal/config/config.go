// Package config loads explog settings from explog.yaml, a .env file and
// EXPLOG_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/explog/internal/ledger"
)

// DefaultPath is read when no config file is named. It may be absent.
const DefaultPath = "explog.yaml"

// DotEnvPath is loaded into the environment before overrides are applied.
// Variables already set in the environment win.
const DotEnvPath = ".env"

// Config holds the settings of the explog CLI.
type Config struct {
	// Database is the SQLite file path.
	Database string `yaml:"database"`

	// Experimenter is recorded on runs started by scripts.
	Experimenter string `yaml:"experimenter"`

	// Autocommit is a commit policy: none, every-write, a duration or seconds.
	Autocommit string `yaml:"autocommit"`

	// Synchronous is the SQLite synchronous pragma.
	Synchronous string `yaml:"synchronous"`

	// CacheSize is the SQLite cache_size pragma; 0 keeps the default.
	CacheSize int `yaml:"cache_size"`

	LogLevel string `yaml:"log_level"`

	// LogFile, when set, receives a copy of the log output.
	LogFile string `yaml:"log_file"`
}

func defaultConfig() Config {
	return Config{
		Database:    "experiment.db",
		Autocommit:  "none",
		Synchronous: "NORMAL",
		LogLevel:    "info",
	}
}

// Load reads the config file at path, or DefaultPath when path is empty,
// then applies the environment. A missing DefaultPath is not an error; a
// missing explicit path is.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if err := godotenv.Load(DotEnvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load %s: %w", DotEnvPath, err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	normalize(&cfg)
	return cfg, cfg.Validate()
}

func applyEnvOverrides(cfg *Config) error {
	if raw := os.Getenv("EXPLOG_DB"); raw != "" {
		cfg.Database = raw
	}
	if raw := os.Getenv("EXPLOG_EXPERIMENTER"); raw != "" {
		cfg.Experimenter = raw
	}
	if raw := os.Getenv("EXPLOG_AUTOCOMMIT"); raw != "" {
		cfg.Autocommit = raw
	}
	if raw := os.Getenv("EXPLOG_LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("EXPLOG_CACHE_SIZE"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("EXPLOG_CACHE_SIZE: %w", err)
		}
		cfg.CacheSize = v
	}
	return nil
}

func normalize(cfg *Config) {
	if cfg.Database == "" {
		cfg.Database = "experiment.db"
	}
	if cfg.Autocommit == "" {
		cfg.Autocommit = "none"
	}
	cfg.Synchronous = strings.ToUpper(strings.TrimSpace(cfg.Synchronous))
	if cfg.Synchronous == "" {
		cfg.Synchronous = "NORMAL"
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	if _, err := ledger.ParseCommitPolicy(c.Autocommit); err != nil {
		return fmt.Errorf("autocommit: %w", err)
	}
	switch c.Synchronous {
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("synchronous: want OFF, NORMAL, FULL or EXTRA, got %q", c.Synchronous)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// CommitPolicy returns the parsed autocommit setting.
func (c Config) CommitPolicy() ledger.CommitPolicy {
	p, err := ledger.ParseCommitPolicy(c.Autocommit)
	if err != nil {
		return ledger.ManualCommit()
	}
	return p
}

// Level returns the slog level of LogLevel, info if it does not parse.
func (c Config) Level() slog.Level {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
