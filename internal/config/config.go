// Package config loads the ecoscan server configuration from a YAML or JSON
// file, a .env file and ECOSCAN_* environment variables, in increasing order of
// precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when no path is given and the file exists.
const DefaultConfigFile = "ecoscan.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ECOSCAN_"

// Duration is a time.Duration written as a Go duration string ("2s", "1m").
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ScoringConfig points at the recognition and scoring service.
type ScoringConfig struct {
	BaseURL       string   `yaml:"base_url" json:"base_url"`
	Timeout       Duration `yaml:"timeout" json:"timeout"`
	RatePerSecond float64  `yaml:"rate_per_second" json:"rate_per_second"`
	Burst         int      `yaml:"burst" json:"burst"`
}

// HistoryConfig selects the scan history backend. An empty Path keeps history
// in memory.
type HistoryConfig struct {
	Path              string `yaml:"path" json:"path"`
	Capacity          int    `yaml:"capacity" json:"capacity"`
	ProgressionPoints int    `yaml:"progression_points" json:"progression_points"`
}

// RateLimitConfig bounds requests per client IP on the public API.
// RequestsPerMinute <= 0 disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	Burst             int `yaml:"burst" json:"burst"`
}

// Config is the full server configuration.
type Config struct {
	Port        int             `yaml:"port" json:"port"`
	Verbose     bool            `yaml:"verbose" json:"verbose"`
	LogFile     string          `yaml:"log_file" json:"log_file"`
	CatalogFile string          `yaml:"catalog_file" json:"catalog_file"`
	CatalogPoll Duration        `yaml:"catalog_poll" json:"catalog_poll"`
	Scoring     ScoringConfig   `yaml:"scoring" json:"scoring"`
	History     HistoryConfig   `yaml:"history" json:"history"`
	RateLimit   RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:        8080,
		CatalogPoll: Duration(2 * time.Second),
		Scoring: ScoringConfig{
			BaseURL: "http://localhost:3000/api",
			Timeout: Duration(15 * time.Second),
		},
		History: HistoryConfig{
			Capacity:          500,
			ProgressionPoints: 5,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 600,
			Burst:             60,
		},
	}
}

// Load loads .env from the working directory (if present), then the config
// file at path, then environment overrides. An empty path reads
// DefaultConfigFile when it exists.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFrom(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv sets variables from a .env file. A missing file is not an error;
// a malformed one is.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// LoadFrom reads path over the defaults. Files ending in .json are decoded as
// JSON, everything else as YAML. A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from ECOSCAN_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(EnvPrefix + key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *Duration) {
		if v, ok := lookup(EnvPrefix + key); ok {
			if err := dst.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			}
		}
	}

	num("PORT", &c.Port)
	boolean("VERBOSE", &c.Verbose)
	str("LOG_FILE", &c.LogFile)
	str("CATALOG_FILE", &c.CatalogFile)
	duration("CATALOG_POLL", &c.CatalogPoll)
	str("SCORING_BASE_URL", &c.Scoring.BaseURL)
	duration("SCORING_TIMEOUT", &c.Scoring.Timeout)
	float("SCORING_RATE_PER_SECOND", &c.Scoring.RatePerSecond)
	num("SCORING_BURST", &c.Scoring.Burst)
	str("HISTORY_PATH", &c.History.Path)
	num("HISTORY_CAPACITY", &c.History.Capacity)
	num("HISTORY_PROGRESSION_POINTS", &c.History.ProgressionPoints)
	num("RATE_LIMIT_RPM", &c.RateLimit.RequestsPerMinute)
	num("RATE_LIMIT_BURST", &c.RateLimit.Burst)

	if len(errs) > 0 {
		return fmt.Errorf("environment overrides: %w", errors.Join(errs...))
	}
	return nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var problems []string
	if c.Port < 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.CatalogPoll < 0 {
		problems = append(problems, "catalog_poll must be >= 0")
	}
	if c.Scoring.Timeout < 0 {
		problems = append(problems, "scoring.timeout must be >= 0")
	}
	if c.Scoring.RatePerSecond < 0 {
		problems = append(problems, "scoring.rate_per_second must be >= 0")
	}
	if c.History.ProgressionPoints < 0 {
		problems = append(problems, "history.progression_points must be >= 0")
	}
	if c.RateLimit.Burst < 0 {
		problems = append(problems, "rate_limit.burst must be >= 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
