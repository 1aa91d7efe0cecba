package app

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/phuslu/log"
)

// Config is the user-level configuration, stored as TOML under the OS config
// directory.
type Config struct {
	Backend struct {
		URL            string `toml:"url"`
		PollSeconds    int    `toml:"poll_seconds"`
		TimeoutSeconds int    `toml:"timeout_seconds"`
	} `toml:"backend"`

	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`

	OCR struct {
		Enabled bool `toml:"enabled"`
	} `toml:"ocr"`
}

// DefaultConfig returns the configuration used when no file exists yet.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Backend.URL = "http://127.0.0.1:8765"
	cfg.Backend.PollSeconds = 5
	cfg.Backend.TimeoutSeconds = 120
	cfg.Log.Level = "info"
	cfg.OCR.Enabled = false
	return cfg
}

// PollInterval returns the health poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	if c.Backend.PollSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Backend.PollSeconds) * time.Second
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	if c.Backend.TimeoutSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// ConfigPath returns the margo.toml location, creating the directory.
func ConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "margo")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "margo.toml"), nil
}

// LoadConfig reads the config file, falling back to defaults when it is
// missing. A malformed file is reported but does not prevent startup.
func LoadConfig() *Config {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		log.Warn().Err(err).Msg("config directory unavailable, using defaults")
		return cfg
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg
	}
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config unreadable, using defaults")
		return cfg
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config malformed, using defaults")
		return DefaultConfig()
	}
	return cfg
}

// Save writes the configuration back to disk.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LogLevel maps the configured level name onto phuslu levels.
func (c *Config) LogLevel() log.Level {
	switch c.Log.Level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
