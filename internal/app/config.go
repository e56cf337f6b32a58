package app

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendFile    = "file"
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"

	DefaultAPIURL = "http://127.0.0.1:8090"
)

// Environment overrides, applied over the config file.
const (
	EnvHome          = "CUSTODIA_HOME"
	EnvStorageSecret = "CUSTODIA_STORAGE_SECRET"
	EnvAPIURL        = "CUSTODIA_API_URL"
	EnvAPIToken      = "CUSTODIA_API_TOKEN"
	EnvLogLevel      = "CUSTODIA_LOG_LEVEL"
	EnvAPIRateLimit  = "CUSTODIA_API_RATE_LIMIT_RPS"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home    string        `yaml:"home"` // state directory, e.g. $HOME/.custodia
	Storage StorageConfig `yaml:"storage"`
	API     APIConfig     `yaml:"api"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`

	HTTP *http.Client `yaml:"-"` // optional; replaces the API client's transport
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // file, leveldb or memory
	Secret  string `yaml:"secret"`  // seals every record; required unless memory
}

type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Token          string        `yaml:"token"`
	TokenFile      string        `yaml:"token_file"` // re-read every TokenTTL
	TokenTTL       time.Duration `yaml:"token_ttl"`
	Timeout        time.Duration `yaml:"timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json or logfmt
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // written on exit when set
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{Backend: BackendFile},
		API: APIConfig{
			BaseURL:        DefaultAPIURL,
			TokenTTL:       5 * time.Minute,
			Timeout:        15 * time.Second,
			RateLimitRPS:   5,
			RateLimitBurst: 5,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultHome returns $HOME/.custodia, or "" if the home directory is unknown.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".custodia")
}

// ConfigPath returns the config file location inside home.
func ConfigPath(home string) string {
	if home == "" {
		return ""
	}
	return filepath.Join(home, "config.yaml")
}

// LoadConfig reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	return loadConfig(path, os.Getenv)
}

func loadConfig(path string, getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvHome)); v != "" {
		c.Home = v
	}
	if v := getenv(EnvStorageSecret); v != "" {
		c.Storage.Secret = v
	}
	if v := strings.TrimSpace(getenv(EnvAPIURL)); v != "" {
		c.API.BaseURL = v
	}
	if v := strings.TrimSpace(getenv(EnvAPIToken)); v != "" {
		c.API.Token = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
	if v := strings.TrimSpace(getenv(EnvAPIRateLimit)); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAPIRateLimit, err)
		}
		c.API.RateLimitRPS = rps
	}
	return nil
}

// Validate checks the settings NewWire depends on.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendLevelDB:
		if c.Home == "" {
			return errors.New("home directory is not set")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.API.BaseURL == "" {
		return errors.New("api base_url is not set")
	}
	if c.API.Timeout < 0 || c.API.TokenTTL < 0 {
		return errors.New("api durations must not be negative")
	}
	return nil
}
