package config

import (
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DriverFile   = "file"
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Redis   RedisConfig   `yaml:"redis"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"LEMONREST_ADDR"`
	BasePath        string        `yaml:"base_path" env:"LEMONREST_BASE_PATH"`
	Resource        string        `yaml:"resource" env:"LEMONREST_RESOURCE"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"LEMONREST_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"LEMONREST_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"LEMONREST_SHUTDOWN_TIMEOUT"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"LEMONREST_MAX_BODY_BYTES"`
	// RateLimit is requests per second per client; 0 turns limiting off.
	RateLimit float64 `yaml:"rate_limit" env:"LEMONREST_RATE_LIMIT"`
	RateBurst int     `yaml:"rate_burst" env:"LEMONREST_RATE_BURST"`
}

type StorageConfig struct {
	Driver         string `yaml:"driver" env:"LEMONREST_DRIVER"`
	Path           string `yaml:"path" env:"LEMONREST_DATA"`
	Reload         string `yaml:"reload" env:"LEMONREST_RELOAD"`
	IDs            string `yaml:"ids" env:"LEMONREST_IDS"`
	Indent         bool   `yaml:"indent" env:"LEMONREST_INDENT"`
	Sync           bool   `yaml:"sync" env:"LEMONREST_SYNC"`
	TruncateOnOpen bool   `yaml:"truncate_on_open" env:"LEMONREST_TRUNCATE_ON_OPEN"`
	CacheMaxBytes  uint64 `yaml:"cache_max_bytes" env:"LEMONREST_CACHE_MAX_BYTES"`
}

type RedisConfig struct {
	Addr        string        `yaml:"addr" env:"LEMONREST_REDIS_ADDR"`
	Password    string        `yaml:"password" env:"LEMONREST_REDIS_PASSWORD"`
	DB          int           `yaml:"db" env:"LEMONREST_REDIS_DB"`
	Key         string        `yaml:"key" env:"LEMONREST_REDIS_KEY"`
	DialTimeout time.Duration `yaml:"dial_timeout" env:"LEMONREST_REDIS_DIAL_TIMEOUT"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEMONREST_LOG_LEVEL"`
	// Format is json or console.
	Format string `yaml:"format" env:"LEMONREST_LOG_FORMAT"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"LEMONREST_METRICS"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Resource:        "items",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Storage: StorageConfig{
			Driver: DriverFile,
			Path:   "data.json",
			Reload: "always",
			IDs:    "sequence",
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			Key:         "lemonrest:items",
			DialTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load builds the config. Precedence, lowest first: defaults, the yaml file
// at path, variables from the env file, the process environment. The env
// file only seeds variables the process does not already have. Empty path
// or envFile skips that source. A missing env file is not an error, a
// missing yaml file is. A variable that does not parse is an error.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "could not load env file %s", envFile)
		}
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "could not read config file %s", path)
		}

		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "could not parse %s: %s", path, err.Error())
		}
	}

	// cfg is always a valid target, so ErrInvalidTarget only means no variable was set
	if err := envdecode.StrictDecode(cfg); err != nil && !errors.Is(err, envdecode.ErrInvalidTarget) {
		return nil, errors.Wrapf(ErrInvalidConfig, "could not decode environment: %s", err.Error())
	}

	return cfg, nil
}

// Merge copies every non zero field of overrides over c. A flag can
// therefore switch a boolean on but never off.
func (c *Config) Merge(overrides *Config) error {
	if overrides == nil {
		return nil
	}

	opt := copier.Option{IgnoreEmpty: true}
	sections := []struct {
		name     string
		to, from interface{}
	}{
		{"server", &c.Server, &overrides.Server},
		{"storage", &c.Storage, &overrides.Storage},
		{"redis", &c.Redis, &overrides.Redis},
		{"log", &c.Log, &overrides.Log},
		{"metrics", &c.Metrics, &overrides.Metrics},
	}

	for _, s := range sections {
		if err := copier.CopyWithOption(s.to, s.from, opt); err != nil {
			return errors.Wrapf(err, "could not merge %s overrides", s.name)
		}
	}

	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.Wrap(ErrInvalidConfig, "server address is required")
	}

	if c.Server.MaxBodyBytes <= 0 {
		return errors.Wrap(ErrInvalidConfig, "max body bytes must be positive")
	}

	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return errors.Wrap(ErrInvalidConfig, "rate limit and burst cannot be negative")
	}

	switch c.Storage.Driver {
	case DriverFile:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return errors.Wrap(ErrInvalidConfig, "file driver needs a data path")
		}
	case DriverMemory:
	case DriverRedis:
		if c.Redis.Addr == "" || c.Redis.Key == "" {
			return errors.Wrap(ErrInvalidConfig, "redis driver needs an address and a key")
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Storage.Reload {
	case "always", "open":
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown reload strategy %q", c.Storage.Reload)
	}

	switch c.Storage.IDs {
	case "sequence", "timestamp":
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown id strategy %q", c.Storage.IDs)
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "log level %q", c.Log.Level)
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown log format %q", c.Log.Format)
	}

	return nil
}
