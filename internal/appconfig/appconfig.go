package appconfig

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Storage drivers understood by binaries.
const (
	DriverMemory    = "memory"
	DriverFile      = "file"
	DriverRedis     = "redis"
	DriverMiniredis = "miniredis"
)

// Config is the root configuration of a goSession binary.
type Config struct {
	Env     string        `yaml:"env" env:"GOSESSION_ENV" env-default:"local"`
	Log     LogConfig     `yaml:"log"`
	Backend BackendConfig `yaml:"backend"`
	Session SessionConfig `yaml:"session"`
	Guard   GuardConfig   `yaml:"guard"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
	Audit   AuditConfig   `yaml:"audit"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// BackendConfig locates the REST authentication endpoints.
type BackendConfig struct {
	BaseURL     string        `yaml:"base_url" env:"BACKEND_BASE_URL"`
	LoginPath   string        `yaml:"login_path" env:"BACKEND_LOGIN_PATH" env-default:"/api/users/login"`
	RefreshPath string        `yaml:"refresh_path" env:"BACKEND_REFRESH_PATH" env-default:"/api/users/refresh-token"`
	Timeout     time.Duration `yaml:"timeout" env:"BACKEND_TIMEOUT" env-default:"15s"`
}

// SessionConfig controls expiry.
type SessionConfig struct {
	TTL              time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"45m"`
	CheckInterval    time.Duration `yaml:"check_interval" env:"SESSION_CHECK_INTERVAL" env-default:"60s"`
	HonorTokenExpiry bool          `yaml:"honor_token_expiry" env:"SESSION_HONOR_TOKEN_EXPIRY" env-default:"false"`
}

// GuardConfig holds redirect targets.
type GuardConfig struct {
	LoginPath        string `yaml:"login_path" env:"GUARD_LOGIN_PATH" env-default:"/login"`
	UnauthorizedPath string `yaml:"unauthorized_path" env:"GUARD_UNAUTHORIZED_PATH" env-default:"/unauthorized"`
}

// StorageConfig selects and configures the persistence mirror.
type StorageConfig struct {
	Driver      string        `yaml:"driver" env:"STORAGE_DRIVER" env-default:"file"`
	Path        string        `yaml:"path" env:"STORAGE_PATH"`
	RedisAddr   string        `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisDB     int           `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
	RedisPrefix string        `yaml:"redis_prefix" env:"REDIS_PREFIX" env-default:"gosession"`
	RedisTTL    time.Duration `yaml:"redis_ttl" env:"REDIS_TTL" env-default:"0s"`
}

// MetricsConfig toggles in-process metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"METRICS_ENABLED" env-default:"false"`
	Latency bool `yaml:"latency" env:"METRICS_LATENCY" env-default:"false"`
}

// AuditConfig toggles the audit log.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled" env:"AUDIT_ENABLED" env-default:"false"`
	BufferSize int  `yaml:"buffer_size" env:"AUDIT_BUFFER_SIZE" env-default:"256"`
}

// HTTPConfig is the listen address of example servers.
type HTTPConfig struct {
	Addr string `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
}

// Load reads .env (when present), then the YAML file at path or CONFIG_PATH, then the
// environment. With neither file it reads the environment alone.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func loadDotEnv(name string) error {
	if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(name); err != nil {
		return fmt.Errorf("failed to load %s: %w", name, err)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverRedis, DriverMiniredis:
	case DriverFile:
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for the file driver")
		}
	default:
		return fmt.Errorf("storage.driver %q is not one of memory, file, redis, miniredis", c.Storage.Driver)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format %q must be text or json", c.Log.Format)
	}
	mc := c.ManagerConfig()
	return mc.Validate()
}

// ManagerConfig maps c onto a goSession.Config starting from its defaults.
func (c *Config) ManagerConfig() goSession.Config {
	mc := goSession.DefaultConfig()

	mc.Session.TTL = c.Session.TTL
	mc.Session.CheckInterval = c.Session.CheckInterval
	mc.Session.HonorTokenExpiry = c.Session.HonorTokenExpiry

	mc.Backend.BaseURL = c.Backend.BaseURL
	mc.Backend.LoginPath = c.Backend.LoginPath
	mc.Backend.RefreshPath = c.Backend.RefreshPath
	mc.Backend.Timeout = c.Backend.Timeout

	mc.Guard.LoginPath = c.Guard.LoginPath
	mc.Guard.UnauthorizedPath = c.Guard.UnauthorizedPath

	mc.Metrics.Enabled = c.Metrics.Enabled
	mc.Metrics.EnableLatencyHistograms = c.Metrics.Enabled && c.Metrics.Latency

	mc.Audit.Enabled = c.Audit.Enabled
	if c.Audit.BufferSize > 0 {
		mc.Audit.BufferSize = c.Audit.BufferSize
	}

	return mc
}

// Logger builds the slog logger described by c.Log, writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}
