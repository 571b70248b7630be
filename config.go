package goSession

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config defines the tunables of a [Manager].
//
// Config values are copied at [Builder.Build] and treated as immutable afterwards.
type Config struct {
	Session SessionConfig
	Backend BackendConfig
	Guard   GuardConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls expiry of the held session.
type SessionConfig struct {
	// TTL is the maximum age of an access token before it is treated as expired.
	TTL time.Duration
	// CheckInterval is the ExpiryWatch polling period.
	CheckInterval time.Duration
	// HonorTokenExpiry additionally expires the session at the access token's JWT exp claim.
	HonorTokenExpiry bool
}

/*
====================================
BACKEND CONFIG
====================================
*/

// BackendConfig points the Manager at the REST authentication endpoints.
type BackendConfig struct {
	BaseURL      string
	LoginPath    string
	RefreshPath  string
	Timeout      time.Duration
	LoginFailure string // fallback message when the backend supplies none
}

/*
====================================
GUARD CONFIG
====================================
*/

// GuardConfig holds the redirect targets used by guard adapters.
type GuardConfig struct {
	LoginPath        string
	UnauthorizedPath string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration observed in the production dashboard:
// a 45 minute TTL polled every 60 seconds.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TTL:              45 * time.Minute,
			CheckInterval:    60 * time.Second,
			HonorTokenExpiry: false,
		},
		Backend: BackendConfig{
			BaseURL:      "",
			LoginPath:    "/api/users/login",
			RefreshPath:  "/api/users/refresh-token",
			Timeout:      15 * time.Second,
			LoginFailure: "Login failed",
		},
		Guard: GuardConfig{
			LoginPath:        "/login",
			UnauthorizedPath: "/unauthorized",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field in c.
//
// Backend.BaseURL may be empty only when the Builder is given an explicit Authenticator.
func (c *Config) Validate() error {
	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.CheckInterval <= 0 {
		return errors.New("Session CheckInterval must be > 0")
	}
	if c.Session.CheckInterval > c.Session.TTL {
		return errors.New("Session CheckInterval must not exceed TTL")
	}

	// Backend
	if c.Backend.BaseURL != "" {
		u, err := url.Parse(c.Backend.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("Backend BaseURL must be an absolute URL")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("Backend BaseURL scheme must be http or https")
		}
	}
	if !strings.HasPrefix(c.Backend.LoginPath, "/") {
		return errors.New("Backend LoginPath must start with /")
	}
	if !strings.HasPrefix(c.Backend.RefreshPath, "/") {
		return errors.New("Backend RefreshPath must start with /")
	}
	if c.Backend.Timeout < 0 {
		return errors.New("Backend Timeout must be >= 0")
	}

	// Guard
	if !strings.HasPrefix(c.Guard.LoginPath, "/") {
		return errors.New("Guard LoginPath must start with /")
	}
	if !strings.HasPrefix(c.Guard.UnauthorizedPath, "/") {
		return errors.New("Guard UnauthorizedPath must start with /")
	}
	if c.Guard.LoginPath == c.Guard.UnauthorizedPath {
		return errors.New("Guard LoginPath and UnauthorizedPath must differ")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
