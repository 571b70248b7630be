package goSession

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/goSession/client"
	"github.com/MrEthical07/goSession/storage"
)

// Builder assembles a [Manager]. Configure it once at startup and call Build.
type Builder struct {
	config Config

	store      storage.Store
	auth       Authenticator
	httpClient *http.Client
	logger     *slog.Logger
	clock      func() time.Time
	auditSink  AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the persistence mirror. Build defaults to an in-memory store, which
// does not survive the process.
func (b *Builder) WithStore(st storage.Store) *Builder {
	b.store = st
	return b
}

// WithAuthenticator overrides the backend. Without it Build constructs a
// [client.Client] from Config.Backend.
func (b *Builder) WithAuthenticator(a Authenticator) *Builder {
	b.auth = a
	return b
}

// WithHTTPClient sets the HTTP client used by the default backend client.
// It is ignored when WithAuthenticator is used.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithLogger sets the structured logger. Build defaults to one that discards.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides time.Now for issue times and expiry decisions.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithAuditSink sets the sink that receives audit events. The sink only receives
// events when Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process metric counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles login and refresh latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Manager. Call
// [Manager.Initialize] next to rehydrate a persisted session.
//
// Build may return an error when configuration validation or backend client construction fails.
// A Builder can be built once.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	auth := b.auth
	if auth == nil {
		if cfg.Backend.BaseURL == "" {
			return nil, errors.New("Backend BaseURL or an Authenticator is required")
		}
		opts := []client.Option{
			client.WithPaths(cfg.Backend.LoginPath, cfg.Backend.RefreshPath),
			client.WithTimeout(cfg.Backend.Timeout),
		}
		if b.httpClient != nil {
			opts = append(opts, client.WithHTTPClient(b.httpClient))
		}
		c, err := client.New(cfg.Backend.BaseURL, opts...)
		if err != nil {
			return nil, err
		}
		auth = c
	}

	store := b.store
	if store == nil {
		store = storage.NewMemory(nil)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	m := &Manager{
		config:    cfg,
		store:     store,
		auth:      auth,
		logger:    logger,
		now:       clock,
		metrics:   NewMetrics(cfg.Metrics),
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		listeners: make(map[uint64]func(Session)),
	}

	b.built = true

	return m, nil
}
