package guard

import (
	"context"

	goSession "github.com/MrEthical07/goSession"
)

// Source supplies the session a Guard decides on. Current must apply the expiry check
// before returning. *goSession.Manager implements Source.
type Source interface {
	Current(ctx context.Context) goSession.Session
}

type configured interface {
	Config() goSession.Config
}

type metered interface {
	Metrics() *goSession.Metrics
}

// Outcome is the result of a guard evaluation.
type Outcome uint8

const (
	// OutcomePending means a session operation is in flight; render a loading placeholder.
	OutcomePending Outcome = iota
	// OutcomeRedirectLogin means no access token is held.
	OutcomeRedirectLogin
	// OutcomeRedirectUnauthorized means the held role does not match the required one.
	OutcomeRedirectUnauthorized
	// OutcomeAllow means the guarded content may render.
	OutcomeAllow
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeRedirectLogin:
		return "redirect_login"
	case OutcomeRedirectUnauthorized:
		return "redirect_unauthorized"
	case OutcomeAllow:
		return "allow"
	default:
		return "unknown"
	}
}

// Decision is the outcome plus the snapshot it was derived from. Redirect holds the
// target path for the two redirect outcomes.
type Decision struct {
	Outcome  Outcome
	Redirect string
	Session  goSession.Session
}

// Guard evaluates route access against a Source.
type Guard struct {
	source           Source
	loginPath        string
	unauthorizedPath string
	metrics          *goSession.Metrics
}

// Option configures a Guard.
type Option func(*Guard)

// WithLoginPath sets the redirect target for unauthenticated requests.
func WithLoginPath(path string) Option {
	return func(g *Guard) { g.loginPath = path }
}

// WithUnauthorizedPath sets the redirect target for role mismatches.
func WithUnauthorizedPath(path string) Option {
	return func(g *Guard) { g.unauthorizedPath = path }
}

// WithMetrics records decisions in m. By default a Source exposing Metrics() is used.
func WithMetrics(m *goSession.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// New returns a Guard over source. Redirect paths default to the source's Config.Guard
// when it exposes one, otherwise to /login and /unauthorized.
func New(source Source, opts ...Option) *Guard {
	paths := goSession.DefaultConfig().Guard
	if c, ok := source.(configured); ok {
		paths = c.Config().Guard
	}

	g := &Guard{
		source:           source,
		loginPath:        paths.LoginPath,
		unauthorizedPath: paths.UnauthorizedPath,
	}
	if m, ok := source.(metered); ok {
		g.metrics = m.Metrics()
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize decides whether content requiring requiredRole may render. An empty
// requiredRole only requires an access token.
func (g *Guard) Authorize(ctx context.Context, requiredRole string) Decision {
	if g == nil || g.source == nil {
		return Decision{Outcome: OutcomeRedirectLogin, Redirect: goSession.DefaultConfig().Guard.LoginPath}
	}

	s := g.source.Current(ctx)

	var d Decision
	switch {
	case s.IsLoading:
		d = Decision{Outcome: OutcomePending}
	case !s.Authenticated():
		d = Decision{Outcome: OutcomeRedirectLogin, Redirect: g.loginPath}
	case requiredRole != "" && s.Role != requiredRole:
		d = Decision{Outcome: OutcomeRedirectUnauthorized, Redirect: g.unauthorizedPath}
	default:
		d = Decision{Outcome: OutcomeAllow}
	}
	d.Session = s

	g.record(d.Outcome)
	return d
}

func (g *Guard) record(o Outcome) {
	switch o {
	case OutcomePending:
		g.metrics.Inc(goSession.MetricGuardPending)
	case OutcomeRedirectLogin:
		g.metrics.Inc(goSession.MetricGuardRedirectLogin)
	case OutcomeRedirectUnauthorized:
		g.metrics.Inc(goSession.MetricGuardRedirectUnauthorized)
	case OutcomeAllow:
		g.metrics.Inc(goSession.MetricGuardAllow)
	}
}
