package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one Manager counter for exporters.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one Manager latency histogram for exporters.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful login calls."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Login calls rejected by the backend or transport."},
	{ID: goSession.MetricOperationInFlight, Name: "gosession_operation_in_flight_total", Help: "Login or refresh calls refused because another was in flight."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful token refreshes."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Token refreshes that ended the session."},
	{ID: goSession.MetricRefreshNoToken, Name: "gosession_refresh_no_token_total", Help: "Refresh calls made with no refresh token persisted."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logouts that cleared a populated session."},
	{ID: goSession.MetricSessionExpired, Name: "gosession_session_expired_total", Help: "Sessions cleared after outliving the TTL."},
	{ID: goSession.MetricSessionRestored, Name: "gosession_session_restored_total", Help: "Sessions rehydrated from storage."},
	{ID: goSession.MetricStaleResultDiscarded, Name: "gosession_stale_result_discarded_total", Help: "In-flight backend results discarded after logout."},
	{ID: goSession.MetricStorageFailure, Name: "gosession_storage_failure_total", Help: "Persistence mirror errors."},
	{ID: goSession.MetricGuardAllow, Name: "gosession_guard_allow_total", Help: "Guard decisions that allowed content."},
	{ID: goSession.MetricGuardPending, Name: "gosession_guard_pending_total", Help: "Guard decisions deferred while loading."},
	{ID: goSession.MetricGuardRedirectLogin, Name: "gosession_guard_redirect_login_total", Help: "Guard redirects to the login view."},
	{ID: goSession.MetricGuardRedirectUnauthorized, Name: "gosession_guard_redirect_unauthorized_total", Help: "Guard redirects to the unauthorized view."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricLoginLatency, Name: "gosession_login_latency_seconds", Help: "Login round-trip latency."},
	{ID: goSession.MetricRefreshLatency, Name: "gosession_refresh_latency_seconds", Help: "Refresh round-trip latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth bucket is +Inf.
var HistogramUpperBounds = []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// HistogramBounds is an exported constant or variable used by the session exporters.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals. The last element is
// the total sample count.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
