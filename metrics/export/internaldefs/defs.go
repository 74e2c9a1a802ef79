package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
	internalmetrics "github.com/MrEthical07/goSession/internal/metrics"
)

// Namespace prefixes every exported metric name.
const Namespace = "gosession_"

// Def names one counter or histogram.
type Def struct {
	ID   goSession.MetricID
	Name string
	Help string
}

var CounterDefs = []Def{
	{goSession.MetricLoginSuccess, Namespace + "login_success_total", "Successful logins."},
	{goSession.MetricLoginFailure, Namespace + "login_failure_total", "Rejected or failed logins."},
	{goSession.MetricSessionCreated, Namespace + "session_created_total", "Sessions opened at login."},
	{goSession.MetricValidateSuccess, Namespace + "resolve_authenticated_total", "Requests resolved to an identity."},
	{goSession.MetricValidateFailure, Namespace + "resolve_rejected_total", "Requests whose credentials did not resolve."},
	{goSession.MetricRefreshSuccess, Namespace + "refresh_success_total", "Refresh ids rotated into a new pair."},
	{goSession.MetricRefreshFailure, Namespace + "refresh_failure_total", "Refresh attempts with an unusable id."},
	{goSession.MetricLogout, Namespace + "logout_total", "Single-session logouts."},
	{goSession.MetricLogoutAll, Namespace + "logout_all_total", "Log-out-everywhere operations."},
	{goSession.MetricRevokeUnsupported, Namespace + "revoke_unsupported_total", "Token revocations that could not take effect."},
	{goSession.MetricCSRFRejected, Namespace + "csrf_rejected_total", "Requests rejected by the CSRF check."},
	{goSession.MetricStorageUnavailable, Namespace + "storage_unavailable_total", "Operations failed by the credential store."},
	{goSession.MetricCookiesCleared, Namespace + "cookies_cleared_total", "Responses instructed to clear auth cookies."},
}

var HistogramDefs = []Def{
	{goSession.MetricResolveLatency, Namespace + "resolve_latency_seconds", "Request resolution latency."},
}

// Bound is one histogram upper bound: Label for Prometheus "le", Suffix for
// instrument names that cannot carry labels.
type Bound struct {
	Label  string
	Suffix string
}

// Bounds mirror the buckets of the core latency histogram.
var Bounds = [internalmetrics.HistBucketCount]Bound{
	{"0.005", "0_005"},
	{"0.01", "0_01"},
	{"0.025", "0_025"},
	{"0.05", "0_05"},
	{"0.1", "0_1"},
	{"0.25", "0_25"},
	{"0.5", "0_5"},
	{"+Inf", "inf"},
}

// Buckets is a cumulative bucket vector.
type Buckets [internalmetrics.HistBucketCount]uint64

// Cumulative converts raw per-bucket counts into cumulative counts. Missing
// trailing buckets count as zero.
func Cumulative(raw []uint64) Buckets {
	var out Buckets
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}

// Count returns the total number of samples.
func (b Buckets) Count() uint64 { return b[len(b)-1] }
