package internaldefs

import (
	serverAuth "github.com/MrEthical07/serverAuth"
)

// CounterDef names one serverAuth counter for exporters.
type CounterDef struct {
	ID   serverAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one serverAuth histogram for exporters.
type HistogramDef struct {
	ID   serverAuth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exporters publish for ServerAuth.AuditDropped.
const AuditDroppedName = "serverauth_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: serverAuth.MetricSignInSuccess, Name: "serverauth_signin_success_total", Help: "Sign-ins that issued a session cookie."},
	{ID: serverAuth.MetricSignInFailure, Name: "serverauth_signin_failure_total", Help: "Sign-ins aborted by a hook or signing error."},
	{ID: serverAuth.MetricSignInBadRequest, Name: "serverauth_signin_bad_request_total", Help: "Sign-ins rejected for a missing or unsupported body."},
	{ID: serverAuth.MetricSignInNotImplemented, Name: "serverauth_signin_not_implemented_total", Help: "Sign-ins using an unimplemented body encoding."},
	{ID: serverAuth.MetricNotFound, Name: "serverauth_not_found_total", Help: "POST requests to unmapped paths."},
	{ID: serverAuth.MetricUnhandled, Name: "serverauth_unhandled_total", Help: "Non-POST requests left to the host."},
	{ID: serverAuth.MetricSignUp, Name: "serverauth_signup_total", Help: "Requests dispatched to the sign-up handler."},
	{ID: serverAuth.MetricSignOut, Name: "serverauth_signout_total", Help: "Requests dispatched to the sign-out handler."},
	{ID: serverAuth.MetricSessionValid, Name: "serverauth_session_valid_total", Help: "Session checks that recovered a payload."},
	{ID: serverAuth.MetricSessionAbsent, Name: "serverauth_session_absent_total", Help: "Session checks without a session cookie."},
	{ID: serverAuth.MetricSessionInvalid, Name: "serverauth_session_invalid_total", Help: "Session checks with a malformed or forged cookie."},
	{ID: serverAuth.MetricSessionExpired, Name: "serverauth_session_expired_total", Help: "Session checks with an expired cookie."},
}

var HistogramDefs = []HistogramDef{
	{ID: serverAuth.MetricSignLatency, Name: "serverauth_sign_latency_seconds", Help: "Session token signing latency."},
}

// HistogramBounds are the upper bounds in seconds of all but the last bucket,
// matching serverAuth's microsecond buckets.
var HistogramBounds = []float64{
	0.00005,
	0.0001,
	0.00025,
	0.0005,
	0.001,
	0.005,
	0.025,
}

// BucketCount includes the +Inf bucket.
const BucketCount = 8

func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
