package internaldefs

import (
	goProfile "github.com/MrEthical07/goProfile"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   goProfile.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   goProfile.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goProfile.MetricRegisterSuccess, Name: "goprofile_register_success_total", Help: "Completed registrations."},
	{ID: goProfile.MetricRegisterFailure, Name: "goprofile_register_failure_total", Help: "Registrations rejected by validation, authorization, or storage."},
	{ID: goProfile.MetricRegisterRateLimited, Name: "goprofile_register_rate_limited_total", Help: "Registrations rejected by the throttle."},
	{ID: goProfile.MetricSessionCreated, Name: "goprofile_session_created_total", Help: "Sessions inserted into a store."},
	{ID: goProfile.MetricSessionDuplicate, Name: "goprofile_session_duplicate_total", Help: "Session creations rejected for an existing key."},
	{ID: goProfile.MetricSessionValidateHit, Name: "goprofile_session_validate_hit_total", Help: "Validations that found a live session."},
	{ID: goProfile.MetricSessionValidateMiss, Name: "goprofile_session_validate_miss_total", Help: "Validations that found no live session."},
	{ID: goProfile.MetricSessionRevoked, Name: "goprofile_session_revoked_total", Help: "Revocations that removed an entry."},
	{ID: goProfile.MetricSessionCleanupRemoved, Name: "goprofile_session_cleanup_removed_total", Help: "Expired entries removed by cleanup or sweep."},
	{ID: goProfile.MetricProfileUpdated, Name: "goprofile_profile_updated_total", Help: "Nickname, bio, and avatar URL updates."},
	{ID: goProfile.MetricAvatarMinted, Name: "goprofile_avatar_minted_total", Help: "Minted avatar assets."},
	{ID: goProfile.MetricAvatarTransferred, Name: "goprofile_avatar_transferred_total", Help: "Avatar asset transfers."},
	{ID: goProfile.MetricUnauthorized, Name: "goprofile_unauthorized_total", Help: "Operations rejected by the ownership or capability gate."},
	{ID: goProfile.MetricAdminCapIssued, Name: "goprofile_admin_cap_issued_total", Help: "Issued admin capabilities."},
	{ID: goProfile.MetricVerificationChanged, Name: "goprofile_verification_changed_total", Help: "Verify and unverify operations."},
	{ID: goProfile.MetricMembershipChanged, Name: "goprofile_membership_changed_total", Help: "Membership tier updates."},
	{ID: goProfile.MetricRateLimitHit, Name: "goprofile_rate_limit_hit_total", Help: "Throttle checks that denied requests."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goProfile.MetricValidateLatency, Name: "goprofile_validate_latency_seconds", Help: "Session validation latency."},
}

// AuditDroppedName is the counter for audit events dropped under backpressure.
const AuditDroppedName = "goprofile_audit_dropped_total"

// HistogramBounds are the upper bounds of the latency buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable inside metric names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// HistogramBoundValues are HistogramBounds as numbers, without +Inf.
var HistogramBoundValues = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets copies raw into a fixed eight-bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
