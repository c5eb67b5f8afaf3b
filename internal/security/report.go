package security

import "time"

// Report summarizes the security posture of an engine configuration.
type Report struct {
	SigningAlgorithm          string
	KeyID                     string
	VerifyKeyCount            int
	CanIssue                  bool
	CleanupOwnerRequired      bool
	RegisterThrottleActive    bool
	MaxRegistrationsPerWindow int
	RegisterWindow            time.Duration
	AuditEnabled              bool
	AuditDropIfFull           bool
	MetricsEnabled            bool
	Warnings                  []string
}

type ReportInput struct {
	SigningAlgorithm          string
	KeyID                     string
	VerifyKeyCount            int
	CanIssue                  bool
	RequireOwnerForCleanup    bool
	EnableRegisterThrottle    bool
	MaxRegistrationsPerWindow int
	RegisterWindow            time.Duration
	AuditEnabled              bool
	AuditDropIfFull           bool
	MetricsEnabled            bool
}

// Warning texts reported by BuildReport.
const (
	WarnOpenCleanup      = "expired-session cleanup is open to any caller"
	WarnNoThrottle       = "registration throttle is disabled"
	WarnSharedSecret     = "capabilities are signed with a shared HS256 secret"
	WarnVerifyOnly       = "no signing key: admin capabilities cannot be bootstrapped or issued"
	WarnAuditDisabled    = "audit events are disabled"
	WarnAuditMayDropData = "audit events are dropped when the buffer is full"
)

func BuildReport(input ReportInput) Report {
	r := Report{
		SigningAlgorithm:          input.SigningAlgorithm,
		KeyID:                     input.KeyID,
		VerifyKeyCount:            input.VerifyKeyCount,
		CanIssue:                  input.CanIssue,
		CleanupOwnerRequired:      input.RequireOwnerForCleanup,
		RegisterThrottleActive:    input.EnableRegisterThrottle && input.MaxRegistrationsPerWindow > 0 && input.RegisterWindow > 0,
		MaxRegistrationsPerWindow: input.MaxRegistrationsPerWindow,
		RegisterWindow:            input.RegisterWindow,
		AuditEnabled:              input.AuditEnabled,
		AuditDropIfFull:           input.AuditEnabled && input.AuditDropIfFull,
		MetricsEnabled:            input.MetricsEnabled,
	}

	if !r.CleanupOwnerRequired {
		r.Warnings = append(r.Warnings, WarnOpenCleanup)
	}
	if !r.RegisterThrottleActive {
		r.Warnings = append(r.Warnings, WarnNoThrottle)
	}
	if r.SigningAlgorithm == "hs256" {
		r.Warnings = append(r.Warnings, WarnSharedSecret)
	}
	if !r.CanIssue {
		r.Warnings = append(r.Warnings, WarnVerifyOnly)
	}
	if !r.AuditEnabled {
		r.Warnings = append(r.Warnings, WarnAuditDisabled)
	} else if r.AuditDropIfFull {
		r.Warnings = append(r.Warnings, WarnAuditMayDropData)
	}
	return r
}
