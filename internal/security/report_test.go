package security

import (
	"slices"
	"testing"
	"time"
)

func TestBuildReportDefaults(t *testing.T) {
	r := BuildReport(ReportInput{
		SigningAlgorithm:          "ed25519",
		CanIssue:                  true,
		EnableRegisterThrottle:    true,
		MaxRegistrationsPerWindow: 10,
		RegisterWindow:            time.Hour,
	})
	if !r.RegisterThrottleActive {
		t.Fatalf("expected throttle active")
	}
	want := []string{WarnOpenCleanup, WarnAuditDisabled}
	if !slices.Equal(r.Warnings, want) {
		t.Fatalf("warnings = %v, want %v", r.Warnings, want)
	}
}

func TestBuildReportHardened(t *testing.T) {
	r := BuildReport(ReportInput{
		SigningAlgorithm:          "ed25519",
		CanIssue:                  true,
		RequireOwnerForCleanup:    true,
		EnableRegisterThrottle:    true,
		MaxRegistrationsPerWindow: 5,
		RegisterWindow:            time.Minute,
		AuditEnabled:              true,
	})
	if len(r.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", r.Warnings)
	}
}

func TestBuildReportFlagsWeakSettings(t *testing.T) {
	r := BuildReport(ReportInput{
		SigningAlgorithm:       "hs256",
		EnableRegisterThrottle: true,
		AuditEnabled:           true,
		AuditDropIfFull:        true,
	})
	for _, w := range []string{WarnOpenCleanup, WarnNoThrottle, WarnSharedSecret, WarnVerifyOnly, WarnAuditMayDropData} {
		if !slices.Contains(r.Warnings, w) {
			t.Fatalf("missing warning %q in %v", w, r.Warnings)
		}
	}
}
