package goProfile

import "github.com/MrEthical07/goProfile/internal/security"

// SecurityReport summarizes the engine's configured security posture along
// with human-readable warnings for weak settings.
type SecurityReport = security.Report

// SecurityReport derives a posture report from the engine configuration.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return security.BuildReport(security.ReportInput{
		SigningAlgorithm:          e.config.Capability.SigningMethod,
		KeyID:                     e.config.Capability.KeyID,
		VerifyKeyCount:            len(e.config.Capability.VerifyKeys),
		CanIssue:                  e.capabilities != nil && e.capabilities.CanSign(),
		RequireOwnerForCleanup:    e.config.Session.RequireOwnerForCleanup,
		EnableRegisterThrottle:    e.config.Security.EnableRegisterThrottle,
		MaxRegistrationsPerWindow: e.config.Security.MaxRegistrationsPerWindow,
		RegisterWindow:            e.config.Security.RegisterWindow,
		AuditEnabled:              e.config.Audit.Enabled,
		AuditDropIfFull:           e.config.Audit.DropIfFull,
		MetricsEnabled:            e.config.Metrics.Enabled,
	})
}
