// Package security derives a configuration posture report for the engine.
//
// The report is computed from configuration only and performs no I/O.
package security
