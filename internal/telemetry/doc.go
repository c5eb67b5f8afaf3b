// Package telemetry wires OpenTelemetry tracing for the profiled daemon.
package telemetry
