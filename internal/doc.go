// Package internal holds the private building blocks of goProfile.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: profiled daemon configuration (YAML, .env, environment)
//   - httpapi: chi HTTP surface over the Engine
//   - rate: Redis fixed-window registration throttle
//   - security: configuration posture report
//   - telemetry: OpenTelemetry tracing setup for the daemon
//
// Nothing here is part of the public goProfile API.
package internal
