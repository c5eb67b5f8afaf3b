// Package rate provides the Redis-backed registration throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys, under
// the configured prefix:
//   - rl:reg:ip:<ip> holds registrations per client IP
//   - rl:reg:p:<principal> holds registrations per principal
//
// # What this package must NOT do
//
//   - Decide which operations are throttled (the Engine does).
//   - Be imported outside the goProfile module.
package rate
