// Package bus fans goProfile audit events and facts out over NATS JetStream.
//
// [AuditSink] plugs into the engine's audit dispatcher; [FactPublisher] is
// used by the fact indexer after each committed batch. Subjects are
// goprofile.audit.<event_type> and goprofile.facts.<fact_type>.
package bus
