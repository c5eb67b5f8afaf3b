// Package indexer copies the append-only fact stream into Postgres.
//
// An [Indexer] reads facts after its checkpoint, inserts them with
// ON CONFLICT DO NOTHING and moves the checkpoint in the same transaction.
// A crash between the Redis read and the commit replays the batch on the
// next start without duplicating rows.
package indexer
