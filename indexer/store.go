package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/MrEthical07/goProfile/facts"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	insertFactSQL = `INSERT INTO facts (fact_id, type, actor, subject, at_ms, attrs)
VALUES ($1, $2, $3, $4, $5, $6::jsonb)
ON CONFLICT (fact_id) DO NOTHING`

	upsertCheckpointSQL = `INSERT INTO indexer_checkpoints (name, last_id, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET last_id = EXCLUDED.last_id, updated_at = now()`

	selectCheckpointSQL = `SELECT last_id FROM indexer_checkpoints WHERE name = $1`

	selectBySubjectSQL = `SELECT fact_id, type, actor, subject, at_ms, attrs, indexed_at
FROM facts WHERE subject = $1 ORDER BY at_ms, fact_id LIMIT $2`

	selectByActorSQL = `SELECT fact_id, type, actor, subject, at_ms, attrs, indexed_at
FROM facts WHERE actor = $1 ORDER BY at_ms, fact_id LIMIT $2`

	countFactsSQL = `SELECT count(*) FROM facts`
)

// Row is one indexed fact as stored in Postgres.
type Row struct {
	FactID    string            `db:"fact_id" json:"fact_id"`
	Type      string            `db:"type" json:"type"`
	Actor     string            `db:"actor" json:"actor"`
	Subject   string            `db:"subject" json:"subject"`
	AtMs      int64             `db:"at_ms" json:"at_ms"`
	Attrs     map[string]string `db:"attrs" json:"attrs"`
	IndexedAt time.Time         `db:"indexed_at" json:"indexed_at"`
}

// PGStore persists indexed facts and checkpoints in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an open pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Checkpoint returns the last committed stream id for name, or "" when the
// indexer has never committed.
func (s *PGStore) Checkpoint(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var lastID string
	err := s.pool.QueryRow(ctx, selectCheckpointSQL, name).Scan(&lastID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return lastID, err
}

// Commit inserts batch and advances the checkpoint to the last fact in one
// transaction. Facts already present are skipped, so replaying a batch after
// a crash is harmless.
func (s *PGStore) Commit(ctx context.Context, name string, batch []facts.Fact) error {
	if len(batch) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, f := range batch {
			attrs, err := encodeAttrs(f.Attrs)
			if err != nil {
				return err
			}
			b.Queue(insertFactSQL, f.ID, string(f.Type), f.Actor, f.Subject, f.At, attrs)
		}
		b.Queue(upsertCheckpointSQL, name, batch[len(batch)-1].ID)
		return tx.SendBatch(ctx, b).Close()
	})
}

// BySubject returns up to limit indexed facts about subject, oldest first.
func (s *PGStore) BySubject(ctx context.Context, subject string, limit int) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var rows []Row
	if err := pgxscan.Select(ctx, s.pool, &rows, selectBySubjectSQL, subject, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

// ByActor returns up to limit indexed facts performed by actor, oldest first.
func (s *PGStore) ByActor(ctx context.Context, actor string, limit int) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var rows []Row
	if err := pgxscan.Select(ctx, s.pool, &rows, selectByActorSQL, actor, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of indexed facts.
func (s *PGStore) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var n int64
	if err := pgxscan.Get(ctx, s.pool, &n, countFactsSQL); err != nil {
		return 0, err
	}
	return n, nil
}

func encodeAttrs(attrs map[string]string) (string, error) {
	if len(attrs) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
