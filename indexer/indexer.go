package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goProfile/facts"
	"github.com/rs/zerolog"
)

// DefaultName is the checkpoint row used when Config.Name is empty.
const DefaultName = "facts"

// Source yields facts strictly after a stream id. *facts.Log satisfies it.
type Source interface {
	ReadAfter(ctx context.Context, after string, count int64, block time.Duration) ([]facts.Fact, error)
}

// Sink stores committed batches. *PGStore satisfies it.
type Sink interface {
	Checkpoint(ctx context.Context, name string) (string, error)
	Commit(ctx context.Context, name string, batch []facts.Fact) error
}

// Publisher receives each batch after it has been committed.
type Publisher interface {
	PublishFacts(ctx context.Context, fs []facts.Fact) error
}

// Config tunes an [Indexer].
type Config struct {
	Name      string
	BatchSize int64
	Block     time.Duration
	// RetryDelay is the pause after a failed step before Run tries again.
	RetryDelay time.Duration
}

// Indexer tails the fact stream and commits it to a [Sink] in batches.
type Indexer struct {
	source    Source
	sink      Sink
	publisher Publisher
	config    Config
	logger    zerolog.Logger

	lastID string
	loaded bool
}

// New returns an Indexer reading from source into sink.
func New(source Source, sink Sink, cfg Config, logger zerolog.Logger) *Indexer {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Indexer{source: source, sink: sink, config: cfg, logger: logger}
}

// WithPublisher forwards committed batches to p. Publish failures are logged
// and do not roll back the commit.
func (ix *Indexer) WithPublisher(p Publisher) *Indexer {
	ix.publisher = p
	return ix
}

// LastID returns the checkpoint as last loaded or committed.
func (ix *Indexer) LastID() string {
	return ix.lastID
}

// Step reads at most one batch, commits it and advances the checkpoint. It
// returns the number of facts committed.
func (ix *Indexer) Step(ctx context.Context) (int, error) {
	if !ix.loaded {
		id, err := ix.sink.Checkpoint(ctx, ix.config.Name)
		if err != nil {
			return 0, err
		}
		ix.lastID = id
		ix.loaded = true
	}

	batch, err := ix.source.ReadAfter(ctx, ix.lastID, ix.config.BatchSize, ix.config.Block)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if err := ix.sink.Commit(ctx, ix.config.Name, batch); err != nil {
		return 0, err
	}
	ix.lastID = batch[len(batch)-1].ID

	if ix.publisher != nil {
		if err := ix.publisher.PublishFacts(ctx, batch); err != nil {
			ix.logger.Warn().Err(err).Int("batch", len(batch)).Msg("fact publish failed")
		}
	}
	return len(batch), nil
}

// Run calls Step until ctx is cancelled. Failed steps are logged and retried
// after Config.RetryDelay.
func (ix *Indexer) Run(ctx context.Context) error {
	for {
		n, err := ix.Step(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			ix.logger.Error().Err(err).Str("checkpoint", ix.lastID).Msg("index step failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(ix.config.RetryDelay):
			}
			continue
		}
		if n > 0 {
			ix.logger.Debug().Int("facts", n).Str("checkpoint", ix.lastID).Msg("indexed batch")
			continue
		}
		if ix.config.Block <= 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(ix.config.RetryDelay):
			}
		}
	}
}

// Drain commits batches until the stream has no facts past the checkpoint.
func (ix *Indexer) Drain(ctx context.Context) (int, error) {
	block := ix.config.Block
	ix.config.Block = 0
	defer func() { ix.config.Block = block }()

	total := 0
	for {
		n, err := ix.Step(ctx)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		total += n
	}
}

// Validate reports whether the indexer has both ends wired.
func (ix *Indexer) Validate() error {
	if ix.sink == nil {
		return errors.New("indexer: nil sink")
	}
	if ix.source == nil {
		return errors.New("indexer: nil source")
	}
	return nil
}
