package facts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps stream read and write failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Log is the append-only fact stream. Mutating packages append through
// [EmitLua] inside their own scripts; Log covers the remaining writes and
// every read.
type Log struct {
	redis redis.UniversalClient
	key   string
}

// NewLog returns a [Log] over the stream stored at key.
func NewLog(rdb redis.UniversalClient, key string) *Log {
	return &Log{redis: rdb, key: key}
}

// Key returns the stream key.
func (l *Log) Key() string {
	return l.key
}

// QueueAppend adds an XADD for f to a pipeline or MULTI/EXEC transaction.
func (l *Log) QueueAppend(ctx context.Context, pipe redis.Pipeliner, f Fact) {
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: l.key,
		Values: f.Args(),
	})
}

// Append writes a single fact outside any transaction and returns its id.
func (l *Log) Append(ctx context.Context, f Fact) (string, error) {
	id, err := l.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: l.key,
		Values: f.Args(),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return id, nil
}

// Range returns up to count facts with ids in [start, stop]. Use "-" and "+"
// for the open ends. Entries that fail to decode are skipped.
func (l *Log) Range(ctx context.Context, start, stop string, count int64) ([]Fact, error) {
	var (
		msgs []redis.XMessage
		err  error
	)
	if count > 0 {
		msgs, err = l.redis.XRangeN(ctx, l.key, start, stop, count).Result()
	} else {
		msgs, err = l.redis.XRange(ctx, l.key, start, stop).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decodeAll(msgs), nil
}

// ReadAfter returns up to count facts strictly after the id after, waiting up
// to block for new entries. A zero block does not wait. An empty after reads
// from the beginning of the stream.
func (l *Log) ReadAfter(ctx context.Context, after string, count int64, block time.Duration) ([]Fact, error) {
	if after == "" {
		after = "0-0"
	}
	args := &redis.XReadArgs{
		Streams: []string{l.key, after},
		Count:   count,
		Block:   -1,
	}
	if block > 0 {
		args.Block = block
	}

	streams, err := l.redis.XRead(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var out []Fact
	for _, s := range streams {
		out = append(out, decodeAll(s.Messages)...)
	}
	return out, nil
}

// Len returns the number of entries in the stream.
func (l *Log) Len(ctx context.Context) (int64, error) {
	n, err := l.redis.XLen(ctx, l.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

const (
	// DefaultSubjectLimit caps the facts one [Log.BySubject] call returns.
	DefaultSubjectLimit = 100
	// DefaultSubjectScan caps the stream entries one call examines.
	DefaultSubjectScan int64 = 10_000

	subjectScanBatch int64 = 512
)

// SubjectQuery bounds a [Log.BySubject] scan. After is an exclusive stream
// id cursor; empty starts at the oldest entry. Zero Limit and MaxScan use
// the package defaults.
type SubjectQuery struct {
	After   string
	Limit   int
	MaxScan int64
}

// SubjectPage is one page of facts about a subject, oldest first. Next is
// the cursor for the following call and is empty once the scan reached the
// end of the stream.
type SubjectPage struct {
	Facts []Fact
	Next  string
}

// BySubject walks the stream forward from q.After in XRANGE COUNT batches
// and collects facts about subject. It stops at q.Limit matches or after
// q.MaxScan entries, whichever comes first.
func (l *Log) BySubject(ctx context.Context, subject string, q SubjectQuery) (SubjectPage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSubjectLimit
	}
	budget := q.MaxScan
	if budget <= 0 {
		budget = DefaultSubjectScan
	}

	start := "-"
	if q.After != "" {
		start = "(" + q.After
	}

	var (
		page    SubjectPage
		scanned int64
	)
	for scanned < budget {
		n := min(subjectScanBatch, budget-scanned)
		msgs, err := l.redis.XRangeN(ctx, l.key, start, "+", n).Result()
		if err != nil {
			return SubjectPage{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		for _, msg := range msgs {
			scanned++
			page.Next = msg.ID
			f, err := FromMessage(msg)
			if err != nil || f.Subject != subject {
				continue
			}
			page.Facts = append(page.Facts, f)
			if len(page.Facts) >= limit {
				return page, nil
			}
		}
		if int64(len(msgs)) < n {
			page.Next = ""
			return page, nil
		}
		start = "(" + page.Next
	}
	return page, nil
}

func decodeAll(msgs []redis.XMessage) []Fact {
	out := make([]Fact, 0, len(msgs))
	for _, msg := range msgs {
		f, err := FromMessage(msg)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}
