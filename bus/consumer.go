package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// DefaultFactDurable is the consumer name used when none is given.
const DefaultFactDurable = "profiled-facts"

type subscriber interface {
	Subscribe(ctx context.Context, subj, durable string, fn func(ctx context.Context, data []byte) error) (io.Closer, error)
}

// FactHandler receives each decoded fact. Returning an error naks the
// message so JetStream redelivers it.
type FactHandler func(ctx context.Context, msg FactMessage) error

// FactConsumer reads the facts the indexer published under
// [FactSubjectPrefix] through a durable JetStream consumer.
type FactConsumer struct {
	sub     subscriber
	durable string
	fn      FactHandler

	mu     sync.Mutex
	closer io.Closer
}

// NewFactConsumer returns a consumer over b. An empty durable uses
// [DefaultFactDurable].
func NewFactConsumer(b *Bus, durable string, fn FactHandler) (*FactConsumer, error) {
	if b == nil {
		return nil, errors.New("bus is required")
	}
	return newFactConsumer(b, durable, fn)
}

func newFactConsumer(sub subscriber, durable string, fn FactHandler) (*FactConsumer, error) {
	if fn == nil {
		return nil, errors.New("fact handler is required")
	}
	if durable == "" {
		durable = DefaultFactDurable
	}
	return &FactConsumer{sub: sub, durable: durable, fn: fn}, nil
}

// Start subscribes and delivers facts until ctx is cancelled or Close is
// called.
func (c *FactConsumer) Start(ctx context.Context) error {
	closer, err := c.sub.Subscribe(ctx, FactSubjectPrefix+".>", c.durable, c.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.durable, err)
	}

	c.mu.Lock()
	c.closer = closer
	c.mu.Unlock()
	return nil
}

// Close stops the subscription if one was started.
func (c *FactConsumer) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	return err
}

func (c *FactConsumer) handle(ctx context.Context, data []byte) error {
	var msg FactMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	if msg.ID == "" {
		return errors.New("fact id missing from message")
	}
	if msg.Type == "" {
		return errors.New("fact type missing from message")
	}
	return c.fn(ctx, msg)
}
