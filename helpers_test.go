package goProfile

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"

	"github.com/MrEthical07/goProfile/capability"
	"github.com/MrEthical07/goProfile/facts"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	now atomic.Int64
}

func newFakeClock(start int64) *fakeClock {
	c := &fakeClock{}
	c.now.Store(start)
	return c
}

func (c *fakeClock) NowMillis() int64 { return c.now.Load() }

func (c *fakeClock) Set(ms int64) { c.now.Store(ms) }

func (c *fakeClock) Advance(ms int64) { c.now.Add(ms) }

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func testConfig(t *testing.T) Config {
	t.Helper()

	priv, _, err := capability.GenerateEd25519PEM()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Capability.PrivateKey = priv
	cfg.Metrics.Enabled = true
	cfg.Security.EnableRegisterThrottle = false
	return cfg
}

const testStart int64 = 1_700_000_000_000

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *fakeClock, *redis.Client) {
	t.Helper()

	_, rdb := newTestRedis(t)
	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}
	clock := newFakeClock(testStart)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithClock(clock).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, clock, rdb
}

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

func as(p Principal) context.Context {
	return WithCaller(context.Background(), p)
}

func registerAlice(t *testing.T, engine *Engine) *RegisterResult {
	t.Helper()

	res, err := engine.Register(as("alice"), RegisterRequest{
		Nickname:    "alice",
		Bio:         "hello",
		IdentityKey: testKey(0xA1),
		SessionKey:  testKey(0x01),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return res
}

func bootstrap(t *testing.T, engine *Engine, admin Principal) *AdminCap {
	t.Helper()

	c, err := engine.BootstrapAdmin(context.Background(), admin)
	if err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}
	return c
}

func subjectFacts(t *testing.T, engine *Engine, subject string) []facts.Fact {
	t.Helper()

	page, err := engine.FactsFor(context.Background(), subject, FactQuery{})
	if err != nil {
		t.Fatalf("facts: %v", err)
	}
	return page.Facts
}
