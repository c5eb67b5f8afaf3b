package main

import (
	"context"
	"fmt"

	goProfile "github.com/MrEthical07/goProfile"
	"github.com/MrEthical07/goProfile/bus"
	"github.com/MrEthical07/goProfile/capability"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// redisClient connects to the configured Redis, or to an in-process
// miniredis when dev is set.
func (a *app) redisClient(ctx context.Context, dev bool) (redis.UniversalClient, func(), error) {
	if dev {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		a.logger.Warn().Str("addr", mr.Addr()).Msg("dev mode: using in-memory redis")
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{a.cfg.RedisAddr},
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// connectBus opens the NATS bus when a URL is configured. A nil bus means
// fan-out is disabled.
func (a *app) connectBus() (*bus.Bus, error) {
	if a.cfg.NATSURL == "" {
		return nil, nil
	}
	b, err := bus.New(a.cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	if err := b.EnsureStream(a.cfg.NATSStream, bus.AuditSubjectPrefix+".>", bus.FactSubjectPrefix+".>"); err != nil {
		b.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return b, nil
}

// buildEngine assembles the engine. In dev mode a missing signing key is
// replaced by an ephemeral one.
func (a *app) buildEngine(client redis.UniversalClient, dev bool, b *bus.Bus) (*goProfile.Engine, error) {
	if dev && a.cfg.SigningKey == "" && a.cfg.SigningKeyFile == "" {
		priv, _, err := capability.GenerateEd25519PEM()
		if err != nil {
			return nil, err
		}
		a.cfg.SigningKey = string(priv)
		a.logger.Warn().Msg("dev mode: using ephemeral signing key")
	}

	ec, err := a.cfg.Engine()
	if err != nil {
		return nil, err
	}

	builder := goProfile.New().
		WithConfig(ec).
		WithRedis(client).
		WithLogger(a.logger)

	if ec.Audit.Enabled {
		sinks := goProfile.MultiSink{goProfile.NewLogSink(a.logger.With().Str("component", "audit").Logger())}
		if b != nil {
			sinks = append(sinks, bus.NewAuditSink(b, a.logger))
		}
		builder = builder.WithAuditSink(sinks)
	}
	return builder.Build()
}
