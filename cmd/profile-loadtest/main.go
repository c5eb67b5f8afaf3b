package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goProfile "github.com/MrEthical07/goProfile"
	"github.com/MrEthical07/goProfile/capability"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type userState struct {
	principal goProfile.Principal
	storeID   string
	key       []byte
}

func main() {
	var (
		users       = flag.Int("users", 10000, "number of profiles to register")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (validate + create)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "gplt", "redis key prefix")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, err := buildEngine(client, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]userState, *users)
	fmt.Printf("registering %d profiles...\n", *users)
	startSeed := time.Now()
	for i := 0; i < *users; i++ {
		p := goProfile.Principal(fmt.Sprintf("lt-%d", i))
		key := keyFor(uint64(i), 0)
		res, err := engine.Register(goProfile.WithCaller(ctx, p), goProfile.RegisterRequest{
			Nickname:    fmt.Sprintf("user%d", i),
			IdentityKey: keyFor(uint64(i), 1),
			SessionKey:  key,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "register failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = userState{principal: p, storeID: res.SessionStoreID, key: key}
	}
	fmt.Printf("registered in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand, i int) error {
		s := states[r.Intn(len(states))]
		ok, err := engine.ValidateSession(ctx, s.storeID, s.key)
		if err == nil && !ok {
			err = fmt.Errorf("session %s rejected", s.storeID)
		}
		return err
	})
	createStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand, i int) error {
		s := states[r.Intn(len(states))]
		_, err := engine.CreateSession(goProfile.WithCaller(ctx, s.principal), s.storeID, keyFor(uint64(i), 2))
		return err
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("create", createStats)
}

func buildEngine(client redis.UniversalClient, prefix string) (*goProfile.Engine, error) {
	priv, _, err := capability.GenerateEd25519PEM()
	if err != nil {
		return nil, err
	}
	cfg := goProfile.DefaultConfig()
	cfg.Redis.KeyPrefix = prefix
	cfg.Capability.PrivateKey = priv
	cfg.Security.EnableRegisterThrottle = false
	return goProfile.New().WithConfig(cfg).WithRedis(client).Build()
}

func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// keyFor derives a distinct 32-byte key from (i, domain).
func keyFor(i uint64, domain byte) []byte {
	out := make([]byte, goProfile.KeySize)
	binary.BigEndian.PutUint64(out, i)
	out[8] = domain
	for j := 9; j < len(out); j++ {
		out[j] = byte((int(i) + j*17 + 11) % 251)
	}
	return out
}
