// Command session-loadtest seeds sessions into Redis and measures validate,
// refresh and full request resolution throughput. Without a Redis address it
// runs against an in-process miniredis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/kv"
	"github.com/MrEthical07/goSession/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
)

var errSessionMissing = errors.New("session missing")

type config struct {
	Sessions    int    `env:"LOADTEST_SESSIONS" envDefault:"10000"`
	Concurrency int    `env:"LOADTEST_CONCURRENCY" envDefault:"64"`
	Ops         int    `env:"LOADTEST_OPS" envDefault:"50000"`
	RedisAddr   string `env:"REDIS_ADDR"`
	KeyPrefix   string `env:"LOADTEST_KEY_PREFIX" envDefault:"lt:"`
}

type credential struct {
	mu        sync.Mutex
	sessionID string
	refreshID string
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "parse env: %v\n", err)
		os.Exit(2)
	}
	flag.IntVar(&cfg.Sessions, "sessions", cfg.Sessions, "number of sessions to seed")
	flag.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "number of concurrent workers")
	flag.IntVar(&cfg.Ops, "ops", cfg.Ops, "operations per phase")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address; miniredis when empty")
	flag.StringVar(&cfg.KeyPrefix, "prefix", cfg.KeyPrefix, "session key prefix")
	flag.Parse()

	if cfg.Sessions <= 0 || cfg.Concurrency <= 0 || cfg.Ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency and ops must be > 0")
		os.Exit(2)
	}

	if err := run(context.Background(), cfg); err != nil {
		fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	addr := cfg.RedisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	store := kv.NewRedisStore(client)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	regCfg := session.DefaultConfig()
	regCfg.KeyPrefix = cfg.KeyPrefix
	registry, err := session.NewRegistry(store, regCfg, session.WithLogger(logger))
	if err != nil {
		return err
	}

	engineCfg := goSession.DefaultConfig()
	engineCfg.Session.KeyPrefix = cfg.KeyPrefix
	engineCfg.Metrics.Enabled = true
	engineCfg.Metrics.EnableLatencyHistograms = true
	engine, err := goSession.New().WithConfig(engineCfg).WithStore(store).WithLogger(logger).Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	creds := make([]credential, cfg.Sessions)
	fmt.Printf("seeding %d sessions...\n", cfg.Sessions)
	start := time.Now()
	for i := range creds {
		pair, err := registry.Create(ctx, fmt.Sprintf("user-%d", i%1000), session.Metadata{Role: "member"})
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		creds[i].sessionID, creds[i].refreshID = pair.SessionID, pair.RefreshID
	}
	fmt.Printf("seeded in %s\n", time.Since(start).Round(time.Millisecond))

	validate := runPhase(cfg, creds, func(c *credential) error {
		c.mu.Lock()
		sid := c.sessionID
		c.mu.Unlock()
		sess, err := registry.Validate(ctx, sid)
		if err == nil && sess == nil {
			return errSessionMissing
		}
		return err
	})

	refresh := runPhase(cfg, creds, func(c *credential) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		pair, err := registry.Refresh(ctx, c.refreshID)
		if err != nil {
			return err
		}
		if pair == nil {
			return errors.New("refresh id already consumed")
		}
		c.sessionID, c.refreshID = pair.SessionID, pair.RefreshID
		return nil
	})

	resolve := runPhase(cfg, creds, func(c *credential) error {
		c.mu.Lock()
		req := goSession.Request{SessionID: c.sessionID, RefreshID: c.refreshID}
		c.mu.Unlock()
		res, err := engine.Resolve(ctx, req)
		if err == nil && !res.Authenticated {
			return errors.New("not authenticated")
		}
		return err
	})

	fmt.Println("---- results ----")
	printStats("validate", validate)
	printStats("refresh", refresh)
	printStats("resolve", resolve)
	fmt.Printf("resolve latency buckets: %v\n", engine.MetricsSnapshot().Histograms[goSession.MetricResolveLatency])
	return nil
}

func runPhase(cfg config, creds []credential, op func(*credential) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, cfg.Ops)
	)

	start := time.Now()
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			local := make([]time.Duration, 0, cfg.Ops/cfg.Concurrency+1)
			for atomic.AddInt64(&cursor, 1) <= int64(cfg.Ops) {
				t0 := time.Now()
				if err := op(&creds[r.Intn(len(creds))]); err != nil {
					atomic.AddInt64(&failures, 1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
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

func percentile(sorted []time.Duration, p int) time.Duration {
	switch {
	case len(sorted) == 0:
		return 0
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[len(sorted)-1]
	}
	return sorted[(len(sorted)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name, s.ops, s.failures,
		s.total.Round(time.Millisecond), s.opsPerS,
		s.p50.Round(time.Microsecond), s.p95.Round(time.Microsecond), s.p99.Round(time.Microsecond),
	)
}
