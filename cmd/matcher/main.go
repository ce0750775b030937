package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/pairup/match-engine/internal/config"
	"github.com/pairup/match-engine/internal/events"
	"github.com/pairup/match-engine/internal/metrics"
	"github.com/pairup/match-engine/internal/profile"
	"github.com/pairup/match-engine/internal/queue"
	"github.com/pairup/match-engine/internal/ratelimit"
	"github.com/pairup/match-engine/internal/scheduler"
	"github.com/pairup/match-engine/internal/scoring"
)

func main() {
	log.Println("Starting matching engine...")

	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	// --- PostgreSQL ---
	db, err := sql.Open("postgres", cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("failed to open Postgres: %v", err)
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	cancel()

	if err := runMigrations(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	pingCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	cancel()

	// --- NATS ---
	natsConfig := events.DefaultConfig()
	natsConfig.URL = cfg.NATS.URL
	natsConfig.Name = cfg.NATS.Name
	natsClient, err := events.NewClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Wiring ---
	store := queue.NewStore(db)
	index := queue.NewIndex(rdb)
	limiter := ratelimit.NewLimiter(rdb)

	manager := queue.NewManager(store, index, limiter, queue.ManagerConfig{
		EntryTTL: cfg.Queue.EntryTTL,
		JoinRule: ratelimit.Rule{
			Key:    "rl:join:",
			Limit:  cfg.Queue.JoinRateLimit,
			Window: cfg.Queue.JoinRateWindow,
		},
	})

	profiles := profile.NewCachedSource(profile.NewPostgresSource(db), cfg.Profile.CacheTTL)

	priority := make([]queue.Gender, 0, len(cfg.Matching.PriorityGenders))
	for _, g := range cfg.Matching.PriorityGenders {
		priority = append(priority, queue.Gender(g))
	}

	sched := scheduler.New(store, index, profiles, scoring.NewScorer(), natsClient, scheduler.Config{
		Interval:        cfg.Matching.Interval,
		BatchSize:       cfg.Matching.BatchSize,
		ScoreThreshold:  cfg.Matching.ScoreThreshold,
		SoftDeadline:    cfg.Matching.SoftDeadline,
		PriorityGenders: priority,
	})

	commands := events.NewCommands(natsClient, manager)
	if err := commands.Start(); err != nil {
		log.Fatalf("failed to start command surface: %v", err)
	}

	// --- Metrics ---
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[metrics] listener: %v", err)
		}
	}()

	sched.Start()

	log.Printf("Matching engine running")
	log.Printf("  env:          %s", cfg.Env)
	log.Printf("  redis_addr:   %s", cfg.Redis.Addr)
	log.Printf("  nats_url:     %s", cfg.NATS.URL)
	log.Printf("  metrics_addr: %s", cfg.Metrics.Addr)
	log.Printf("  interval:     %s", cfg.Matching.Interval)
	log.Printf("  batch_size:   %d", cfg.Matching.BatchSize)
	log.Printf("  threshold:    %.2f", cfg.Matching.ScoreThreshold)
	log.Printf("  priority:     %v", cfg.Matching.PriorityGenders)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	sched.Stop()
	natsClient.Close()

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := metricsSrv.Shutdown(shutCtx); err != nil {
		log.Printf("[metrics] shutdown: %v", err)
	}
	cancel()

	rdb.Close()
	db.Close()
}

// runMigrations applies the versioned schema migrations. The path defaults
// to ./migrations and can be overridden for containerized deployments.
func runMigrations(db *sql.DB) error {
	path := "file://migrations"
	if v := os.Getenv("MIGRATIONS_PATH"); v != "" {
		path = v
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(path, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	log.Println("[migrate] schema up to date")
	return nil
}
