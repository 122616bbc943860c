package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/brainy/internal/config"
	"github.com/playperu/brainy/internal/database"
	"github.com/playperu/brainy/internal/feed"
	"github.com/playperu/brainy/internal/gamesync"
	"github.com/playperu/brainy/internal/handler/health"
	"github.com/playperu/brainy/internal/migrations"
	"github.com/playperu/brainy/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Feed ---
	f, checks, closeFeed, err := openFeed(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening %s feed: %w", cfg.FeedDriver, err)
	}
	defer closeFeed()
	logger.Info("feed ready", "driver", cfg.FeedDriver)

	checks["feed"] = health.CheckerFunc(func(ctx context.Context) error {
		_, _, err := f.ReadOnce(ctx, gamesync.ChallengesFolder)
		return err
	})

	if cfg.SeedDemo {
		if err := gamesync.SeedDemoCatalog(ctx, f, logger); err != nil {
			return fmt.Errorf("seeding demo catalog: %w", err)
		}
	}

	// --- Sync ---
	g, gctx := errgroup.WithContext(ctx)

	catalog := gamesync.NewCatalogWatcher(f, logger)
	if err := catalog.Load(ctx); err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	g.Go(func() error {
		return catalog.Run(gctx)
	})

	games := gamesync.NewRegistry(gctx, f, catalog, logger)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, games, server.Options{
		StateWait: cfg.StateWaitTimeout,
		SPADir:    cfg.SPADir,
		Mount: func(r chi.Router) {
			r.Mount("/healthz", health.NewHandler(logger, checks).Routes())
		},
	})

	// --- Run ---
	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		err := srv.Shutdown(context.Background())
		games.Close()
		return err
	})

	return g.Wait()
}

// openFeed builds the configured feed backend together with health checks
// for the infrastructure behind it.
func openFeed(ctx context.Context, cfg *config.Config, logger *slog.Logger) (feed.Feed, map[string]health.Checker, func(), error) {
	checks := map[string]health.Checker{}
	noop := func() {}

	switch cfg.FeedDriver {
	case config.FeedSQLite:
		db, err := database.Open(ctx, cfg.DBPath)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("connecting to sqlite: %w", err)
		}
		if err := migrations.Run(ctx, db); err != nil {
			db.Close()
			return nil, nil, noop, fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("connected to sqlite", "path", cfg.DBPath)
		checks["sqlite"] = dbChecker{db}
		return feed.NewSQLite(db), checks, func() { db.Close() }, nil

	case config.FeedRedis:
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("connecting to redis: %w", err)
		}
		logger.Info("connected to redis")
		rf := feed.NewRedis(rdb, logger)
		checks["redis"] = health.CheckerFunc(rf.Ping)
		return rf, checks, func() { rdb.Close() }, nil

	case config.FeedFirebase:
		ff, err := feed.NewFirebase(ctx, feed.FirebaseConfig{
			DatabaseURL:     cfg.FirebaseDatabaseURL,
			CredentialsFile: cfg.FirebaseCredentials,
			PollInterval:    cfg.FirebasePollInterval,
		}, logger)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("connecting to firebase: %w", err)
		}
		logger.Info("connected to firebase", "url", cfg.FirebaseDatabaseURL)
		return ff, checks, noop, nil
	}

	return feed.NewMemory(), checks, noop, nil
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }
