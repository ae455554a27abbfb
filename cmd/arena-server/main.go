package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/archive"
	appcfg "github.com/park285/chess-arena/internal/config"
	"github.com/park285/chess-arena/internal/gateway"
	"github.com/park285/chess-arena/internal/hub"
	"github.com/park285/chess-arena/internal/msgcat"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/rules"
	"github.com/park285/chess-arena/internal/session"
	"github.com/park285/chess-arena/internal/suggest"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cat, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	engine := rules.NewWithRetry(rules.NewLibEngine(), 3, 50*time.Millisecond)
	picker := suggest.NewPicker(cfg.SuggestThink)

	store := session.NewStore(engine, picker, session.StoreConfig{
		OfferTTL:      cfg.OfferTTL,
		Retention:     cfg.Retention,
		IdleTTL:       cfg.IdleTTL,
		SweepInterval: cfg.SweepInterval,
		SuggestLimit:  cfg.SuggestLimit,
	}, logger)

	writers, browser := buildWriters(cfg, logger)
	arch := archive.NewAsync(5*time.Second, writers...)
	store.SetArchiver(arch)

	h := hub.New(logger)
	store.SetWatcherCount(h.Count)

	defaultControl := session.TimeControl{Initial: cfg.ClockInitial, Increment: cfg.ClockIncrement}
	gw := gateway.New(store, h, cat, defaultControl, cfg.SuggestStrength, logger)
	store.SetPublisher(gw.PublishDelta)

	wsSrv := gateway.NewWSServer(cfg.WSAddr, gw, logger)
	apiSrv := gateway.NewRESTServer(cfg.APIAddr, gw, store, browser, logger)

	errCh := make(chan error, 2)
	go func() { errCh <- wsSrv.Start() }()
	go func() { errCh <- apiSrv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown_signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server_error", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = wsSrv.Shutdown(ctx)
	_ = apiSrv.Shutdown()
	store.Close()
	_ = arch.Close()
}

// buildWriters assembles the archive sinks from the environment. With neither
// Redis nor Postgres configured, finished games stay in process memory only.
// The returned browser backs the recent-games listing; Redis when available,
// the in-process sink otherwise.
func buildWriters(cfg *appcfg.AppConfig, logger *zap.Logger) ([]archive.Writer, archive.Browser) {
	var (
		writers []archive.Writer
		browser archive.Browser
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url error: %v", err)
		}
		rw := archive.NewRedisWriter(redis.NewClient(opts), 0)
		writers = append(writers, rw)
		browser = rw
		logger.Info("archive_redis_enabled")
	}
	if cfg.DatabaseURL != "" {
		pg, err := archive.NewPostgresWriter(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres error: %v", err)
		}
		writers = append(writers, pg)
		logger.Info("archive_postgres_enabled")
	}
	if len(writers) == 0 {
		mem := archive.NewMemoryWriter()
		writers = append(writers, mem)
		browser = mem
	}
	return writers, browser
}
