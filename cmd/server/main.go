package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apphttp "github.com/amakane-hakari/kairos/internal/api/http"
	"github.com/amakane-hakari/kairos/internal/config"
	"github.com/amakane-hakari/kairos/internal/evictmap"
	ilog "github.com/amakane-hakari/kairos/internal/log"
	"github.com/amakane-hakari/kairos/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	if addr := os.Getenv("KAIROS_HTTP_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}

	logger := ilog.New()

	scheduler, err := buildScheduler(cfg.Server.Map)
	if err != nil {
		log.Fatalf("build scheduler: %v", err)
	}
	defer scheduler.Shutdown()

	m := evictmap.NewWithScheduler[string, string](
		scheduler,
		evictmap.WithShards(cfg.Server.Map.Shards),
		evictmap.WithLogger(logger),
		evictmap.WithMetrics(metrics.NewProm("kairos")),
	)

	router := apphttp.NewRouter(m, logger)
	router.SetDefaultTTL(cfg.Server.DefaultTTL)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, *configPath, logger, func(c *config.Config) {
				// ホットリロードの対象は既定 TTL のみ。マップと
				// スケジューラの構成変更は再起動が必要。
				router.SetDefaultTTL(c.Server.DefaultTTL)
			})
			if err != nil {
				logger.Error("config.watch.start.failed", "err", err)
			}
		}()
	}

	logger.Info("server.start", "addr", cfg.Server.Addr,
		"scheduler", cfg.Server.Map.Scheduler, "queue", cfg.Server.Map.Queue)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("server.shutdown.signal")
	case err := <-errCh:
		logger.Error("server.error", "err", err)
	}

	apphttp.SetDraining(true)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server.shutdown.error", "err", err)
	} else {
		logger.Info("server.stopped")
	}
}

func buildScheduler(cfg config.MapConfig) (evictmap.EvictionScheduler[string, string], error) {
	queue := func() evictmap.EvictionQueue[string, string] {
		if cfg.Queue == config.QueueHeap {
			return evictmap.NewHeapEvictionQueue[string, string]()
		}
		return evictmap.NewSortedMapEvictionQueue[string, string]()
	}

	switch cfg.Scheduler {
	case config.SchedulerThread:
		return evictmap.NewThreadScheduler[string, string](queue()), nil
	case config.SchedulerInterval:
		return evictmap.NewIntervalScheduler[string, string](cfg.Delay, queue()), nil
	case config.SchedulerDelayed:
		return evictmap.NewDelayedScheduler[string, string](queue()), nil
	case config.SchedulerTimer:
		return evictmap.NewTimerScheduler[string, string](), nil
	case config.SchedulerNone:
		return evictmap.NoopScheduler[string, string]{}, nil
	default:
		return nil, fmt.Errorf("unknown scheduler %q", cfg.Scheduler)
	}
}
