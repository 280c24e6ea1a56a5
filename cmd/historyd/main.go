package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/vikstrand/aqhistory/internal/core/config"
	"github.com/vikstrand/aqhistory/internal/core/httpclient"
	"github.com/vikstrand/aqhistory/internal/core/observability"
	"github.com/vikstrand/aqhistory/internal/core/server"
	"github.com/vikstrand/aqhistory/internal/history"
	"github.com/vikstrand/aqhistory/internal/history/assemble"
	"github.com/vikstrand/aqhistory/internal/history/cachestore"
	"github.com/vikstrand/aqhistory/internal/history/redisstore"
	"github.com/vikstrand/aqhistory/internal/history/remote"
	"github.com/vikstrand/aqhistory/internal/history/validate"
	"github.com/vikstrand/aqhistory/internal/invalidation/kafkaconsumer"
	"github.com/vikstrand/aqhistory/internal/logger"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Component: "historyd",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting historyd",
		"addr", cfg.Addr,
		"version", Version,
		"upstream", cfg.AirDataURL,
		"cache_backend", cfg.CacheBackend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store cachestore.Store
	switch cfg.CacheBackend {
	case "redis":
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			appLog.Error("redis client init failed", "err", err)
			return 1
		}
		defer func() { _ = rc.Close() }()
		store = cachestore.NewRedis(rc, cfg.CacheOpTimeout)
	default:
		store = cachestore.NewMemory(cfg.CacheMaxEntries)
	}

	rc, err := remote.New(cfg.AirDataURL, httpclient.NewOutbound(cfg.RemoteTimeout))
	if err != nil {
		appLog.Error("upstream client init failed", "err", err)
		return 1
	}

	svc := history.NewService(
		validate.New(cfg.MaxPageSize, cfg.FutureSkew),
		store,
		assemble.New(rc, cfg.RemotePageSize, appLog),
		appLog,
		history.Options{
			TTLDefault:         cfg.CacheTTLDefault,
			TTLToday:           cfg.CacheTTLToday,
			ConfidenceDefaults: cfg.ConfidenceDefaults,
		},
	)

	if cfg.Invalidation.Enabled {
		consumer := kafkaconsumer.New(
			kafkaconsumer.FromService(cfg.Invalidation.Brokers, cfg.Invalidation.Topic, cfg.Invalidation.GroupID),
			appLog, store)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				appLog.Error("invalidation consumer exited", "err", err)
			}
		}()
	}

	if err := server.Run(ctx, cfg, appLog, svc); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
