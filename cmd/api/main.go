// API entry point: loads configuration, wires the store adapters and
// serves the likes endpoints.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ridersalliance/petition-likes/internal/app/httpapi"
	"github.com/ridersalliance/petition-likes/internal/app/likes"
	"github.com/ridersalliance/petition-likes/internal/domain"
	"github.com/ridersalliance/petition-likes/internal/platform/clock"
	"github.com/ridersalliance/petition-likes/internal/platform/config"
	"github.com/ridersalliance/petition-likes/internal/platform/health"
	"github.com/ridersalliance/petition-likes/internal/platform/ids"
	"github.com/ridersalliance/petition-likes/internal/platform/logger"
	"github.com/ridersalliance/petition-likes/internal/platform/migrations"
	postgresstorage "github.com/ridersalliance/petition-likes/internal/platform/storage/postgres"
	redisstorage "github.com/ridersalliance/petition-likes/internal/platform/storage/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}
	logger.Configure(cfg.LogLevel)

	db, err := postgresstorage.Open(ctx, cfg.PostgresDSN())
	if err != nil {
		logger.Fatal("postgres connection failed", "err", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("sql.DB unavailable", "err", err)
	}
	defer sqlDB.Close()

	// One guard serves eager startup migration and the lazy per-request
	// path; warming it here just moves the first bootstrap off the
	// request path.
	bootstrap := migrations.NewBootstrapper(db)
	if cfg.AutoMigrate {
		if err := bootstrap.Ensure(ctx); err != nil {
			logger.Fatal("schema bootstrap failed", "err", err)
		}
	}

	// Redis is optional: without it GETs always hit the store.
	var redisClient *goredis.Client
	var cache domain.CounterCache
	if cfg.RedisAddr != "" {
		redisClient, err = redisstorage.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("redis connection failed", "err", err)
		}
		defer redisClient.Close()
		cache = redisstorage.NewCounterCache(redisClient, "likes", cfg.CacheTTL)
	}

	ledger := postgresstorage.NewLedgerRepository(db)
	rates := postgresstorage.NewRateWindowRepository(db)

	service := likes.NewService(
		ledger,
		rates,
		cache,
		clock.NewSystemClock(),
		ids.NewGenerator(),
		likes.RatePolicy{
			WindowSeconds: cfg.RateLimitWindowSeconds,
			MaxRequests:   cfg.RateLimitMaxRequests,
		},
	)

	mux := http.NewServeMux()
	checker := health.NewChecker(sqlDB, redisClient)

	api := httpapi.New(service, bootstrap, httpapi.Options{
		AllowedOrigins:    cfg.AllowedOrigins,
		ClientIPHeader:    cfg.ClientIPHeader,
		RetryAfterSeconds: cfg.RateLimitWindowSeconds,
		ExposeErrorDetail: cfg.Development(),
	}, logger.L())
	api.Register(mux)
	mux.HandleFunc("/readyz", checker.ReadyHandler())
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("api listening", "addr", cfg.HTTPAddress)
	if err := http.ListenAndServe(cfg.HTTPAddress, mux); err != nil {
		logger.Fatal("server error", "err", err)
	}
}
