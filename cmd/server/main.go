package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/collabcast/marketplace/internal/api"
	"github.com/collabcast/marketplace/internal/auth"
	"github.com/collabcast/marketplace/internal/chain"
	"github.com/collabcast/marketplace/internal/config"
	"github.com/collabcast/marketplace/internal/db"
	"github.com/collabcast/marketplace/internal/fees"
	"github.com/collabcast/marketplace/internal/ledger"
	"github.com/collabcast/marketplace/internal/market"
	"github.com/collabcast/marketplace/internal/metrics"
	"github.com/collabcast/marketplace/internal/models"
	"github.com/collabcast/marketplace/internal/posting"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := cfg.ValidateServer(); err != nil {
		log.Fatal("invalid server config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Redis ─────────────────────────────────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}

	// ── Database ──────────────────────────────────────────────────────────────
	gdb, err := db.Open(cfg.Database.URL)
	if err != nil {
		log.Fatal("database open failed", zap.Error(err))
	}
	if err := models.AutoMigrate(gdb); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}

	// ── Chain client (only with a fee contract) ───────────────────────────────
	var onchain *chain.Client
	if cfg.Chain.FeeContractConfigured() {
		onchain, err = chain.Dial(ctx, cfg, log)
		if err != nil {
			log.Fatal("chain client init failed", zap.Error(err))
		}
		log.Info("posting fees enforced by contract",
			zap.String("contract", cfg.Chain.FeeContract),
			zap.Int64("chain_id", cfg.Chain.ChainID),
		)
	} else {
		log.Warn("POSTING_FEE_CONTRACT not set, posting is free")
	}

	// ── Posting flow ──────────────────────────────────────────────────────────
	rec := metrics.NewPrometheusRecorder()
	reader := fees.NewReader(onchain, cfg, rdb, rec, log)
	verifier := fees.NewVerifier(onchain, cfg, rec, log)
	payments := ledger.New(gdb, log)
	gate := posting.NewGate(gdb, reader, verifier, payments, rec, log)

	// ── Identity ──────────────────────────────────────────────────────────────
	keys, err := auth.NewJWKS(ctx, cfg.Auth, log)
	if err != nil {
		log.Fatal("jwks init failed", zap.Error(err))
	}
	resolver := auth.NewResolver(auth.NewQuickAuthVerifier(keys, cfg.Auth), gdb, cfg.Auth.AllowAnonymous, rec, log)
	authn := auth.NewAuthenticator(resolver, rdb, cfg.Auth, log)

	// ── HTTP server ───────────────────────────────────────────────────────────
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", api.Health(gdb))
	r.GET("/metrics", gin.WrapH(rec.Handler()))

	group := r.Group("/api", authn.Identify())
	api.NewHandler(reader, gate, market.NewStore(gdb), payments, authn, log).Register(group)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		log.Warn("redis close", zap.Error(err))
	}
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.Close() //nolint:errcheck
	}
	log.Info("shutdown complete")
}

// newLogger builds the production logger at the given level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
