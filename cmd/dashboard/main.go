package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-logr/zapr"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/audit"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/cluster"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/config"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/logging"
	mngr "github.com/language-operator/language-operator-dashboard-sub001/internal/manager"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/observability"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/ratelimit"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/store"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	ctrl "sigs.k8s.io/controller-runtime"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.L.Fatal("config", zap.Error(err))
	}
	logging.SetLevel(cfg.LogLevel)
	ctrl.SetLogger(zapr.NewLogger(logging.L))
	ctx := ctrl.SetupSignalHandler()

	if closer, err := observability.SetupOTel(ctx, observability.Config{
		ServiceName:    "langop-dashboard",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
	}); err != nil {
		logging.L.Warn("otel_setup_failed", zap.Error(err))
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = closer(shutdownCtx)
		}()
	}

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logging.L.Fatal("store open", zap.Error(err))
	}
	defer st.Close(context.Background())
	if err := st.Health(ctx); err != nil {
		logging.L.Fatal("store health check", zap.Error(err))
	}

	kube, err := cluster.NewClient(cfg.Kubeconfig, cfg.KubeTimeout)
	if err != nil {
		logging.L.Fatal("kubernetes client", zap.Error(err))
	}

	var (
		failures ratelimit.FailureCounter = ratelimit.NewMemory(cfg.AuthFailureThreshold, cfg.AuthFailureWindow)
		sink     audit.Sink               = audit.NewMemory(cfg.AuditRetention)
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logging.L.Fatal("redis ping", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		failures = ratelimit.NewRedis(rdb, cfg.AuthFailureThreshold, cfg.AuthFailureWindow)
		sink = audit.NewRedisSink(rdb, cfg.AuditRetention)
		logging.L.Info("redis_enabled", zap.String("addr", cfg.RedisAddr))
	}

	srv := mngr.NewServer(mngr.Options{
		Store:             st,
		Kube:              kube,
		Failures:          failures,
		Audit:             sink,
		RequireAuth:       cfg.RequireAuth,
		SigningKey:        []byte(cfg.SigningKey),
		RequestsPerMinute: cfg.RequestsPerMinute,
		InviteTTL:         cfg.InviteTTL,
		Version:           cfg.Version,
	})
	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	logging.L.Info("dashboard listening",
		zap.String("addr", s.Addr),
		zap.Bool("require_auth", cfg.RequireAuth),
		zap.String("environment", cfg.Environment),
	)
	if err := mngr.StartHTTP(ctx, s); err != nil && !errors.Is(err, context.Canceled) {
		logging.L.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}
