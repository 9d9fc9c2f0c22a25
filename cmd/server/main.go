package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	redisv9 "github.com/redis/go-redis/v9"

	"digitpad/internal/app/di"
	"digitpad/internal/app/router"
	sketchpadhandler "digitpad/internal/feature/sketchpad/transport/handler"
	"digitpad/internal/feature/sketchpad/usecase"
	"digitpad/internal/platform/config"
	"digitpad/internal/platform/http/handler"
	"digitpad/internal/platform/logger"
	infraredis "digitpad/internal/platform/redis"
	"digitpad/internal/shared/ratelimiter"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 設定（.env は任意）
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// ロガー
	log, closer := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer func() { _ = closer.Close() }()
	slog.SetDefault(log)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis（任意）
	var rdb *redisv9.Client
	if cfg.RedisEnabled() {
		if tmp, err := infraredis.NewRedisClient(ctx, infraredis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
		}); err != nil {
			slog.Warn("Redis unavailable. Running without prediction cache.")
		} else {
			rdb = tmp
			defer func() {
				if err := rdb.Close(); err != nil {
					slog.Error("failed to close Redis client", "error", err)
				}
			}()
		}
	}

	// 推論バックエンド
	inf, err := di.NewInference(ctx, cfg, rdb)
	if err != nil {
		return err
	}
	defer func() {
		if err := inf.Close(); err != nil {
			slog.Error("failed to close inference client", "error", err)
		}
	}()

	// Usecase / Handler
	padUC := usecase.NewSketchpadUsecase(di.NewSessionStore(cfg), inf.Classifier,
		usecase.WithTimeout(cfg.InferenceTimeout))
	padH := sketchpadhandler.NewSketchpadHandler(padUC)
	healthH := handler.NewHealthHandler(inf.Backend, inf.Probe, inf.CacheEnabled)

	// ルータ生成
	r := router.NewRouter(padH, healthH, router.Options{
		Logger:         log,
		CORSOrigins:    cfg.CORSOrigins,
		PredictLimiter: ratelimiter.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening",
			"addr", srv.Addr,
			"backend", inf.Backend,
			"cache", inf.CacheEnabled,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
