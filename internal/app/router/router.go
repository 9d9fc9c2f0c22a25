// Package router はHTTPルーティングを組み立てます。
package router

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	sketchpadhandler "digitpad/internal/feature/sketchpad/transport/handler"
	"digitpad/internal/platform/http/handler"
	"digitpad/internal/platform/http/middleware"
	"digitpad/internal/shared/ratelimiter"
	"digitpad/web"
)

// Options はルーター生成時の依存とオプションです。
type Options struct {
	Logger      *slog.Logger
	CORSOrigins []string
	// PredictLimiter が nil の場合、予測エンドポイントは制限しない
	PredictLimiter *ratelimiter.RateLimiter
}

// NewRouter はスケッチパッドのエンドポイントを登録したgin.Engineを返します。
func NewRouter(pad *sketchpadhandler.SketchpadHandler, health *handler.HealthHandler, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(logger))

	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(corsConfig(opts.CORSOrigins)))
	}

	// 導通確認用
	r.GET("/healthz", health.Health)
	r.HEAD("/healthz", health.Health)
	r.OPTIONS("/healthz", health.Health)

	// 描画画面
	r.GET("/", web.Index)

	pads := r.Group("/api/v1/pad")
	pads.Use(pad.Session())
	{
		pads.GET("/state", pad.State)
		pads.POST("/strokes", pad.Stroke)
		pads.POST("/clear", pad.Clear)
		pads.GET("/canvas.png", pad.Canvas)
		pads.GET("/image", pad.Image)
		if opts.PredictLimiter != nil {
			pads.POST("/predict", opts.PredictLimiter.MiddlewareFunc(pad.RateLimited), pad.Predict)
		} else {
			pads.POST("/predict", pad.Predict)
		}
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			// ワイルドカードではクッキーを送れない
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
