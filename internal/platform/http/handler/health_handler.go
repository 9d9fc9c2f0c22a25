// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"digitpad/internal/api"
)

// probeTimeout は推論サービスの疎通確認に使う上限時間です。
const probeTimeout = 2 * time.Second

// Pinger は依存サービスの疎通確認インターフェースです。
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler はサービスヘルスチェック用の /healthz エンドポイントを処理します。
type HealthHandler struct {
	backend      string
	probe        Pinger // nil の場合は推論サービスを確認しない
	cacheEnabled bool
}

// NewHealthHandler はHealthHandlerを生成します。
func NewHealthHandler(backend string, probe Pinger, cacheEnabled bool) *HealthHandler {
	return &HealthHandler{backend: backend, probe: probe, cacheEnabled: cacheEnabled}
}

// Health はHTTPメソッドに応じて適切にレスポンスし、キャッシュを防止します。
// 推論サービスの確認に失敗した場合は 503 と "degraded" を返します。
func (h *HealthHandler) Health(c *gin.Context) {
	// 明示的にキャッシュを防止
	c.Header("Cache-Control", "no-store")

	switch c.Request.Method {
	case http.MethodHead:
		c.Status(http.StatusOK)
		return
	case http.MethodOptions:
		c.Status(http.StatusNoContent)
		return
	}

	res := api.HealthResponse{Status: "ok", Backend: h.backend, Cache: "disabled"}
	if h.cacheEnabled {
		res.Cache = "enabled"
	}

	status := http.StatusOK
	if h.probe != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
		defer cancel()
		if err := h.probe.Ping(ctx); err != nil {
			slog.Warn("推論サービスの疎通確認に失敗", "error", err, "backend", h.backend)
			res.Status = "degraded"
			res.Inference = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			res.Inference = "ok"
		}
	}
	c.JSON(status, res)
}
