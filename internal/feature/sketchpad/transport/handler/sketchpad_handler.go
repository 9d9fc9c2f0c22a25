// Package handler はsketchpadフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"digitpad/internal/api"
	"digitpad/internal/feature/sketchpad/domain"
	"digitpad/internal/feature/sketchpad/domain/entity"
	"digitpad/internal/feature/sketchpad/domain/surface"
)

const (
	// SessionCookie はセッションIDを保持するクッキー名です。
	SessionCookie = "pad_session"
	// sessionCookieMaxAge はクッキーの有効期間（秒）です。サーバー側の期限はストアが管理します。
	sessionCookieMaxAge = 24 * 60 * 60
	sessionKey          = "pad_session_id"

	// MsgRateLimited は予測の頻度制限に掛かったときの表示です。
	MsgRateLimited = "Too many predictions. Wait a moment and try again."
)

// SketchpadUsecase は描画面と予測セッションのユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type SketchpadUsecase interface {
	State(ctx context.Context, id string) (entity.SessionState, error)
	Stroke(ctx context.Context, id string, points []entity.Point) error
	Clear(ctx context.Context, id string) (entity.SessionState, error)
	Predict(ctx context.Context, id string) (entity.SessionState, error)
	Canvas(ctx context.Context, id string) ([]byte, error)
	ExportImage(ctx context.Context, id string) (string, error)
}

// SketchpadHandler は描画・クリア・予測のHTTPリクエストを処理します。
type SketchpadHandler struct {
	uc SketchpadUsecase
}

// NewSketchpadHandler はSketchpadHandlerの新しいインスタンスを生成します。
func NewSketchpadHandler(uc SketchpadUsecase) *SketchpadHandler {
	return &SketchpadHandler{uc: uc}
}

// Session はセッションクッキーを解決するミドルウェアです。
// クッキーがないか不正な値の場合は新しいUUIDを発行します。
func (h *SketchpadHandler) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, id, sessionCookieMaxAge, "/", "", c.Request.TLS != nil, true)
		}
		c.Set(sessionKey, id)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

// State は現在のセッション状態を返します。
//
// エンドポイント: GET /api/v1/pad/state
func (h *SketchpadHandler) State(c *gin.Context) {
	state, err := h.uc.State(c.Request.Context(), sessionID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStateResponse(state))
}

// Stroke は送られた点を順に描画します。
//
// エンドポイント: POST /api/v1/pad/strokes
// Content-Type: application/json
func (h *SketchpadHandler) Stroke(c *gin.Context) {
	var req api.StrokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("ストロークリクエストのバリデーションに失敗", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "points are required"})
		return
	}

	points := make([]entity.Point, 0, len(req.Points))
	for _, p := range req.Points {
		points = append(points, entity.Point{X: *p.X, Y: *p.Y})
	}

	if err := h.uc.Stroke(c.Request.Context(), sessionID(c), points); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Clear は描画面と予測表示をリセットします。
//
// エンドポイント: POST /api/v1/pad/clear
func (h *SketchpadHandler) Clear(c *gin.Context) {
	state, err := h.uc.Clear(c.Request.Context(), sessionID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStateResponse(state))
}

// Predict は描画を推論サービスに送り、結果を含む状態を返します。
// 予測中の再実行は 409、推論の失敗は 502 で、どちらもボディに状態を含めます。
//
// エンドポイント: POST /api/v1/pad/predict
func (h *SketchpadHandler) Predict(c *gin.Context) {
	id := sessionID(c)
	state, err := h.uc.Predict(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, toStateResponse(state))
	case errors.Is(err, domain.ErrPredictionInFlight):
		c.JSON(http.StatusConflict, toStateResponse(state))
	case state.Status == entity.StatusFailed:
		slog.Error("予測に失敗", "error", err, "session", id)
		c.JSON(http.StatusBadGateway, toStateResponse(state))
	default:
		h.writeError(c, err)
	}
}

// RateLimited は予測の頻度制限に掛かったリクエストに 429 と現在の状態を返します。
func (h *SketchpadHandler) RateLimited(c *gin.Context) {
	state, err := h.uc.State(c.Request.Context(), sessionID(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, api.ErrorResponse{Error: MsgRateLimited})
		return
	}
	res := toStateResponse(state)
	res.Error = MsgRateLimited
	c.AbortWithStatusJSON(http.StatusTooManyRequests, res)
}

// Canvas は現在の描画面をPNGで返します。
//
// エンドポイント: GET /api/v1/pad/canvas.png
func (h *SketchpadHandler) Canvas(c *gin.Context) {
	b, err := h.uc.Canvas(c.Request.Context(), sessionID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", b)
}

// Image は現在の描画面をPNG data URIで返します。
//
// エンドポイント: GET /api/v1/pad/image
func (h *SketchpadHandler) Image(c *gin.Context) {
	uri, err := h.uc.ExportImage(c.Request.Context(), sessionID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.ImageResponse{Image: uri})
}

func (h *SketchpadHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidStroke):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrSessionNotFound):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "session is required"})
	default:
		slog.Error("リクエストの処理に失敗", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "internal server error"})
	}
}

func toStateResponse(s entity.SessionState) api.StateResponse {
	res := api.StateResponse{
		Prediction: s.Prediction,
		Confidence: s.Confidence,
		Loading:    s.Loading,
		Status:     string(s.Status),
		Error:      s.Error,
		History:    make([]api.HistoryEntryResponse, 0, len(s.History)),
		Width:      surface.Width,
		Height:     surface.Height,
	}
	if s.Box != nil {
		r := surface.BoxRect(*s.Box, surface.Width, surface.Height)
		res.Box = &api.BoxResponse{
			Normalized: [4]float64(*s.Box),
			X:          r.X,
			Y:          r.Y,
			Width:      r.W,
			Height:     r.H,
		}
	}
	for _, e := range s.History {
		res.History = append(res.History, api.HistoryEntryResponse{
			Digit:      e.Digit,
			Confidence: e.Confidence,
			Time:       e.Time,
			Thumbnail:  e.Thumbnail,
		})
	}
	return res
}
