// Package inference は数字分類の推論サービス（HTTP/JSON）のクライアントを提供します。
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"digitpad/internal/feature/sketchpad/adapters/inference/dto"
	"digitpad/internal/feature/sketchpad/domain"
	"digitpad/internal/feature/sketchpad/domain/entity"
	"digitpad/internal/feature/sketchpad/usecase"
)

const (
	// DefaultURL は推論サービスの既定の予測エンドポイントです。
	DefaultURL = "http://127.0.0.1:5000/predict"
	// maxResponseBytes はレスポンスボディの読み取り上限です。
	maxResponseBytes = 1 << 20
)

// Client は推論サービスの予測エンドポイントを呼び出す Classifier 実装です。
type Client struct {
	endpoint string
	client   *http.Client
}

// ClientがClassifierを実装していることをコンパイル時に検証します。
var _ usecase.Classifier = (*Client)(nil)

// NewClient は指定されたエンドポイントとHTTPクライアントでClientを生成します。
func NewClient(endpoint string, client *http.Client) *Client {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	return &Client{endpoint: endpoint, client: client}
}

// Name はバックエンド名を返します。
func (c *Client) Name() string { return "http" }

// Classify は画像をdata URIとしてPOSTし、分類結果を返します。
func (c *Client) Classify(ctx context.Context, img entity.Image) (*entity.Prediction, error) {
	payload, err := json.Marshal(dto.PredictRequest{Image: img.DataURI()})
	if err != nil {
		return nil, fmt.Errorf("encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		// タイムアウトは errors.Is(err, context.DeadlineExceeded) で判別できるよう両方を包む
		return nil, fmt.Errorf("%w: %w", domain.ErrInferenceUnavailable, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrInferenceUnavailable, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		slog.Warn("inference service returned non-2xx", "status", res.StatusCode, "body", truncate(body, 200))
		return nil, fmt.Errorf("%w: http %d", domain.ErrInferenceUnavailable, res.StatusCode)
	}

	return dto.Decode(body)
}

// Ping は推論サービスのルートにGETし、到達可能かを確認します。
func (c *Client) Ping(ctx context.Context) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	u.Path = "/"
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInferenceUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxResponseBytes))
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		return fmt.Errorf("%w: http %d", domain.ErrInferenceUnavailable, res.StatusCode)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
