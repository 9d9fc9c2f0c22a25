// Package di provides dependency injection factories for creating application components.
package di

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"digitpad/internal/feature/sketchpad/adapters/gemini"
	"digitpad/internal/feature/sketchpad/adapters/inference"
	"digitpad/internal/feature/sketchpad/adapters/vision"
	"digitpad/internal/feature/sketchpad/usecase"
	"digitpad/internal/platform/cache"
	"digitpad/internal/platform/config"
	infrahttp "digitpad/internal/platform/http"
	"digitpad/internal/platform/http/handler"
)

// Inference is the configured classifier together with what the server needs around it.
type Inference struct {
	Backend    string
	Classifier usecase.Classifier
	// Probe is nil unless INFERENCE_HEALTHCHECK is set for the http backend.
	Probe        handler.Pinger
	CacheEnabled bool

	close func() error
}

// Close releases the backend client, if it holds one.
func (i *Inference) Close() error {
	if i.close == nil {
		return nil
	}
	return i.close()
}

// NewInference selects the classifier backend from cfg and wraps it with the
// Redis prediction cache. A nil rdb runs without cache.
func NewInference(ctx context.Context, cfg config.Config, rdb *redis.Client) (*Inference, error) {
	inf := &Inference{Backend: cfg.InferenceBackend}

	var inner usecase.Classifier
	switch cfg.InferenceBackend {
	case config.BackendHTTP, "":
		client := inference.NewClient(cfg.InferenceURL, infrahttp.NewHTTPClient(cfg.InferenceTimeout))
		inner = client
		inf.Backend = client.Name()
		if cfg.InferenceHealthcheck {
			inf.Probe = client
		}
	case config.BackendVision:
		client, err := vision.NewVisionClassifier(ctx)
		if err != nil {
			return nil, fmt.Errorf("create vision classifier: %w", err)
		}
		inner = client
		inf.close = client.Close
	case config.BackendGemini:
		client, err := gemini.NewGeminiClassifier(ctx, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("create gemini classifier: %w", err)
		}
		inner = client
	default:
		return nil, fmt.Errorf("unknown inference backend %q", cfg.InferenceBackend)
	}

	cached := cache.NewCachingClassifier(rdb, cfg.PredictionCacheTTL, inner, "predictions:"+inf.Backend)
	inf.Classifier = cached
	inf.CacheEnabled = cached.Enabled()
	return inf, nil
}
