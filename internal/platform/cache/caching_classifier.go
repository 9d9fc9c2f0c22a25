// Package cache provides caching implementations for consumer-side interfaces.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"digitpad/internal/feature/sketchpad/domain/entity"
	"digitpad/internal/feature/sketchpad/usecase"
)

const (
	// DefaultTTL is used when the configured TTL is not positive.
	DefaultTTL = 10 * time.Minute
	// DefaultNamespace is used when no namespace is given.
	DefaultNamespace = "predictions"
)

// CachingClassifier decorates a Classifier with Redis caching keyed by the
// SHA-256 of the PNG bytes. Identical drawings are classified once per TTL,
// and concurrent identical requests share one upstream call.
// Only successful predictions are cached.
type CachingClassifier struct {
	inner     usecase.Classifier
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
	group     singleflight.Group
}

var _ usecase.Classifier = (*CachingClassifier)(nil)

// NewCachingClassifier decorates a Classifier with Redis caching.
// If ttl is 0, it defaults to 10 minutes. If namespace is empty, it uses "predictions".
// A nil rdb disables caching; calls go straight to inner.
func NewCachingClassifier(rdb *redis.Client, ttl time.Duration, inner usecase.Classifier, namespace string) *CachingClassifier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CachingClassifier{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: safe(namespace),
	}
}

// Enabled reports whether a Redis client is configured.
func (c *CachingClassifier) Enabled() bool {
	return c.rdb != nil
}

// Classify returns a cached prediction for the same image, or asks inner and caches the result.
func (c *CachingClassifier) Classify(ctx context.Context, img entity.Image) (*entity.Prediction, error) {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return c.inner.Classify(ctx, img)
	}

	key := c.cacheKey(img.PNG)

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out entity.Prediction
		if err := json.Unmarshal(b, &out); err == nil {
			slog.Debug("prediction cache hit", "key", key)
			return &out, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	} else if err != nil && !errors.Is(err, redis.Nil) {
		slog.Warn("prediction cache read failed", "error", err)
	}

	// 2) Fallback to the classifier, collapsing concurrent identical calls
	v, err, _ := c.group.Do(key, func() (any, error) {
		out, err := c.inner.Classify(ctx, img)
		if err != nil || out == nil {
			return out, err
		}
		// 3) Store in cache (best effort)
		if b, err := json.Marshal(out); err == nil {
			_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	p, ok := v.(*entity.Prediction)
	if !ok {
		return nil, fmt.Errorf("unexpected shared result %T", v)
	}
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// cacheKey generates a cache key for an encoded image.
func (c *CachingClassifier) cacheKey(png []byte) string {
	sum := sha256.Sum256(png)
	return c.namespace + ":" + hex.EncodeToString(sum[:])
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
