package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digitpad/internal/feature/sketchpad/adapters/inference/dto"
	"digitpad/internal/feature/sketchpad/domain"
	"digitpad/internal/feature/sketchpad/domain/entity"
)

func TestNewClient_DefaultURL(t *testing.T) {
	t.Parallel()

	c := NewClient("", http.DefaultClient)

	assert.Equal(t, DefaultURL, c.endpoint)
}

func TestClient_Classify_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req dto.PredictRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			assert.Equal(t, "data:image/png;base64,cG5n", req.Image)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"digit": 7, "confidence": 93, "bbox": [0.2, 0.1, 0.6, 0.9]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/predict", server.Client())
	got, err := c.Classify(context.Background(), entity.Image{PNG: []byte("png")})

	require.NoError(t, err)
	assert.Equal(t, &entity.Prediction{Digit: 7, Confidence: 93, Box: entity.BoundingBox{0.2, 0.1, 0.6, 0.9}}, got)
}

func TestClient_Classify_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, domain.ErrInferenceUnavailable},
		{"not found", http.StatusNotFound, `not found`, domain.ErrInferenceUnavailable},
		{"malformed body", http.StatusOK, `{"digit":`, domain.ErrMalformedResponse},
		{"short bbox", http.StatusOK, `{"digit": 1, "confidence": 10, "bbox": [0, 0]}`, domain.ErrMalformedResponse},
		{"blank canvas", http.StatusOK, `{"digit": -1, "bbox": [0, 0, 1, 1]}`, domain.ErrNoDigit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(server.URL, server.Client())
			got, err := c.Classify(context.Background(), entity.Image{PNG: []byte("png")})

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)
		})
	}
}

func TestClient_Classify_Unreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient(url, &http.Client{Timeout: time.Second})
	_, err := c.Classify(context.Background(), entity.Image{PNG: []byte("png")})

	assert.ErrorIs(t, err, domain.ErrInferenceUnavailable)
}

func TestClient_Classify_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewClient(server.URL, server.Client())
	_, err := c.Classify(ctx, entity.Image{PNG: []byte("png")})

	assert.ErrorIs(t, err, domain.ErrInferenceUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Ping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"banner served", http.StatusOK, false},
		{"service error", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("Digit recognition API is running"))
			}))
			defer server.Close()

			c := NewClient(server.URL+"/predict?v=1", server.Client())
			err := c.Ping(context.Background())

			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInferenceUnavailable)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", truncate([]byte("abc"), 5))
	assert.Equal(t, "ab...", truncate([]byte("abcdef"), 2))
	assert.True(t, strings.HasSuffix(truncate([]byte(strings.Repeat("x", 300)), 200), "..."))
}
