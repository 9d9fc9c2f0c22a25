package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromEnv(envMap(nil))

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "http://127.0.0.1:5000/predict", cfg.InferenceURL)
	assert.Equal(t, 10*time.Second, cfg.InferenceTimeout)
	assert.False(t, cfg.RedisEnabled())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromEnv(envMap(map[string]string{
		"PORT":                  "9090",
		"INFERENCE_BACKEND":     "Gemini",
		"INFERENCE_URL":         "http://inference:5000/predict",
		"INFERENCE_TIMEOUT":     "3s",
		"INFERENCE_HEALTHCHECK": "true",
		"GEMINI_MODEL":          "gemini-2.5-pro",
		"REDIS_HOST":            "redis",
		"REDIS_PORT":            "6380",
		"REDIS_PASSWORD":        "secret",
		"PREDICTION_CACHE_TTL":  "1m",
		"SESSION_TTL":           "5m",
		"MAX_SESSIONS":          "200",
		"RATE_LIMIT_RPS":        "0.5",
		"RATE_LIMIT_BURST":      "2",
		"CORS_ORIGINS":          "http://localhost:5173, https://pad.example.com ,",
		"LOG_LEVEL":             "DEBUG",
		"LOG_FILE":              "/tmp/digitpad.log",
	}))

	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendGemini, cfg.InferenceBackend)
	assert.Equal(t, "http://inference:5000/predict", cfg.InferenceURL)
	assert.Equal(t, 3*time.Second, cfg.InferenceTimeout)
	assert.True(t, cfg.InferenceHealthcheck)
	assert.Equal(t, "gemini-2.5-pro", cfg.GeminiModel)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, "redis:6380", cfg.RedisAddr())
	assert.Equal(t, "secret", cfg.RedisPassword)
	assert.Equal(t, time.Minute, cfg.PredictionCacheTTL)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 200, cfg.MaxSessions)
	assert.Equal(t, 0.5, cfg.RateLimitRPS)
	assert.Equal(t, 2, cfg.RateLimitBurst)
	assert.Equal(t, []string{"http://localhost:5173", "https://pad.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/digitpad.log", cfg.LogFile)
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"INFERENCE_BACKEND": "onnx"}},
		{"bad url", map[string]string{"INFERENCE_URL": "not a url"}},
		{"bad duration", map[string]string{"INFERENCE_TIMEOUT": "ten seconds"}},
		{"zero timeout", map[string]string{"INFERENCE_TIMEOUT": "0s"}},
		{"non numeric port", map[string]string{"PORT": "http"}},
		{"bad bool", map[string]string{"INFERENCE_HEALTHCHECK": "maybe"}},
		{"zero rps", map[string]string{"RATE_LIMIT_RPS": "0"}},
		{"bad burst", map[string]string{"RATE_LIMIT_BURST": "lots"}},
		{"zero burst", map[string]string{"RATE_LIMIT_BURST": "0"}},
		{"bad max sessions", map[string]string{"MAX_SESSIONS": "many"}},
		{"zero max sessions", map[string]string{"MAX_SESSIONS": "0"}},
		{"bad cors origin", map[string]string{"CORS_ORIGINS": "localhost"}},
		{"unknown log level", map[string]string{"LOG_LEVEL": "verbose"}},
		{"non numeric redis port", map[string]string{"REDIS_HOST": "redis", "REDIS_PORT": "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadFromEnv(envMap(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromEnv_WildcardCORS(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromEnv(envMap(map[string]string{"CORS_ORIGINS": "*"}))

	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestConfig_RedisAddr_DefaultPort(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.RedisHost = "localhost"

	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SESSION_TTL=7m\n"), 0o600))
	t.Setenv("SESSION_TTL", "")
	require.NoError(t, os.Unsetenv("SESSION_TTL"))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 7*time.Minute, cfg.SessionTTL)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.NoError(t, err)
}
