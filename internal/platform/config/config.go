// Package config loads and validates process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Backend names accepted by INFERENCE_BACKEND.
const (
	BackendHTTP   = "http"
	BackendVision = "vision"
	BackendGemini = "gemini"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port string `validate:"required,numeric"`

	InferenceBackend     string        `validate:"oneof=http vision gemini"`
	InferenceURL         string        `validate:"required,url"`
	InferenceTimeout     time.Duration `validate:"gt=0"`
	InferenceHealthcheck bool
	GeminiModel          string

	RedisHost          string
	RedisPort          string `validate:"omitempty,numeric"`
	RedisPassword      string
	PredictionCacheTTL time.Duration `validate:"gte=0"`

	SessionTTL     time.Duration `validate:"gt=0"`
	MaxSessions    int           `validate:"gte=1"`
	RateLimitRPS   float64       `validate:"gt=0"`
	RateLimitBurst int           `validate:"gte=1"`

	CORSOrigins []string `validate:"dive,url|eq=*"`
	LogLevel    string   `validate:"omitempty,oneof=debug info warn error"`
	LogFile     string
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		Port:               "8080",
		InferenceBackend:   BackendHTTP,
		InferenceURL:       "http://127.0.0.1:5000/predict",
		InferenceTimeout:   10 * time.Second,
		GeminiModel:        "gemini-2.5-flash",
		PredictionCacheTTL: 10 * time.Minute,
		SessionTTL:         30 * time.Minute,
		MaxSessions:        10000,
		RateLimitRPS:       5,
		RateLimitBurst:     10,
		LogLevel:           "info",
	}
}

// RedisEnabled reports whether a Redis address is configured.
func (c Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// RedisAddr returns host:port for the Redis client.
func (c Config) RedisAddr() string {
	port := c.RedisPort
	if port == "" {
		port = "6379"
	}
	return c.RedisHost + ":" + port
}

// Load reads an optional .env file and then the environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	} else if err != nil {
		slog.Debug(".env file not found, using process environment")
	}
	return LoadFromEnv(os.LookupEnv)
}

// LoadFromEnv builds a Config from lookup and validates it.
func LoadFromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("PORT", &cfg.Port)
	str("INFERENCE_BACKEND", &cfg.InferenceBackend)
	cfg.InferenceBackend = strings.ToLower(cfg.InferenceBackend)
	str("INFERENCE_URL", &cfg.InferenceURL)
	dur("INFERENCE_TIMEOUT", &cfg.InferenceTimeout)
	if v, ok := lookup("INFERENCE_HEALTHCHECK"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("INFERENCE_HEALTHCHECK: %w", err))
		}
		cfg.InferenceHealthcheck = b
	}
	str("GEMINI_MODEL", &cfg.GeminiModel)

	str("REDIS_HOST", &cfg.RedisHost)
	str("REDIS_PORT", &cfg.RedisPort)
	if v, ok := lookup("REDIS_PASSWORD"); ok {
		cfg.RedisPassword = v
	}
	dur("PREDICTION_CACHE_TTL", &cfg.PredictionCacheTTL)

	dur("SESSION_TTL", &cfg.SessionTTL)
	if v, ok := lookup("MAX_SESSIONS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_SESSIONS: %w", err))
		}
		cfg.MaxSessions = n
	}
	if v, ok := lookup("RATE_LIMIT_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS: %w", err))
		}
		cfg.RateLimitRPS = f
	}
	if v, ok := lookup("RATE_LIMIT_BURST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST: %w", err))
		}
		cfg.RateLimitBurst = n
	}

	if v, ok := lookup("CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(v)
	}
	str("LOG_LEVEL", &cfg.LogLevel)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	str("LOG_FILE", &cfg.LogFile)

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
