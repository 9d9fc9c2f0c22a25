package di

import (
	"digitpad/internal/feature/sketchpad/adapters/memory"
	"digitpad/internal/feature/sketchpad/usecase"
	"digitpad/internal/platform/config"
)

// NewSessionStore creates the SessionStore used by the sketchpad usecase.
// Sessions hold a live raster and an in-flight flag, so they stay in process memory,
// bounded by MAX_SESSIONS.
func NewSessionStore(cfg config.Config) usecase.SessionStore {
	return memory.NewSessionMemory(cfg.SessionTTL, memory.WithMaxSessions(cfg.MaxSessions))
}
