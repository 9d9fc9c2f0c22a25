// Package memory はセッションをプロセス内メモリに保持するストアを提供します。
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"digitpad/internal/feature/sketchpad/usecase"
)

const (
	// DefaultSessionTTL はアクセスがないセッションを破棄するまでの既定時間です。
	DefaultSessionTTL = 30 * time.Minute
	// DefaultMaxSessions は同時に保持するセッション数の既定の上限です。
	DefaultMaxSessions = 10000
	// sweepInterval は期限切れセッションの掃除を行う最小間隔です。
	sweepInterval = time.Minute
)

// SessionMemory は usecase.SessionStore のインメモリ実装です。
// 期限切れセッションはアクセス時に遅延して掃除し、上限を超えると
// 最も長くアクセスのないセッションから破棄します。
//
// セッションの活動状況はロックなしで読むため、ストアのロック中に
// セッションのロックを取ることはありません。
type SessionMemory struct {
	mu          sync.Mutex
	sessions    map[string]*usecase.Session
	ttl         time.Duration
	maxSessions int
	now         func() time.Time
	lastSweep   time.Time
}

var _ usecase.SessionStore = (*SessionMemory)(nil)

// Option はSessionMemoryの設定を変更します。
type Option func(*SessionMemory)

// WithMaxSessions は保持するセッション数の上限を設定します。0以下は無視します。
func WithMaxSessions(n int) Option {
	return func(m *SessionMemory) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// NewSessionMemory はSessionMemoryを生成します。ttl が0以下の場合は既定値を使います。
func NewSessionMemory(ttl time.Duration, opts ...Option) *SessionMemory {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	m := &SessionMemory{
		sessions:    make(map[string]*usecase.Session),
		ttl:         ttl,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetOrCreate はIDに対応するセッションを返します。存在しないか期限切れなら新規作成します。
func (m *SessionMemory) GetOrCreate(ctx context.Context, id string) (*usecase.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweepLocked(now, false)

	if s, ok := m.sessions[id]; ok && s.IdleSince(now) <= m.ttl {
		return s, nil
	}
	delete(m.sessions, id)

	if len(m.sessions) >= m.maxSessions {
		m.sweepLocked(now, true)
		for len(m.sessions) >= m.maxSessions {
			if !m.evictOldestLocked() {
				break
			}
		}
	}

	s := usecase.NewSession(now)
	m.sessions[id] = s
	return s, nil
}

// Len は保持しているセッション数を返します。
func (m *SessionMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SessionMemory) sweepLocked(now time.Time, force bool) {
	if !force && now.Sub(m.lastSweep) < sweepInterval {
		return
	}
	m.lastSweep = now

	removed := 0
	for id, s := range m.sessions {
		if s.IdleSince(now) > m.ttl {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("期限切れセッションを削除", "removed", removed, "remaining", len(m.sessions))
	}
}

// evictOldestLocked は予測中でないセッションのうち最終アクセスが最も古いものを破棄します。
// 破棄できるセッションがなければ false を返します。
func (m *SessionMemory) evictOldestLocked() bool {
	var (
		oldestID string
		oldest   time.Time
		found    bool
	)
	for id, s := range m.sessions {
		if s.Loading() {
			continue
		}
		if seen := s.LastSeen(); !found || seen.Before(oldest) {
			oldestID, oldest, found = id, seen, true
		}
	}
	if !found {
		return false
	}
	delete(m.sessions, oldestID)
	slog.Warn("セッション数の上限に達したため古いセッションを破棄", "limit", m.maxSessions)
	return true
}
