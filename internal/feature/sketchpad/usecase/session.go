package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"digitpad/internal/feature/sketchpad/domain/entity"
	"digitpad/internal/feature/sketchpad/domain/surface"
)

// Session は1つのブラウザセッションが所有する描画面とUI状態です。
// 描画面と状態の変更はすべて mu の保護下で行います。
// lastSeen と loading はストアがロックなしで読むための写しです。
type Session struct {
	mu      sync.Mutex
	surface *surface.Surface // 最初のストロークか予測まで nil
	state   entity.SessionState

	lastSeen atomic.Int64 // UnixNano
	loading  atomic.Bool
}

// NewSession は初期状態のセッションを生成します。描画面はまだ確保しません。
func NewSession(now time.Time) *Session {
	s := &Session{state: entity.NewSessionState()}
	s.lastSeen.Store(now.UnixNano())
	return s
}

// Touch は最終アクセス時刻を更新します。時刻は巻き戻しません。
func (s *Session) Touch(now time.Time) {
	n := now.UnixNano()
	for {
		cur := s.lastSeen.Load()
		if n <= cur || s.lastSeen.CompareAndSwap(cur, n) {
			return
		}
	}
}

// LastSeen は最終アクセス時刻を返します。
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Loading は予測中かどうかを返します。
func (s *Session) Loading() bool {
	return s.loading.Load()
}

// IdleSince は最終アクセスからの経過時間を返します。
// 予測中のセッションは期限切れ扱いにしないため 0 を返します。
func (s *Session) IdleSince(now time.Time) time.Duration {
	if s.loading.Load() {
		return 0
	}
	return now.Sub(s.LastSeen())
}

// Allocated は描画面のラスタが確保済みかどうかを返します。
func (s *Session) Allocated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface != nil
}

// canvasLocked は描画面を返し、未確保なら白紙で確保します。mu を保持して呼びます。
func (s *Session) canvasLocked() *surface.Surface {
	if s.surface == nil {
		s.surface = surface.New()
	}
	return s.surface
}

// setStateLocked は状態を置き換えます。mu を保持して呼びます。
func (s *Session) setStateLocked(st entity.SessionState) {
	s.state = st
	s.loading.Store(st.Loading)
}

// SessionStore はセッションIDからセッションを解決するストアインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type SessionStore interface {
	// GetOrCreate はIDに対応するセッションを返します。存在しなければ新規作成します。
	GetOrCreate(ctx context.Context, id string) (*Session, error)
}
