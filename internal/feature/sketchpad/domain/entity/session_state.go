package entity

import (
	"slices"
	"strconv"
	"time"
)

const (
	// MaxHistory は履歴に保持する最大件数です。
	MaxHistory = 5
	// DefaultPrediction は予測前の表示ラベルです。
	DefaultPrediction = "-"
	// HistoryTimeFormat は履歴エントリの時刻表示形式です。
	HistoryTimeFormat = "15:04:05"
)

// Status はセッションの予測サイクル上の状態です。
type Status string

const (
	StatusIdle       Status = "idle"
	StatusPredicting Status = "predicting"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// HistoryEntry は成功した予測1件分の履歴です。生成後は変更されません。
type HistoryEntry struct {
	Digit      int
	Confidence float64
	Time       string
	Thumbnail  string // 予測時点の描画の縮小画像（data URI）
}

// SessionState はセッションのUI状態を表す値オブジェクトです。
// 遷移メソッドはすべて値レシーバで、新しい状態を返します。
type SessionState struct {
	Prediction string
	Confidence float64
	Loading    bool
	Status     Status
	Error      string       // ユーザー向けのエラー表示（failed 時のみ）
	Box        *BoundingBox // 直近の予測の外接矩形（クリアで消える）
	History    []HistoryEntry
}

// NewSessionState は初期状態（Idle）を返します。
func NewSessionState() SessionState {
	return SessionState{
		Prediction: DefaultPrediction,
		Status:     StatusIdle,
	}
}

// BeginPredict は Idle → Predicting に遷移します。
// 既に予測中の場合は状態を変えずに false を返します。
func (s SessionState) BeginPredict() (SessionState, bool) {
	if s.Loading {
		return s, false
	}
	s.Loading = true
	s.Status = StatusPredicting
	s.Error = ""
	return s, true
}

// ApplyResult は予測結果をラベル・信頼度・履歴に反映します。
// ローディングフラグの解除は Finish で行います。
func (s SessionState) ApplyResult(p Prediction, at time.Time, thumbnail string) SessionState {
	s.Prediction = strconv.Itoa(p.Digit)
	s.Confidence = p.Confidence
	box := p.Box
	s.Box = &box
	s.History = prependHistory(s.History, HistoryEntry{
		Digit:      p.Digit,
		Confidence: p.Confidence,
		Time:       at.Format(HistoryTimeFormat),
		Thumbnail:  thumbnail,
	})
	s.Status = StatusReady
	s.Error = ""
	return s
}

// Finish はローディングフラグを解除します。
func (s SessionState) Finish() SessionState {
	s.Loading = false
	return s
}

// ApplyFailure は失敗した予測サイクルを終了させます。
// 直前の予測ラベルと履歴はそのまま残ります。
func (s SessionState) ApplyFailure(message string) SessionState {
	s.Loading = false
	s.Status = StatusFailed
	s.Error = message
	return s
}

// Clear は表示をデフォルトに戻します。履歴は消しません。
// 予測中にクリアされても進行中の予測は取り消されません。
func (s SessionState) Clear() SessionState {
	s.Prediction = DefaultPrediction
	s.Confidence = 0
	s.Error = ""
	s.Box = nil
	if !s.Loading {
		s.Status = StatusIdle
	}
	return s
}

// Snapshot は履歴を複製した読み取り用のコピーを返します。
func (s SessionState) Snapshot() SessionState {
	s.History = slices.Clone(s.History)
	if s.Box != nil {
		box := *s.Box
		s.Box = &box
	}
	return s
}

func prependHistory(history []HistoryEntry, e HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, 0, MaxHistory)
	out = append(out, e)
	return append(out, history[:min(len(history), MaxHistory-1)]...)
}
