// Package usecase はsketchpadフィーチャーのビジネスロジック（予測セッションの制御）を実装します。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"digitpad/internal/feature/sketchpad/domain"
	"digitpad/internal/feature/sketchpad/domain/entity"
	"digitpad/internal/feature/sketchpad/domain/surface"
)

const (
	// MaxStrokePoints は1回のストロークリクエストで受け付ける最大点数です。
	MaxStrokePoints = 4096
	// ThumbnailSize は履歴サムネイルの一辺（ピクセル）です。
	ThumbnailSize = 28
	// DefaultPredictTimeout は推論呼び出しの既定のタイムアウトです。
	DefaultPredictTimeout = 10 * time.Second
)

// ユーザー向けのエラー表示です。信頼度の表示とは別の欄に出します。
const (
	MsgNoDigit            = "No digit detected. Draw a digit and try again."
	MsgInvalidResponse    = "Inference service returned an invalid response"
	MsgTimeout            = "Inference service timed out"
	MsgUnavailable        = "Inference service unavailable"
	MsgUnexpectedFailure  = "Prediction failed unexpectedly"
	MsgCanvasExportFailed = "Could not export the drawing"
)

// Classifier は描画画像から数字を分類する推論バックエンドのインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type Classifier interface {
	// Classify はPNG画像を送信し、分類結果を返します。
	Classify(ctx context.Context, img entity.Image) (*entity.Prediction, error)
}

// Option はsketchpadUsecaseの設定を変更します。
type Option func(*sketchpadUsecase)

// WithClock は履歴の時刻に使う時計を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(u *sketchpadUsecase) { u.now = now }
}

// WithTimeout は推論呼び出しのタイムアウトを設定します。0以下は無視します。
func WithTimeout(d time.Duration) Option {
	return func(u *sketchpadUsecase) {
		if d > 0 {
			u.timeout = d
		}
	}
}

// sketchpadUsecase は描画面の操作と予測サイクルを提供します。
type sketchpadUsecase struct {
	store      SessionStore
	classifier Classifier
	now        func() time.Time
	timeout    time.Duration
}

// NewSketchpadUsecase はsketchpadUsecaseの新しいインスタンスを生成します。
func NewSketchpadUsecase(store SessionStore, classifier Classifier, opts ...Option) *sketchpadUsecase {
	u := &sketchpadUsecase{
		store:      store,
		classifier: classifier,
		now:        time.Now,
		timeout:    DefaultPredictTimeout,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *sketchpadUsecase) session(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, domain.ErrSessionNotFound
	}
	sess, err := u.store.GetOrCreate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve session %q: %w", id, err)
	}
	sess.Touch(u.now())
	return sess, nil
}

// State はセッション状態のスナップショットを返します。
func (u *sketchpadUsecase) State(ctx context.Context, id string) (entity.SessionState, error) {
	sess, err := u.session(ctx, id)
	if err != nil {
		return entity.SessionState{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state.Snapshot(), nil
}

// Stroke は各点を中心に円を順番に描きます。
func (u *sketchpadUsecase) Stroke(ctx context.Context, id string, points []entity.Point) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: no points", domain.ErrInvalidStroke)
	}
	if len(points) > MaxStrokePoints {
		return fmt.Errorf("%w: %d points exceeds maximum of %d", domain.ErrInvalidStroke, len(points), MaxStrokePoints)
	}
	for i, p := range points {
		if !finite(p.X) || !finite(p.Y) {
			return fmt.Errorf("%w: point %d is not finite", domain.ErrInvalidStroke, i)
		}
	}

	sess, err := u.session(ctx, id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	canvas := sess.canvasLocked()
	for _, p := range points {
		canvas.StrokeAt(p.X, p.Y)
	}
	return nil
}

// Clear は描画面を白紙に戻し、予測表示をリセットします。履歴は残します。
func (u *sketchpadUsecase) Clear(ctx context.Context, id string) (entity.SessionState, error) {
	sess, err := u.session(ctx, id)
	if err != nil {
		return entity.SessionState{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.surface != nil {
		sess.surface.Clear()
	}
	sess.setStateLocked(sess.state.Clear())
	return sess.state.Snapshot(), nil
}

// Canvas は現在の描画面をPNGで返します。
func (u *sketchpadUsecase) Canvas(ctx context.Context, id string) ([]byte, error) {
	sess, err := u.session(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.surface == nil {
		// 未描画のセッションには共有の白紙画像を返し、ラスタを確保しない
		return surface.BlankPNG()
	}
	return sess.surface.PNG()
}

// ExportImage は現在の描画面をPNG data URIで返します。
func (u *sketchpadUsecase) ExportImage(ctx context.Context, id string) (string, error) {
	sess, err := u.session(ctx, id)
	if err != nil {
		return "", err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.surface == nil {
		b, err := surface.BlankPNG()
		if err != nil {
			return "", err
		}
		return entity.Image{PNG: b}.DataURI(), nil
	}
	return sess.surface.ExportImage()
}

// Predict は描画を推論サービスに送り、結果をセッションに反映します。
//
// 予測中に呼ばれた場合は状態を変えずに domain.ErrPredictionInFlight を返します。
// 推論呼び出しはセッションのロック外で行うため、待機中もストロークとクリアは受け付けます。
// 失敗時も戻り値の状態は有効で、Error にユーザー向けの表示が入ります。
func (u *sketchpadUsecase) Predict(ctx context.Context, id string) (entity.SessionState, error) {
	sess, err := u.session(ctx, id)
	if err != nil {
		return entity.SessionState{}, err
	}

	sess.mu.Lock()
	next, ok := sess.state.BeginPredict()
	if !ok {
		snap := sess.state.Snapshot()
		sess.mu.Unlock()
		return snap, domain.ErrPredictionInFlight
	}
	sess.setStateLocked(next)
	canvas := sess.canvasLocked()
	img, err := canvas.Snapshot()
	if err != nil {
		sess.setStateLocked(sess.state.ApplyFailure(MsgCanvasExportFailed))
		snap := sess.state.Snapshot()
		sess.mu.Unlock()
		return snap, fmt.Errorf("export canvas: %w", err)
	}
	thumb, err := canvas.Thumbnail(ThumbnailSize)
	if err != nil {
		slog.Warn("サムネイルの生成に失敗", "error", err, "session", id)
		thumb = ""
	}
	sess.mu.Unlock()

	// どの経路で抜けてもローディングを解除する
	settled := false
	defer func() {
		if settled {
			return
		}
		sess.mu.Lock()
		sess.setStateLocked(sess.state.ApplyFailure(MsgUnexpectedFailure))
		sess.mu.Unlock()
	}()

	// クライアントの切断では取り消さない（クリア中の予測も結果を反映する）
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.timeout)
	defer cancel()
	pred, err := u.classifier.Classify(cctx, img)
	if err == nil && pred == nil {
		err = fmt.Errorf("%w: empty result", domain.ErrMalformedResponse)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	settled = true

	if err != nil {
		sess.setStateLocked(sess.state.ApplyFailure(FailureMessage(err)))
		return sess.state.Snapshot(), fmt.Errorf("classify: %w", err)
	}

	sess.setStateLocked(sess.state.ApplyResult(*pred, u.now(), thumb))
	sess.canvasLocked().DrawBoundingBox(pred.Box)
	sess.setStateLocked(sess.state.Finish())
	return sess.state.Snapshot(), nil
}

// FailureMessage は予測エラーをユーザー向けの表示に変換します。
func FailureMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoDigit):
		return MsgNoDigit
	case errors.Is(err, domain.ErrMalformedResponse):
		return MsgInvalidResponse
	case errors.Is(err, context.DeadlineExceeded):
		return MsgTimeout
	default:
		return MsgUnavailable
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
