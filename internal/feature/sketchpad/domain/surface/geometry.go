package surface

import (
	"math"

	"digitpad/internal/feature/sketchpad/domain/entity"
)

// Rect はピクセル単位の矩形（原点とサイズ）です。
type Rect struct {
	X int
	Y int
	W int
	H int
}

// Clamp は v を [0, 1] に収めます。NaN は 0 として扱います。
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// BoxRect はクランプ済みの正規化矩形を w×h の描画面上のピクセル矩形に変換します。
// 原点は (xmin·w, ymin·h)、サイズは ((xmax−xmin)·w, (ymax−ymin)·h) を最も近い整数に丸めた値です。
func BoxRect(box entity.BoundingBox, w, h int) Rect {
	xmin, ymin := Clamp(box[0]), Clamp(box[1])
	xmax, ymax := Clamp(box[2]), Clamp(box[3])
	fw, fh := float64(w), float64(h)

	return Rect{
		X: int(math.Round(xmin * fw)),
		Y: int(math.Round(ymin * fh)),
		W: int(math.Round((xmax - xmin) * fw)),
		H: int(math.Round((ymax - ymin) * fh)),
	}
}
