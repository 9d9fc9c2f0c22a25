// Package surface はスケッチパッドの描画面（固定サイズのラスタ）を実装します。
//
// 描画面は常に不透明な白地で、ユーザーの黒いストロークと、
// 予測後に重ねる赤い外接矩形だけが描かれます。
package surface

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sync"

	"github.com/nfnt/resize"

	"digitpad/internal/feature/sketchpad/domain/entity"
)

const (
	// Width は描画面の幅（ピクセル）です。
	Width = 420
	// Height は描画面の高さ（ピクセル）です。
	Height = 420
	// StrokeRadius はストロークの円の半径です。
	StrokeRadius = 12
	// BoxLineWidth は外接矩形の線幅です。
	BoxLineWidth = 4
)

var (
	// Background は描画面の背景色です。
	Background = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	// Ink はストロークの色です。
	Ink = color.RGBA{A: 0xff}
	// BoxColor は外接矩形の色（#ef4444）です。
	BoxColor = color.RGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff}
)

// Surface は描画面です。並行アクセスの保護は呼び出し側（セッション）が行います。
type Surface struct {
	img *image.RGBA
}

// New は白で初期化された描画面を生成します。
func New() *Surface {
	s := &Surface{img: image.NewRGBA(image.Rect(0, 0, Width, Height))}
	s.Initialize()
	return s
}

// Initialize は描画面全体を白で塗りつぶします。
func (s *Surface) Initialize() {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)
}

// Clear は描画面を初期状態に戻します。
func (s *Surface) Clear() {
	s.Initialize()
}

// StrokeAt は (x, y) を中心とする半径 StrokeRadius の黒い円を塗ります。
// 範囲外のピクセルは描画面で切り取られます。
func (s *Surface) StrokeAt(x, y float64) {
	r := float64(StrokeRadius)
	area := image.Rect(
		int(math.Floor(x-r)), int(math.Floor(y-r)),
		int(math.Ceil(x+r))+1, int(math.Ceil(y+r))+1,
	).Intersect(s.img.Bounds())

	for py := area.Min.Y; py < area.Max.Y; py++ {
		for px := area.Min.X; px < area.Max.X; px++ {
			// ピクセル中心で円との内外を判定
			dx := float64(px) + 0.5 - x
			dy := float64(py) + 0.5 - y
			if dx*dx+dy*dy <= r*r {
				s.img.SetRGBA(px, py, Ink)
			}
		}
	}
}

// DrawBoundingBox は正規化された矩形を描画面の座標に変換し、
// 線幅 BoxLineWidth の赤い枠を既存の内容の上に重ねて描きます。
// 戻り値は描画した矩形（線の中心線）です。
func (s *Surface) DrawBoundingBox(box entity.BoundingBox) Rect {
	r := BoxRect(box, Width, Height)
	rect := image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)

	// 線は矩形の辺を中心に内外へ半分ずつ広がる
	half := BoxLineWidth / 2
	outer := rect.Inset(-half)
	inner := image.Rectangle{
		Min: image.Pt(rect.Min.X+half, rect.Min.Y+half),
		Max: image.Pt(rect.Max.X-half, rect.Max.Y-half),
	}

	src := image.NewUniform(BoxColor)
	if inner.Empty() {
		draw.Draw(s.img, outer, src, image.Point{}, draw.Src)
		return r
	}
	bands := []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, inner.Min.Y), // 上
		image.Rect(outer.Min.X, inner.Max.Y, outer.Max.X, outer.Max.Y), // 下
		image.Rect(outer.Min.X, inner.Min.Y, inner.Min.X, inner.Max.Y), // 左
		image.Rect(inner.Max.X, inner.Min.Y, outer.Max.X, inner.Max.Y), // 右
	}
	for _, b := range bands {
		draw.Draw(s.img, b, src, image.Point{}, draw.Src)
	}
	return r
}

var blankPNG = sync.OnceValues(func() ([]byte, error) {
	return New().PNG()
})

// BlankPNG は白紙の描画面のPNGを返します。戻り値は共有されるため変更しないでください。
func BlankPNG() ([]byte, error) {
	return blankPNG()
}

// At は指定ピクセルの色を返します。
func (s *Surface) At(x, y int) color.RGBA {
	return s.img.RGBAAt(x, y)
}

// PNG は現在のラスタをPNGとしてエンコードします。描画面は変更しません。
func (s *Surface) PNG() ([]byte, error) {
	return encodePNG(s.img)
}

// Snapshot は現在のラスタをエンコード済み画像として返します。
func (s *Surface) Snapshot() (entity.Image, error) {
	b, err := s.PNG()
	if err != nil {
		return entity.Image{}, err
	}
	return entity.Image{PNG: b}, nil
}

// ExportImage は現在のラスタをbase64のPNG data URIとして返します。
func (s *Surface) ExportImage() (string, error) {
	img, err := s.Snapshot()
	if err != nil {
		return "", err
	}
	return img.DataURI(), nil
}

// Thumbnail は size×size に縮小したラスタをPNG data URIとして返します。
func (s *Surface) Thumbnail(size uint) (string, error) {
	small := resize.Resize(size, size, s.img, resize.Bilinear)
	b, err := encodePNG(small)
	if err != nil {
		return "", err
	}
	return entity.Image{PNG: b}.DataURI(), nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
