// Package entity はsketchpadフィーチャーのドメインモデルを定義します。
package entity

import "encoding/base64"

// PNGDataURIPrefix はPNG画像のdata URIの接頭辞です。
const PNGDataURIPrefix = "data:image/png;base64,"

// BoundingBox は正規化された外接矩形 [xmin, ymin, xmax, ymax] です。
// 各値は名目上 0.0〜1.0 ですが、範囲外の値も受け付けます（描画時にクランプ）。
type BoundingBox [4]float64

// Prediction は推論サービスが返した1回分の分類結果を表します。
type Prediction struct {
	Digit      int         // 予測された数字（0〜9）
	Confidence float64     // 信頼度（パーセント）
	Box        BoundingBox // 数字の外接矩形
}

// Image はPNGエンコード済みのキャンバス画像です。
type Image struct {
	PNG []byte
}

// DataURI は画像をbase64のdata URIとして返します。
func (i Image) DataURI() string {
	return PNGDataURIPrefix + base64.StdEncoding.EncodeToString(i.PNG)
}

// Point は描画面ローカル座標上の1点です。
type Point struct {
	X float64
	Y float64
}
