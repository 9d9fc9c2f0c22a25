// Package vision はGoogle Cloud Vision APIの文字認識（OCR）を使った数字分類クライアントを提供します。
package vision

import (
	"context"
	"fmt"
	"math"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"digitpad/internal/feature/sketchpad/domain"
	"digitpad/internal/feature/sketchpad/domain/entity"
	"digitpad/internal/feature/sketchpad/domain/surface"
	"digitpad/internal/feature/sketchpad/usecase"
)

// VisionClassifier はVision APIのDOCUMENT_TEXT_DETECTIONで描かれた数字を読み取ります。
type VisionClassifier struct {
	client *gvision.ImageAnnotatorClient
}

// VisionClassifierがClassifierを実装していることをコンパイル時に検証します。
var _ usecase.Classifier = (*VisionClassifier)(nil)

// NewVisionClassifier はADCを使用してVisionClassifierの新しいインスタンスを生成します。
func NewVisionClassifier(ctx context.Context) (*VisionClassifier, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &VisionClassifier{client: client}, nil
}

// Close はVision APIクライアントを解放します。
func (v *VisionClassifier) Close() error {
	return v.client.Close()
}

// Name はバックエンド名を返します。
func (v *VisionClassifier) Name() string { return "vision" }

// Classify はPNG画像から最も確からしい1文字の数字を返します。
func (v *VisionClassifier) Classify(ctx context.Context, img entity.Image) (*entity.Prediction, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: img.PNG},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: vision API request failed: %w", domain.ErrInferenceUnavailable, err)
	}
	if len(resp.Responses) == 0 {
		return nil, fmt.Errorf("%w: empty vision response", domain.ErrMalformedResponse)
	}
	if resp.Responses[0].Error != nil {
		return nil, fmt.Errorf("%w: vision API error: %s", domain.ErrInferenceUnavailable, resp.Responses[0].Error.Message)
	}

	return bestDigit(resp.Responses[0].FullTextAnnotation)
}

// bestDigit は認識結果のうち信頼度が最も高い数字1文字を選び、予測結果に変換します。
func bestDigit(ann *visionpb.TextAnnotation) (*entity.Prediction, error) {
	if ann == nil {
		return nil, domain.ErrNoDigit
	}

	var (
		best     *visionpb.Symbol
		bestPage *visionpb.Page
	)
	for _, page := range ann.GetPages() {
		for _, block := range page.GetBlocks() {
			for _, para := range block.GetParagraphs() {
				for _, word := range para.GetWords() {
					for _, sym := range word.GetSymbols() {
						if !isDigit(sym.GetText()) {
							continue
						}
						if best == nil || sym.GetConfidence() > best.GetConfidence() {
							best, bestPage = sym, page
						}
					}
				}
			}
		}
	}
	if best == nil {
		return nil, domain.ErrNoDigit
	}

	return &entity.Prediction{
		Digit:      int(best.GetText()[0] - '0'),
		Confidence: math.Round(float64(best.GetConfidence())*100*100) / 100,
		Box:        normalizedBox(best.GetBoundingBox(), bestPage),
	}, nil
}

// normalizedBox は頂点座標の外接矩形をページサイズで正規化します。
// 頂点がない場合は描画面全体を返します。
func normalizedBox(poly *visionpb.BoundingPoly, page *visionpb.Page) entity.BoundingBox {
	if nv := poly.GetNormalizedVertices(); len(nv) > 0 {
		xmin, ymin, xmax, ymax := math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)
		for _, v := range nv {
			x, y := float64(v.GetX()), float64(v.GetY())
			xmin, ymin = math.Min(xmin, x), math.Min(ymin, y)
			xmax, ymax = math.Max(xmax, x), math.Max(ymax, y)
		}
		return entity.BoundingBox{xmin, ymin, xmax, ymax}
	}

	vs := poly.GetVertices()
	if len(vs) == 0 {
		return entity.BoundingBox{0, 0, 1, 1}
	}
	w, h := float64(page.GetWidth()), float64(page.GetHeight())
	if w <= 0 || h <= 0 {
		w, h = surface.Width, surface.Height
	}
	xmin, ymin, xmax, ymax := math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)
	for _, v := range vs {
		x, y := float64(v.GetX()), float64(v.GetY())
		xmin, ymin = math.Min(xmin, x), math.Min(ymin, y)
		xmax, ymax = math.Max(xmax, x), math.Max(ymax, y)
	}
	return entity.BoundingBox{xmin / w, ymin / h, xmax / w, ymax / h}
}

func isDigit(s string) bool {
	return len(s) == 1 && s[0] >= '0' && s[0] <= '9'
}
