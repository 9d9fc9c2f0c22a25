// Package gemini はGoogle Gemini APIのマルチモーダル入力を使った数字分類クライアントを提供します。
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"digitpad/internal/feature/sketchpad/adapters/inference/dto"
	"digitpad/internal/feature/sketchpad/domain"
	"digitpad/internal/feature/sketchpad/domain/entity"
	"digitpad/internal/feature/sketchpad/usecase"
)

const (
	// DefaultModel はGemini APIのデフォルトモデルです。
	DefaultModel = "gemini-2.5-flash"

	// ClassifyPrompt は推論サービスと同じJSON形式で回答させるためのプロンプトです。
	ClassifyPrompt = `The image is a 420x420 canvas with a single handwritten digit drawn in black on white.
Reply with JSON only, in the form {"digit": <0-9>, "confidence": <0-100>, "bbox": [xmin, ymin, xmax, ymax]}.
bbox values are normalized to 0..1 relative to the canvas. If the canvas is blank, reply {"digit": -1, "bbox": [0, 0, 1, 1]}.`
)

// GeminiClassifier はGemini APIに画像を渡して数字を分類します。
type GeminiClassifier struct {
	client *genai.Client
	model  string
}

// GeminiClassifierがClassifierを実装していることをコンパイル時に検証します。
var _ usecase.Classifier = (*GeminiClassifier)(nil)

// NewGeminiClassifier はADCを使用してGeminiClassifierの新しいインスタンスを生成します。
// 環境変数 GOOGLE_GENAI_USE_VERTEXAI, GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION（または GOOGLE_API_KEY）が必要です。
func NewGeminiClassifier(ctx context.Context, model string) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &GeminiClassifier{client: client, model: model}, nil
}

// Name はバックエンド名を返します。
func (g *GeminiClassifier) Name() string { return "gemini" }

// Classify はPNG画像とプロンプトを送り、JSONの回答を予測結果に変換します。
func (g *GeminiClassifier) Classify(ctx context.Context, img entity.Image) (*entity.Prediction, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.PNG, "image/png"),
			genai.NewPartFromText(ClassifyPrompt),
		}, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini API request failed: %w", domain.ErrInferenceUnavailable, err)
	}

	return parseReply(resp.Text())
}

// parseReply はモデルの回答テキストからJSONを取り出してデコードします。
// コードフェンスで囲まれた回答も受け付けます。
func parseReply(text string) (*entity.Prediction, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, fmt.Errorf("%w: empty gemini reply", domain.ErrMalformedResponse)
	}
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	return dto.Decode([]byte(s))
}
