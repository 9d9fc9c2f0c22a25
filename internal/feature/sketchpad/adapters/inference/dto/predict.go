// Package dto defines data transfer objects for the digit inference service.
package dto

import (
	"encoding/json"
	"fmt"

	"digitpad/internal/feature/sketchpad/domain"
	"digitpad/internal/feature/sketchpad/domain/entity"
)

// NoDigit is the digit value the service answers with for a blank canvas.
const NoDigit = -1

// PredictRequest is the JSON body sent to the predict endpoint.
type PredictRequest struct {
	Image string `json:"image"` // data:image/png;base64,...
}

// PredictResponse is the JSON body returned by the predict endpoint.
// Pointer fields distinguish a missing value from a zero value.
type PredictResponse struct {
	Digit      *int      `json:"digit"`
	Confidence *float64  `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}

// Decode parses a predict response body into a domain prediction.
func Decode(body []byte) (*entity.Prediction, error) {
	var res PredictResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	return res.ToEntity()
}

// ToEntity validates the response shape and converts it.
func (r PredictResponse) ToEntity() (*entity.Prediction, error) {
	if r.Digit == nil {
		return nil, fmt.Errorf("%w: missing digit", domain.ErrMalformedResponse)
	}
	if *r.Digit == NoDigit {
		return nil, domain.ErrNoDigit
	}
	if *r.Digit < 0 || *r.Digit > 9 {
		return nil, fmt.Errorf("%w: digit %d out of range", domain.ErrMalformedResponse, *r.Digit)
	}
	if r.Confidence == nil {
		return nil, fmt.Errorf("%w: missing confidence", domain.ErrMalformedResponse)
	}
	if len(r.BBox) != len(entity.BoundingBox{}) {
		return nil, fmt.Errorf("%w: bbox has %d values, want 4", domain.ErrMalformedResponse, len(r.BBox))
	}

	var box entity.BoundingBox
	copy(box[:], r.BBox)
	return &entity.Prediction{
		Digit:      *r.Digit,
		Confidence: *r.Confidence,
		Box:        box,
	}, nil
}
