// Package domain defines domain-level errors for the sketchpad feature.
package domain

import "errors"

// Errors returned by the prediction cycle and its adapters.
// Adapters wrap them with fmt.Errorf("...: %w") so callers classify with errors.Is.
var (
	// ErrInferenceUnavailable indicates the inference service could not be reached
	// or answered with a non-2xx status.
	ErrInferenceUnavailable = errors.New("inference service unavailable")

	// ErrMalformedResponse indicates the inference reply was missing fields or had the wrong shape.
	ErrMalformedResponse = errors.New("malformed inference response")

	// ErrNoDigit indicates the service found nothing to classify (blank canvas).
	ErrNoDigit = errors.New("no digit detected")

	// ErrPredictionInFlight is returned when predict is triggered while a prediction is outstanding.
	ErrPredictionInFlight = errors.New("prediction already in flight")

	// ErrInvalidStroke indicates a stroke request that cannot be painted.
	ErrInvalidStroke = errors.New("invalid stroke")

	// ErrSessionNotFound is returned when a session cannot be resolved.
	ErrSessionNotFound = errors.New("session not found")
)
