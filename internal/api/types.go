// Package api defines the JSON request and response types of the HTTP API.
package api

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string `json:"status"`
	Backend   string `json:"backend,omitempty"`
	Inference string `json:"inference,omitempty"`
	Cache     string `json:"cache,omitempty"`
}

// Point is a surface-local coordinate in pixels.
type Point struct {
	X *float64 `json:"x" binding:"required"`
	Y *float64 `json:"y" binding:"required"`
}

// StrokeRequest is the body of POST /api/v1/pad/strokes.
type StrokeRequest struct {
	Points []Point `json:"points" binding:"required,min=1,dive"`
}

// BoxResponse is the last prediction's bounding box, normalized and in surface pixels.
type BoxResponse struct {
	Normalized [4]float64 `json:"normalized"`
	X          int        `json:"x"`
	Y          int        `json:"y"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
}

// HistoryEntryResponse is one past prediction.
type HistoryEntryResponse struct {
	Digit      int     `json:"digit"`
	Confidence float64 `json:"confidence"`
	Time       string  `json:"time"`
	Thumbnail  string  `json:"thumbnail,omitempty"`
}

// StateResponse is the session state returned by every pad endpoint.
type StateResponse struct {
	Prediction string                 `json:"prediction"`
	Confidence float64                `json:"confidence"`
	Loading    bool                   `json:"loading"`
	Status     string                 `json:"status"`
	Error      string                 `json:"error,omitempty"`
	Box        *BoxResponse           `json:"box,omitempty"`
	History    []HistoryEntryResponse `json:"history"`
	Width      int                    `json:"width"`
	Height     int                    `json:"height"`
}

// ImageResponse is the body of GET /api/v1/pad/image.
type ImageResponse struct {
	Image string `json:"image"`
}
