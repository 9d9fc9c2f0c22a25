package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestIndex(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/", Index)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, `<canvas id="pad" width="420" height="420">`)
	assert.Contains(t, body, "No predictions yet")
	assert.Contains(t, body, "/api/v1/pad/predict")
}

func TestIndex_PredictButtonRecovers(t *testing.T) {
	page := string(indexHTML)

	tests := []struct {
		name string
		want string
	}{
		{"error bodies without state release loading", "serverLoading = false;"},
		{"button is reset after every predict request", "} finally {\n      setBusy(serverLoading);"},
		{"in-flight state is polled until it settles", "if (serverLoading) waitForResult();"},
		{"only the primary button draws", "if (e.button !== 0) return;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, page, tt.want)
		})
	}
}
