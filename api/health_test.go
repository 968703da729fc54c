package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		code   int
	}{
		{"healthy", map[string]Check{"postgres": func(context.Context) error { return nil }}, http.StatusOK},
		{"redis down", map[string]Check{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return assert.AnError },
		}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			router := gin.New()
			NewHealthHandler(tt.checks).Register(router)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))

			assert.Equal(t, tt.code, w.Code)
			var body struct {
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Len(t, body.Checks, len(tt.checks))
		})
	}
}
