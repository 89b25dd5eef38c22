package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSONError(rec, http.StatusBadRequest, "test error")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "test error", resp["error"])
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]int{"bins": 60})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"bins":60}`, rec.Body.String())
}

func TestAllowMethods(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, AllowMethods(rec, req, http.MethodGet, http.MethodPut))
	assert.Equal(t, http.StatusOK, rec.Code, "nothing written when allowed")

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/", nil)
	assert.False(t, AllowMethods(rec, req, http.MethodGet, http.MethodPut))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, PUT", rec.Header().Get("Allow"))
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type body struct {
		TargetFPS float64 `json:"target_fps"`
	}

	tests := []struct {
		name    string
		body    string
		want    float64
		wantErr bool
	}{
		{"valid", `{"target_fps": 12.5}`, 12.5, false},
		{"unknown field", `{"target_fps": 1, "fps": 2}`, 0, true},
		{"malformed", `{"target_fps":`, 0, true},
		{"trailing data", `{"target_fps": 1} {"target_fps": 2}`, 0, true},
		{"empty", ``, 0, true},
		{"too large", `{"target_fps": 1, "pad": "` + strings.Repeat("x", MaxBodyBytes) + `"}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tt.body))
			var got body
			err := DecodeJSON(req, &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.TargetFPS)
		})
	}
}
