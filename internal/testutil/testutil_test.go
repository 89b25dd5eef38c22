package testutil

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalArc_IsValid(t *testing.T) {
	t.Parallel()

	a := CanonicalArc()
	require.NoError(t, a.Validate())
	assert.Equal(t, 60, a.Bins())
}

func TestFrameFixtures(t *testing.T) {
	t.Parallel()

	u := UniformFrame(3, 2, 42)
	assert.Equal(t, []float64{42, 42, 42, 42, 42, 42}, u.Pixels)
	assert.True(t, u.Timestamp.Equal(Epoch))

	g := GradientFrame(3, 2)
	assert.Equal(t, 4.0, g.At(1, 1))

	r := RingFrame(101, 101, 50, 50, 20)
	assert.Greater(t, r.At(50, 30), r.At(50, 50))

	shifted := FrameAt(g, 250*time.Millisecond, 7)
	assert.Equal(t, uint64(7), shifted.Seq)
	assert.True(t, shifted.Timestamp.Equal(Epoch.Add(250*time.Millisecond)))
	assert.True(t, g.Timestamp.Equal(Epoch), "original untouched")
}

func TestHTTPHelpers(t *testing.T) {
	t.Parallel()

	req := NewJSONRequest(t, http.MethodPut, "/x", map[string]int{"a": 1})
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	rec := NewTestRecorder()
	rec.WriteHeader(http.StatusCreated)
	_, _ = rec.Write([]byte(`{"a":1}`))
	AssertStatusCode(t, rec.Code, http.StatusCreated)

	var out map[string]int
	DecodeJSON(t, rec, &out)
	assert.Equal(t, 1, out["a"])

	assert.Equal(t, http.MethodGet, NewTestRequest(http.MethodGet, "/y").Method)
}
