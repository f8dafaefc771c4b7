package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/timetable-ingest/pkg/errors"
	"github.com/noah-isme/timetable-ingest/pkg/middleware/requestid"
)

func TestErrorEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	var logged int
	r.GET("/decode", func(c *gin.Context) { Error(c, appErrors.Clone(appErrors.ErrDecode, "bad document")) })
	r.GET("/boom", func(c *gin.Context) {
		Error(c, errors.New("db down"))
		logged = len(c.Errors)
	})

	req := httptest.NewRequest(http.MethodGet, "/decode", nil)
	req.Header.Set("X-Request-ID", "req-9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var env struct {
		Error appErrors.Error        `json:"error"`
		Meta  map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "DECODE_ERROR", env.Error.Code)
	assert.Equal(t, "req-9", env.Meta["request_id"])
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, logged)
}

func TestAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Accepted(c, gin.H{"jobId": "j"}, "/api/v1/timetable/imports/jobs/j")

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/api/v1/timetable/imports/jobs/j", w.Header().Get("Location"))
}
