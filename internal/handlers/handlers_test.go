package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/test", handler)
	return r
}

func serve(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRespondErrorMapsCodes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    apperrors.Code
		message string
	}{
		{"invalid", apperrors.InvalidArgument("fee %q is not a number", "abc"), http.StatusBadRequest, apperrors.CodeInvalidArgument, `fee "abc" is not a number`},
		{"not found", apperrors.NotFound("gig %s not found", "g1"), http.StatusNotFound, apperrors.CodeNotFound, "gig g1 not found"},
		{"denied", apperrors.PermissionDenied("no"), http.StatusForbidden, apperrors.CodePermissionDenied, "no"},
		{"precondition", apperrors.FailedPrecondition("already booked"), http.StatusPreconditionFailed, apperrors.CodeFailedPrecondition, "already booked"},
		{"conflict", apperrors.Conflict("busy"), http.StatusConflict, apperrors.CodeConflict, "busy"},
		{"unauthenticated", apperrors.ErrUnauthorized, http.StatusUnauthorized, apperrors.CodeUnauthenticated, "user is not authorized"},
		{"plain error is internal", errors.New("pq: connection refused"), http.StatusInternalServerError, apperrors.CodeInternal, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupRouter(func(c *gin.Context) { respondError(c, tt.err) })
			w := serve(r, "")

			assert.Equal(t, tt.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, string(tt.code), body["code"])
			assert.Equal(t, tt.message, body["error"])
		})
	}
}

func TestBindJSON(t *testing.T) {
	r := setupRouter(func(c *gin.Context) {
		var req models.ApplicantActionRequest
		if !bindJSON(c, &req) {
			return
		}
		c.JSON(http.StatusOK, req)
	})

	w := serve(r, `{"performerId":"p1","side":"venue"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, `{"performerId":"p1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
