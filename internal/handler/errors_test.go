package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BladedNarwhal/Nar-Bot/internal/apperr"
)

func respond(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, respondError(c, err))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", apperr.Validation("bad input"), http.StatusBadRequest, "bad input"},
		{"invalid state", apperr.InvalidState("ticket is frozen"), http.StatusBadRequest, "ticket is frozen"},
		{"permission", apperr.Permission("permission denied"), http.StatusForbidden, "permission denied"},
		{"not found", apperr.NotFound("ticket not found"), http.StatusNotFound, "ticket not found"},
		{"internal", apperr.Internal("db exploded", errors.New("boom")), http.StatusInternalServerError, "server error"},
		{"uncoded", errors.New("boom"), http.StatusInternalServerError, "server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := respond(t, tc.err)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.msg, body["error"])
		})
	}
}

func TestRespondErrorRateLimited(t *testing.T) {
	rec, body := respond(t, apperr.RateLimited("slow down", 2500*time.Millisecond))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "slow down", body["error"])
	// Fractional waits round up so clients never retry early.
	assert.Equal(t, float64(3), body["retry_after"])
}

func TestRespondErrorHidesInternalCause(t *testing.T) {
	_, body := respond(t, apperr.Internal("query failed", errors.New("secret dsn")))
	assert.NotContains(t, body["error"], "secret")
	assert.NotContains(t, body["error"], "query failed")
}
