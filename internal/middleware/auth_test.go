package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type staticResolver struct{ admins map[string]bool }

func (r staticResolver) IsAdmin(_ context.Context, userID string) bool {
	return r.admins[userID]
}

func runAuth(t *testing.T, authHeader string, resolver AdminResolver) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	err := Authenticate(testSecret, resolver)(next)(c)
	require.NoError(t, err)
	return rec, c
}

func TestAuthenticateExtractsIdentity(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub": "u1", "username": "alice", "avatar": "a.png",
	})
	rec, c := runAuth(t, "Bearer "+token, staticResolver{})

	assert.Equal(t, http.StatusOK, rec.Code)
	id := IdentityFrom(c)
	assert.Equal(t, "u1", id.ID)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, "a.png", id.Avatar)
	assert.False(t, id.Admin)
}

func TestAuthenticateResolvesAdmin(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "a1", "username": "mod"})
	rec, c := runAuth(t, "Bearer "+token, staticResolver{admins: map[string]bool{"a1": true}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, IdentityFrom(c).Admin)
}

func TestAuthenticateRejections(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"missing sub", "Bearer " + signTokenNoHelper(jwt.MapClaims{"username": "x"})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := runAuth(t, tc.header, staticResolver{})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func signTokenNoHelper(claims jwt.MapClaims) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := tok.SignedString([]byte(testSecret))
	return signed
}

func TestParseTokenRejectsWrongAlgorithm(t *testing.T) {
	// An unsigned token must never authenticate.
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"})
	raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken(raw, testSecret)
	assert.Error(t, err)
}

func TestRequireAdmin(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, RequireAdmin()(next)(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
