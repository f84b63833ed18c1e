package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoEmail() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(MustGetEmail(r.Context())))
	})
}

func TestIssueAndParse(t *testing.T) {
	m := NewTokenManager([]byte("secret"), time.Minute)

	tok, err := m.Issue("reader@example.com")
	require.NoError(t, err)

	email, err := m.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", email)

	other, err := m.Issue("reader@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, tok, other, "every token carries its own jti")
}

func TestParseRejectsForeignSecret(t *testing.T) {
	tok, err := NewTokenManager([]byte("one"), time.Minute).Issue("a@example.com")
	require.NoError(t, err)

	_, err = NewTokenManager([]byte("two"), time.Minute).Parse(tok)
	assert.Error(t, err)
}

func TestParseRejectsNoneAlgorithm(t *testing.T) {
	claims := customClaims{Type: accessToken, RegisteredClaims: jwt.RegisteredClaims{Subject: "a@example.com"}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenManager([]byte("secret"), time.Minute).Parse(tok)
	assert.Error(t, err)
}

func TestParseEmptySubject(t *testing.T) {
	m := NewTokenManager([]byte("secret"), time.Minute)
	tok, err := m.Issue("")
	require.NoError(t, err)

	email, err := m.Parse(tok)
	require.NoError(t, err)
	assert.Empty(t, email)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	m.Middleware(echoEmail()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestParseRejectsOtherTokenTypes(t *testing.T) {
	claims := customClaims{Type: "refresh", RegisteredClaims: jwt.RegisteredClaims{Subject: "a@example.com"}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenManager([]byte("secret"), time.Minute).Parse(tok)
	assert.ErrorIs(t, err, errInvalidClaims)
}

func TestMiddleware(t *testing.T) {
	m := NewTokenManager([]byte("secret"), time.Minute)
	valid, err := m.Issue("buyer@example.com")
	require.NoError(t, err)

	expired := NewTokenManager([]byte("secret"), time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, err := expired.Issue("buyer@example.com")
	require.NoError(t, err)

	cases := []struct {
		name     string
		header   string
		wantCode int
		wantBody string
	}{
		{"valid", "Bearer " + valid, http.StatusOK, "buyer@example.com"},
		{"missing", "", http.StatusUnauthorized, `{"msg":"Missing Authorization Header"}`},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, `{"msg":"Missing 'Bearer' type in 'Authorization' header"}`},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized, `{"msg":"Invalid token"}`},
		{"expired", "Bearer " + stale, http.StatusUnauthorized, `{"msg":"Token has expired"}`},
	}

	h := m.Middleware(echoEmail())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantBody, rec.Body.String())
		})
	}
}

func TestMustGetEmailEmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, MustGetEmail(req.Context()))
}
