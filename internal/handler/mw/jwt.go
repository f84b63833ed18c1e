package mw

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	splitSize   = 2
	accessToken = "access"
)

type emailCtxKeyType int

const emailCtxKey emailCtxKeyType = iota

var (
	errUnexpectedMethod = errors.New("unexpected signing method")
	errInvalidClaims    = errors.New("invalid token claims")
)

type customClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 session tokens whose subject is the
// user's email.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret []byte, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: secret, ttl: ttl, now: time.Now}
}

func (m *TokenManager) Issue(email string) (string, error) {
	now := m.now()
	claims := customClaims{
		Type: accessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse validates the token and returns its subject. The subject is empty
// for sessions issued to a login that supplied no email.
func (m *TokenManager) Parse(tokenStr string) (string, error) {
	claims := &customClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errUnexpectedMethod
		}
		return m.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Type != accessToken {
		return "", errInvalidClaims
	}
	return claims.Subject, nil
}

func (m *TokenManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "Missing Authorization Header")
			return
		}
		parts := strings.SplitN(authHeader, " ", splitSize)
		if len(parts) != splitSize || parts[0] != "Bearer" {
			unauthorized(w, "Missing 'Bearer' type in 'Authorization' header")
			return
		}
		email, err := m.Parse(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				unauthorized(w, "Token has expired")
				return
			}
			unauthorized(w, "Invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), emailCtxKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"msg":"` + msg + `"}`))
}

func MustGetEmail(ctx context.Context) string {
	val := ctx.Value(emailCtxKey)
	if val == nil {
		return ""
	}
	return val.(string)
}
