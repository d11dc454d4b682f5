package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrTokenMissing = errors.New("authorization token is missing")
	ErrTokenInvalid = errors.New("authorization token is invalid")
)

// tokenQueryParam несёт JWT для websocket-подключений, где браузер не может задать заголовок.
const tokenQueryParam = "token"

// Authenticate verifies an HS256 bearer token and stores the user id from its claims in the
// request context.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := tokenFromRequest(r)
			if err != nil {
				unauthorized(w)
				return
			}
			uid, err := ParseUserID(raw, secret)
			if err != nil {
				slog.DebugContext(r.Context(), "rejected token", slog.Any("error", err))
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
		})
	}
}

func tokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", ErrTokenInvalid
		}
		return strings.TrimSpace(token), nil
	}
	if token := r.URL.Query().Get(tokenQueryParam); token != "" {
		return token, nil
	}
	return "", ErrTokenMissing
}

// ParseUserID validates the token signature and expiry and returns its user id claim.
func ParseUserID(raw string, secret []byte) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrTokenInvalid
	}
	return userIDFromClaims(claims)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
}

