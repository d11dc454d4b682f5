package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const userContextKey contextKey = "user"

// Firebase-выпущенные токены кладут uid в "uid", остальные в "sub".
const (
	jwtClaimUserID  = "uid"
	jwtClaimSubject = "sub"
)

var ErrNoUserInContext = errors.New("user id not found in context")

func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userContextKey, uid)
}

func GetUserIDFromContext(ctx context.Context) (string, error) {
	uid, ok := ctx.Value(userContextKey).(string)
	if !ok || uid == "" {
		return "", ErrNoUserInContext
	}
	return uid, nil
}

func userIDFromClaims(claims jwt.MapClaims) (string, error) {
	for _, name := range []string{jwtClaimUserID, jwtClaimSubject} {
		value, ok := claims[name]
		if !ok {
			continue
		}
		uid, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("%w: invalid type for '%s' claim: expected string, got %T", ErrTokenInvalid, name, value)
		}
		if uid = strings.TrimSpace(uid); uid != "" {
			return uid, nil
		}
	}
	return "", fmt.Errorf("%w: missing '%s' or '%s' claim", ErrTokenInvalid, jwtClaimUserID, jwtClaimSubject)
}
