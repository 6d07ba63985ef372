package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/corvidlabs/querycore/domain"
)

type ctxKey int

const requestCtxKey ctxKey = 0

// requestClaims is what the auth middleware pulls out of a bearer token
// and attaches to the request context.
type requestClaims struct {
	UserID   string
	TenantID string
	Role     domain.Role
}

// authenticator verifies HS256 bearer tokens against a shared secret.
type authenticator struct {
	secret []byte
}

func newAuthenticator(secret []byte) *authenticator {
	return &authenticator{secret: secret}
}

func (a *authenticator) require(next func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == "" || tokenString == header {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		claims, err := a.parse(tokenString)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), requestCtxKey, claims)
		next(w, r.WithContext(ctx))
	}
}

func (a *authenticator) parse(tokenString string) (requestClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return requestClaims{}, err
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return requestClaims{}, errors.New("invalid token claims")
	}

	return requestClaims{
		UserID:   claimString(mapClaims, "user_id"),
		TenantID: claimString(mapClaims, "tenant_id"),
		Role:     domain.Role(claimString(mapClaims, "role")),
	}, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func claimsFromContext(ctx context.Context) requestClaims {
	c, _ := ctx.Value(requestCtxKey).(requestClaims)
	return c
}
