// Package trace generates and propagates the 8-hex-character trace id
// used to correlate logs and events for a single request.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type ctxKey struct{}

// New generates a fresh 8-hex-character trace id.
func New() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is not recoverable; fall back to a fixed
		// sentinel rather than panicking mid-request.
		return "00000000"
	}
	return hex.EncodeToString(buf)
}

// Into binds a trace id to ctx for downstream retrieval via From.
func Into(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// From retrieves the trace id bound to ctx, or "" if none is bound.
func From(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}
