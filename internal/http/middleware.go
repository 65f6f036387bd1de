package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type ctxKey string

const (
	ownerIDKey   ctxKey = "owner_id"
	requestIDKey ctxKey = "request_id"
)

// OwnerMiddleware resolves the request principal. The storefront gateway
// forwards the authenticated user in X-User-Id; anonymous visitors carry a
// session id in X-Session-Id instead (they become owners once a guest
// identity is established). Requests without either are left for the guard to
// reject.
func OwnerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get("X-User-Id")
		if owner == "" {
			owner = r.Header.Get("X-Session-Id")
		}
		ctx := context.WithValue(r.Context(), ownerIDKey, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ownerFromContext(ctx context.Context) string {
	if owner, ok := ctx.Value(ownerIDKey).(string); ok {
		return owner
	}
	return ""
}

func authenticatedUser(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}
