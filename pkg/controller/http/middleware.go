package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/inkwell-lab/inkwell/pkg/domain/types"
	"github.com/inkwell-lab/inkwell/pkg/utils/logging"
)

const (
	userHeader    = "X-Inkwell-User"
	anonymousUser = types.UserID("anonymous")
)

type userIDKey struct{}

// userFromContext returns the request's user ID.
func userFromContext(ctx context.Context) types.UserID {
	if id, ok := ctx.Value(userIDKey{}).(types.UserID); ok {
		return id
	}
	return anonymousUser
}

// userMiddleware resolves the user from the request header. Identity comes
// from an upstream gateway; an absent header maps to the anonymous user.
func userMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := anonymousUser
		if v := r.Header.Get(userHeader); v != "" {
			userID = types.UserID(v)
		}
		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
