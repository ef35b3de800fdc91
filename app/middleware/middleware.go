package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type contextKey string

const actorKey contextKey = "actor"

// ActorHeader carries the pre-resolved caller identity. Authentication
// happens upstream; an absent or blank header means an anonymous
// viewer.
const ActorHeader = "X-Actor-Id"

// WithActor copies the resolved actor id from the request header into
// the request context.
func WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(ActorHeader))
		if actor != "" {
			r = r.WithContext(context.WithValue(r.Context(), actorKey, actor))
		}
		next.ServeHTTP(w, r)
	})
}

// ActorFrom returns the resolved actor id, or "" for anonymous callers.
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey).(string); ok {
		return actor
	}
	return ""
}

// Logger logs information about each request
func Logger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

// Recoverer recovers from panics and logs the error
func Recoverer(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("panic in handler",
						zap.String("path", r.URL.Path),
						zap.Any("panic", err))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ContentTypeJSON sets the Content-Type header to application/json for API routes
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api") {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}
