package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const SessionHeader = "X-Session-ID"

type ctxKey string

const sessionIDKey ctxKey = "session_id"

// SessionMiddleware resolves the shopper session from the X-Session-ID header,
// minting a new id when absent. The id is echoed back on every response.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(SessionHeader)
		if sessionID == "" || len(sessionID) > 128 {
			sessionID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		w.Header().Set(SessionHeader, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(sessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}

// RequestLogger logs one line per request with the chi request id and, when
// traced, the trace and span ids.
func RequestLogger(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.FromContext(r.Context(), base).Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
