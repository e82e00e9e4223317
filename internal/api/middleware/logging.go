// logging.go: логирование HTTP-запросов и request id.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HeaderRequestID: заголовок с идентификатором запроса.
const HeaderRequestID = "X-Request-ID"

const contextKeyRequestID contextKey = "request_id"

// RequestLogger возвращает middleware, который назначает запросу request id
// (или берёт его из X-Request-ID) и пишет одну строку лога по завершении.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(HeaderRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, requestID)

			ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
			wrapped := newStatusRecorder(w)
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			level := slog.LevelInfo
			switch {
			case wrapped.statusCode >= http.StatusInternalServerError:
				level = slog.LevelError
			case wrapped.statusCode >= http.StatusBadRequest:
				level = slog.LevelWarn
			}

			logger.LogAttrs(ctx, level, "HTTP-запрос",
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// RequestIDFromContext возвращает request id текущего запроса.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}
