// metrics.go: Prometheus HTTP метрики Identity Gateway.
// Регистрирует метрики: identity_gateway_http_requests_total,
// identity_gateway_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_gateway_http_requests_total",
			Help: "Общее количество HTTP-запросов к Identity Gateway",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "identity_gateway_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Identity Gateway в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// unmatchedPath: лейбл для запросов, не совпавших ни с одним маршрутом.
const unmatchedPath = "unmatched"

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Лейбл path: шаблон маршрута chi (/api/v1/users/{id}), а не фактический путь.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := newStatusRecorder(w)
			next.ServeHTTP(wrapped, r)

			path := routePattern(r)
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern возвращает шаблон маршрута, заполненный chi после маршрутизации.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedPath
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return unmatchedPath
}

// statusRecorder: обёртка для перехвата статус-кода.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
