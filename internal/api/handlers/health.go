// health.go: обработчики health endpoints Identity Gateway.
// /health/live: liveness probe (процесс жив)
// /health/ready: readiness probe (PostgreSQL + Keycloak доступны)
// /metrics: Prometheus метрики
package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/goartstore/identity-gateway/internal/config"
)

const serviceName = "identity-gateway"

// ReadinessChecker: интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status string, message string)
}

// HealthHandler: обработчик health endpoints.
type HealthHandler struct {
	pgChecker   ReadinessChecker
	kcChecker   ReadinessChecker
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// pgChecker: проверка PostgreSQL, kcChecker: проверка Keycloak.
// Оба могут быть nil (readiness вернёт "fail" для nil зависимостей).
func NewHealthHandler(pgChecker, kcChecker ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		pgChecker:   pgChecker,
		kcChecker:   kcChecker,
		promHandler: promhttp.Handler(),
	}
}

// healthCheckResult: результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse: ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse: ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		PostgreSQL healthCheckResult `json:"postgresql"`
		Keycloak   healthCheckResult `json:"keycloak"`
	} `json:"checks"`
}

// HealthLive: liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady: readiness probe. Проверяет PostgreSQL и Keycloak.
// Возвращает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}

	resp.Checks.PostgreSQL = check(h.pgChecker)
	resp.Checks.Keycloak = check(h.kcChecker)
	resp.Status = overallStatus(resp.Checks.PostgreSQL.Status, resp.Checks.Keycloak.Status)

	status := http.StatusOK
	if resp.Status == "fail" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetMetrics: Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

func check(c ReadinessChecker) healthCheckResult {
	if c == nil {
		return healthCheckResult{Status: "fail", Message: "не инициализирован"}
	}
	status, msg := c.CheckReady()
	return healthCheckResult{Status: status, Message: msg}
}

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail: итог fail.
// Если хотя бы одна degraded: итог degraded.
// Иначе: ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == "fail" {
			return "fail"
		}
		if s == "degraded" {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return "degraded"
	}
	return "ok"
}
