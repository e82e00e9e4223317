// dephealth.go: интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Identity Gateway мониторит:
//   - PostgreSQL: legacy-хранилище пользователей и журнал синхронизации
//     (SQL checker через существующий pgxpool, connection pool mode, critical)
//   - Keycloak, realm пользователей: HTTP checker к JWKS endpoint (critical)
//   - Keycloak, realm сервисного аккаунта: HTTP checker к OIDC discovery (critical)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health: состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds: задержка проверки
//   - app_dependency_status: категория статуса
//   - app_dependency_status_detail: детальный статус
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для Keycloak
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"     // PostgreSQL checker (pool mode)
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthTargets: проверяемые зависимости.
type DephealthTargets struct {
	// DB: *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool()
	DB *sql.DB
	// PostgresURL: URL PostgreSQL для лейблов метрик (без учётных данных)
	PostgresURL string
	// TenantJWKSURL: JWKS endpoint realm пользователей
	TenantJWKSURL string
	// AdminDiscoveryURL: OIDC discovery realm сервисного аккаунта
	AdminDiscoveryURL string
	// TLSSkipVerify: не проверять сертификат Keycloak (dev-среда)
	TLSSkipVerify bool
}

// DephealthService: сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
//
// Параметры:
//   - serviceID: имя вершины графа текущего приложения ("identity-gateway")
//   - group: имя группы в метриках (IG_DEPHEALTH_GROUP)
//   - checkInterval: интервал проверки зависимостей (IG_DEPHEALTH_CHECK_INTERVAL)
func NewDephealthService(
	serviceID string,
	group string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, targets, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	group string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, targets, checkInterval, logger,
		dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	serviceID string,
	group string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		// pgcheck.New + dephealth.AddDependency напрямую, без contrib/sqldb
		// и его транзитивной зависимости на MySQL.
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(targets.DB)),
			dephealth.FromURL(targets.PostgresURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		),
		// /health у Keycloak есть только на management порту (9000),
		// поэтому проверяется path самого endpoint.
		dephealth.HTTP("keycloak-jwks",
			dephealth.FromURL(targets.TenantJWKSURL),
			dephealth.WithHTTPHealthPath(healthPath(targets.TenantJWKSURL)),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
			dephealth.WithHTTPTLSSkipVerify(targets.TLSSkipVerify),
		),
		dephealth.HTTP("keycloak-admin-realm",
			dephealth.FromURL(targets.AdminDiscoveryURL),
			dephealth.WithHTTPHealthPath(healthPath(targets.AdminDiscoveryURL)),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
			dephealth.WithHTTPTLSSkipVerify(targets.TLSSkipVerify),
		),
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// healthPath возвращает path URL для HTTP-проверки (по умолчанию /health).
func healthPath(rawURL string) string {
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		return parsed.Path
	}
	return "/health"
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен (PostgreSQL + Keycloak)")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}
