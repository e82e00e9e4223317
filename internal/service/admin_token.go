// admin_token.go: получение admin-токена IdP и держатель токена для одной операции.
//
// AdminTokenManager не кэширует токены: каждый Acquire: новый password grant.
// Повторное использование токена в пределах одной логической операции
// (например, одного запуска массовой синхронизации) обеспечивает AdminTokenHolder,
// который создаётся операцией и передаётся в каждую подоперацию.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/identity-gateway/internal/keycloak"
)

// Prometheus-метрики получения admin-токена.
var adminTokenAcquisitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "identity_gateway_admin_token_acquisitions_total",
	Help: "Количество запросов admin-токена по результату",
}, []string{"outcome"})

// AdminCredentials: учётные данные сервисного аккаунта IdP.
type AdminCredentials struct {
	// Realm: realm сервисного аккаунта (обычно master)
	Realm string
	// Client: OAuth2-клиент (обычно admin-cli, секрет может быть пустым)
	Client keycloak.ClientCredentials
	// Username, Password: сервисный пользователь
	Username string
	Password string //nolint:gosec // G117: поле конфигурации
}

// AdminTokenManager выдаёт admin-токен IdP по запросу.
type AdminTokenManager struct {
	idp    IdentityProvider
	creds  AdminCredentials
	logger *slog.Logger
}

// NewAdminTokenManager создаёт менеджер admin-токенов.
func NewAdminTokenManager(idp IdentityProvider, creds AdminCredentials, logger *slog.Logger) *AdminTokenManager {
	return &AdminTokenManager{
		idp:    idp,
		creds:  creds,
		logger: logger.With(slog.String("component", "admin_token")),
	}
}

// Acquire всегда выполняет новый запрос токена.
// Отказ IdP в учётных данных сервисного аккаунта: ErrAdminAuthFailure,
// недоступность IdP: ErrUpstreamUnavailable.
func (m *AdminTokenManager) Acquire(ctx context.Context) (*keycloak.AccessToken, error) {
	tok, err := m.idp.PasswordGrant(ctx, m.creds.Realm, m.creds.Client, m.creds.Username, m.creds.Password)
	if err == nil {
		adminTokenAcquisitions.WithLabelValues("success").Inc()
		return tok, nil
	}

	if errors.Is(err, keycloak.ErrUnavailable) {
		adminTokenAcquisitions.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("получение admin-токена: %w: %w", ErrUpstreamUnavailable, err)
	}

	// Любой другой отказ token endpoint (invalid_grant, invalid_client,
	// несуществующий realm) означает ошибку конфигурации сервисного аккаунта.
	var pe *keycloak.ProviderError
	if errors.As(err, &pe) && pe.StatusCode < http.StatusInternalServerError {
		adminTokenAcquisitions.WithLabelValues("rejected").Inc()
		m.logger.Error("IdP отклонил учётные данные сервисного аккаунта",
			slog.String("realm", m.creds.Realm),
			slog.String("client_id", m.creds.Client.ClientID),
			slog.Int("status", pe.StatusCode),
			slog.String("code", pe.Code),
		)
		return nil, fmt.Errorf("получение admin-токена: %w: %w", ErrAdminAuthFailure, err)
	}

	adminTokenAcquisitions.WithLabelValues("error").Inc()
	return nil, fmt.Errorf("получение admin-токена: %w", err)
}

// AdminTokenHolder: admin-токен, принадлежащий одной логической операции.
// Не потокобезопасен: операция выполняет подоперации последовательно.
type AdminTokenHolder struct {
	manager   *AdminTokenManager
	token     *keycloak.AccessToken
	refreshes int
}

// NewAdminTokenHolder создаёт пустой держатель; токен запрашивается при первом Token.
func NewAdminTokenHolder(manager *AdminTokenManager) *AdminTokenHolder {
	return &AdminTokenHolder{manager: manager}
}

// Token возвращает удерживаемый токен, запрашивая новый, если токена нет.
// Срок жизни не проверяется: токен заменяется только после отказа IdP.
func (h *AdminTokenHolder) Token(ctx context.Context) (string, error) {
	if h.token == nil {
		tok, err := h.manager.Acquire(ctx)
		if err != nil {
			return "", err
		}
		h.token = tok
	}
	return h.token.Value, nil
}

// Invalidate сбрасывает токен. Следующий Token запросит новый.
func (h *AdminTokenHolder) Invalidate() {
	h.token = nil
}

// Refresh сбрасывает токен и сразу запрашивает новый.
func (h *AdminTokenHolder) Refresh(ctx context.Context) (string, error) {
	h.Invalidate()
	h.refreshes++
	return h.Token(ctx)
}

// Refreshes возвращает количество обновлений токена.
func (h *AdminTokenHolder) Refreshes() int {
	return h.refreshes
}

// withTokenRetry выполняет op с токеном держателя. Если IdP отклонил токен (401),
// токен сбрасывается, обновляется ровно один раз и op повторяется ровно один раз.
// Повторный отказ возвращается вызывающему коду без дальнейших повторов.
func withTokenRetry[T any](ctx context.Context, h *AdminTokenHolder, op func(token string) (T, error)) (T, error) {
	var zero T

	token, err := h.Token(ctx)
	if err != nil {
		return zero, err
	}

	result, err := op(token)
	if !errors.Is(err, keycloak.ErrUnauthorized) {
		return result, err
	}

	h.manager.logger.Debug("Admin-токен отклонён IdP, обновление")

	token, err = h.Refresh(ctx)
	if err != nil {
		return zero, err
	}

	result, err = op(token)
	if errors.Is(err, keycloak.ErrUnauthorized) {
		h.Invalidate()
	}
	return result, err
}

// withTokenRetryErr: withTokenRetry для операций без результата.
func withTokenRetryErr(ctx context.Context, h *AdminTokenHolder, op func(token string) error) error {
	_, err := withTokenRetry(ctx, h, func(token string) (struct{}, error) {
		return struct{}{}, op(token)
	})
	return err
}
