// handler.go: основной обработчик API Identity Gateway.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/goartstore/identity-gateway/internal/api/errors"
	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/identity-gateway/internal/keycloak"
	"github.com/bigkaa/goartstore/identity-gateway/internal/service"
)

// Authenticator: вход пользователя по паролю. Реализуется *service.LoginService.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*keycloak.AccessToken, error)
}

// TokenValidator: проверка токена. Реализуется *service.IntrospectionService.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*keycloak.IntrospectionResponse, error)
}

// UserManager: управление пользователями. Реализуется *service.UserService.
type UserManager interface {
	CreateUser(ctx context.Context, rec model.IdentityRecord) (string, error)
	GetUser(ctx context.Context, id string) (*model.UserDetails, error)
	ResetPassword(ctx context.Context, id, password string, temporary bool) error
	SetEnabled(ctx context.Context, id string, enabled bool) (*model.IdentityRecord, error)
	LockoutStatus(ctx context.Context, username string) (*model.LockoutStatus, error)
}

// UserSynchronizer: массовая синхронизация пользователей. Реализуется *service.UserSyncService.
type UserSynchronizer interface {
	SyncNow(ctx context.Context) (*model.UserSyncResult, error)
	RecentRuns(ctx context.Context, limit int) ([]*model.SyncRun, error)
	State(ctx context.Context) (*model.SyncState, error)
}

// RealmSettings: настройки brute-force защиты realm. Реализуется *service.RealmService.
type RealmSettings interface {
	GetBruteForceSettings(ctx context.Context) (*model.RealmBruteForceSettings, error)
	UpdateBruteForceSettings(ctx context.Context, settings model.RealmBruteForceSettings) error
}

var (
	_ Authenticator    = (*service.LoginService)(nil)
	_ TokenValidator   = (*service.IntrospectionService)(nil)
	_ UserManager      = (*service.UserService)(nil)
	_ UserSynchronizer = (*service.UserSyncService)(nil)
	_ RealmSettings    = (*service.RealmService)(nil)
)

// APIHandler: основной обработчик API Identity Gateway.
type APIHandler struct {
	health     *HealthHandler
	login      Authenticator
	introspect TokenValidator
	users      UserManager
	userSync   UserSynchronizer
	realm      RealmSettings
	logger     *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	login Authenticator,
	introspect TokenValidator,
	users UserManager,
	userSync UserSynchronizer,
	realm RealmSettings,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:     health,
		login:      login,
		introspect: introspect,
		users:      users,
		userSync:   userSync,
		realm:      realm,
		logger:     logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive: liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady: readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics: Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON разбирает тело запроса. Неизвестные поля: ошибка.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("некорректный JSON: %w", err)
	}
	return nil
}

// parseLimit читает query-параметр limit (по умолчанию def, допустимо 1..maxLimit).
func parseLimit(query url.Values, def, maxLimit int) (int, error) {
	limit := def
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil || limit < 1 || limit > maxLimit {
		return 0, fmt.Errorf("limit должен быть целым числом от 1 до %d", maxLimit)
	}
	return limit, nil
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var locked *service.LockedError
	if errors.As(err, &locked) {
		apierrors.Locked(w, "Аккаунт временно заблокирован", locked.SecondsUntilUnlock)
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		apierrors.InvalidCredentials(w, service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, clientMessage(err, service.ErrValidation))
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Ресурс не найден")
	case errors.Is(err, service.ErrSyncInProgress):
		apierrors.SyncInProgress(w, service.ErrSyncInProgress.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, clientMessage(err, service.ErrConflict))
	case errors.Is(err, service.ErrUpstreamUnavailable):
		h.logger.Warn("IdP недоступен", slog.String("op", op), slog.String("error", err.Error()))
		apierrors.IDPUnavailable(w, "Identity Provider недоступен")
	case errors.Is(err, service.ErrAdminAuthFailure):
		h.logger.Error("Ошибка аутентификации сервисного аккаунта", slog.String("op", op), slog.String("error", err.Error()))
		apierrors.AdminAuthFailure(w, "Ошибка аутентификации сервисного аккаунта IdP")
	default:
		var pe *keycloak.ProviderError
		if errors.As(err, &pe) {
			h.logger.Error("Неожиданный ответ IdP",
				slog.String("op", op),
				slog.Int("status", pe.StatusCode),
				slog.String("error", err.Error()),
			)
			apierrors.ProviderError(w, fmt.Sprintf("IdP вернул статус %d", pe.StatusCode))
			return
		}
		h.logger.Error("Внутренняя ошибка", slog.String("op", op), slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка")
	}
}

// clientMessage возвращает текст ошибки для клиента.
// Если в цепочке есть ответ IdP, его текст заменяется сообщением sentinel-ошибки.
func clientMessage(err, sentinel error) string {
	var pe *keycloak.ProviderError
	if errors.As(err, &pe) {
		return sentinel.Error()
	}
	return err.Error()
}
