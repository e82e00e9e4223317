// errors.go: ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/goartstore/identity-gateway/internal/keycloak"
)

var (
	// ErrNotFound: ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict: конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт: ресурс уже существует")
	// ErrValidation: ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrInvalidCredentials: неверное имя пользователя или пароль.
	// Одна и та же ошибка для несуществующего пользователя и неверного пароля.
	ErrInvalidCredentials = errors.New("неверное имя пользователя или пароль")
	// ErrLocked: аккаунт заблокирован brute-force защитой (см. LockedError).
	ErrLocked = errors.New("аккаунт временно заблокирован")
	// ErrUpstreamUnavailable: Identity Provider (Keycloak) недоступен.
	ErrUpstreamUnavailable = errors.New("Identity Provider недоступен")
	// ErrAdminAuthFailure: IdP отклонил учётные данные сервисного аккаунта.
	// Фатальная ошибка: операция прерывается целиком, повтор бессмыслен.
	ErrAdminAuthFailure = errors.New("ошибка аутентификации сервисного аккаунта IdP")
	// ErrSyncInProgress: синхронизация пользователей уже выполняется.
	ErrSyncInProgress = errors.New("синхронизация пользователей уже выполняется")
)

// LockedError: аккаунт заблокирован, с временем до разблокировки.
type LockedError struct {
	SecondsUntilUnlock int64
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s, повторите через %d с", ErrLocked.Error(), e.SecondsUntilUnlock)
}

// Is позволяет проверять errors.Is(err, ErrLocked).
func (e *LockedError) Is(target error) bool {
	return target == ErrLocked
}

// classifyProviderError переводит ошибки клиента Keycloak в ошибки сервисного слоя.
// Неожиданные ответы IdP (*keycloak.ProviderError) возвращаются как есть с контекстом.
func classifyProviderError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAdminAuthFailure), errors.Is(err, ErrUpstreamUnavailable):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, keycloak.ErrUnavailable):
		return fmt.Errorf("%s: %w: %w", op, ErrUpstreamUnavailable, err)
	case errors.Is(err, keycloak.ErrNotFound):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	case errors.Is(err, keycloak.ErrConflict):
		return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// failureReason возвращает класс ошибки для ответа API и журнала синхронизации.
// Текст ответа IdP не включается: только класс и HTTP-статус.
func failureReason(err error) string {
	var reason string
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAdminAuthFailure):
		reason = "admin_auth_failure"
	case errors.Is(err, ErrUpstreamUnavailable), errors.Is(err, keycloak.ErrUnavailable):
		reason = "upstream_unavailable"
	case errors.Is(err, ErrNotFound), errors.Is(err, keycloak.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, ErrConflict), errors.Is(err, keycloak.ErrConflict):
		reason = "conflict"
	case errors.Is(err, keycloak.ErrUnauthorized):
		reason = "unauthorized"
	case errors.Is(err, ErrValidation):
		reason = "validation"
	default:
		reason = "provider_error"
	}

	var pe *keycloak.ProviderError
	if errors.As(err, &pe) {
		return fmt.Sprintf("%s status=%d", reason, pe.StatusCode)
	}
	if reason == "provider_error" {
		return "internal_error"
	}
	return reason
}
