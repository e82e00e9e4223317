// errors.go: ошибки клиента Keycloak.
package keycloak

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnavailable: Keycloak недоступен (сетевая ошибка, таймаут, 5xx).
	ErrUnavailable = errors.New("Keycloak недоступен")
	// ErrUnauthorized: Keycloak отклонил bearer token (401).
	ErrUnauthorized = errors.New("Keycloak: токен отклонён")
	// ErrNotFound: ресурс не найден в Keycloak.
	ErrNotFound = errors.New("Keycloak: ресурс не найден")
	// ErrConflict: ресурс уже существует (409).
	ErrConflict = errors.New("Keycloak: ресурс уже существует")
)

// Коды ошибок OAuth2 token endpoint, на которые опирается вызывающий код.
const (
	ErrorCodeInvalidGrant       = "invalid_grant"
	ErrorCodeInvalidClient      = "invalid_client"
	ErrorCodeUnauthorizedClient = "unauthorized_client"
)

// temporarilyDisabledMarker: подстрока error_description, которой Keycloak
// сообщает о блокировке аккаунта brute-force защитой.
const temporarilyDisabledMarker = "temporarily disabled"

// ProviderError: ответ Keycloak со статусом не 2xx.
type ProviderError struct {
	// Op: операция клиента (FindUserByUsername, CreateUser, ...).
	Op string
	// StatusCode: HTTP статус ответа.
	StatusCode int
	// Code: машиночитаемый код ошибки (error из тела ответа).
	Code string
	// Description: описание ошибки (error_description или errorMessage).
	Description string
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: Keycloak вернул статус %d", e.Op, e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Description != "" {
		fmt.Fprintf(&b, ": %s", e.Description)
	}
	return b.String()
}

// Is сопоставляет HTTP статус с sentinel-ошибками пакета.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrUnavailable:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// newProviderError разбирает тело ответа Keycloak в ProviderError.
// Нераспознанное тело целиком попадает в Description.
func newProviderError(op string, statusCode int, body []byte) *ProviderError {
	pe := &ProviderError{Op: op, StatusCode: statusCode}

	var er errorResponse
	if len(body) > 0 && json.Unmarshal(body, &er) == nil {
		pe.Code = er.Error
		pe.Description = er.ErrorDescription
		if pe.Description == "" {
			pe.Description = er.ErrorMessage
		}
		return pe
	}

	pe.Description = strings.TrimSpace(string(body))
	return pe
}

// unavailable оборачивает транспортную ошибку в ErrUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// IsTemporarilyDisabled сообщает, что Keycloak отклонил вход, потому что аккаунт
// временно заблокирован brute-force защитой.
// Признак строковый (invalid_grant + подстрока в error_description), поэтому
// вынесен в отдельную функцию: при смене формулировки Keycloak меняется только она.
func IsTemporarilyDisabled(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Code == ErrorCodeInvalidGrant &&
		strings.Contains(strings.ToLower(pe.Description), temporarilyDisabledMarker)
}

// IsAuthRejection сообщает, что token endpoint отклонил учётные данные пользователя
// (invalid_grant, либо 401 без кода). Отказ клиенту gateway (invalid_client,
// unauthorized_client) учётными данными пользователя не считается.
func IsAuthRejection(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.StatusCode {
	case http.StatusUnauthorized:
		return pe.Code == "" || pe.Code == ErrorCodeInvalidGrant
	case http.StatusBadRequest:
		return pe.Code == ErrorCodeInvalidGrant
	}
	return false
}
