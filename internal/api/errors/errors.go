// Пакет errors: конструкторы стандартных ошибок Identity Gateway.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Коды ошибок API.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeConflict           = "CONFLICT"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeIDPUnavailable     = "IDP_UNAVAILABLE"
	CodeAdminAuthFailure   = "ADMIN_AUTH_FAILURE"
	CodeProviderError      = "PROVIDER_ERROR"
	CodeSyncInProgress     = "SYNC_IN_PROGRESS"
	CodeInternalError      = "INTERNAL_ERROR"
)

// errorBody: структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail: детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// RetryAfterSeconds: только для ACCOUNT_LOCKED
	RetryAfterSeconds *int64 `json:"retry_after_seconds,omitempty"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode: HTTP статус-код, code: машиночитаемый код, message: описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	writeBody(w, statusCode, errorDetail{Code: code, Message: message})
}

func writeBody(w http.ResponseWriter, statusCode int, detail errorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError: 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound: 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized: 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden: 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// Conflict: 409 конфликт (дублирующийся ресурс).
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// InvalidCredentials: 401 неверное имя пользователя или пароль.
func InvalidCredentials(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeInvalidCredentials, message)
}

// Locked: 423 аккаунт заблокирован. Время до разблокировки передаётся
// в заголовке Retry-After и в поле retry_after_seconds.
func Locked(w http.ResponseWriter, message string, retryAfterSeconds int64) {
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds, 10))
	writeBody(w, http.StatusLocked, errorDetail{
		Code:              CodeAccountLocked,
		Message:           message,
		RetryAfterSeconds: &retryAfterSeconds,
	})
}

// IDPUnavailable: 502 Identity Provider (Keycloak) недоступен.
func IDPUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeIDPUnavailable, message)
}

// AdminAuthFailure: 500 IdP отклонил учётные данные сервисного аккаунта.
func AdminAuthFailure(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeAdminAuthFailure, message)
}

// ProviderError: 502 неожиданный ответ IdP.
func ProviderError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeProviderError, message)
}

// SyncInProgress: 409 синхронизация пользователей уже выполняется.
func SyncInProgress(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeSyncInProgress, message)
}

// InternalError: 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
