// Пакет keycloak: HTTP-клиент к Keycloak (token endpoint + Admin REST API).
// models.go: модели данных Keycloak.
package keycloak

import (
	"time"

	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/model"
)

// AccessToken: выданный Keycloak access token.
// ExpiresAt вычисляется из expires_in в момент получения и является оценкой:
// Keycloak может отозвать токен раньше.
type AccessToken struct {
	Value     string    //nolint:gosec // G117: структура токена OAuth2
	ExpiresAt time.Time
}

// ClientCredentials: client_id/client_secret OAuth2-клиента Keycloak.
// Secret может быть пустым для public-клиентов (например, admin-cli).
type ClientCredentials struct {
	ClientID     string
	ClientSecret string //nolint:gosec // G101: поле структуры, не содержит секрет напрямую
}

// IntrospectionResponse: ответ token introspection endpoint (RFC 7662).
type IntrospectionResponse struct {
	Active    bool   `json:"active"`
	Subject   string `json:"sub,omitempty"`
	Username  string `json:"username,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Scope     string `json:"scope,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
}

// UserRepresentation: пользователь в Keycloak.
// Attributes: открытый словарь атрибутов Keycloak; типизированный разбор
// выполняется в model.ParseAttributes.
type UserRepresentation struct {
	ID               string                     `json:"id,omitempty"`
	Username         string                     `json:"username"`
	Email            string                     `json:"email,omitempty"`
	FirstName        string                     `json:"firstName,omitempty"`
	LastName         string                     `json:"lastName,omitempty"`
	Enabled          bool                       `json:"enabled"`
	EmailVerified    bool                       `json:"emailVerified"`
	CreatedTimestamp int64                      `json:"createdTimestamp,omitempty"`
	Attributes       map[string][]string        `json:"attributes,omitempty"`
	Credentials      []CredentialRepresentation `json:"credentials,omitempty"`
}

// CreatedAtTime возвращает CreatedTimestamp как time.Time.
// Keycloak хранит timestamp в миллисекундах.
func (u *UserRepresentation) CreatedAtTime() time.Time {
	if u.CreatedTimestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(u.CreatedTimestamp)
}

// CredentialRepresentation: учётные данные пользователя (пароль).
type CredentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"` //nolint:gosec // G117: пароль передаётся в Keycloak как есть
	Temporary bool   `json:"temporary"`
}

// RoleRepresentation: роль realm.
type RoleRepresentation struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Composite   bool   `json:"composite"`
}

// GroupRepresentation: группа в Keycloak.
type GroupRepresentation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// RealmRepresentation: информация о realm, включая настройки brute-force защиты.
type RealmRepresentation struct {
	Realm   string `json:"realm"`
	Enabled bool   `json:"enabled"`

	BruteForceProtected          bool  `json:"bruteForceProtected"`
	PermanentLockout             bool  `json:"permanentLockout"`
	FailureFactor                int   `json:"failureFactor"`
	MaxDeltaTimeSeconds          int64 `json:"maxDeltaTimeSeconds"`
	WaitIncrementSeconds         int64 `json:"waitIncrementSeconds"`
	MaxFailureWaitSeconds        int64 `json:"maxFailureWaitSeconds"`
	MinimumQuickLoginWaitSeconds int64 `json:"minimumQuickLoginWaitSeconds"`
	QuickLoginCheckMilliSeconds  int64 `json:"quickLoginCheckMilliSeconds"`
}

// BruteForcePolicy возвращает настройки brute-force защиты в доменной модели.
// Окно блокировки: maxDeltaTimeSeconds realm.
func (r *RealmRepresentation) BruteForcePolicy() model.BruteForcePolicyConfig {
	return model.BruteForcePolicyConfig{
		Enabled:              r.BruteForceProtected,
		MaxFailures:          r.FailureFactor,
		LockoutWindowSeconds: r.MaxDeltaTimeSeconds,
	}
}

// BruteForceSettings: частичное обновление realm (PUT /admin/realms/{realm}).
// Keycloak применяет только переданные поля.
type BruteForceSettings struct {
	BruteForceProtected          bool  `json:"bruteForceProtected"`
	FailureFactor                int   `json:"failureFactor"`
	MaxDeltaTimeSeconds          int64 `json:"maxDeltaTimeSeconds"`
	MinimumQuickLoginWaitSeconds int64 `json:"minimumQuickLoginWaitSeconds"`
	WaitIncrementSeconds         int64 `json:"waitIncrementSeconds"`
	QuickLoginCheckMilliSeconds  int64 `json:"quickLoginCheckMilliSeconds"`
}

// errorResponse: тело ошибки Keycloak.
// Token endpoint отдаёт error/error_description, Admin REST API: errorMessage.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorMessage     string `json:"errorMessage"`
}
