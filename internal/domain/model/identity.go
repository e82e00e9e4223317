// Пакет model: доменные модели Identity Gateway.
package model

import (
	"maps"
	"strconv"
	"strings"
	"time"
)

// Ключи атрибутов Keycloak, которые разбираются в типизированные поля.
const (
	AttrDocumentType    = "typeDocument"
	AttrDocumentNumber  = "nroDocument"
	AttrLoginAttempts   = "loginAttempts"
	AttrLastFailedLogin = "lastFailedLogin"
)

// CredentialTypePassword: тип учётных данных «пароль».
const CredentialTypePassword = "password"

// IdentityRecord: пользователь в IdP.
// Username уникален в пределах realm и служит ключом сопоставления
// с LegacyUserRecord.
type IdentityRecord struct {
	// ID: идентификатор, назначенный IdP (пусто до создания)
	ID string
	// Username: имя пользователя (уникально в realm)
	Username string
	// Email: адрес электронной почты
	Email string
	// GivenName: имя
	GivenName string
	// FamilyName: фамилия
	FamilyName string
	// Enabled: активен ли аккаунт
	Enabled bool
	// EmailVerified: подтверждён ли email
	EmailVerified bool
	// CreatedAt: дата создания в IdP
	CreatedAt time.Time
	// Attributes: типизированные атрибуты пользователя
	Attributes IdentityAttributes
	// Credentials: учётные данные для передачи в IdP при создании/обновлении
	Credentials []Credential
}

// Credential: учётные данные пользователя.
type Credential struct {
	Type      string
	Value     string //nolint:gosec // G117: пароль передаётся в IdP как есть
	Temporary bool
}

// PasswordCredential создаёт постоянные учётные данные типа password.
func PasswordCredential(password string) Credential {
	return Credential{Type: CredentialTypePassword, Value: password}
}

// BruteForceCounters: счётчики brute-force защиты из атрибутов пользователя.
// nil означает отсутствие атрибута.
type BruteForceCounters struct {
	LoginAttempts   *int
	LastFailedLogin *time.Time
}

// Attempts возвращает количество неудачных попыток (0, если атрибут отсутствует).
func (c BruteForceCounters) Attempts() int {
	if c.LoginAttempts == nil {
		return 0
	}
	return *c.LoginAttempts
}

// LastFailure возвращает время последней неудачной попытки (нулевое, если атрибут отсутствует).
func (c BruteForceCounters) LastFailure() time.Time {
	if c.LastFailedLogin == nil {
		return time.Time{}
	}
	return *c.LastFailedLogin
}

// IdentityAttributes: типизированные атрибуты пользователя IdP.
// Все прочие атрибуты провайдера сохраняются в Extensions без изменений.
type IdentityAttributes struct {
	DocumentType   string
	DocumentNumber string
	BruteForce     BruteForceCounters
	// Extensions: атрибуты, не имеющие типизированного поля
	Extensions map[string][]string
}

// ParseAttributes разбирает открытый словарь атрибутов IdP.
// Значения, которые не удалось разобрать, остаются в Extensions под исходным ключом.
func ParseAttributes(raw map[string][]string) IdentityAttributes {
	attrs := IdentityAttributes{Extensions: make(map[string][]string)}

	for key, values := range raw {
		first := ""
		if len(values) > 0 {
			first = strings.TrimSpace(values[0])
		}

		switch key {
		case AttrDocumentType:
			attrs.DocumentType = first
		case AttrDocumentNumber:
			attrs.DocumentNumber = first
		case AttrLoginAttempts:
			if n, err := strconv.Atoi(first); err == nil && n >= 0 {
				attrs.BruteForce.LoginAttempts = &n
				continue
			}
			attrs.Extensions[key] = values
		case AttrLastFailedLogin:
			if ts, ok := parseTimestamp(first); ok {
				attrs.BruteForce.LastFailedLogin = &ts
				continue
			}
			attrs.Extensions[key] = values
		default:
			attrs.Extensions[key] = values
		}
	}

	return attrs
}

// parseTimestamp разбирает время: целое число: epoch в миллисекундах, иначе RFC 3339.
func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), true
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

// Raw собирает словарь атрибутов в формате IdP.
// Пустые типизированные поля не записываются.
func (a IdentityAttributes) Raw() map[string][]string {
	raw := make(map[string][]string, len(a.Extensions)+4)
	maps.Copy(raw, a.Extensions)

	if a.DocumentType != "" {
		raw[AttrDocumentType] = []string{a.DocumentType}
	}
	if a.DocumentNumber != "" {
		raw[AttrDocumentNumber] = []string{a.DocumentNumber}
	}
	if a.BruteForce.LoginAttempts != nil {
		raw[AttrLoginAttempts] = []string{strconv.Itoa(*a.BruteForce.LoginAttempts)}
	}
	if a.BruteForce.LastFailedLogin != nil {
		raw[AttrLastFailedLogin] = []string{strconv.FormatInt(a.BruteForce.LastFailedLogin.UnixMilli(), 10)}
	}

	return raw
}
