// mapping.go: преобразование моделей Keycloak в доменные модели и обратно.
package service

import (
	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/identity-gateway/internal/keycloak"
)

// toIdentityRecord преобразует пользователя Keycloak в доменную модель.
func toIdentityRecord(u *keycloak.UserRepresentation) model.IdentityRecord {
	return model.IdentityRecord{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		GivenName:     u.FirstName,
		FamilyName:    u.LastName,
		Enabled:       u.Enabled,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAtTime(),
		Attributes:    model.ParseAttributes(u.Attributes),
	}
}

// toUserRepresentation преобразует доменную модель в тело запроса Keycloak.
func toUserRepresentation(rec *model.IdentityRecord) *keycloak.UserRepresentation {
	u := &keycloak.UserRepresentation{
		ID:            rec.ID,
		Username:      rec.Username,
		Email:         rec.Email,
		FirstName:     rec.GivenName,
		LastName:      rec.FamilyName,
		Enabled:       rec.Enabled,
		EmailVerified: rec.EmailVerified,
		Attributes:    rec.Attributes.Raw(),
	}
	for _, c := range rec.Credentials {
		u.Credentials = append(u.Credentials, toCredentialRepresentation(c))
	}
	return u
}

func toCredentialRepresentation(c model.Credential) keycloak.CredentialRepresentation {
	return keycloak.CredentialRepresentation{Type: c.Type, Value: c.Value, Temporary: c.Temporary}
}

// mergeForUpdate готовит полную замену отображаемых полей существующего
// пользователя данными из legacy-записи. Атрибуты, не относящиеся к
// legacy-записи (расширения и brute-force счётчики), сохраняются.
func mergeForUpdate(existing model.IdentityRecord, desired model.IdentityRecord) model.IdentityRecord {
	merged := desired
	merged.ID = existing.ID
	merged.Enabled = existing.Enabled
	merged.EmailVerified = existing.EmailVerified
	merged.Attributes.BruteForce = existing.Attributes.BruteForce
	merged.Attributes.Extensions = existing.Attributes.Extensions
	return merged
}
