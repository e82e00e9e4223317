package model

// LegacyUserRecord: строка внешнего хранилища пользователей, источник для
// массовой синхронизации. Только для чтения.
type LegacyUserRecord struct {
	Username          string
	Email             string
	GivenName         string
	FamilyName        string
	ClearTextPassword string //nolint:gosec // G117: пароль из legacy-хранилища
	DocumentType      string
	DocumentNumber    string
}

// IdentityRecord сопоставляет legacy-запись с представлением пользователя IdP.
// Документные поля переносятся в атрибуты, пароль: в постоянные учётные данные.
// Email legacy-пользователей считается подтверждённым.
func (r LegacyUserRecord) IdentityRecord() IdentityRecord {
	rec := IdentityRecord{
		Username:      r.Username,
		Email:         r.Email,
		GivenName:     r.GivenName,
		FamilyName:    r.FamilyName,
		Enabled:       true,
		EmailVerified: true,
		Attributes: IdentityAttributes{
			DocumentType:   r.DocumentType,
			DocumentNumber: r.DocumentNumber,
		},
	}
	if r.ClearTextPassword != "" {
		rec.Credentials = []Credential{PasswordCredential(r.ClearTextPassword)}
	}
	return rec
}
