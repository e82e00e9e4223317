// realm.go: чтение и изменение настроек brute-force защиты realm.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/identity-gateway/internal/keycloak"
)

// RealmService: настройки realm пользователей.
type RealmService struct {
	idp    IdentityProvider
	admin  *AdminTokenManager
	realm  string
	logger *slog.Logger
}

// NewRealmService создаёт сервис настроек realm.
func NewRealmService(idp IdentityProvider, admin *AdminTokenManager, realm string, logger *slog.Logger) *RealmService {
	return &RealmService{
		idp:    idp,
		admin:  admin,
		realm:  realm,
		logger: logger.With(slog.String("component", "realm_service")),
	}
}

// GetBruteForceSettings возвращает текущие настройки brute-force защиты.
func (s *RealmService) GetBruteForceSettings(ctx context.Context) (*model.RealmBruteForceSettings, error) {
	holder := NewAdminTokenHolder(s.admin)

	rep, err := withTokenRetry(ctx, holder, func(token string) (*keycloak.RealmRepresentation, error) {
		return s.idp.GetRealm(ctx, token, s.realm)
	})
	if err != nil {
		return nil, classifyProviderError("получение настроек realm", err)
	}

	return &model.RealmBruteForceSettings{
		Protected:                    rep.BruteForceProtected,
		FailureFactor:                rep.FailureFactor,
		MaxDeltaTimeSeconds:          rep.MaxDeltaTimeSeconds,
		MinimumQuickLoginWaitSeconds: rep.MinimumQuickLoginWaitSeconds,
		WaitIncrementSeconds:         rep.WaitIncrementSeconds,
		QuickLoginCheckMilliSeconds:  rep.QuickLoginCheckMilliSeconds,
	}, nil
}

// UpdateBruteForceSettings изменяет настройки brute-force защиты.
// Отказ IdP в значениях (400): ErrValidation, отсутствие realm: ErrNotFound.
func (s *RealmService) UpdateBruteForceSettings(ctx context.Context, settings model.RealmBruteForceSettings) error {
	if err := validateBruteForceSettings(settings); err != nil {
		return err
	}

	body := &keycloak.BruteForceSettings{
		BruteForceProtected:          settings.Protected,
		FailureFactor:                settings.FailureFactor,
		MaxDeltaTimeSeconds:          settings.MaxDeltaTimeSeconds,
		MinimumQuickLoginWaitSeconds: settings.MinimumQuickLoginWaitSeconds,
		WaitIncrementSeconds:         settings.WaitIncrementSeconds,
		QuickLoginCheckMilliSeconds:  settings.QuickLoginCheckMilliSeconds,
	}

	holder := NewAdminTokenHolder(s.admin)
	err := withTokenRetryErr(ctx, holder, func(token string) error {
		return s.idp.UpdateRealm(ctx, token, s.realm, body)
	})
	if err != nil {
		var pe *keycloak.ProviderError
		if errors.As(err, &pe) && pe.StatusCode == http.StatusBadRequest {
			s.logger.Warn("IdP отклонил настройки brute-force защиты",
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("%w: IdP отклонил настройки (статус %d)", ErrValidation, pe.StatusCode)
		}
		return classifyProviderError("изменение настроек realm", err)
	}

	s.logger.Info("Настройки brute-force защиты изменены",
		slog.Bool("protected", settings.Protected),
		slog.Int("failure_factor", settings.FailureFactor),
		slog.Int64("max_delta_time_seconds", settings.MaxDeltaTimeSeconds),
	)
	return nil
}

// validateBruteForceSettings проверяет значения до отправки в IdP.
func validateBruteForceSettings(s model.RealmBruteForceSettings) error {
	if s.Protected && s.FailureFactor < 1 {
		return fmt.Errorf("%w: failureFactor должен быть >= 1 при включённой защите", ErrValidation)
	}
	if s.FailureFactor < 0 || s.MaxDeltaTimeSeconds < 0 || s.MinimumQuickLoginWaitSeconds < 0 ||
		s.WaitIncrementSeconds < 0 || s.QuickLoginCheckMilliSeconds < 0 {
		return fmt.Errorf("%w: значения не могут быть отрицательными", ErrValidation)
	}
	return nil
}
