// login.go: вход пользователя по паролю с определением блокировки.
//
// Поток одной попытки входа:
//  1. Password grant с клиентом tenant-realm (не сервисным аккаунтом).
//  2. Успех → access token.
//  3. Отказ IdP:
//     a. «temporarily disabled» → LockedError (время по lastFailedLogin и окну realm);
//     b. иначе: admin-токен, поиск пользователя, свежие настройки realm,
//     сравнение loginAttempts с failureFactor → LockedError или ErrInvalidCredentials;
//     c. пользователь не найден → ErrInvalidCredentials.
//  4. Недоступность IdP → ErrUpstreamUnavailable.
//
// Prometheus-метрики:
//   - identity_gateway_login_total{outcome}: попытки входа по результату
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/lockout"
	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/identity-gateway/internal/keycloak"
)

// defaultProviderLockoutSeconds: окно блокировки, если в realm оно не задано.
const defaultProviderLockoutSeconds int64 = 300

var loginTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "identity_gateway_login_total",
	Help: "Количество попыток входа по результату",
}, []string{"outcome"})

// TenantClient: realm пользователей и OAuth2-клиент gateway в нём.
type TenantClient struct {
	Realm  string
	Client keycloak.ClientCredentials
}

// LoginService: вход пользователей по паролю.
type LoginService struct {
	idp    IdentityProvider
	admin  *AdminTokenManager
	tenant TenantClient
	now    func() time.Time
	logger *slog.Logger
}

// NewLoginService создаёт сервис входа.
func NewLoginService(idp IdentityProvider, admin *AdminTokenManager, tenant TenantClient, logger *slog.Logger) *LoginService {
	return &LoginService{
		idp:    idp,
		admin:  admin,
		tenant: tenant,
		now:    time.Now,
		logger: logger.With(slog.String("component", "login")),
	}
}

// Login выполняет вход по паролю.
// Ошибки: ErrInvalidCredentials, *LockedError, ErrUpstreamUnavailable,
// ErrAdminAuthFailure или обёрнутый *keycloak.ProviderError.
func (s *LoginService) Login(ctx context.Context, username, password string) (*keycloak.AccessToken, error) {
	tok, err := s.idp.PasswordGrant(ctx, s.tenant.Realm, s.tenant.Client, username, password)
	if err == nil {
		loginTotal.WithLabelValues("authenticated").Inc()
		return tok, nil
	}

	err = s.classifyRejection(ctx, username, err)
	loginTotal.WithLabelValues(loginOutcome(err)).Inc()

	var locked *LockedError
	if errors.As(err, &locked) {
		s.logger.Info("Вход отклонён: аккаунт заблокирован",
			slog.String("username", username),
			slog.Int64("seconds_until_unlock", locked.SecondsUntilUnlock),
		)
	}

	return nil, err
}

// classifyRejection переводит отказ token endpoint в итоговое состояние попытки входа.
func (s *LoginService) classifyRejection(ctx context.Context, username string, err error) error {
	switch {
	case keycloak.IsTemporarilyDisabled(err):
		return s.lockedByProvider(ctx, username)
	case keycloak.IsAuthRejection(err):
		return s.inspectCounters(ctx, username)
	case errors.Is(err, keycloak.ErrUnavailable):
		return fmt.Errorf("вход пользователя: %w: %w", ErrUpstreamUnavailable, err)
	default:
		return fmt.Errorf("вход пользователя: %w", err)
	}
}

// lockedByProvider вычисляет время до разблокировки аккаунта, который IdP уже заблокировал.
// Счётчик попыток считается достигшим порога.
func (s *LoginService) lockedByProvider(ctx context.Context, username string) error {
	holder := NewAdminTokenHolder(s.admin)

	policy, err := s.fetchPolicy(ctx, holder)
	if err != nil {
		return err
	}

	user, err := s.findUser(ctx, holder, username)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	var lastFailure time.Time
	if user != nil {
		lastFailure = model.ParseAttributes(user.Attributes).BruteForce.LastFailure()
	}

	decision := lockout.Decide(policy.MaxFailures, lastFailure, policy, s.now())
	if decision.SecondsUntilUnlock > 0 {
		return &LockedError{SecondsUntilUnlock: decision.SecondsUntilUnlock}
	}

	// IdP считает аккаунт заблокированным, а расчёт по политике realm даёт 0
	// (защита выключена или окно истекло): сообщается полное окно.
	seconds := policy.LockoutWindowSeconds
	if seconds <= 0 {
		seconds = defaultProviderLockoutSeconds
	}
	return &LockedError{SecondsUntilUnlock: seconds}
}

// inspectCounters проверяет счётчик неудачных попыток пользователя.
func (s *LoginService) inspectCounters(ctx context.Context, username string) error {
	holder := NewAdminTokenHolder(s.admin)

	user, err := s.findUser(ctx, holder, username)
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}

	policy, err := s.fetchPolicy(ctx, holder)
	if err != nil {
		return err
	}

	counters := model.ParseAttributes(user.Attributes).BruteForce
	decision := lockout.DecideForCounters(counters, policy, s.now())
	if decision.Locked {
		return &LockedError{SecondsUntilUnlock: decision.SecondsUntilUnlock}
	}

	return ErrInvalidCredentials
}

func (s *LoginService) findUser(ctx context.Context, holder *AdminTokenHolder, username string) (*keycloak.UserRepresentation, error) {
	user, err := withTokenRetry(ctx, holder, func(token string) (*keycloak.UserRepresentation, error) {
		return s.idp.FindUserByUsername(ctx, token, s.tenant.Realm, username)
	})
	if err != nil {
		return nil, classifyProviderError("поиск пользователя", err)
	}
	return user, nil
}

// fetchPolicy читает настройки brute-force защиты realm. Не кэшируется.
func (s *LoginService) fetchPolicy(ctx context.Context, holder *AdminTokenHolder) (model.BruteForcePolicyConfig, error) {
	realm, err := withTokenRetry(ctx, holder, func(token string) (*keycloak.RealmRepresentation, error) {
		return s.idp.GetRealm(ctx, token, s.tenant.Realm)
	})
	if err != nil {
		return model.BruteForcePolicyConfig{}, classifyProviderError("получение настроек realm", err)
	}
	return realm.BruteForcePolicy(), nil
}

// loginOutcome возвращает метку метрики для итогового состояния входа.
func loginOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrLocked):
		return "locked"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrAdminAuthFailure):
		return "admin_auth_failure"
	default:
		return "error"
	}
}
