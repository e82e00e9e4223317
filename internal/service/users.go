// users.go: управление отдельными пользователями IdP: создание, просмотр,
// смена пароля, блокировка/разблокировка, отчёт о brute-force блокировке.
// Каждая операция получает собственный admin-токен.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/lockout"
	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/rbac"
	"github.com/bigkaa/goartstore/identity-gateway/internal/keycloak"
)

// MinPasswordLength: минимальная длина пароля при смене.
const MinPasswordLength = 6

// UserService: сервис управления пользователями IdP.
type UserService struct {
	idp            IdentityProvider
	admin          *AdminTokenManager
	realm          string
	cache          *AccessCache
	adminGroups    []string
	operatorGroups []string
	now            func() time.Time
	logger         *slog.Logger
}

// NewUserService создаёт сервис управления пользователями.
func NewUserService(
	idp IdentityProvider,
	admin *AdminTokenManager,
	realm string,
	cache *AccessCache,
	adminGroups, operatorGroups []string,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		idp:            idp,
		admin:          admin,
		realm:          realm,
		cache:          cache,
		adminGroups:    adminGroups,
		operatorGroups: operatorGroups,
		now:            time.Now,
		logger:         logger.With(slog.String("component", "users_service")),
	}
}

// CreateUser создаёт пользователя. Существование username проверяется до создания.
// Возвращает Keycloak ID созданного пользователя.
func (s *UserService) CreateUser(ctx context.Context, rec model.IdentityRecord) (string, error) {
	if err := validateNewUser(rec); err != nil {
		return "", err
	}

	holder := NewAdminTokenHolder(s.admin)

	_, err := withTokenRetry(ctx, holder, func(token string) (*keycloak.UserRepresentation, error) {
		return s.idp.FindUserByUsername(ctx, token, s.realm, rec.Username)
	})
	if err == nil {
		return "", fmt.Errorf("%w: пользователь %q уже существует", ErrConflict, rec.Username)
	}
	if !errors.Is(err, keycloak.ErrNotFound) {
		return "", classifyProviderError("поиск пользователя", err)
	}

	id, err := withTokenRetry(ctx, holder, func(token string) (string, error) {
		return s.idp.CreateUser(ctx, token, s.realm, toUserRepresentation(&rec))
	})
	if err != nil {
		return "", classifyProviderError("создание пользователя", err)
	}

	s.logger.Info("Пользователь создан",
		slog.String("username", rec.Username),
		slog.String("user_id", id),
	)
	return id, nil
}

// validateNewUser проверяет обязательные поля нового пользователя.
func validateNewUser(rec model.IdentityRecord) error {
	if strings.TrimSpace(rec.Username) == "" {
		return fmt.Errorf("%w: username обязателен", ErrValidation)
	}
	for _, c := range rec.Credentials {
		if c.Type == model.CredentialTypePassword && len(c.Value) < MinPasswordLength {
			return fmt.Errorf("%w: пароль короче %d символов", ErrValidation, MinPasswordLength)
		}
	}
	return nil
}

// GetUser возвращает пользователя с realm-ролями и группами.
// Роли и группы берутся из кэша, если он свежий.
func (s *UserService) GetUser(ctx context.Context, id string) (*model.UserDetails, error) {
	holder := NewAdminTokenHolder(s.admin)

	kcUser, err := withTokenRetry(ctx, holder, func(token string) (*keycloak.UserRepresentation, error) {
		return s.idp.GetUser(ctx, token, s.realm, id)
	})
	if err != nil {
		return nil, classifyProviderError("получение пользователя", err)
	}

	access, ok := s.cache.Get(id)
	if !ok {
		access, err = s.fetchAccess(ctx, holder, id)
		if err != nil {
			return nil, err
		}
		s.cache.Set(id, access)
	}

	return &model.UserDetails{
		IdentityRecord: toIdentityRecord(kcUser),
		RealmRoles:     access.RealmRoles,
		Groups:         access.Groups,
		GatewayRole:    rbac.MapGroupsToRole(access.Groups, s.adminGroups, s.operatorGroups),
	}, nil
}

// fetchAccess читает realm-роли и группы пользователя из IdP.
func (s *UserService) fetchAccess(ctx context.Context, holder *AdminTokenHolder, id string) (model.UserAccess, error) {
	roles, err := withTokenRetry(ctx, holder, func(token string) ([]keycloak.RoleRepresentation, error) {
		return s.idp.GetRealmRoleMappings(ctx, token, s.realm, id)
	})
	if err != nil {
		return model.UserAccess{}, classifyProviderError("получение ролей пользователя", err)
	}

	groups, err := withTokenRetry(ctx, holder, func(token string) ([]keycloak.GroupRepresentation, error) {
		return s.idp.GetUserGroups(ctx, token, s.realm, id)
	})
	if err != nil {
		return model.UserAccess{}, classifyProviderError("получение групп пользователя", err)
	}

	access := model.UserAccess{
		RealmRoles: make([]string, 0, len(roles)),
		Groups:     make([]string, 0, len(groups)),
	}
	for _, r := range roles {
		access.RealmRoles = append(access.RealmRoles, r.Name)
	}
	for _, g := range groups {
		access.Groups = append(access.Groups, g.Name)
	}
	return access, nil
}

// ResetPassword устанавливает новый пароль пользователя.
// temporary: пользователь должен сменить пароль при следующем входе.
func (s *UserService) ResetPassword(ctx context.Context, id, password string, temporary bool) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: пароль короче %d символов", ErrValidation, MinPasswordLength)
	}

	cred := toCredentialRepresentation(model.Credential{
		Type:      model.CredentialTypePassword,
		Value:     password,
		Temporary: temporary,
	})

	holder := NewAdminTokenHolder(s.admin)
	err := withTokenRetryErr(ctx, holder, func(token string) error {
		return s.idp.ResetPassword(ctx, token, s.realm, id, cred)
	})
	if err != nil {
		return classifyProviderError("смена пароля", err)
	}

	s.logger.Info("Пароль пользователя изменён",
		slog.String("user_id", id),
		slog.Bool("temporary", temporary),
	)
	return nil
}

// SetEnabled включает или отключает пользователя.
func (s *UserService) SetEnabled(ctx context.Context, id string, enabled bool) (*model.IdentityRecord, error) {
	holder := NewAdminTokenHolder(s.admin)

	kcUser, err := withTokenRetry(ctx, holder, func(token string) (*keycloak.UserRepresentation, error) {
		return s.idp.GetUser(ctx, token, s.realm, id)
	})
	if err != nil {
		return nil, classifyProviderError("получение пользователя", err)
	}

	kcUser.Enabled = enabled
	kcUser.Credentials = nil
	err = withTokenRetryErr(ctx, holder, func(token string) error {
		return s.idp.UpdateUser(ctx, token, s.realm, id, kcUser)
	})
	if err != nil {
		return nil, classifyProviderError("обновление пользователя", err)
	}
	s.cache.Delete(id)

	s.logger.Info("Статус пользователя изменён",
		slog.String("user_id", id),
		slog.Bool("enabled", enabled),
	)

	rec := toIdentityRecord(kcUser)
	return &rec, nil
}

// LockoutStatus возвращает состояние brute-force блокировки пользователя.
// Настройки realm читаются из IdP при каждом вызове.
func (s *UserService) LockoutStatus(ctx context.Context, username string) (*model.LockoutStatus, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username обязателен", ErrValidation)
	}

	holder := NewAdminTokenHolder(s.admin)

	kcUser, err := withTokenRetry(ctx, holder, func(token string) (*keycloak.UserRepresentation, error) {
		return s.idp.FindUserByUsername(ctx, token, s.realm, username)
	})
	if err != nil {
		return nil, classifyProviderError("поиск пользователя", err)
	}

	realm, err := withTokenRetry(ctx, holder, func(token string) (*keycloak.RealmRepresentation, error) {
		return s.idp.GetRealm(ctx, token, s.realm)
	})
	if err != nil {
		return nil, classifyProviderError("получение настроек realm", err)
	}

	policy := realm.BruteForcePolicy()
	counters := model.ParseAttributes(kcUser.Attributes).BruteForce

	return &model.LockoutStatus{
		Username:        kcUser.Username,
		LoginAttempts:   counters.Attempts(),
		MaxFailures:     policy.MaxFailures,
		LastFailedLogin: counters.LastFailedLogin,
		Decision:        lockout.DecideForCounters(counters, policy, s.now()),
	}, nil
}
