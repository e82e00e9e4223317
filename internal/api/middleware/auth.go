// auth.go: JWT middleware для управляющего API Identity Gateway.
// Проверяет подпись access token через JWKS realm пользователей, извлекает
// realm-роли и группы, вычисляет роль gateway (admin / operator).
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/goartstore/identity-gateway/internal/api/errors"
	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/rbac"
	"github.com/bigkaa/goartstore/identity-gateway/internal/keycloak"
)

// contextKey: тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyClaims: извлечённые claims в контексте запроса.
	ContextKeyClaims contextKey = "jwt_claims"
)

// AuthClaims: claims вызывающего, помещаются в контекст запроса.
type AuthClaims struct {
	// Subject: sub из JWT (Keycloak user ID).
	Subject string
	// PreferredUsername: preferred_username из JWT.
	PreferredUsername string
	// Email: email из JWT.
	Email string
	// RealmRoles: роли из realm_access.roles.
	RealmRoles []string
	// Groups: группы из JWT.
	Groups []string
	// GroupRole: роль, вычисленная из групп (admin, operator, "").
	GroupRole string
	// Role: итоговая роль = max(GroupRole, realm-роли gateway).
	Role string
}

// HasAnyRole проверяет, совпадает ли итоговая роль с одной из указанных.
func (c *AuthClaims) HasAnyRole(roles ...string) bool {
	return rbac.HasAnyRole(c.Role, roles...)
}

// keycloakClaims: raw claims из Keycloak JWT для парсинга.
type keycloakClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string       `json:"preferred_username"`
	Email             string       `json:"email"`
	RealmAccess       *realmAccess `json:"realm_access,omitempty"`
	Groups            []string     `json:"groups,omitempty"`
}

// realmAccess: вложенная структура realm_access в Keycloak JWT.
type realmAccess struct {
	Roles []string `json:"roles"`
}

// JWTAuthOptions: параметры JWT middleware.
type JWTAuthOptions struct {
	// JWKSURL: JWKS endpoint realm пользователей
	JWKSURL string
	// CACertPath: опциональный CA-сертификат для TLS
	CACertPath string
	// Issuer: ожидаемый issuer (пусто: не проверяется)
	Issuer string
	// AdminGroups, OperatorGroups: группы для маппинга в роли
	AdminGroups    []string
	OperatorGroups []string
	// ClientTimeout: таймаут HTTP-клиента JWKS
	ClientTimeout time.Duration
	// RefreshInterval: интервал обновления JWKS
	RefreshInterval time.Duration
	// Leeway: допустимое расхождение часов
	Leeway time.Duration
}

// JWTAuth: middleware для JWT-аутентификации через JWKS Keycloak.
type JWTAuth struct {
	jwks           keyfunc.Keyfunc
	logger         *slog.Logger
	adminGroups    []string
	operatorGroups []string
	issuer         string
	leeway         time.Duration
}

// NewJWTAuth создаёт JWT middleware с JWKS из Keycloak.
// Старт не требует доступности Keycloak: ключи загружаются в фоне.
func NewJWTAuth(opts JWTAuthOptions, logger *slog.Logger) (*JWTAuth, error) {
	httpClient, err := keycloak.NewHTTPClient(opts.CACertPath, opts.ClientTimeout)
	if err != nil {
		return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", opts.CACertPath, err)
	}
	if opts.CACertPath != "" {
		logger.Info("CA-сертификат для JWKS добавлен в пул доверия",
			slog.String("ca_cert", opts.CACertPath),
		)
	}

	storage, err := jwkset.NewStorageFromHTTP(opts.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           opts.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", opts.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	auth := NewJWTAuthWithKeyfunc(k, opts.Issuer, opts.AdminGroups, opts.OperatorGroups, logger)
	auth.leeway = opts.Leeway
	return auth, nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(
	kf keyfunc.Keyfunc,
	issuer string,
	adminGroups, operatorGroups []string,
	logger *slog.Logger,
) *JWTAuth {
	return &JWTAuth{
		jwks:           kf,
		logger:         logger.With(slog.String("component", "jwt_auth")),
		adminGroups:    adminGroups,
		operatorGroups: operatorGroups,
		issuer:         issuer,
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует подпись (RS256), вычисляет роль
// и помещает AuthClaims в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(w, r)
			if !ok {
				return
			}

			rawClaims := &keycloakClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.leeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(tokenString, rawClaims, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil || !token.Valid {
				j.logger.Debug("JWT валидация не пройдена",
					slog.Any("error", err),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			if rawClaims.Subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, j.buildAuthClaims(rawClaims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken извлекает токен из заголовка Authorization.
// При ошибке записывает ответ 401 и возвращает false.
func bearerToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		apierrors.Unauthorized(w, "Пустой Bearer token")
		return "", false
	}
	return token, true
}

// buildAuthClaims формирует AuthClaims из raw Keycloak claims.
func (j *JWTAuth) buildAuthClaims(raw *keycloakClaims) *AuthClaims {
	claims := &AuthClaims{
		Subject:           raw.Subject,
		PreferredUsername: raw.PreferredUsername,
		Email:             raw.Email,
		Groups:            raw.Groups,
	}
	if raw.RealmAccess != nil {
		claims.RealmRoles = raw.RealmAccess.Roles
	}

	claims.GroupRole = rbac.MapGroupsToRole(claims.Groups, j.adminGroups, j.operatorGroups)
	claims.Role = rbac.EffectiveRole(claims.GroupRole, claims.RealmRoles)
	return claims
}

// RequireRole возвращает middleware, требующий одну из указанных ролей.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
				return
			}

			if !claims.HasAnyRole(roles...) {
				apierrors.Forbidden(w, fmt.Sprintf("Недостаточно прав: требуется роль %s", strings.Join(roles, " или ")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// --- Context helpers ---

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// ActorFromContext возвращает имя вызывающего для журналов.
// Пустая строка: проверка JWT отключена.
func ActorFromContext(ctx context.Context) string {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return ""
	}
	if claims.PreferredUsername != "" {
		return claims.PreferredUsername
	}
	return claims.Subject
}

// --- ReadinessChecker для Keycloak ---

// KeycloakReadinessChecker: проверка доступности Keycloak через JWKS.
type KeycloakReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewKeycloakReadinessChecker создаёт checker доступности Keycloak.
func NewKeycloakReadinessChecker(jwksURL, caCertPath string, timeout time.Duration) (*KeycloakReadinessChecker, error) {
	client, err := keycloak.NewHTTPClient(caCertPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("загрузка CA для readiness checker: %w", err)
	}

	return &KeycloakReadinessChecker{
		jwksURL: jwksURL,
		client:  client,
	}, nil
}

const statusFail = "fail"

// CheckReady проверяет доступность JWKS endpoint Keycloak.
func (k *KeycloakReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req) //nolint:gosec // G704: URL из конфигурации Keycloak
	if err != nil {
		return statusFail, fmt.Sprintf("Keycloak JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("Keycloak JWKS вернул статус %d", resp.StatusCode)
	}

	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return "degraded", fmt.Sprintf("Keycloak JWKS: невалидный JSON: %v", err)
	}

	if len(jwksResp.Keys) == 0 {
		return "degraded", "Keycloak JWKS: нет ключей"
	}

	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}
