// client.go: stateless HTTP-клиент к Keycloak.
// Не хранит токенов и не выполняет повторов: realm и bearer token передаются
// явно в каждый вызов, политика повторов: на стороне вызывающего кода.
// Операции: PasswordGrant, Introspect, FindUserByUsername, GetUser, CreateUser,
// UpdateUser, GetRealmRoleMappings, GetUserGroups, ResetPassword, GetRealm, UpdateRealm.
package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// defaultTokenLifetime: оценка срока жизни токена, если Keycloak не прислал expires_in.
const defaultTokenLifetime = 60 * time.Second

// Client: HTTP-клиент к Keycloak.
type Client struct {
	baseURL    string // Базовый URL Keycloak (без trailing slash)
	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент к Keycloak.
// baseURL: базовый URL Keycloak (например, https://keycloak.kryukov.lan).
// httpClient: HTTP-клиент (может содержать TLS конфигурацию и таймаут).
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "keycloak_client")),
	}
}

// --- Endpoints ---

// tokenEndpoint возвращает URL endpoint'а получения токена для realm.
func (c *Client) tokenEndpoint(realm string) string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.baseURL, url.PathEscape(realm))
}

// adminBaseURL возвращает базовый URL Admin REST API для realm.
func (c *Client) adminBaseURL(realm string) string {
	return fmt.Sprintf("%s/admin/realms/%s", c.baseURL, url.PathEscape(realm))
}

// --- Token endpoint ---

// PasswordGrant выполняет Resource Owner Password Credentials flow.
// Отказ Keycloak возвращается как *ProviderError (код и описание из тела ответа),
// сетевые ошибки: как ErrUnavailable.
func (c *Client) PasswordGrant(ctx context.Context, realm string, client ClientCredentials, username, password string) (*AccessToken, error) {
	const op = "PasswordGrant"

	cfg := &oauth2.Config{
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.tokenEndpoint(realm),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := cfg.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return nil, classifyTokenError(op, err)
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(defaultTokenLifetime)
	}

	c.logger.Debug("Токен получен",
		slog.String("realm", realm),
		slog.String("client_id", client.ClientID),
		slog.Time("expires_at", expiresAt),
	)

	return &AccessToken{Value: tok.AccessToken, ExpiresAt: expiresAt}, nil
}

// classifyTokenError переводит ошибку golang.org/x/oauth2 в ошибки пакета.
func classifyTokenError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := http.StatusBadRequest
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		pe := newProviderError(op, status, re.Body)
		if pe.Code == "" {
			pe.Code = re.ErrorCode
		}
		if pe.Description == "" {
			pe.Description = re.ErrorDescription
		}
		return pe
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return unavailable(op, err)
	}

	return fmt.Errorf("%s: ответ token endpoint: %w", op, err)
}

// Introspect проверяет токен через token introspection endpoint.
// Неактивный токен: не ошибка: возвращается Active=false.
func (c *Client) Introspect(ctx context.Context, realm string, client ClientCredentials, token string) (*IntrospectionResponse, error) {
	const op = "Introspect"

	data := url.Values{
		"client_id":     {client.ClientID},
		"client_secret": {client.ClientSecret},
		"token":         {token},
	}

	endpoint := c.tokenEndpoint(realm) + "/introspect"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: создание запроса: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return nil, unavailable(op, err)
	}

	var result IntrospectionResponse
	if err := decodeResponse(op, resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// --- HTTP helpers ---

// doAuthorized выполняет HTTP-запрос к Admin REST API с bearer token.
func (c *Client) doAuthorized(ctx context.Context, op, token, method, realm, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: сериализация тела запроса: %w", op, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	reqURL := c.adminBaseURL(realm) + path
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s: создание запроса: %w", op, err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return nil, unavailable(op, err)
	}
	return resp, nil
}

// decodeResponse декодирует JSON ответ в target.
// Статус не 2xx возвращается как *ProviderError.
func decodeResponse(op string, resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return newProviderError(op, resp.StatusCode, body)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("%s: декодирование ответа Keycloak: %w", op, err)
		}
	}

	return nil
}

// checkResponse проверяет статус ответа (для запросов без тела ответа).
func checkResponse(op string, resp *http.Response, expectedStatus int) error {
	defer resp.Body.Close()

	if resp.StatusCode != expectedStatus {
		body, _ := io.ReadAll(resp.Body)
		return newProviderError(op, resp.StatusCode, body)
	}

	return nil
}

// --- Users API ---

// FindUserByUsername ищет пользователя по точному совпадению username.
// Если пользователь не найден: возвращает ошибку, удовлетворяющую errors.Is(err, ErrNotFound).
func (c *Client) FindUserByUsername(ctx context.Context, token, realm, username string) (*UserRepresentation, error) {
	const op = "FindUserByUsername"

	path := "/users?exact=true&username=" + url.QueryEscape(username)
	resp, err := c.doAuthorized(ctx, op, token, http.MethodGet, realm, path, nil)
	if err != nil {
		return nil, err
	}

	var users []UserRepresentation
	if err := decodeResponse(op, resp, &users); err != nil {
		return nil, err
	}

	// Keycloak хранит username в нижнем регистре; фильтруем на случай
	// версий, игнорирующих параметр exact.
	for i := range users {
		if strings.EqualFold(users[i].Username, username) {
			return &users[i], nil
		}
	}

	return nil, fmt.Errorf("%s %q: %w", op, username, ErrNotFound)
}

// GetUser возвращает пользователя по Keycloak ID.
func (c *Client) GetUser(ctx context.Context, token, realm, id string) (*UserRepresentation, error) {
	const op = "GetUser"

	resp, err := c.doAuthorized(ctx, op, token, http.MethodGet, realm, "/users/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var user UserRepresentation
	if err := decodeResponse(op, resp, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

// CreateUser создаёт пользователя в Keycloak.
// Возвращает Keycloak ID созданного пользователя (из Location header).
// Дубликат username: *ProviderError со статусом 409 (errors.Is(err, ErrConflict)).
func (c *Client) CreateUser(ctx context.Context, token, realm string, user *UserRepresentation) (string, error) {
	const op = "CreateUser"

	resp, err := c.doAuthorized(ctx, op, token, http.MethodPost, realm, "/users", user)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", newProviderError(op, resp.StatusCode, body)
	}

	// Keycloak возвращает Location header с ID созданного ресурса: .../users/{id}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("%s: отсутствует Location header в ответе", op)
	}

	id := location[strings.LastIndex(location, "/")+1:]
	if id == "" {
		return "", fmt.Errorf("%s: не удалось извлечь ID из Location: %s", op, location)
	}

	c.logger.Debug("Пользователь создан в Keycloak",
		slog.String("realm", realm),
		slog.String("username", user.Username),
		slog.String("user_id", id),
	)

	return id, nil
}

// UpdateUser заменяет представление пользователя в Keycloak.
// Атрибуты заменяются целиком: вызывающий код должен передать полный набор.
func (c *Client) UpdateUser(ctx context.Context, token, realm, id string, user *UserRepresentation) error {
	const op = "UpdateUser"

	resp, err := c.doAuthorized(ctx, op, token, http.MethodPut, realm, "/users/"+url.PathEscape(id), user)
	if err != nil {
		return err
	}

	return checkResponse(op, resp, http.StatusNoContent)
}

// GetRealmRoleMappings возвращает realm-роли пользователя.
func (c *Client) GetRealmRoleMappings(ctx context.Context, token, realm, id string) ([]RoleRepresentation, error) {
	const op = "GetRealmRoleMappings"

	path := "/users/" + url.PathEscape(id) + "/role-mappings/realm"
	resp, err := c.doAuthorized(ctx, op, token, http.MethodGet, realm, path, nil)
	if err != nil {
		return nil, err
	}

	var roles []RoleRepresentation
	if err := decodeResponse(op, resp, &roles); err != nil {
		return nil, err
	}

	return roles, nil
}

// GetUserGroups возвращает группы пользователя.
func (c *Client) GetUserGroups(ctx context.Context, token, realm, id string) ([]GroupRepresentation, error) {
	const op = "GetUserGroups"

	resp, err := c.doAuthorized(ctx, op, token, http.MethodGet, realm, "/users/"+url.PathEscape(id)+"/groups", nil)
	if err != nil {
		return nil, err
	}

	var groups []GroupRepresentation
	if err := decodeResponse(op, resp, &groups); err != nil {
		return nil, err
	}

	return groups, nil
}

// ResetPassword устанавливает пароль пользователя.
func (c *Client) ResetPassword(ctx context.Context, token, realm, id string, credential CredentialRepresentation) error {
	const op = "ResetPassword"

	path := "/users/" + url.PathEscape(id) + "/reset-password"
	resp, err := c.doAuthorized(ctx, op, token, http.MethodPut, realm, path, credential)
	if err != nil {
		return err
	}

	return checkResponse(op, resp, http.StatusNoContent)
}

// --- Realm API ---

// GetRealm возвращает представление realm, включая настройки brute-force защиты.
func (c *Client) GetRealm(ctx context.Context, token, realm string) (*RealmRepresentation, error) {
	const op = "GetRealm"

	resp, err := c.doAuthorized(ctx, op, token, http.MethodGet, realm, "", nil)
	if err != nil {
		return nil, err
	}

	var rep RealmRepresentation
	if err := decodeResponse(op, resp, &rep); err != nil {
		return nil, err
	}

	return &rep, nil
}

// UpdateRealm обновляет настройки brute-force защиты realm.
func (c *Client) UpdateRealm(ctx context.Context, token, realm string, settings *BruteForceSettings) error {
	const op = "UpdateRealm"

	resp, err := c.doAuthorized(ctx, op, token, http.MethodPut, realm, "", settings)
	if err != nil {
		return err
	}

	return checkResponse(op, resp, http.StatusNoContent)
}
