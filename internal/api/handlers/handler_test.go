package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/identity-gateway/internal/keycloak"
	"github.com/bigkaa/goartstore/identity-gateway/internal/service"
)

// --- Фейки сервисного слоя ---

type fakeAuthenticator struct {
	token *keycloak.AccessToken
	err   error
	calls int
}

func (f *fakeAuthenticator) Login(_ context.Context, _, _ string) (*keycloak.AccessToken, error) {
	f.calls++
	return f.token, f.err
}

type fakeValidator struct {
	resp *keycloak.IntrospectionResponse
	err  error
}

func (f *fakeValidator) Validate(_ context.Context, _ string) (*keycloak.IntrospectionResponse, error) {
	return f.resp, f.err
}

type fakeUsers struct {
	createdRec model.IdentityRecord
	createID   string
	user       *model.UserDetails
	lockout    *model.LockoutStatus
	err        error

	resetTemporary bool
	enabled        *bool
}

func (f *fakeUsers) CreateUser(_ context.Context, rec model.IdentityRecord) (string, error) {
	f.createdRec = rec
	return f.createID, f.err
}

func (f *fakeUsers) GetUser(_ context.Context, _ string) (*model.UserDetails, error) {
	return f.user, f.err
}

func (f *fakeUsers) ResetPassword(_ context.Context, _, _ string, temporary bool) error {
	f.resetTemporary = temporary
	return f.err
}

func (f *fakeUsers) SetEnabled(_ context.Context, id string, enabled bool) (*model.IdentityRecord, error) {
	f.enabled = &enabled
	if f.err != nil {
		return nil, f.err
	}
	return &model.IdentityRecord{ID: id, Username: "jdoe", Enabled: enabled}, nil
}

func (f *fakeUsers) LockoutStatus(_ context.Context, _ string) (*model.LockoutStatus, error) {
	return f.lockout, f.err
}

type fakeSync struct {
	result   *model.UserSyncResult
	runs     []*model.SyncRun
	state    *model.SyncState
	err      error
	stateErr error
	limit    int
	ctxErr   error
}

func (f *fakeSync) SyncNow(ctx context.Context) (*model.UserSyncResult, error) {
	f.ctxErr = ctx.Err()
	return f.result, f.err
}

func (f *fakeSync) RecentRuns(_ context.Context, limit int) ([]*model.SyncRun, error) {
	f.limit = limit
	return f.runs, f.err
}

func (f *fakeSync) State(_ context.Context) (*model.SyncState, error) {
	return f.state, f.stateErr
}

type fakeRealm struct {
	settings *model.RealmBruteForceSettings
	updated  *model.RealmBruteForceSettings
	err      error
}

func (f *fakeRealm) GetBruteForceSettings(_ context.Context) (*model.RealmBruteForceSettings, error) {
	return f.settings, f.err
}

func (f *fakeRealm) UpdateBruteForceSettings(_ context.Context, s model.RealmBruteForceSettings) error {
	f.updated = &s
	return f.err
}

// --- Вспомогательные функции ---

type testDeps struct {
	login *fakeAuthenticator
	intro *fakeValidator
	users *fakeUsers
	sync  *fakeSync
	realm *fakeRealm
}

func newTestHandler() (*APIHandler, *testDeps) {
	d := &testDeps{
		login: &fakeAuthenticator{},
		intro: &fakeValidator{},
		users: &fakeUsers{},
		sync:  &fakeSync{},
		realm: &fakeRealm{},
	}
	h := NewAPIHandler(
		NewHealthHandler(nil, nil),
		d.login, d.intro, d.users, d.sync, d.realm,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return h, d
}

// newTestRouter регистрирует обработчики в chi для разбора URL-параметров.
func newTestRouter(h *APIHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/auth/login", h.Login)
	r.Post("/api/v1/auth/introspect", h.Introspect)
	r.Post("/api/v1/users", h.CreateUser)
	r.Get("/api/v1/users/lockout", h.GetLockoutStatus)
	r.Get("/api/v1/users/{id}", h.GetUser)
	r.Put("/api/v1/users/{id}/password", h.ResetUserPassword)
	r.Put("/api/v1/users/{id}/enabled", h.SetUserEnabled)
	r.Post("/api/v1/users/bulk-sync", h.BulkSyncUsers)
	r.Get("/api/v1/users/sync-runs", h.ListSyncRuns)
	r.Get("/api/v1/realm/brute-force", h.GetBruteForceSettings)
	r.Put("/api/v1/realm/brute-force", h.UpdateBruteForceSettings)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("ответ не JSON: %v (%s)", err, rec.Body.String())
	}
	return body
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	detail, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("ожидалось поле error, получено %v", body)
	}
	code, _ := detail["code"].(string)
	return code
}

// --- Тесты ---

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"неверные учётные данные", service.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"блокировка", &service.LockedError{SecondsUntilUnlock: 200}, http.StatusLocked, "ACCOUNT_LOCKED"},
		{"валидация", fmt.Errorf("%w: username обязателен", service.ErrValidation), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"не найден", fmt.Errorf("получение пользователя: %w", service.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"конфликт", service.ErrConflict, http.StatusConflict, "CONFLICT"},
		{"синхронизация выполняется", service.ErrSyncInProgress, http.StatusConflict, "SYNC_IN_PROGRESS"},
		{"IdP недоступен", fmt.Errorf("login: %w", service.ErrUpstreamUnavailable), http.StatusBadGateway, "IDP_UNAVAILABLE"},
		{"сервисный аккаунт", service.ErrAdminAuthFailure, http.StatusInternalServerError, "ADMIN_AUTH_FAILURE"},
		{"неожиданный ответ IdP", &keycloak.ProviderError{Op: "token", StatusCode: http.StatusBadRequest, Code: "invalid_request"}, http.StatusBadGateway, "PROVIDER_ERROR"},
		{"прочее", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	h, _ := newTestHandler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeServiceError(rec, "test", tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидалось %d", rec.Code, tt.wantStatus)
			}
			if got := errorCode(t, rec); got != tt.wantCode {
				t.Errorf("код = %q, ожидалось %q", got, tt.wantCode)
			}
		})
	}
}

func TestWriteServiceError_HidesProviderBody(t *testing.T) {
	const body = "<html>internal-proxy host=10.0.0.7</html>"
	pe := &keycloak.ProviderError{Op: "CreateUser", StatusCode: http.StatusConflict, Description: body}

	for _, err := range []error{
		fmt.Errorf("создание пользователя: %w: %w", service.ErrConflict, pe),
		fmt.Errorf("%w: %w", service.ErrValidation, pe),
	} {
		h, _ := newTestHandler()
		rec := httptest.NewRecorder()
		h.writeServiceError(rec, "test", err)

		if strings.Contains(rec.Body.String(), "internal-proxy") {
			t.Errorf("ответ содержит тело IdP: %s", rec.Body.String())
		}
	}
}

func TestLogin(t *testing.T) {
	h, d := newTestHandler()
	d.login.token = &keycloak.AccessToken{Value: "tenant-token", ExpiresAt: time.Now().Add(5 * time.Minute)}

	rec := do(t, newTestRouter(h), http.MethodPost, "/api/v1/auth/login", `{"username":"jdoe","password":"secret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидалось 200: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["access_token"] != "tenant-token" || body["token_type"] != "Bearer" {
		t.Errorf("неожиданный ответ: %v", body)
	}
	if exp, _ := body["expires_in"].(float64); exp <= 0 || exp > 300 {
		t.Errorf("expires_in = %v, ожидалось (0, 300]", body["expires_in"])
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("ожидался Cache-Control: no-store")
	}
}

func TestLogin_Locked(t *testing.T) {
	h, d := newTestHandler()
	d.login.err = &service.LockedError{SecondsUntilUnlock: 200}

	rec := do(t, newTestRouter(h), http.MethodPost, "/api/v1/auth/login", `{"username":"jdoe","password":"wrong"}`)
	if rec.Code != http.StatusLocked {
		t.Fatalf("статус = %d, ожидалось 423", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "200" {
		t.Errorf("Retry-After = %q, ожидалось 200", got)
	}
}

func TestLogin_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"пустое имя", `{"username":"  ","password":"x"}`},
		{"без пароля", `{"username":"jdoe"}`},
		{"не JSON", `username=jdoe`},
		{"лишнее поле", `{"username":"jdoe","password":"x","realm":"master"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, d := newTestHandler()
			rec := do(t, newTestRouter(h), http.MethodPost, "/api/v1/auth/login", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("статус = %d, ожидалось 400", rec.Code)
			}
			if d.login.calls != 0 {
				t.Error("сервис не должен вызываться при ошибке валидации")
			}
		})
	}
}

func TestIntrospect(t *testing.T) {
	h, d := newTestHandler()
	d.intro.resp = &keycloak.IntrospectionResponse{Active: true, Username: "jdoe"}

	rec := do(t, newTestRouter(h), http.MethodPost, "/api/v1/auth/introspect", `{"token":"abc"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["active"] != true || body["username"] != "jdoe" {
		t.Errorf("неожиданный ответ: %v", body)
	}

	rec = do(t, newTestRouter(h), http.MethodPost, "/api/v1/auth/introspect", `{"token":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("пустой токен: статус = %d, ожидалось 400", rec.Code)
	}
}

func TestCreateUser(t *testing.T) {
	h, d := newTestHandler()
	d.users.createID = "kc-1"

	rec := do(t, newTestRouter(h), http.MethodPost, "/api/v1/users",
		`{"username":" jdoe ","email":"j@x.io","first_name":"John","password":"s3cret-pass","document_type":"CC","document_number":"123"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("статус = %d, ожидалось 201: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["id"] != "kc-1" || body["username"] != "jdoe" {
		t.Errorf("неожиданный ответ: %v", body)
	}

	got := d.users.createdRec
	if got.Username != "jdoe" || !got.Enabled || got.GivenName != "John" {
		t.Errorf("неожиданная запись: %+v", got)
	}
	if got.Attributes.DocumentType != "CC" || got.Attributes.DocumentNumber != "123" {
		t.Errorf("атрибуты документа не переданы: %+v", got.Attributes)
	}
	if len(got.Credentials) != 1 || got.Credentials[0].Value != "s3cret-pass" || got.Credentials[0].Temporary {
		t.Errorf("неожиданные учётные данные: %+v", got.Credentials)
	}
}

func TestCreateUser_Disabled(t *testing.T) {
	h, d := newTestHandler()
	d.users.createID = "kc-2"

	rec := do(t, newTestRouter(h), http.MethodPost, "/api/v1/users", `{"username":"jdoe","enabled":false}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("статус = %d", rec.Code)
	}
	if d.users.createdRec.Enabled {
		t.Error("enabled=false должен передаваться в сервис")
	}
	if len(d.users.createdRec.Credentials) != 0 {
		t.Error("без пароля учётные данные не передаются")
	}
}

func TestGetUser(t *testing.T) {
	h, d := newTestHandler()
	d.users.user = &model.UserDetails{
		IdentityRecord: model.IdentityRecord{
			ID:        "kc-1",
			Username:  "jdoe",
			Enabled:   true,
			CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
			Attributes: model.IdentityAttributes{
				DocumentType: "CC",
				Extensions:   map[string][]string{"locale": {"es"}},
			},
		},
		RealmRoles:  []string{"offline_access"},
		Groups:      []string{"gw-admins"},
		GatewayRole: "admin",
	}

	rec := do(t, newTestRouter(h), http.MethodGet, "/api/v1/users/kc-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["id"] != "kc-1" || body["role"] != "admin" || body["document_type"] != "CC" {
		t.Errorf("неожиданный ответ: %v", body)
	}
	if body["created_at"] != "2025-01-02T03:04:05Z" {
		t.Errorf("created_at = %v", body["created_at"])
	}
	attrs, _ := body["attributes"].(map[string]any)
	if attrs == nil || attrs["locale"] == nil {
		t.Errorf("ожидались дополнительные атрибуты: %v", body["attributes"])
	}
}

func TestGetUser_NotFound(t *testing.T) {
	h, d := newTestHandler()
	d.users.err = fmt.Errorf("получение пользователя: %w", service.ErrNotFound)

	rec := do(t, newTestRouter(h), http.MethodGet, "/api/v1/users/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("статус = %d, ожидалось 404", rec.Code)
	}
}

func TestResetUserPassword(t *testing.T) {
	h, d := newTestHandler()

	rec := do(t, newTestRouter(h), http.MethodPut, "/api/v1/users/kc-1/password", `{"password":"n3w-password","temporary":true}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("статус = %d, ожидалось 204", rec.Code)
	}
	if !d.users.resetTemporary {
		t.Error("temporary=true не передан в сервис")
	}
}

func TestSetUserEnabled(t *testing.T) {
	h, d := newTestHandler()

	rec := do(t, newTestRouter(h), http.MethodPut, "/api/v1/users/kc-1/enabled", `{"enabled":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	if d.users.enabled == nil || *d.users.enabled {
		t.Error("enabled=false не передан в сервис")
	}
	if body := decodeBody(t, rec); body["enabled"] != false || body["id"] != "kc-1" {
		t.Errorf("неожиданный ответ: %v", body)
	}

	h, d = newTestHandler()
	rec = do(t, newTestRouter(h), http.MethodPut, "/api/v1/users/kc-1/enabled", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("без enabled: статус = %d, ожидалось 400", rec.Code)
	}
	if d.users.enabled != nil {
		t.Error("сервис не должен вызываться без enabled")
	}
}

func TestGetLockoutStatus(t *testing.T) {
	h, d := newTestHandler()
	last := time.Date(2026, 3, 1, 11, 58, 20, 0, time.UTC)
	d.users.lockout = &model.LockoutStatus{
		Username:        "jdoe",
		LoginAttempts:   5,
		MaxFailures:     5,
		LastFailedLogin: &last,
		Decision:        model.LockoutDecision{Locked: true, SecondsUntilUnlock: 200},
	}

	rec := do(t, newTestRouter(h), http.MethodGet, "/api/v1/users/lockout?username=jdoe", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["locked"] != true || body["seconds_until_unlock"] != float64(200) || body["login_attempts"] != float64(5) {
		t.Errorf("неожиданный ответ: %v", body)
	}

	rec = do(t, newTestRouter(h), http.MethodGet, "/api/v1/users/lockout", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("без username: статус = %d, ожидалось 400", rec.Code)
	}
}

func TestBulkSyncUsers(t *testing.T) {
	h, d := newTestHandler()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.sync.result = &model.UserSyncResult{
		RunID:          "run-1",
		Total:          3,
		Created:        1,
		Updated:        1,
		Failed:         1,
		TokenRefreshes: 1,
		Failures:       []model.UserSyncFailure{{Username: "u3", Op: "create", Reason: "boom"}},
		StartedAt:      started,
		CompletedAt:    started.Add(time.Second),
	}

	rec := do(t, newTestRouter(h), http.MethodPost, "/api/v1/users/bulk-sync", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["run_id"] != "run-1" || body["created"] != float64(1) || body["token_refreshes"] != float64(1) {
		t.Errorf("неожиданный ответ: %v", body)
	}
	failures, _ := body["failures"].([]any)
	if len(failures) != 1 {
		t.Fatalf("ожидалась одна ошибка записи, получено %v", body["failures"])
	}
	if f := failures[0].(map[string]any); f["username"] != "u3" || f["op"] != "create" {
		t.Errorf("неожиданная ошибка записи: %v", f)
	}
}

func TestBulkSyncUsers_DetachedFromClient(t *testing.T) {
	h, d := newTestHandler()
	d.sync.result = &model.UserSyncResult{RunID: "run-1"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/bulk-sync", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.BulkSyncUsers(rec, req)

	if d.sync.ctxErr != nil {
		t.Errorf("отмена запроса не должна отменять синхронизацию: %v", d.sync.ctxErr)
	}
}

func TestBulkSyncUsers_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"уже выполняется", service.ErrSyncInProgress, http.StatusConflict},
		{"сервисный аккаунт", fmt.Errorf("admin token: %w", service.ErrAdminAuthFailure), http.StatusInternalServerError},
		{"IdP недоступен", service.ErrUpstreamUnavailable, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, d := newTestHandler()
			d.sync.err = tt.err
			rec := do(t, newTestRouter(h), http.MethodPost, "/api/v1/users/bulk-sync", "")
			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидалось %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestListSyncRuns(t *testing.T) {
	h, d := newTestHandler()
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.sync.runs = []*model.SyncRun{{ID: "run-2", Status: model.SyncRunCompleted}, {ID: "run-1", Status: model.SyncRunAborted, Error: "boom"}}
	d.sync.state = &model.SyncState{ID: 1, LastUserSyncAt: &last}

	rec := do(t, newTestRouter(h), http.MethodGet, "/api/v1/users/sync-runs?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	if d.sync.limit != 5 {
		t.Errorf("limit = %d, ожидалось 5", d.sync.limit)
	}
	body := decodeBody(t, rec)
	items, _ := body["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("ожидалось 2 запуска, получено %v", body["items"])
	}
	if body["last_user_sync_at"] != "2026-03-01T12:00:00Z" {
		t.Errorf("last_user_sync_at = %v", body["last_user_sync_at"])
	}
}

func TestListSyncRuns_NoState(t *testing.T) {
	h, d := newTestHandler()
	d.sync.stateErr = service.ErrNotFound

	rec := do(t, newTestRouter(h), http.MethodGet, "/api/v1/users/sync-runs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	if d.sync.limit != defaultSyncRunsLimit {
		t.Errorf("limit по умолчанию = %d, ожидалось %d", d.sync.limit, defaultSyncRunsLimit)
	}
	body := decodeBody(t, rec)
	if v, ok := body["last_user_sync_at"]; !ok || v != nil {
		t.Errorf("ожидалось last_user_sync_at=null, получено %v", v)
	}
	if items, ok := body["items"].([]any); !ok || len(items) != 0 {
		t.Errorf("ожидался пустой массив items, получено %v", body["items"])
	}
}

func TestListSyncRuns_InvalidLimit(t *testing.T) {
	for _, limit := range []string{"0", "101", "abc", "-1"} {
		t.Run(limit, func(t *testing.T) {
			h, _ := newTestHandler()
			rec := do(t, newTestRouter(h), http.MethodGet, "/api/v1/users/sync-runs?limit="+limit, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("статус = %d, ожидалось 400", rec.Code)
			}
		})
	}
}

func TestBruteForceSettings(t *testing.T) {
	h, d := newTestHandler()
	d.realm.settings = &model.RealmBruteForceSettings{Protected: true, FailureFactor: 5, MaxDeltaTimeSeconds: 300}

	rec := do(t, newTestRouter(h), http.MethodGet, "/api/v1/realm/brute-force", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET: статус = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["protected"] != true || body["failure_factor"] != float64(5) || body["max_delta_time_seconds"] != float64(300) {
		t.Errorf("неожиданный ответ: %v", body)
	}

	rec = do(t, newTestRouter(h), http.MethodPut, "/api/v1/realm/brute-force",
		`{"protected":true,"failure_factor":3,"max_delta_time_seconds":600,"minimum_quick_login_wait_seconds":60,"wait_increment_seconds":60,"quick_login_check_milli_seconds":1000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT: статус = %d: %s", rec.Code, rec.Body.String())
	}
	if d.realm.updated == nil || d.realm.updated.FailureFactor != 3 || d.realm.updated.MaxDeltaTimeSeconds != 600 {
		t.Errorf("неожиданные настройки в сервисе: %+v", d.realm.updated)
	}
}

func TestUpdateBruteForceSettings_Rejected(t *testing.T) {
	h, d := newTestHandler()
	d.realm.err = fmt.Errorf("%w: IdP отклонил настройки", service.ErrValidation)

	rec := do(t, newTestRouter(h), http.MethodPut, "/api/v1/realm/brute-force", `{"protected":true,"failure_factor":0}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус = %d, ожидалось 400", rec.Code)
	}
}
