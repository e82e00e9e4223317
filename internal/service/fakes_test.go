package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/identity-gateway/internal/keycloak"
	"github.com/bigkaa/goartstore/identity-gateway/internal/repository"
)

const (
	testAdminRealm  = "master"
	testAdminUser   = "svc-admin"
	testAdminPass   = "svc-secret"
	testTenantRealm = "identity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAdminCredentials() AdminCredentials {
	return AdminCredentials{
		Realm:    testAdminRealm,
		Client:   keycloak.ClientCredentials{ClientID: "admin-cli"},
		Username: testAdminUser,
		Password: testAdminPass,
	}
}

func testTenant() TenantClient {
	return TenantClient{
		Realm:  testTenantRealm,
		Client: keycloak.ClientCredentials{ClientID: "identity-gateway", ClientSecret: "gw-secret"},
	}
}

func unauthorized(op string) error {
	return &keycloak.ProviderError{Op: op, StatusCode: http.StatusUnauthorized}
}

// fakeIDP: IdP в памяти. Admin-токены выдаются для testAdminRealm,
// отозванный токен даёт 401 на любом Admin API вызове.
type fakeIDP struct {
	mu sync.Mutex

	adminGrantErr error
	tenantGrant   func(username, password string) (*keycloak.AccessToken, error)
	introspect    func(token string) (*keycloak.IntrospectionResponse, error)

	users  map[string]*keycloak.UserRepresentation // по username
	roles  map[string][]string                     // по id
	groups map[string][]string                     // по id
	realm  keycloak.RealmRepresentation

	realmErr       error
	updateRealmErr error
	findErr        map[string]error
	createErr      map[string]error
	updateErr      map[string]error

	// alwaysUnauthorized: username, на любой запрос по которому IdP отвечает 401
	alwaysUnauthorized map[string]bool
	// onFind вызывается перед поиском пользователя (например, для отзыва токена)
	onFind func(f *fakeIDP, username, token string)
	// onCreate и onUpdate вызываются перед созданием и обновлением пользователя
	onCreate func(f *fakeIDP, username string)
	onUpdate func(f *fakeIDP, username string)

	issued  int
	revoked map[string]bool
	nextID  int

	calls          map[string]int
	created        []keycloak.UserRepresentation
	updated        []keycloak.UserRepresentation
	passwordResets map[string]keycloak.CredentialRepresentation
	realmUpdates   []keycloak.BruteForceSettings
}

func newFakeIDP() *fakeIDP {
	return &fakeIDP{
		users:              make(map[string]*keycloak.UserRepresentation),
		roles:              make(map[string][]string),
		groups:             make(map[string][]string),
		findErr:            make(map[string]error),
		createErr:          make(map[string]error),
		updateErr:          make(map[string]error),
		alwaysUnauthorized: make(map[string]bool),
		revoked:            make(map[string]bool),
		calls:              make(map[string]int),
		passwordResets:     make(map[string]keycloak.CredentialRepresentation),
		realm: keycloak.RealmRepresentation{
			Realm:               testTenantRealm,
			Enabled:             true,
			BruteForceProtected: true,
			FailureFactor:       5,
			MaxDeltaTimeSeconds: 300,
		},
	}
}

// addUser добавляет пользователя и возвращает его ID.
func (f *fakeIDP) addUser(u keycloak.UserRepresentation) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		f.nextID++
		u.ID = fmt.Sprintf("kc-%d", f.nextID)
	}
	f.users[u.Username] = &u
	return u.ID
}

// revokeCurrent отзывает последний выданный admin-токен. Вызывается под f.mu.
func (f *fakeIDP) revokeCurrent() {
	f.revoked[fmt.Sprintf("admin-%d", f.issued)] = true
}

func (f *fakeIDP) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeIDP) checkToken(op, token string) error {
	if !strings.HasPrefix(token, "admin-") || f.revoked[token] {
		return unauthorized(op)
	}
	return nil
}

func (f *fakeIDP) userByID(id string) *keycloak.UserRepresentation {
	for _, u := range f.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (f *fakeIDP) PasswordGrant(_ context.Context, realm string, _ keycloak.ClientCredentials, username, password string) (*keycloak.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if realm != testAdminRealm {
		f.calls["tenant_grant"]++
		if f.tenantGrant == nil {
			return nil, &keycloak.ProviderError{Op: "PasswordGrant", StatusCode: http.StatusUnauthorized, Code: keycloak.ErrorCodeInvalidGrant}
		}
		return f.tenantGrant(username, password)
	}

	f.calls["admin_grant"]++
	if f.adminGrantErr != nil {
		return nil, f.adminGrantErr
	}
	if username != testAdminUser || password != testAdminPass {
		return nil, &keycloak.ProviderError{
			Op: "PasswordGrant", StatusCode: http.StatusUnauthorized,
			Code: keycloak.ErrorCodeInvalidGrant, Description: "Invalid user credentials",
		}
	}
	f.issued++
	return &keycloak.AccessToken{
		Value:     fmt.Sprintf("admin-%d", f.issued),
		ExpiresAt: time.Now().Add(time.Minute),
	}, nil
}

func (f *fakeIDP) Introspect(_ context.Context, _ string, _ keycloak.ClientCredentials, token string) (*keycloak.IntrospectionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["introspect"]++
	if f.introspect == nil {
		return &keycloak.IntrospectionResponse{Active: false}, nil
	}
	return f.introspect(token)
}

func (f *fakeIDP) FindUserByUsername(_ context.Context, token, _, username string) (*keycloak.UserRepresentation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["find"]++

	if f.onFind != nil {
		f.onFind(f, username, token)
	}
	if err := f.checkToken("FindUserByUsername", token); err != nil {
		return nil, err
	}
	if f.alwaysUnauthorized[username] {
		return nil, unauthorized("FindUserByUsername")
	}
	if err := f.findErr[username]; err != nil {
		return nil, err
	}
	u, ok := f.users[username]
	if !ok {
		return nil, fmt.Errorf("FindUserByUsername: %w", keycloak.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeIDP) GetUser(_ context.Context, token, _, id string) (*keycloak.UserRepresentation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["get_user"]++

	if err := f.checkToken("GetUser", token); err != nil {
		return nil, err
	}
	u := f.userByID(id)
	if u == nil {
		return nil, &keycloak.ProviderError{Op: "GetUser", StatusCode: http.StatusNotFound}
	}
	cp := *u
	return &cp, nil
}

func (f *fakeIDP) CreateUser(_ context.Context, token, _ string, user *keycloak.UserRepresentation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["create"]++

	if f.onCreate != nil {
		f.onCreate(f, user.Username)
	}
	if err := f.checkToken("CreateUser", token); err != nil {
		return "", err
	}
	if err := f.createErr[user.Username]; err != nil {
		return "", err
	}
	if _, exists := f.users[user.Username]; exists {
		return "", &keycloak.ProviderError{Op: "CreateUser", StatusCode: http.StatusConflict}
	}

	f.nextID++
	cp := *user
	cp.ID = fmt.Sprintf("kc-%d", f.nextID)
	f.users[cp.Username] = &cp
	f.created = append(f.created, cp)
	return cp.ID, nil
}

func (f *fakeIDP) UpdateUser(_ context.Context, token, _, id string, user *keycloak.UserRepresentation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["update"]++

	if f.onUpdate != nil {
		f.onUpdate(f, user.Username)
	}
	if err := f.checkToken("UpdateUser", token); err != nil {
		return err
	}
	if err := f.updateErr[user.Username]; err != nil {
		return err
	}
	existing := f.userByID(id)
	if existing == nil {
		return &keycloak.ProviderError{Op: "UpdateUser", StatusCode: http.StatusNotFound}
	}

	cp := *user
	cp.ID = id
	delete(f.users, existing.Username)
	f.users[cp.Username] = &cp
	f.updated = append(f.updated, cp)
	return nil
}

func (f *fakeIDP) GetRealmRoleMappings(_ context.Context, token, _, id string) ([]keycloak.RoleRepresentation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["roles"]++

	if err := f.checkToken("GetRealmRoleMappings", token); err != nil {
		return nil, err
	}
	var roles []keycloak.RoleRepresentation
	for _, name := range f.roles[id] {
		roles = append(roles, keycloak.RoleRepresentation{ID: "role-" + name, Name: name})
	}
	return roles, nil
}

func (f *fakeIDP) GetUserGroups(_ context.Context, token, _, id string) ([]keycloak.GroupRepresentation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["groups"]++

	if err := f.checkToken("GetUserGroups", token); err != nil {
		return nil, err
	}
	var groups []keycloak.GroupRepresentation
	for _, name := range f.groups[id] {
		groups = append(groups, keycloak.GroupRepresentation{ID: "group-" + name, Name: name, Path: "/" + name})
	}
	return groups, nil
}

func (f *fakeIDP) ResetPassword(_ context.Context, token, _, id string, credential keycloak.CredentialRepresentation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["reset_password"]++

	if err := f.checkToken("ResetPassword", token); err != nil {
		return err
	}
	if f.userByID(id) == nil {
		return &keycloak.ProviderError{Op: "ResetPassword", StatusCode: http.StatusNotFound}
	}
	f.passwordResets[id] = credential
	return nil
}

func (f *fakeIDP) GetRealm(_ context.Context, token, _ string) (*keycloak.RealmRepresentation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["get_realm"]++

	if err := f.checkToken("GetRealm", token); err != nil {
		return nil, err
	}
	if f.realmErr != nil {
		return nil, f.realmErr
	}
	cp := f.realm
	return &cp, nil
}

func (f *fakeIDP) UpdateRealm(_ context.Context, token, _ string, settings *keycloak.BruteForceSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["update_realm"]++

	if err := f.checkToken("UpdateRealm", token); err != nil {
		return err
	}
	if f.updateRealmErr != nil {
		return f.updateRealmErr
	}
	f.realmUpdates = append(f.realmUpdates, *settings)
	f.realm.BruteForceProtected = settings.BruteForceProtected
	f.realm.FailureFactor = settings.FailureFactor
	f.realm.MaxDeltaTimeSeconds = settings.MaxDeltaTimeSeconds
	return nil
}

// fakeLegacyRepo: legacy-хранилище в памяти.
type fakeLegacyRepo struct {
	records []model.LegacyUserRecord
	err     error
}

func (r *fakeLegacyRepo) List(_ context.Context) ([]model.LegacyUserRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.records, nil
}

// fakeJournal: журнал синхронизации в памяти.
type fakeJournal struct {
	mu    sync.Mutex
	runs  []*model.SyncRun
	state *model.SyncState
	err   error
}

func (j *fakeJournal) RecordRun(_ context.Context, run *model.SyncRun) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.runs = append(j.runs, run)
	completed := run.CompletedAt
	if j.state == nil {
		j.state = &model.SyncState{ID: 1}
	}
	j.state.LastUserSyncAt = &completed
	return nil
}

func (j *fakeJournal) ListRecent(_ context.Context, limit int) ([]*model.SyncRun, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*model.SyncRun
	for i := len(j.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j.runs[i])
	}
	return out, nil
}

func (j *fakeJournal) State(_ context.Context) (*model.SyncState, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == nil {
		return nil, repository.ErrNotFound
	}
	return j.state, nil
}

var (
	_ IdentityProvider                = (*fakeIDP)(nil)
	_ repository.LegacyUserRepository = (*fakeLegacyRepo)(nil)
	_ repository.SyncJournal          = (*fakeJournal)(nil)
)
