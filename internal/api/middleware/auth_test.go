package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// testKeyID: идентификатор ключа для тестов.
const testKeyID = "test-key-ig"

const testIssuer = "https://keycloak.test/realms/identity"

// generateTestKey генерирует RSA ключ для тестов.
func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}

	data, _ := json.Marshal(jwks)
	return data
}

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestJWTAuth создаёт JWTAuth для тестов.
func newTestJWTAuth(t *testing.T, key *rsa.PrivateKey) *JWTAuth {
	t.Helper()
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("не удалось создать keyfunc: %v", err)
	}

	return NewJWTAuthWithKeyfunc(
		kf,
		testIssuer,
		[]string{"identity-admins"},
		[]string{"identity-operators"},
		testLogger(),
	)
}

// tokenOptions: параметры тестового JWT.
type tokenOptions struct {
	sub     string
	roles   []string
	groups  []string
	issuer  string
	expired bool
}

// generateToken подписывает JWT тестовым ключом.
func generateToken(t *testing.T, key *rsa.PrivateKey, opts tokenOptions) string {
	t.Helper()

	exp := time.Now().Add(time.Hour)
	if opts.expired {
		exp = time.Now().Add(-time.Hour)
	}
	issuer := opts.issuer
	if issuer == "" {
		issuer = testIssuer
	}

	claims := jwt.MapClaims{
		"sub":                opts.sub,
		"preferred_username": "user-" + opts.sub,
		"email":              opts.sub + "@test.com",
		"iss":                issuer,
		"exp":                jwt.NewNumericDate(exp),
		"nbf":                jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		"iat":                jwt.NewNumericDate(time.Now()),
	}
	if len(opts.roles) > 0 {
		claims["realm_access"] = map[string]any{"roles": opts.roles}
	}
	if len(opts.groups) > 0 {
		claims["groups"] = opts.groups
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return tokenStr
}

// serveWithToken пропускает запрос с токеном через middleware и возвращает claims из контекста.
func serveWithToken(t *testing.T, auth *JWTAuth, header string) (*httptest.ResponseRecorder, *AuthClaims) {
	t.Helper()

	var got *AuthClaims
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/kc-1", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, got
}

// TestJWTAuth_ValidToken: валидный JWT с группой администраторов.
func TestJWTAuth_ValidToken(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	tokenStr := generateToken(t, key, tokenOptions{
		sub:    "user-123",
		roles:  []string{"offline_access"},
		groups: []string{"/identity-admins"},
	})

	rec, claims := serveWithToken(t, auth, "Bearer "+tokenStr)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d, тело: %s", rec.Code, rec.Body.String())
	}
	if claims == nil {
		t.Fatal("claims не найдены в контексте")
	}
	if claims.Subject != "user-123" || claims.PreferredUsername != "user-user-123" {
		t.Errorf("неожиданные claims: %+v", claims)
	}
	if claims.GroupRole != "admin" || claims.Role != "admin" {
		t.Errorf("ожидалась роль admin, получено GroupRole=%q Role=%q", claims.GroupRole, claims.Role)
	}
	if len(claims.RealmRoles) != 1 || claims.RealmRoles[0] != "offline_access" {
		t.Errorf("неожиданные realm-роли: %v", claims.RealmRoles)
	}
}

// TestJWTAuth_RoleMapping: роль из групп и realm-ролей.
func TestJWTAuth_RoleMapping(t *testing.T) {
	tests := []struct {
		name   string
		roles  []string
		groups []string
		want   string
	}{
		{"группа администраторов", nil, []string{"identity-admins"}, "admin"},
		{"группа операторов", nil, []string{"identity-operators"}, "operator"},
		{"обе группы", nil, []string{"identity-operators", "identity-admins"}, "admin"},
		{"realm-роль operator", []string{"operator"}, nil, "operator"},
		{"realm-роль повышает группу", []string{"admin"}, []string{"identity-operators"}, "admin"},
		{"нет групп и ролей", nil, nil, ""},
		{"неизвестная группа", []string{"uma_authorization"}, []string{"other"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := generateTestKey(t)
			auth := newTestJWTAuth(t, key)

			tokenStr := generateToken(t, key, tokenOptions{sub: "u1", roles: tt.roles, groups: tt.groups})
			rec, claims := serveWithToken(t, auth, "Bearer "+tokenStr)

			if rec.Code != http.StatusOK {
				t.Fatalf("ожидался статус 200, получен %d", rec.Code)
			}
			if claims.Role != tt.want {
				t.Errorf("ожидалась роль %q, получена %q", tt.want, claims.Role)
			}
		})
	}
}

// TestJWTAuth_Rejected: отказ в аутентификации.
func TestJWTAuth_Rejected(t *testing.T) {
	key := generateTestKey(t)
	otherKey := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	tests := []struct {
		name   string
		header string
	}{
		{"нет заголовка", ""},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"без префикса Bearer", "token123"},
		{"пустой Bearer", "Bearer "},
		{"мусор вместо JWT", "Bearer not-a-jwt"},
		{"просроченный токен", "Bearer " + generateToken(t, key, tokenOptions{sub: "u1", expired: true})},
		{"чужой issuer", "Bearer " + generateToken(t, key, tokenOptions{sub: "u1", issuer: "https://evil/realms/x"})},
		{"чужой ключ", "Bearer " + generateToken(t, otherKey, tokenOptions{sub: "u1"})},
		{"без sub", "Bearer " + generateToken(t, key, tokenOptions{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, claims := serveWithToken(t, auth, tt.header)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("ожидался статус 401, получен %d", rec.Code)
			}
			if claims != nil {
				t.Error("handler не должен быть вызван")
			}
		})
	}
}

// TestJWTAuth_Leeway: токен, истёкший в пределах leeway, принимается.
func TestJWTAuth_Leeway(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)
	auth.leeway = time.Minute

	claims := jwt.MapClaims{
		"sub": "u1",
		"iss": testIssuer,
		"exp": jwt.NewNumericDate(time.Now().Add(-10 * time.Second)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}

	rec, _ := serveWithToken(t, auth, "Bearer "+tokenStr)
	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", rec.Code)
	}
}

// --- Тесты RBAC middleware ---

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		claims   *AuthClaims
		allowed  []string
		wantCode int
	}{
		{"admin на admin endpoint", &AuthClaims{Role: "admin"}, []string{"admin"}, http.StatusOK},
		{"operator на общем endpoint", &AuthClaims{Role: "operator"}, []string{"operator", "admin"}, http.StatusOK},
		{"operator на admin endpoint", &AuthClaims{Role: "operator"}, []string{"admin"}, http.StatusForbidden},
		{"без роли", &AuthClaims{}, []string{"operator", "admin"}, http.StatusForbidden},
		{"без claims", nil, []string{"admin"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireRole(tt.allowed...)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			ctx := context.Background()
			if tt.claims != nil {
				ctx = context.WithValue(ctx, ContextKeyClaims, tt.claims)
			}
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("ожидался статус %d, получен %d", tt.wantCode, rec.Code)
			}
		})
	}
}

func TestActorFromContext(t *testing.T) {
	if got := ActorFromContext(context.Background()); got != "" {
		t.Errorf("без claims ожидалась пустая строка, получено %q", got)
	}

	ctx := context.WithValue(context.Background(), ContextKeyClaims, &AuthClaims{Subject: "kc-1"})
	if got := ActorFromContext(ctx); got != "kc-1" {
		t.Errorf("ожидался sub kc-1, получено %q", got)
	}

	ctx = context.WithValue(context.Background(), ContextKeyClaims, &AuthClaims{Subject: "kc-1", PreferredUsername: "alice"})
	if got := ActorFromContext(ctx); got != "alice" {
		t.Errorf("ожидалось alice, получено %q", got)
	}
}

// --- Тесты KeycloakReadinessChecker ---

func TestKeycloakReadinessChecker(t *testing.T) {
	key := generateTestKey(t)

	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		stopped bool
	}{
		{"ключи есть", http.StatusOK, string(buildJWKSetJSON(&key.PublicKey, testKeyID)), "ok", false},
		{"нет ключей", http.StatusOK, `{"keys":[]}`, "degraded", false},
		{"невалидный JSON", http.StatusOK, `not json`, "degraded", false},
		{"ошибка сервера", http.StatusInternalServerError, ``, "fail", false},
		{"сервер недоступен", 0, ``, "fail", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			url := srv.URL + "/realms/identity/protocol/openid-connect/certs"
			if tt.stopped {
				srv.Close()
			} else {
				defer srv.Close()
			}

			checker, err := NewKeycloakReadinessChecker(url, "", 2*time.Second)
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}

			status, msg := checker.CheckReady()
			if status != tt.want {
				t.Errorf("ожидался статус %q, получен %q (%s)", tt.want, status, msg)
			}
		})
	}
}

func TestCustomCA_Errors(t *testing.T) {
	notPEM := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(notPEM, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(t.TempDir(), "missing.pem")

	for _, path := range []string{notPEM, missing} {
		if _, err := NewKeycloakReadinessChecker("https://kc.example.com/certs", path, time.Second); err == nil {
			t.Errorf("readiness checker: ожидалась ошибка для CA %s", path)
		}
		_, err := NewJWTAuth(JWTAuthOptions{
			JWKSURL:       "https://kc.example.com/certs",
			CACertPath:    path,
			ClientTimeout: time.Second,
		}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		if err == nil {
			t.Errorf("JWT middleware: ожидалась ошибка для CA %s", path)
		}
	}
}
