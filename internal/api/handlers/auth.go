// auth.go: обработчики /api/v1/auth endpoints.
// Вход по паролю и проверка токена через Keycloak.
package handlers

import (
	"net/http"
	"strings"
	"time"

	apierrors "github.com/bigkaa/goartstore/identity-gateway/internal/api/errors"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"` //nolint:gosec // G117: пароль из тела запроса
}

type loginResponse struct {
	AccessToken string    `json:"access_token"` //nolint:gosec // G117: токен в ответе
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type introspectRequest struct {
	Token string `json:"token"`
}

// Login: POST /api/v1/auth/login.
// Неверный пароль и несуществующий пользователь неразличимы (401).
// Заблокированный аккаунт: 423 с Retry-After.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		apierrors.ValidationError(w, "username и password обязательны")
		return
	}

	token, err := h.login.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, "login", err)
		return
	}

	expiresIn := int64(time.Until(token.ExpiresAt).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token.Value,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		ExpiresAt:   token.ExpiresAt.UTC(),
	})
}

// Introspect: POST /api/v1/auth/introspect.
// Неактивный токен: 200 с active=false.
func (h *APIHandler) Introspect(w http.ResponseWriter, r *http.Request) {
	var req introspectRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		apierrors.ValidationError(w, "token обязателен")
		return
	}

	resp, err := h.introspect.Validate(r.Context(), req.Token)
	if err != nil {
		h.writeServiceError(w, "introspect", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
