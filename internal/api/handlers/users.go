// users.go: обработчики /api/v1/users endpoints.
// Создание, получение, смена пароля, включение/отключение и статус блокировки.
package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/goartstore/identity-gateway/internal/api/errors"
	"github.com/bigkaa/goartstore/identity-gateway/internal/api/middleware"
	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/model"
)

type createUserRequest struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Password       string `json:"password"` //nolint:gosec // G117: пароль из тела запроса
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	Enabled        *bool  `json:"enabled"`
}

type createUserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type userResponse struct {
	ID             string              `json:"id"`
	Username       string              `json:"username"`
	Email          string              `json:"email,omitempty"`
	FirstName      string              `json:"first_name,omitempty"`
	LastName       string              `json:"last_name,omitempty"`
	Enabled        bool                `json:"enabled"`
	EmailVerified  bool                `json:"email_verified"`
	CreatedAt      *time.Time          `json:"created_at,omitempty"`
	DocumentType   string              `json:"document_type,omitempty"`
	DocumentNumber string              `json:"document_number,omitempty"`
	Attributes     map[string][]string `json:"attributes,omitempty"`
	RealmRoles     []string            `json:"realm_roles"`
	Groups         []string            `json:"groups"`
	Role           string              `json:"role,omitempty"`
}

type resetPasswordRequest struct {
	Password  string `json:"password"` //nolint:gosec // G117: пароль из тела запроса
	Temporary bool   `json:"temporary"`
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

type setEnabledResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Enabled  bool   `json:"enabled"`
}

type lockoutResponse struct {
	Username           string     `json:"username"`
	LoginAttempts      int        `json:"login_attempts"`
	MaxFailures        int        `json:"max_failures"`
	LastFailedLogin    *time.Time `json:"last_failed_login,omitempty"`
	Locked             bool       `json:"locked"`
	SecondsUntilUnlock int64      `json:"seconds_until_unlock"`
}

// CreateUser: POST /api/v1/users.
// Доступ: admin или operator.
func (h *APIHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	rec := model.IdentityRecord{
		Username:   strings.TrimSpace(req.Username),
		Email:      strings.TrimSpace(req.Email),
		GivenName:  req.FirstName,
		FamilyName: req.LastName,
		Enabled:    true,
		Attributes: model.IdentityAttributes{
			DocumentType:   req.DocumentType,
			DocumentNumber: req.DocumentNumber,
		},
	}
	if req.Enabled != nil {
		rec.Enabled = *req.Enabled
	}
	if req.Password != "" {
		rec.Credentials = []model.Credential{model.PasswordCredential(req.Password)}
	}

	id, err := h.users.CreateUser(r.Context(), rec)
	if err != nil {
		h.writeServiceError(w, "create_user", err)
		return
	}

	h.logger.Info("Пользователь создан через API",
		slog.String("user_id", id),
		slog.String("username", rec.Username),
		slog.String("actor", middleware.ActorFromContext(r.Context())),
	)
	writeJSON(w, http.StatusCreated, createUserResponse{ID: id, Username: rec.Username})
}

// GetUser: GET /api/v1/users/{id}.
// Доступ: admin или operator.
func (h *APIHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get_user", err)
		return
	}

	writeJSON(w, http.StatusOK, mapUser(user))
}

// ResetUserPassword: PUT /api/v1/users/{id}/password.
// Доступ: admin или operator.
func (h *APIHandler) ResetUserPassword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	if err := h.users.ResetPassword(r.Context(), id, req.Password, req.Temporary); err != nil {
		h.writeServiceError(w, "reset_password", err)
		return
	}

	h.logger.Info("Пароль пользователя изменён через API",
		slog.String("user_id", id),
		slog.String("actor", middleware.ActorFromContext(r.Context())),
	)
	w.WriteHeader(http.StatusNoContent)
}

// SetUserEnabled: PUT /api/v1/users/{id}/enabled.
// Доступ: admin или operator.
func (h *APIHandler) SetUserEnabled(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setEnabledRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if req.Enabled == nil {
		apierrors.ValidationError(w, "enabled обязателен")
		return
	}

	rec, err := h.users.SetEnabled(r.Context(), id, *req.Enabled)
	if err != nil {
		h.writeServiceError(w, "set_enabled", err)
		return
	}

	h.logger.Info("Статус пользователя изменён через API",
		slog.String("user_id", id),
		slog.Bool("enabled", rec.Enabled),
		slog.String("actor", middleware.ActorFromContext(r.Context())),
	)
	writeJSON(w, http.StatusOK, setEnabledResponse{ID: rec.ID, Username: rec.Username, Enabled: rec.Enabled})
}

// GetLockoutStatus: GET /api/v1/users/lockout?username=.
// Доступ: admin или operator.
func (h *APIHandler) GetLockoutStatus(w http.ResponseWriter, r *http.Request) {
	var username string
	err := runtime.BindQueryParameter("form", true, true, "username", r.URL.Query(), &username)
	if username = strings.TrimSpace(username); err != nil || username == "" {
		apierrors.ValidationError(w, "параметр username обязателен")
		return
	}

	status, err := h.users.LockoutStatus(r.Context(), username)
	if err != nil {
		h.writeServiceError(w, "lockout_status", err)
		return
	}

	writeJSON(w, http.StatusOK, lockoutResponse{
		Username:           status.Username,
		LoginAttempts:      status.LoginAttempts,
		MaxFailures:        status.MaxFailures,
		LastFailedLogin:    status.LastFailedLogin,
		Locked:             status.Decision.Locked,
		SecondsUntilUnlock: status.Decision.SecondsUntilUnlock,
	})
}

// mapUser конвертирует доменную модель в ответ API.
func mapUser(u *model.UserDetails) userResponse {
	resp := userResponse{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		FirstName:      u.GivenName,
		LastName:       u.FamilyName,
		Enabled:        u.Enabled,
		EmailVerified:  u.EmailVerified,
		DocumentType:   u.Attributes.DocumentType,
		DocumentNumber: u.Attributes.DocumentNumber,
		RealmRoles:     u.RealmRoles,
		Groups:         u.Groups,
		Role:           u.GatewayRole,
	}
	if !u.CreatedAt.IsZero() {
		created := u.CreatedAt.UTC()
		resp.CreatedAt = &created
	}
	if len(u.Attributes.Extensions) > 0 {
		resp.Attributes = u.Attributes.Extensions
	}
	if resp.RealmRoles == nil {
		resp.RealmRoles = []string{}
	}
	if resp.Groups == nil {
		resp.Groups = []string{}
	}
	return resp
}
