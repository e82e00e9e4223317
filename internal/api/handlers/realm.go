// realm.go: обработчики /api/v1/realm/brute-force.
package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/identity-gateway/internal/api/errors"
	"github.com/bigkaa/goartstore/identity-gateway/internal/api/middleware"
	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/model"
)

type bruteForceSettingsDTO struct {
	Protected                    bool  `json:"protected"`
	FailureFactor                int   `json:"failure_factor"`
	MaxDeltaTimeSeconds          int64 `json:"max_delta_time_seconds"`
	MinimumQuickLoginWaitSeconds int64 `json:"minimum_quick_login_wait_seconds"`
	WaitIncrementSeconds         int64 `json:"wait_increment_seconds"`
	QuickLoginCheckMilliSeconds  int64 `json:"quick_login_check_milli_seconds"`
}

// GetBruteForceSettings: GET /api/v1/realm/brute-force.
// Доступ: admin.
func (h *APIHandler) GetBruteForceSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.realm.GetBruteForceSettings(r.Context())
	if err != nil {
		h.writeServiceError(w, "get_brute_force", err)
		return
	}

	writeJSON(w, http.StatusOK, bruteForceSettingsDTO(*settings))
}

// UpdateBruteForceSettings: PUT /api/v1/realm/brute-force.
// Доступ: admin.
func (h *APIHandler) UpdateBruteForceSettings(w http.ResponseWriter, r *http.Request) {
	var req bruteForceSettingsDTO
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	settings := model.RealmBruteForceSettings(req)
	if err := h.realm.UpdateBruteForceSettings(r.Context(), settings); err != nil {
		h.writeServiceError(w, "update_brute_force", err)
		return
	}

	h.logger.Info("Настройки brute-force изменены через API",
		slog.String("actor", middleware.ActorFromContext(r.Context())),
	)
	writeJSON(w, http.StatusOK, req)
}
