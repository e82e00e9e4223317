// sync.go: обработчики синхронизации пользователей legacy-БД с IdP.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/goartstore/identity-gateway/internal/api/errors"
	"github.com/bigkaa/goartstore/identity-gateway/internal/api/middleware"
	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/identity-gateway/internal/service"
)

const (
	defaultSyncRunsLimit = 20
	maxSyncRunsLimit     = 100
)

type syncFailureResponse struct {
	Username string `json:"username"`
	Op       string `json:"op"`
	Reason   string `json:"reason"`
}

type syncResultResponse struct {
	RunID          string                `json:"run_id"`
	Total          int                   `json:"total"`
	Created        int                   `json:"created"`
	Updated        int                   `json:"updated"`
	Unchanged      int                   `json:"unchanged"`
	Failed         int                   `json:"failed"`
	TokenRefreshes int                   `json:"token_refreshes"`
	Failures       []syncFailureResponse `json:"failures"`
	StartedAt      time.Time             `json:"started_at"`
	CompletedAt    time.Time             `json:"completed_at"`
}

type syncRunResponse struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Total       int       `json:"total"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Unchanged   int       `json:"unchanged"`
	Failed      int       `json:"failed"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

type syncRunListResponse struct {
	Items          []syncRunResponse `json:"items"`
	LastUserSyncAt *time.Time        `json:"last_user_sync_at"`
}

// BulkSyncUsers: POST /api/v1/users/bulk-sync.
// Синхронизация выполняется синхронно и не прерывается при разрыве соединения клиентом.
// Доступ: admin.
func (h *APIHandler) BulkSyncUsers(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Запуск синхронизации пользователей через API",
		slog.String("actor", middleware.ActorFromContext(r.Context())),
	)

	result, err := h.userSync.SyncNow(context.WithoutCancel(r.Context()))
	if err != nil {
		h.writeServiceError(w, "bulk_sync", err)
		return
	}

	writeJSON(w, http.StatusOK, mapSyncResult(result))
}

// ListSyncRuns: GET /api/v1/users/sync-runs?limit=.
// Доступ: admin.
func (h *APIHandler) ListSyncRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query(), defaultSyncRunsLimit, maxSyncRunsLimit)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	runs, err := h.userSync.RecentRuns(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, "list_sync_runs", err)
		return
	}

	resp := syncRunListResponse{Items: make([]syncRunResponse, len(runs))}
	for i, run := range runs {
		resp.Items[i] = mapSyncRun(run)
	}

	state, err := h.userSync.State(r.Context())
	switch {
	case err == nil:
		resp.LastUserSyncAt = state.LastUserSyncAt
	case errors.Is(err, service.ErrNotFound):
	default:
		h.writeServiceError(w, "sync_state", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func mapSyncResult(res *model.UserSyncResult) syncResultResponse {
	resp := syncResultResponse{
		RunID:          res.RunID,
		Total:          res.Total,
		Created:        res.Created,
		Updated:        res.Updated,
		Unchanged:      res.Unchanged,
		Failed:         res.Failed,
		TokenRefreshes: res.TokenRefreshes,
		Failures:       make([]syncFailureResponse, len(res.Failures)),
		StartedAt:      res.StartedAt.UTC(),
		CompletedAt:    res.CompletedAt.UTC(),
	}
	for i, f := range res.Failures {
		resp.Failures[i] = syncFailureResponse(f)
	}
	return resp
}

func mapSyncRun(run *model.SyncRun) syncRunResponse {
	return syncRunResponse{
		ID:          run.ID,
		Status:      run.Status,
		Total:       run.Total,
		Created:     run.Created,
		Updated:     run.Updated,
		Unchanged:   run.Unchanged,
		Failed:      run.Failed,
		Error:       run.Error,
		StartedAt:   run.StartedAt.UTC(),
		CompletedAt: run.CompletedAt.UTC(),
	}
}
