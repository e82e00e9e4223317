// user_sync.go: массовая синхронизация legacy-пользователей с IdP.
//
// UserSyncService сверяет каждую запись legacy-хранилища с IdP, строго
// последовательно и в порядке источника:
//  1. Admin-токен запрашивается один раз в начале запуска и удерживается
//     AdminTokenHolder до первого отказа IdP (401).
//  2. Поиск пользователя по username.
//  3. Найден → полная замена отображаемых полей (PUT).
//  4. Не найден → создание (документные поля: в атрибутах, пароль: в credentials).
//  5. Отказ 401 на шаге 2–4 → токен обновляется ровно один раз и повторяется
//     ровно эта операция; повторная ошибка записывается в результат.
//  6. Конфликт при создании: запись уже есть, считается неизменённой.
//  7. Прочие ошибки записи собираются в результат и не прерывают запуск.
//
// Запуск прерывается только при ErrAdminAuthFailure (ошибка конфигурации
// сервисного аккаунта). Одновременно выполняется не более одного запуска.
//
// Prometheus-метрики:
//   - identity_gateway_user_sync_duration_seconds: длительность запуска
//   - identity_gateway_user_sync_records_total{outcome}: записи по результату
//   - identity_gateway_user_sync_runs_total{status}: запуски по статусу
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/identity-gateway/internal/keycloak"
	"github.com/bigkaa/goartstore/identity-gateway/internal/repository"
)

// Prometheus-метрики синхронизации пользователей.
var (
	userSyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "identity_gateway_user_sync_duration_seconds",
		Help:    "Длительность синхронизации пользователей с IdP",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s … ~205s
	})
	userSyncRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_gateway_user_sync_records_total",
		Help: "Количество синхронизированных записей по результату",
	}, []string{"outcome"})
	userSyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_gateway_user_sync_runs_total",
		Help: "Количество запусков синхронизации пользователей по статусу",
	}, []string{"status"})
)

// Результат синхронизации одной записи.
type recordOutcome string

const (
	outcomeCreated   recordOutcome = "created"
	outcomeUpdated   recordOutcome = "updated"
	outcomeUnchanged recordOutcome = "unchanged"
)

// Шаги синхронизации записи (для UserSyncFailure.Op).
const (
	syncOpLookup = "lookup"
	syncOpCreate = "create"
	syncOpUpdate = "update"
)

// UserSyncService: синхронизация legacy-пользователей с IdP.
type UserSyncService struct {
	idp     IdentityProvider
	admin   *AdminTokenManager
	realm   string
	legacy  repository.LegacyUserRepository
	journal repository.SyncJournal
	logger  *slog.Logger

	running atomic.Bool
}

// NewUserSyncService создаёт сервис синхронизации пользователей.
func NewUserSyncService(
	idp IdentityProvider,
	admin *AdminTokenManager,
	realm string,
	legacy repository.LegacyUserRepository,
	journal repository.SyncJournal,
	logger *slog.Logger,
) *UserSyncService {
	return &UserSyncService{
		idp:     idp,
		admin:   admin,
		realm:   realm,
		legacy:  legacy,
		journal: journal,
		logger:  logger.With(slog.String("component", "user_sync")),
	}
}

// SyncNow выполняет синхронизацию всех legacy-пользователей.
// При прерывании запуска возвращает частичный результат вместе с ошибкой.
func (s *UserSyncService) SyncNow(ctx context.Context) (*model.UserSyncResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer s.running.Store(false)

	result := &model.UserSyncResult{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	logger := s.logger.With(slog.String("run_id", result.RunID))

	// 1. Legacy-записи в порядке источника
	records, err := s.legacy.List(ctx)
	if err != nil {
		err = fmt.Errorf("получение legacy-пользователей: %w", err)
		s.finish(ctx, logger, result, err)
		return result, err
	}
	result.Total = len(records)

	logger.Info("Синхронизация пользователей запущена", slog.Int("total", result.Total))

	// 2. Admin-токен на весь запуск
	holder := NewAdminTokenHolder(s.admin)
	if _, err := holder.Token(ctx); err != nil {
		err = fmt.Errorf("синхронизация пользователей: %w", err)
		s.finish(ctx, logger, result, err)
		return result, err
	}

	// 3. Записи по одной
	for _, rec := range records {
		outcome, op, err := s.syncRecord(ctx, holder, rec)
		if err != nil {
			if errors.Is(err, ErrAdminAuthFailure) {
				err = fmt.Errorf("синхронизация прервана на записи %q: %w", rec.Username, err)
				result.TokenRefreshes = holder.Refreshes()
				s.finish(ctx, logger, result, err)
				return result, err
			}

			result.Failed++
			result.Failures = append(result.Failures, model.UserSyncFailure{
				Username: rec.Username,
				Op:       op,
				Reason:   failureReason(err),
			})
			userSyncRecords.WithLabelValues("failed").Inc()
			logger.Warn("Ошибка синхронизации пользователя",
				slog.String("username", rec.Username),
				slog.String("op", op),
				slog.String("error", err.Error()),
			)
			continue
		}

		switch outcome {
		case outcomeCreated:
			result.Created++
		case outcomeUpdated:
			result.Updated++
		case outcomeUnchanged:
			result.Unchanged++
		}
		userSyncRecords.WithLabelValues(string(outcome)).Inc()
		logger.Debug("Пользователь синхронизирован",
			slog.String("username", rec.Username),
			slog.String("outcome", string(outcome)),
		)
	}

	result.TokenRefreshes = holder.Refreshes()
	s.finish(ctx, logger, result, nil)

	return result, nil
}

// syncRecord синхронизирует одну запись. Возвращает результат или шаг, на котором произошла ошибка.
func (s *UserSyncService) syncRecord(ctx context.Context, holder *AdminTokenHolder, rec model.LegacyUserRecord) (recordOutcome, string, error) {
	desired := rec.IdentityRecord()

	existing, err := withTokenRetry(ctx, holder, func(token string) (*keycloak.UserRepresentation, error) {
		return s.idp.FindUserByUsername(ctx, token, s.realm, rec.Username)
	})
	switch {
	case err == nil:
		merged := mergeForUpdate(toIdentityRecord(existing), desired)
		err = withTokenRetryErr(ctx, holder, func(token string) error {
			return s.idp.UpdateUser(ctx, token, s.realm, existing.ID, toUserRepresentation(&merged))
		})
		if err != nil {
			return "", syncOpUpdate, classifyProviderError("обновление пользователя", err)
		}
		return outcomeUpdated, "", nil

	case errors.Is(err, keycloak.ErrNotFound):
		_, err = withTokenRetry(ctx, holder, func(token string) (string, error) {
			return s.idp.CreateUser(ctx, token, s.realm, toUserRepresentation(&desired))
		})
		if errors.Is(err, keycloak.ErrConflict) {
			return outcomeUnchanged, "", nil
		}
		if err != nil {
			return "", syncOpCreate, classifyProviderError("создание пользователя", err)
		}
		return outcomeCreated, "", nil

	default:
		return "", syncOpLookup, classifyProviderError("поиск пользователя", err)
	}
}

// finish фиксирует итог запуска: метрики, журнал, лог.
func (s *UserSyncService) finish(ctx context.Context, logger *slog.Logger, result *model.UserSyncResult, runErr error) {
	result.CompletedAt = time.Now().UTC()
	userSyncDuration.Observe(result.CompletedAt.Sub(result.StartedAt).Seconds())

	run := &model.SyncRun{
		ID:          result.RunID,
		Status:      model.SyncRunCompleted,
		Total:       result.Total,
		Created:     result.Created,
		Updated:     result.Updated,
		Unchanged:   result.Unchanged,
		Failed:      result.Failed,
		StartedAt:   result.StartedAt,
		CompletedAt: result.CompletedAt,
	}
	if runErr != nil {
		run.Status = model.SyncRunAborted
		run.Error = runErrorText(runErr)
	}
	userSyncRuns.WithLabelValues(run.Status).Inc()

	// Журнал пишется и после отмены контекста запроса.
	if err := s.journal.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("Ошибка сохранения запуска синхронизации", slog.String("error", err.Error()))
	}

	attrs := []any{
		slog.String("status", run.Status),
		slog.Int("total", result.Total),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("failed", result.Failed),
		slog.Int("token_refreshes", result.TokenRefreshes),
		slog.Duration("duration", result.CompletedAt.Sub(result.StartedAt)),
	}
	if runErr != nil {
		logger.Error("Синхронизация пользователей прервана", append(attrs, slog.String("error", runErr.Error()))...)
		return
	}
	logger.Info("Синхронизация пользователей завершена", attrs...)
}

// RecentRuns возвращает последние запуски синхронизации.
func (s *UserSyncService) RecentRuns(ctx context.Context, limit int) ([]*model.SyncRun, error) {
	runs, err := s.journal.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("получение запусков синхронизации: %w", err)
	}
	return runs, nil
}

// State возвращает состояние синхронизации (время последнего запуска).
func (s *UserSyncService) State(ctx context.Context) (*model.SyncState, error) {
	state, err := s.journal.State(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение состояния синхронизации: %w", err)
	}
	return state, nil
}

// runErrorText: текст ошибки запуска для журнала. Ошибки IdP сводятся к классу и статусу.
func runErrorText(err error) string {
	var pe *keycloak.ProviderError
	if errors.As(err, &pe) {
		return failureReason(err)
	}
	return err.Error()
}
