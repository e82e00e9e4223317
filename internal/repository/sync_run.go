package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/model"
)

// SyncRunRepository: журнал запусков синхронизации пользователей (user_sync_runs).
type SyncRunRepository interface {
	// Create сохраняет завершённый запуск.
	Create(ctx context.Context, run *model.SyncRun) error
	// ListRecent возвращает последние запуски, новые первыми.
	ListRecent(ctx context.Context, limit int) ([]*model.SyncRun, error)
}

// syncRunRepo: реализация SyncRunRepository.
type syncRunRepo struct {
	db DBTX
}

// NewSyncRunRepository создаёт репозиторий запусков синхронизации.
func NewSyncRunRepository(db DBTX) SyncRunRepository {
	return &syncRunRepo{db: db}
}

func (r *syncRunRepo) Create(ctx context.Context, run *model.SyncRun) error {
	query := `
		INSERT INTO user_sync_runs
			(id, status, total, created, updated, unchanged, failed, error, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		run.ID, run.Status, run.Total, run.Created, run.Updated, run.Unchanged, run.Failed,
		run.Error, run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка сохранения запуска синхронизации: %w", err)
	}
	return nil
}

func (r *syncRunRepo) ListRecent(ctx context.Context, limit int) ([]*model.SyncRun, error) {
	query := `
		SELECT id, status, total, created, updated, unchanged, failed, error, started_at, completed_at
		FROM user_sync_runs
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения запусков синхронизации: %w", err)
	}

	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.SyncRun, error) {
		run := &model.SyncRun{}
		err := row.Scan(
			&run.ID, &run.Status, &run.Total, &run.Created, &run.Updated, &run.Unchanged,
			&run.Failed, &run.Error, &run.StartedAt, &run.CompletedAt,
		)
		return run, err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения запусков синхронизации: %w", err)
	}

	return runs, nil
}
