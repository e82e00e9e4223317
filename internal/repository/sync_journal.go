package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/model"
)

// SyncJournal: журнал синхронизации пользователей: запуски и время последнего запуска.
type SyncJournal interface {
	// RecordRun атомарно сохраняет запуск и обновляет sync_state.last_user_sync_at.
	RecordRun(ctx context.Context, run *model.SyncRun) error
	// ListRecent возвращает последние запуски, новые первыми.
	ListRecent(ctx context.Context, limit int) ([]*model.SyncRun, error)
	// State возвращает состояние синхронизации.
	State(ctx context.Context) (*model.SyncState, error)
}

// syncJournal: реализация SyncJournal поверх pgxpool.
type syncJournal struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

// NewSyncJournal создаёт журнал синхронизации.
func NewSyncJournal(pool *pgxpool.Pool) SyncJournal {
	return &syncJournal{pool: pool, tx: NewTxRunner(pool)}
}

func (j *syncJournal) RecordRun(ctx context.Context, run *model.SyncRun) error {
	return j.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := NewSyncRunRepository(tx).Create(ctx, run); err != nil {
			return err
		}
		return NewSyncStateRepository(tx).UpdateUserSyncAt(ctx, run.CompletedAt)
	})
}

func (j *syncJournal) ListRecent(ctx context.Context, limit int) ([]*model.SyncRun, error) {
	return NewSyncRunRepository(j.pool).ListRecent(ctx, limit)
}

func (j *syncJournal) State(ctx context.Context) (*model.SyncState, error) {
	return NewSyncStateRepository(j.pool).Get(ctx)
}
