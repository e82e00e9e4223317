package model

import "time"

// SyncState: состояние синхронизации (одна строка в БД).
// Хранится в таблице sync_state (id = 1, всегда одна запись).
type SyncState struct {
	// ID: всегда 1
	ID int
	// LastUserSyncAt: время последней синхронизации пользователей с IdP
	LastUserSyncAt *time.Time
	// CreatedAt: время создания записи
	CreatedAt time.Time
	// UpdatedAt: время последнего обновления
	UpdatedAt time.Time
}

// Статусы запуска синхронизации пользователей.
const (
	SyncRunCompleted = "completed"
	SyncRunAborted   = "aborted"
)

// UserSyncFailure: ошибка синхронизации одной записи.
type UserSyncFailure struct {
	// Username: ключ записи
	Username string
	// Op: шаг, на котором произошла ошибка (lookup, create, update)
	Op string
	// Reason: текст ошибки
	Reason string
}

// UserSyncResult: результат синхронизации пользователей с IdP.
type UserSyncResult struct {
	// RunID: UUID запуска
	RunID string
	// Total: количество legacy-записей
	Total int
	// Created: создано пользователей в IdP
	Created int
	// Updated: обновлено существующих пользователей
	Updated int
	// Unchanged: записи, уже существовавшие в IdP (конфликт при создании)
	Unchanged int
	// Failed: записи, синхронизация которых завершилась ошибкой
	Failed int
	// TokenRefreshes: сколько раз admin-токен обновлялся в ходе запуска
	TokenRefreshes int
	// Failures: подробности по ошибочным записям
	Failures []UserSyncFailure
	// StartedAt: время начала синхронизации
	StartedAt time.Time
	// CompletedAt: время завершения синхронизации
	CompletedAt time.Time
}

// SyncRun: сохранённый запуск синхронизации пользователей.
// Хранится в таблице user_sync_runs.
type SyncRun struct {
	ID          string
	Status      string
	Total       int
	Created     int
	Updated     int
	Unchanged   int
	Failed      int
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}
