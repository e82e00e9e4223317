// Пакет database: подключение к PostgreSQL через pgxpool,
// применение миграций (golang-migrate) и проверка готовности.
// Миграции создают только служебные таблицы gateway (sync_state, user_sync_runs);
// таблица legacy-пользователей принадлежит внешней системе и не мигрируется.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/identity-gateway/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connect создаёт пул подключений к PostgreSQL.
// Выполняет ping для проверки доступности.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}

	logger.Info("Подключение к PostgreSQL установлено",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
		slog.String("legacy_table", cfg.LegacyUsersTable),
	)

	return pool, nil
}

// Migrate применяет SQL-миграции из embedded FS к базе данных.
// Использует golang-migrate с драйвером pgx5.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Миграции применены",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)

	return nil
}

// OpenStdDB возвращает *sql.DB поверх существующего пула
// (для проверок зависимостей в режиме connection pool).
func OpenStdDB(pool *pgxpool.Pool) *sql.DB {
	return stdlib.OpenDBFromPool(pool)
}

// ReadinessChecker: проверка готовности PostgreSQL для health endpoint.
// Реализует интерфейс handlers.ReadinessChecker.
type ReadinessChecker struct {
	pool *pgxpool.Pool
}

// NewReadinessChecker создаёт проверку готовности PostgreSQL.
func NewReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{pool: pool}
}

// CheckReady проверяет подключение к PostgreSQL через ping.
// Возвращает статус ("ok", "fail") и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.pool.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("PostgreSQL недоступен: %v", err)
	}
	return "ok", "подключение активно"
}
