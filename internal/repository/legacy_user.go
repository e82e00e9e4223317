package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/model"
)

// LegacyUserRepository: чтение пользователей из legacy-хранилища.
// Таблица принадлежит внешней системе: только чтение.
type LegacyUserRepository interface {
	// List возвращает всех пользователей в порядке первичного ключа.
	List(ctx context.Context) ([]model.LegacyUserRecord, error)
}

// legacyUserRepo: реализация LegacyUserRepository.
// Схема таблицы: id, usuario, correo, nombre, apellido, password,
// "typeDocument", "nroDocument" (bigint).
type legacyUserRepo struct {
	db    DBTX
	table string
}

// NewLegacyUserRepository создаёт репозиторий legacy-пользователей.
// table: имя таблицы (опционально со схемой: "legacy.users").
func NewLegacyUserRepository(db DBTX, table string) LegacyUserRepository {
	return &legacyUserRepo{db: db, table: quoteTable(table)}
}

func (r *legacyUserRepo) List(ctx context.Context) ([]model.LegacyUserRecord, error) {
	query := fmt.Sprintf(`
		SELECT usuario, COALESCE(correo, ''), COALESCE(nombre, ''), COALESCE(apellido, ''),
		       COALESCE(password, ''), COALESCE("typeDocument", ''), COALESCE("nroDocument"::text, '')
		FROM %s
		ORDER BY id`, r.table)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения legacy-пользователей: %w", err)
	}

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.LegacyUserRecord, error) {
		var u model.LegacyUserRecord
		err := row.Scan(
			&u.Username, &u.Email, &u.GivenName, &u.FamilyName,
			&u.ClearTextPassword, &u.DocumentType, &u.DocumentNumber,
		)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения legacy-пользователей: %w", err)
	}

	return users, nil
}
