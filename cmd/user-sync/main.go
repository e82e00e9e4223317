// Точка входа user-sync: однократная синхронизация пользователей
// legacy-БД с Keycloak (batch job, например Kubernetes CronJob).
// Код завершения: 0: запуск завершён (ошибки отдельных записей только в логе),
// 1: фатальная ошибка (конфигурация, БД, сервисный аккаунт IdP).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bigkaa/goartstore/identity-gateway/internal/config"
	"github.com/bigkaa/goartstore/identity-gateway/internal/database"
	"github.com/bigkaa/goartstore/identity-gateway/internal/keycloak"
	"github.com/bigkaa/goartstore/identity-gateway/internal/repository"
	"github.com/bigkaa/goartstore/identity-gateway/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		return 1
	}

	logger := config.SetupLogger(cfg).With(slog.String("job", "user-sync"))
	logger.Info("Синхронизация пользователей запускается",
		slog.String("version", config.Version),
		slog.String("realm", cfg.KeycloakRealm),
		slog.String("legacy_table", cfg.LegacyUsersTable),
	)

	// SIGTERM прерывает запуск между записями
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		return 1
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		return 1
	}
	defer pool.Close()

	httpClient, err := keycloak.NewHTTPClient(cfg.CACertPath, cfg.KeycloakTimeout)
	if err != nil {
		logger.Error("Ошибка загрузки CA-сертификата", slog.String("path", cfg.CACertPath), slog.String("error", err.Error()))
		return 1
	}
	kcClient := keycloak.New(cfg.KeycloakURL, httpClient, logger)

	adminTokens := service.NewAdminTokenManager(kcClient, service.AdminCredentials{
		Realm: cfg.KeycloakAdminRealm,
		Client: keycloak.ClientCredentials{
			ClientID:     cfg.KeycloakAdminClientID,
			ClientSecret: cfg.KeycloakAdminClientSecret,
		},
		Username: cfg.KeycloakAdminUsername,
		Password: cfg.KeycloakAdminPassword,
	}, logger)

	syncSvc := service.NewUserSyncService(
		kcClient, adminTokens, cfg.KeycloakRealm,
		repository.NewLegacyUserRepository(pool, cfg.LegacyUsersTable),
		repository.NewSyncJournal(pool),
		logger,
	)

	result, err := syncSvc.SyncNow(ctx)
	if err != nil {
		logger.Error("Синхронизация пользователей прервана", slog.String("error", err.Error()))
		return 1
	}

	for _, f := range result.Failures {
		logger.Warn("Запись не синхронизирована",
			slog.String("username", f.Username),
			slog.String("op", f.Op),
			slog.String("reason", f.Reason),
		)
	}
	return 0
}
