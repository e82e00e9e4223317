// Точка входа Identity Gateway: фасад над Keycloak.
// Загружает конфигурацию, подключается к PostgreSQL (legacy-пользователи и
// журнал синхронизации), применяет миграции, создаёт клиент Keycloak,
// сервисный слой и API handlers, запускает topologymetrics и
// HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/goartstore/identity-gateway/internal/api/handlers"
	"github.com/bigkaa/goartstore/identity-gateway/internal/api/middleware"
	"github.com/bigkaa/goartstore/identity-gateway/internal/api/openapi"
	"github.com/bigkaa/goartstore/identity-gateway/internal/config"
	"github.com/bigkaa/goartstore/identity-gateway/internal/database"
	"github.com/bigkaa/goartstore/identity-gateway/internal/keycloak"
	"github.com/bigkaa/goartstore/identity-gateway/internal/repository"
	"github.com/bigkaa/goartstore/identity-gateway/internal/server"
	"github.com/bigkaa/goartstore/identity-gateway/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Identity Gateway запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("realm", cfg.KeycloakRealm),
	)

	if os.Getenv("IG_DEPHEALTH_GROUP") == "" {
		logger.Warn("IG_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics
	pgDB := database.OpenStdDB(pool)
	defer pgDB.Close()

	// 5. HTTP-клиент Keycloak (таймаут + опциональный CA)
	httpClient, err := keycloak.NewHTTPClient(cfg.CACertPath, cfg.KeycloakTimeout)
	if err != nil {
		logger.Error("Ошибка загрузки CA-сертификата", slog.String("path", cfg.CACertPath), slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Keycloak клиент
	kcClient := keycloak.New(cfg.KeycloakURL, httpClient, logger)
	logger.Info("Keycloak клиент создан",
		slog.String("url", cfg.KeycloakURL),
		slog.String("admin_realm", cfg.KeycloakAdminRealm),
	)

	adminTokens := service.NewAdminTokenManager(kcClient, service.AdminCredentials{
		Realm: cfg.KeycloakAdminRealm,
		Client: keycloak.ClientCredentials{
			ClientID:     cfg.KeycloakAdminClientID,
			ClientSecret: cfg.KeycloakAdminClientSecret,
		},
		Username: cfg.KeycloakAdminUsername,
		Password: cfg.KeycloakAdminPassword,
	}, logger)

	tenant := service.TenantClient{
		Realm: cfg.KeycloakRealm,
		Client: keycloak.ClientCredentials{
			ClientID:     cfg.KeycloakClientID,
			ClientSecret: cfg.KeycloakClientSecret,
		},
	}

	// 7. Repositories
	legacyRepo := repository.NewLegacyUserRepository(pool, cfg.LegacyUsersTable)
	journal := repository.NewSyncJournal(pool)

	// 8. Services
	loginSvc := service.NewLoginService(kcClient, adminTokens, tenant, logger)
	introspectSvc := service.NewIntrospectionService(kcClient, tenant)
	usersSvc := service.NewUserService(
		kcClient, adminTokens, cfg.KeycloakRealm,
		service.NewAccessCache(cfg.UserAccessCacheSize, cfg.UserAccessCacheTTL),
		cfg.RoleAdminGroups, cfg.RoleOperatorGroups,
		logger,
	)
	userSyncSvc := service.NewUserSyncService(kcClient, adminTokens, cfg.KeycloakRealm, legacyRepo, journal, logger)
	realmSvc := service.NewRealmService(kcClient, adminTokens, cfg.KeycloakRealm, logger)

	// 9. Readiness checkers (PostgreSQL + Keycloak)
	pgChecker := database.NewReadinessChecker(pool)
	kcChecker, err := middleware.NewKeycloakReadinessChecker(cfg.JWTJWKSURL, cfg.CACertPath, cfg.KeycloakTimeout)
	if err != nil {
		logger.Error("Ошибка создания Keycloak readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(pgChecker, kcChecker)

	// 10. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		loginSvc,
		introspectSvc,
		usersSvc,
		userSyncSvc,
		realmSvc,
		logger,
	)

	// 11. JWT middleware для управляющего API
	var jwtAuth *middleware.JWTAuth
	if cfg.AdminAuthEnabled {
		jwtAuth, err = middleware.NewJWTAuth(middleware.JWTAuthOptions{
			JWKSURL:         cfg.JWTJWKSURL,
			CACertPath:      cfg.CACertPath,
			Issuer:          cfg.JWTIssuer,
			AdminGroups:     cfg.RoleAdminGroups,
			OperatorGroups:  cfg.RoleOperatorGroups,
			ClientTimeout:   cfg.KeycloakTimeout,
			RefreshInterval: cfg.JWKSRefreshInterval,
			Leeway:          cfg.JWTLeeway,
		}, logger)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	} else {
		logger.Warn("Проверка JWT управляющего API отключена (IG_ADMIN_AUTH_ENABLED=false)")
	}

	// 12. topologymetrics: мониторинг зависимостей (PostgreSQL + Keycloak)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"identity-gateway",
		cfg.DephealthGroup,
		service.DephealthTargets{
			DB:            pgDB,
			PostgresURL:   cfg.DatabaseURL(),
			TenantJWKSURL: cfg.JWTJWKSURL,
			AdminDiscoveryURL: fmt.Sprintf("%s/realms/%s/.well-known/openid-configuration",
				cfg.KeycloakURL, cfg.KeycloakAdminRealm),
		},
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 13. Валидация запросов по OpenAPI-описанию
	apiDoc, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI-описания", slog.String("error", err.Error()))
		os.Exit(1)
	}
	validator, err := openapi.NewValidator(apiDoc, logger)
	if err != nil {
		logger.Error("Ошибка создания валидатора запросов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth, validator)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 15. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Identity Gateway остановлен")
}
