// Пакет server: HTTP-сервер Identity Gateway с graceful shutdown.
// Без TLS: HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bigkaa/goartstore/identity-gateway/internal/api/handlers"
	"github.com/bigkaa/goartstore/identity-gateway/internal/api/middleware"
	"github.com/bigkaa/goartstore/identity-gateway/internal/api/openapi"
	"github.com/bigkaa/goartstore/identity-gateway/internal/config"
	"github.com/bigkaa/goartstore/identity-gateway/internal/domain/rbac"
)

// Server: HTTP-сервер Identity Gateway.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// jwtAuth: JWT middleware (nil: проверка токенов и ролей отключена).
// validator: проверка запросов по OpenAPI (nil: без проверки).
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, jwtAuth *middleware.JWTAuth, validator *openapi.Validator) *Server {
	var auth, validate func(http.Handler) http.Handler
	if jwtAuth != nil {
		auth = jwtAuth.Middleware()
	}
	if validator != nil {
		validate = validator.Middleware()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(handler, auth, validate, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает маршруты API.
// auth: middleware аутентификации; если nil, управляющие маршруты
// доступны без токена и без проверки роли.
// validate: проверка запроса по OpenAPI, выполняется после аутентификации.
//
// Публичные: /health/*, /metrics, /api/v1/auth/*.
// admin или operator: /api/v1/users (создание, чтение, пароль, статус, блокировка).
// Только admin: bulk-sync, sync-runs, /api/v1/realm/brute-force.
func NewRouter(handler *handlers.APIHandler, auth, validate func(http.Handler) http.Handler, logger *slog.Logger) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(chimw.Recoverer)

	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if validate != nil {
				r.Use(validate)
			}

			r.Post("/auth/login", handler.Login)
			r.Post("/auth/introspect", handler.Introspect)
		})

		r.Group(func(r chi.Router) {
			if auth != nil {
				r.Use(auth)
				r.Use(middleware.RequireRole(rbac.RoleAdmin, rbac.RoleOperator))
			}
			if validate != nil {
				r.Use(validate)
			}

			r.Post("/users", handler.CreateUser)
			r.Get("/users/lockout", handler.GetLockoutStatus)
			r.Get("/users/{id}", handler.GetUser)
			r.Put("/users/{id}/password", handler.ResetUserPassword)
			r.Put("/users/{id}/enabled", handler.SetUserEnabled)
		})

		r.Group(func(r chi.Router) {
			if auth != nil {
				r.Use(auth)
				r.Use(middleware.RequireRole(rbac.RoleAdmin))
			}
			if validate != nil {
				r.Use(validate)
			}

			r.Post("/users/bulk-sync", handler.BulkSyncUsers)
			r.Get("/users/sync-runs", handler.ListSyncRuns)
			r.Get("/realm/brute-force", handler.GetBruteForceSettings)
			r.Put("/realm/brute-force", handler.UpdateBruteForceSettings)
		})
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
