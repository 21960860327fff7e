// Пакет server — HTTP-сервер goshare с graceful shutdown.
// Без TLS — TLS termination на reverse proxy перед сервисом.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/goshare/internal/api/handlers"
	"github.com/bigkaa/goshare/internal/api/middleware"
	"github.com/bigkaa/goshare/internal/config"
)

// Handlers — набор обработчиков, монтируемых на router.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Content *handlers.ContentHandler
	Health  *handlers.HealthHandler
}

// Server — HTTP-сервер goshare.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// NewRouter собирает chi router с middleware и маршрутами.
// sessionAuth может быть nil — тогда защищённые маршруты открыты
// (используется только в тестах отдельных обработчиков).
func NewRouter(logger *slog.Logger, h Handlers, sessionAuth *middleware.SessionAuth) *chi.Mux {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Аутентификация с исключениями для публичных endpoints.
	// Health и metrics опрашиваются Kubernetes напрямую.
	if sessionAuth != nil {
		router.Use(authWithExclusions(sessionAuth,
			"/health/", "/metrics",
			"/api/v1/signup", "/api/v1/login", "/api/v1/logout",
		))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/signup", h.Auth.Signup)
		r.Post("/login", h.Auth.Login)
		r.Post("/logout", h.Auth.Logout)
		r.Get("/user", h.Auth.CurrentUser)

		r.Post("/content", h.Content.Upload)
		r.Get("/content", h.Content.List)
		r.Get("/content/{id}", h.Content.Get)
		r.Get("/content/{id}/download", h.Content.Download)
	})

	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Handle("/metrics", promhttp.Handler())

	return router
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, h Handlers, sessionAuth *middleware.SessionAuth) *Server {
	router := NewRouter(logger, h, sessionAuth)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// authWithExclusions оборачивает SessionAuth.Middleware(), пропуская указанные пути.
// Запросы к путям, начинающимся с любого из excludePrefixes, проходят без аутентификации.
func authWithExclusions(sessionAuth *middleware.SessionAuth, excludePrefixes ...string) func(http.Handler) http.Handler {
	authMiddleware := sessionAuth.Middleware()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Проверяем, начинается ли путь с исключённого префикса
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			// Применяем middleware аутентификации
			authMiddleware(next).ServeHTTP(w, r)
		})
	}
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
