// Точка входа goshare — сервис обмена файлами между пользователями.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// инициализирует файловое хранилище, сервисный слой и API handlers,
// запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goshare/internal/api/handlers"
	"github.com/bigkaa/goshare/internal/api/middleware"
	"github.com/bigkaa/goshare/internal/auth"
	"github.com/bigkaa/goshare/internal/config"
	"github.com/bigkaa/goshare/internal/database"
	"github.com/bigkaa/goshare/internal/repository"
	"github.com/bigkaa/goshare/internal/server"
	"github.com/bigkaa/goshare/internal/service"
	"github.com/bigkaa/goshare/internal/storage/filestore"
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
	logger.Info("goshare запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Предупреждение о дефолтном значении topologymetrics
	if os.Getenv("GS_DEPHEALTH_GROUP") == "" {
		logger.Warn("GS_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
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

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Файловое хранилище
	store, err := filestore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации файлового хранилища",
			slog.String("data_dir", cfg.DataDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info("Файловое хранилище готово", slog.String("data_dir", cfg.DataDir))

	// 6. Repositories
	userRepo := repository.NewUserRepository(pool)
	contentRepo := repository.NewContentRepository(pool)

	// 7. Services
	credsSvc := service.NewCredentialService(
		userRepo,
		cfg.UserCacheSize, cfg.UserCacheTTL,
		logger,
	)
	contentSvc := service.NewContentService(
		contentRepo, userRepo, store,
		cfg.MaxFileSize, cfg.AllowedMIMEPrefixes,
		logger,
	)

	// 8. Реестр сессий (in-memory, opaque токены)
	sessions := auth.NewRegistry(cfg.SessionTTL, cfg.SessionSecure)
	logger.Info("Реестр сессий создан",
		slog.Duration("ttl", cfg.SessionTTL),
		slog.Bool("secure_cookie", cfg.SessionSecure),
	)

	// 9. Middleware аутентификации
	sessionAuth := middleware.NewSessionAuth(sessions, credsSvc, logger)

	// 10. Handlers
	h := server.Handlers{
		Auth:    handlers.NewAuthHandler(credsSvc, sessions, cfg.AutoRegister, logger),
		Content: handlers.NewContentHandler(contentSvc, cfg.MaxFileSize, logger),
		Health:  handlers.NewHealthHandler(cfg.DataDir, database.NewReadinessChecker(pool)),
	}

	// 11. topologymetrics — мониторинг зависимостей (PostgreSQL)
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"goshare",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 12. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h, sessionAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 13. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("goshare остановлен")
}
