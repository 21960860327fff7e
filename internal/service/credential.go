// Пакет service — бизнес-логика goshare.
// credential.go — регистрация и проверка учётных данных пользователей.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goshare/internal/auth"
	"github.com/bigkaa/goshare/internal/domain/model"
	"github.com/bigkaa/goshare/internal/repository"
)

// Ограничения на учётные данные.
const (
	maxUserNameLen = 64
	minPasswordLen = 4
	maxPasswordLen = 256
)

// Prometheus-метрики учётных данных.
var (
	registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gs_registrations_total",
		Help: "Общее количество зарегистрированных пользователей.",
	})
	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gs_logins_total",
		Help: "Общее количество попыток входа по результату.",
	}, []string{"result"})
	userCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gs_user_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш пользователей.",
	})
	userCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gs_user_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша пользователей.",
	})
)

// CredentialService — регистрация и аутентификация пользователей.
// Поверх репозитория держит expirable LRU-кэш name → User для
// резолва сессий без похода в БД на каждый запрос.
type CredentialService struct {
	users  repository.UserRepository
	cache  *expirable.LRU[string, *model.User]
	logger *slog.Logger
}

// NewCredentialService создаёт сервис учётных данных.
// cacheSize — максимальное количество записей в кэше пользователей,
// cacheTTL — время жизни записи после добавления.
func NewCredentialService(
	users repository.UserRepository,
	cacheSize int,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *CredentialService {
	return &CredentialService{
		users:  users,
		cache:  expirable.NewLRU[string, *model.User](cacheSize, nil, cacheTTL),
		logger: logger.With(slog.String("component", "credential_service")),
	}
}

// Register регистрирует нового пользователя.
// Возвращает ErrValidation при некорректных данных и ErrDuplicateName,
// если имя занято. Гонка одновременных регистраций одного имени
// разрешается на уровне БД: unique_violation транслируется в
// ErrDuplicateName, частично созданных записей не остаётся.
func (s *CredentialService) Register(ctx context.Context, name, password string) (*model.User, error) {
	if err := validateCredentials(name, password); err != nil {
		return nil, err
	}

	// Ранняя проверка занятости имени: дешевле, чем хэширование пароля.
	// Финальное слово за уникальным индексом БД.
	if _, err := s.users.GetByName(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("ошибка проверки имени: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("ошибка хэширования пароля: %w", err)
	}

	user := &model.User{
		Name:         name,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	registrationsTotal.Inc()
	s.logger.Info("Пользователь зарегистрирован",
		slog.Int64("user_id", user.ID),
		slog.String("name", user.Name),
	)
	return user, nil
}

// Verify проверяет пару имя/пароль.
// Неизвестное имя — ErrNotFound, неверный пароль — ErrInvalidCredentials.
// Сравнение хэшей — за константное время (crypto/subtle).
func (s *CredentialService) Verify(ctx context.Context, name, password string) (*model.User, error) {
	user, err := s.users.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			loginsTotal.WithLabelValues("unknown_user").Inc()
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки пароля: %w", err)
	}
	if !ok {
		loginsTotal.WithLabelValues("invalid_password").Inc()
		return nil, ErrInvalidCredentials
	}

	loginsTotal.WithLabelValues("success").Inc()
	s.cache.Add(user.Name, user)
	return user, nil
}

// GetUserByName возвращает пользователя по имени через LRU-кэш.
// Используется middleware аутентификации на каждом запросе.
func (s *CredentialService) GetUserByName(ctx context.Context, name string) (*model.User, error) {
	if user, ok := s.cache.Get(name); ok {
		userCacheHitsTotal.Inc()
		return user, nil
	}
	userCacheMissesTotal.Inc()

	user, err := s.users.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	s.cache.Add(user.Name, user)
	return user, nil
}

// validateCredentials проверяет имя и пароль перед регистрацией.
func validateCredentials(name, password string) error {
	if name == "" {
		return fmt.Errorf("%w: имя пользователя не указано", ErrValidation)
	}
	if utf8.RuneCountInString(name) > maxUserNameLen {
		return fmt.Errorf("%w: имя пользователя длиннее %d символов", ErrValidation, maxUserNameLen)
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: пароль короче %d символов", ErrValidation, minPasswordLen)
	}
	if len(password) > maxPasswordLen {
		return fmt.Errorf("%w: пароль длиннее %d символов", ErrValidation, maxPasswordLen)
	}
	return nil
}
