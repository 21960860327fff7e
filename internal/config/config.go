// Пакет config — загрузка и валидация конфигурации goshare
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации goshare.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут чтения HTTP-запроса
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-ответа
	HTTPWriteTimeout time.Duration
	// Таймаут idle-соединений
	HTTPIdleTimeout time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимальное количество соединений в пуле pgx
	DBMaxConns int
	// Максимальное время жизни соединения пула
	DBConnMaxLifetime time.Duration

	// --- Хранилище файлов ---

	// Корневая директория хранения файлов
	DataDir string
	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64
	// Разрешённые префиксы MIME-типов (пустой список — без ограничений).
	// Для фото-инсталляции: "image/".
	AllowedMIMEPrefixes []string

	// --- Аутентификация ---

	// Авто-регистрация при входе с неизвестным именем
	AutoRegister bool
	// Время жизни сессии (0 — без истечения)
	SessionTTL time.Duration
	// Secure flag для session cookie (true за HTTPS)
	SessionSecure bool

	// --- Кэш пользователей ---

	// Максимальное количество записей в LRU-кэше пользователей
	UserCacheSize int
	// TTL записи кэша пользователей
	UserCacheTTL time.Duration

	// --- Мониторинг зависимостей ---

	// Имя группы topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// GS_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("GS_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("GS_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("GS_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// GS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("GS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("GS_LOG_LEVEL: %w", err)
	}

	// GS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("GS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("GS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// GS_HTTP_READ_TIMEOUT — таймаут чтения запроса (по умолчанию 30s)
	cfg.HTTPReadTimeout, err = getEnvDuration("GS_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GS_HTTP_READ_TIMEOUT: %w", err)
	}

	// GS_HTTP_WRITE_TIMEOUT — таймаут записи ответа (по умолчанию 60s)
	cfg.HTTPWriteTimeout, err = getEnvDuration("GS_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GS_HTTP_WRITE_TIMEOUT: %w", err)
	}

	// GS_HTTP_IDLE_TIMEOUT — таймаут idle-соединений (по умолчанию 120s)
	cfg.HTTPIdleTimeout, err = getEnvDuration("GS_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GS_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// GS_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("GS_DB_HOST")
	if err != nil {
		return nil, err
	}

	// GS_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("GS_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("GS_DB_PORT: %w", err)
	}

	// GS_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("GS_DB_NAME")
	if err != nil {
		return nil, err
	}

	// GS_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("GS_DB_USER")
	if err != nil {
		return nil, err
	}

	// GS_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("GS_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// GS_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("GS_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("GS_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// GS_DB_MAX_CONNS — размер пула соединений (по умолчанию 10)
	cfg.DBMaxConns, err = getEnvInt("GS_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("GS_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("GS_DB_MAX_CONNS: значение должно быть положительным")
	}

	// GS_DB_CONN_MAX_LIFETIME — время жизни соединения пула (по умолчанию 30m)
	cfg.DBConnMaxLifetime, err = getEnvDuration("GS_DB_CONN_MAX_LIFETIME", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("GS_DB_CONN_MAX_LIFETIME: %w", err)
	}

	// --- Хранилище файлов ---

	// GS_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("GS_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// GS_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 100 MB)
	cfg.MaxFileSize, err = getEnvInt64("GS_MAX_FILE_SIZE", 100<<20)
	if err != nil {
		return nil, fmt.Errorf("GS_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize < 1 {
		return nil, fmt.Errorf("GS_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// GS_ALLOWED_MIME_PREFIXES — разрешённые префиксы MIME-типов через запятую
	// (по умолчанию пусто — без ограничений)
	cfg.AllowedMIMEPrefixes = parseCSV(getEnvDefault("GS_ALLOWED_MIME_PREFIXES", ""))

	// --- Аутентификация ---

	// GS_AUTO_REGISTER — авто-регистрация при входе (по умолчанию true)
	cfg.AutoRegister, err = getEnvBool("GS_AUTO_REGISTER", true)
	if err != nil {
		return nil, fmt.Errorf("GS_AUTO_REGISTER: %w", err)
	}

	// GS_SESSION_TTL — время жизни сессии (по умолчанию 24h, 0 — без истечения)
	cfg.SessionTTL, err = getEnvDuration("GS_SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("GS_SESSION_TTL: %w", err)
	}
	if cfg.SessionTTL < 0 {
		return nil, fmt.Errorf("GS_SESSION_TTL: значение не может быть отрицательным")
	}

	// GS_SESSION_SECURE — Secure flag для cookie (по умолчанию false)
	cfg.SessionSecure, err = getEnvBool("GS_SESSION_SECURE", false)
	if err != nil {
		return nil, fmt.Errorf("GS_SESSION_SECURE: %w", err)
	}

	// --- Кэш пользователей ---

	// GS_USER_CACHE_SIZE — размер LRU-кэша (по умолчанию 1024)
	cfg.UserCacheSize, err = getEnvInt("GS_USER_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("GS_USER_CACHE_SIZE: %w", err)
	}
	if cfg.UserCacheSize < 1 {
		return nil, fmt.Errorf("GS_USER_CACHE_SIZE: значение должно быть положительным")
	}

	// GS_USER_CACHE_TTL — TTL записи кэша (по умолчанию 30s)
	cfg.UserCacheTTL, err = getEnvDuration("GS_USER_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GS_USER_CACHE_TTL: %w", err)
	}

	// --- Мониторинг зависимостей ---

	// GS_DEPHEALTH_GROUP — имя группы topologymetrics (по умолчанию goshare)
	cfg.DephealthGroup = getEnvDefault("GS_DEPHEALTH_GROUP", "goshare")

	// GS_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("GS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// GS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("GS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GS_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL
// (для topologymetrics — лейблы, не подключение).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64-значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
