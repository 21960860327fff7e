package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Имя cookie сессии goshare.
const SessionCookieName = "goshare_session"

// Длина токена сессии в байтах до base64-кодирования.
const tokenBytes = 32

// Session — активная сессия пользователя.
// Хранит денормализованное имя: запись User перечитывается
// из БД при каждом запросе.
type Session struct {
	// Token — непрозрачный идентификатор сессии
	Token string
	// UserName — имя аутентифицированного пользователя
	UserName string
	// CreatedAt — время создания сессии
	CreatedAt time.Time
	// ExpiresAt — время истечения (нулевое — без истечения)
	ExpiresAt time.Time
}

// expired проверяет, истекла ли сессия к моменту now.
func (s *Session) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Registry — process-wide реестр сессий: token → Session.
// Logout немедленно инвалидирует токен; resolve — O(1).
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	// ttl — время жизни сессии (0 — без истечения)
	ttl time.Duration
	// secure — Secure flag для cookie (true за HTTPS)
	secure bool
}

// NewRegistry создаёт реестр сессий.
// ttl — время жизни сессии, 0 отключает истечение.
func NewRegistry(ttl time.Duration, secure bool) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		secure:   secure,
	}
}

// Create создаёт новую сессию для пользователя и возвращает токен.
// Токен — 32 случайных байта в base64url: коллизия живых токенов
// пренебрежимо маловероятна по построению.
func (r *Registry) Create(userName string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	s := &Session{
		Token:     token,
		UserName:  userName,
		CreatedAt: now,
	}
	if r.ttl > 0 {
		s.ExpiresAt = now.Add(r.ttl)
	}

	r.mu.Lock()
	r.sessions[token] = s
	r.mu.Unlock()

	return token, nil
}

// Resolve возвращает имя пользователя по токену.
// Неизвестный, уничтоженный или истёкший токен — ("", false).
// Истёкшие сессии удаляются лениво при обращении.
func (r *Registry) Resolve(token string) (string, bool) {
	now := time.Now().UTC()

	r.mu.RLock()
	s, ok := r.sessions[token]
	r.mu.RUnlock()

	if !ok {
		return "", false
	}
	if s.expired(now) {
		r.Destroy(token)
		return "", false
	}
	return s.UserName, true
}

// Destroy удаляет сессию. Идемпотентна: удаление неизвестного
// токена — no-op, не ошибка.
func (r *Registry) Destroy(token string) {
	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
}

// Len возвращает количество живых сессий (для метрик и тестов).
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SetSessionCookie устанавливает session cookie с токеном в ответ.
func (r *Registry) SetSessionCookie(w http.ResponseWriter, token string) {
	maxAge := 0
	if r.ttl > 0 {
		maxAge = int(r.ttl.Seconds())
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie удаляет session cookie из ответа (logout).
func (r *Registry) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest извлекает токен сессии из запроса:
// сначала session cookie, затем заголовок Authorization (Bearer).
// Возвращает пустую строку, если токен не передан.
func TokenFromRequest(req *http.Request) string {
	if cookie, err := req.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := req.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// newToken генерирует криптографически случайный токен сессии.
func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ошибка генерации токена сессии: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
