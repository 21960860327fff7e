// auth.go — middleware аутентификации по сессионному токену.
// Извлекает токен из cookie или заголовка Authorization, резолвит его
// в реестре сессий и помещает пользователя в контекст запроса.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goshare/internal/api/errors"
	"github.com/bigkaa/goshare/internal/auth"
	"github.com/bigkaa/goshare/internal/domain/model"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyUser — аутентифицированный пользователь в контексте запроса.
	ContextKeyUser contextKey = "auth_user"
	// ContextKeyToken — токен сессии, по которому прошла аутентификация.
	ContextKeyToken contextKey = "auth_token"
)

// UserProvider — источник данных о пользователях для аутентификации.
// Реализуется сервисом учётных данных (с LRU-кэшем поверх БД).
type UserProvider interface {
	GetUserByName(ctx context.Context, name string) (*model.User, error)
}

// SessionAuth — middleware аутентификации по opaque-токену сессии.
type SessionAuth struct {
	sessions *auth.Registry
	users    UserProvider
	logger   *slog.Logger
}

// NewSessionAuth создаёт middleware аутентификации.
func NewSessionAuth(sessions *auth.Registry, users UserProvider, logger *slog.Logger) *SessionAuth {
	return &SessionAuth{
		sessions: sessions,
		users:    users,
		logger:   logger.With(slog.String("component", "session_auth")),
	}
}

// Middleware возвращает HTTP middleware для аутентификации.
// Токен берётся из cookie или заголовка Authorization: Bearer.
// Неизвестный или просроченный токен — 401 NOT_AUTHENTICATED.
func (a *SessionAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.TokenFromRequest(r)
			if token == "" {
				apierrors.NotAuthenticated(w, "Требуется аутентификация")
				return
			}

			userName, ok := a.sessions.Resolve(token)
			if !ok {
				apierrors.NotAuthenticated(w, "Сессия не найдена или истекла")
				return
			}

			user, err := a.users.GetUserByName(r.Context(), userName)
			if err != nil {
				// Сессия указывает на несуществующего пользователя:
				// уничтожаем её и требуем повторный вход
				a.logger.Warn("Сессия ссылается на неизвестного пользователя",
					slog.String("user", userName),
					slog.String("error", err.Error()),
				)
				a.sessions.Destroy(token)
				apierrors.NotAuthenticated(w, "Сессия недействительна")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			ctx = context.WithValue(ctx, ContextKeyToken, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// --- Context helpers ---

// UserFromContext извлекает аутентифицированного пользователя из контекста.
// Возвращает nil, если пользователь не найден.
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(ContextKeyUser).(*model.User)
	return user
}

// TokenFromContext извлекает токен сессии из контекста запроса.
// Возвращает пустую строку, если токен не найден.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(ContextKeyToken).(string)
	return token
}
