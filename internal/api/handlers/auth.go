// Пакет handlers — HTTP-обработчики API goshare.
// auth.go — регистрация, вход, выход и текущий пользователь.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goshare/internal/api/errors"
	"github.com/bigkaa/goshare/internal/api/middleware"
	"github.com/bigkaa/goshare/internal/auth"
	"github.com/bigkaa/goshare/internal/domain/model"
	"github.com/bigkaa/goshare/internal/service"
)

// AuthHandler — обработчик endpoints аутентификации.
type AuthHandler struct {
	creds    *service.CredentialService
	sessions *auth.Registry
	// autoRegister — регистрировать неизвестное имя при login (GS_AUTO_REGISTER)
	autoRegister bool
	logger       *slog.Logger
}

// NewAuthHandler создаёт обработчик endpoints аутентификации.
func NewAuthHandler(creds *service.CredentialService, sessions *auth.Registry, autoRegister bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		creds:        creds,
		sessions:     sessions,
		autoRegister: autoRegister,
		logger:       logger.With(slog.String("component", "auth_handler")),
	}
}

// loginResponse — тело ответа успешного входа.
type loginResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Signup обрабатывает POST /api/v1/signup.
// Form: username, password. Успех — 201 с данными пользователя.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	username, password, ok := credentialsFromForm(w, r)
	if !ok {
		return
	}

	user, err := h.creds.Register(r.Context(), username, password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		case errors.Is(err, service.ErrDuplicateName):
			apierrors.DuplicateName(w, fmt.Sprintf("Имя %q уже занято", username))
		default:
			h.logger.Error("Ошибка регистрации", slog.String("error", err.Error()))
			apierrors.InternalError(w, "Ошибка регистрации пользователя")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login обрабатывает POST /api/v1/login.
// Form: username, password. Успех — session cookie + {user, token}.
// Неизвестное имя при включённом GS_AUTO_REGISTER регистрируется на лету.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	username, password, ok := credentialsFromForm(w, r)
	if !ok {
		return
	}

	user, err := h.creds.Verify(r.Context(), username, password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound) && h.autoRegister:
			user, err = h.creds.Register(r.Context(), username, password)
			switch {
			case err == nil:
				h.logger.Info("Пользователь зарегистрирован при входе", slog.String("name", username))
			case errors.Is(err, service.ErrDuplicateName):
				// Проигранная гонка авторегистрации: имя появилось между
				// Verify и Register. Параллельный клиент уже создал
				// пользователя — повторяем вход.
				user, err = h.creds.Verify(r.Context(), username, password)
			}
			if err != nil {
				switch {
				case errors.Is(err, service.ErrValidation):
					apierrors.ValidationError(w, err.Error())
				case errors.Is(err, service.ErrInvalidCredentials):
					apierrors.InvalidCredentials(w, "Неверное имя пользователя или пароль")
				default:
					h.logger.Error("Ошибка авторегистрации", slog.String("error", err.Error()))
					apierrors.InternalError(w, "Ошибка регистрации пользователя")
				}
				return
			}
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, fmt.Sprintf("Пользователь %q не найден", username))
			return
		case errors.Is(err, service.ErrInvalidCredentials):
			apierrors.InvalidCredentials(w, "Неверное имя пользователя или пароль")
			return
		default:
			h.logger.Error("Ошибка проверки учётных данных", slog.String("error", err.Error()))
			apierrors.InternalError(w, "Ошибка проверки учётных данных")
			return
		}
	}

	token, err := h.sessions.Create(user.Name)
	if err != nil {
		h.logger.Error("Ошибка создания сессии", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка создания сессии")
		return
	}
	h.sessions.SetSessionCookie(w, token)

	h.logger.Info("Пользователь вошёл", slog.String("name", user.Name))
	writeJSON(w, http.StatusOK, loginResponse{User: user, Token: token})
}

// Logout обрабатывает POST /api/v1/logout.
// Уничтожает сессию и очищает cookie. Идемпотентен: выход без
// сессии — тоже 204.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		h.sessions.Destroy(token)
	}
	h.sessions.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// CurrentUser обрабатывает GET /api/v1/user.
// Возвращает пользователя текущей сессии (аутентификация — в middleware).
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.NotAuthenticated(w, "Требуется аутентификация")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// credentialsFromForm извлекает username/password из form body.
// При отсутствии полей пишет 400 и возвращает ok=false.
func credentialsFromForm(w http.ResponseWriter, r *http.Request) (username, password string, ok bool) {
	if err := r.ParseForm(); err != nil {
		apierrors.ValidationError(w, "Ошибка разбора формы: "+err.Error())
		return "", "", false
	}

	username = r.PostFormValue("username")
	password = r.PostFormValue("password")
	if username == "" {
		apierrors.ValidationError(w, "Поле 'username' обязательно")
		return "", "", false
	}
	if password == "" {
		apierrors.ValidationError(w, "Поле 'password' обязательно")
		return "", "", false
	}
	return username, password, true
}

// writeJSON — запись JSON-ответа со статусом.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
