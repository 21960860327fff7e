// Пакет model — доменные модели goshare.
package model

import "time"

// User — зарегистрированный пользователь сервиса.
// Создаётся при явной регистрации или при первом входе с неизвестным
// именем (авто-регистрация). После создания не изменяется.
type User struct {
	// ID — уникальный идентификатор (BIGSERIAL)
	ID int64 `json:"id"`
	// Name — уникальное имя пользователя
	Name string `json:"name"`
	// PasswordHash — argon2id-хэш пароля в кодированном формате.
	// Никогда не отдаётся клиенту.
	PasswordHash string `json:"-"`
	// CreatedAt — время создания записи
	CreatedAt time.Time `json:"created_at"`
}
