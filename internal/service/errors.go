// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrDuplicateName — имя пользователя уже занято.
	ErrDuplicateName = errors.New("имя пользователя уже занято")
	// ErrInvalidCredentials — неверное имя пользователя или пароль.
	ErrInvalidCredentials = errors.New("неверное имя пользователя или пароль")
	// ErrUnknownRecipient — получатель не зарегистрирован.
	ErrUnknownRecipient = errors.New("получатель не зарегистрирован")
	// ErrUnsupportedType — тип содержимого не принимается.
	ErrUnsupportedType = errors.New("тип содержимого не принимается")
	// ErrFileTooLarge — файл превышает максимальный размер.
	ErrFileTooLarge = errors.New("файл превышает максимальный размер")
	// ErrForbidden — доступ к ресурсу запрещён.
	ErrForbidden = errors.New("доступ запрещён")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrStorageFault — сбой файлового хранилища или БД при сохранении.
	ErrStorageFault = errors.New("сбой хранилища")
)
