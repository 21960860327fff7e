package model

import "time"

// ContentItem — загруженный файл с метаданными отправителя/получателя.
// Запись создаётся при успешной загрузке и после этого не изменяется.
type ContentItem struct {
	// ID — уникальный идентификатор (BIGSERIAL)
	ID int64 `json:"id"`
	// SenderID — пользователь, загрузивший файл
	SenderID int64 `json:"sender_id"`
	// RecipientID — получатель (опционально)
	RecipientID *int64 `json:"recipient_id,omitempty"`
	// StoredFilename — имя файла в хранилище, уникально в пределах
	// корня хранения
	StoredFilename string `json:"filename"`
	// OriginalFilename — имя файла, указанное клиентом при загрузке
	OriginalFilename string `json:"original_filename"`
	// ContentType — MIME-тип, заявленный клиентом
	ContentType string `json:"content_type"`
	// Size — размер файла в байтах
	Size int64 `json:"size"`
	// Checksum — SHA-256 содержимого, вычисляется при записи на диск
	Checksum string `json:"checksum"`
	// UploadedAt — время загрузки
	UploadedAt time.Time `json:"uploaded_at"`
}

// ListDirection — направление выборки файлов пользователя.
type ListDirection string

const (
	// DirectionReceived — файлы, где пользователь является получателем
	DirectionReceived ListDirection = "received"
	// DirectionSent — файлы, загруженные пользователем
	DirectionSent ListDirection = "sent"
	// DirectionAll — объединение sent и received
	DirectionAll ListDirection = "all"
)

// ValidDirection проверяет допустимость значения направления.
func ValidDirection(d ListDirection) bool {
	switch d {
	case DirectionReceived, DirectionSent, DirectionAll:
		return true
	}
	return false
}
