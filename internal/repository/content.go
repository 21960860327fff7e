package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goshare/internal/domain/model"
)

// ContentRepository — интерфейс доступа к таблице content_items.
// Записи создаются при загрузке и никогда не изменяются.
type ContentRepository interface {
	// Create создаёт запись о загруженном файле. При дублирующемся
	// stored_filename возвращает ErrConflict.
	Create(ctx context.Context, item *model.ContentItem) error
	// GetByID возвращает запись по идентификатору.
	GetByID(ctx context.Context, id int64) (*model.ContentItem, error)
	// ListFor возвращает файлы пользователя в указанном направлении
	// (received — получатель, sent — отправитель, all — объединение),
	// упорядоченные по времени загрузки по убыванию.
	ListFor(ctx context.Context, userID int64, direction model.ListDirection, limit, offset int) ([]*model.ContentItem, error)
	// CountFor возвращает количество файлов пользователя в указанном направлении.
	CountFor(ctx context.Context, userID int64, direction model.ListDirection) (int, error)
}

// contentRepo — реализация ContentRepository.
type contentRepo struct {
	db DBTX
}

// NewContentRepository создаёт репозиторий файлов.
func NewContentRepository(db DBTX) ContentRepository {
	return &contentRepo{db: db}
}

const contentColumns = `id, sender_id, recipient_id, stored_filename,
		original_filename, content_type, size, checksum, uploaded_at`

func (r *contentRepo) Create(ctx context.Context, item *model.ContentItem) error {
	query := `
		INSERT INTO content_items (sender_id, recipient_id, stored_filename,
			original_filename, content_type, size, checksum)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, uploaded_at`

	err := r.db.QueryRow(ctx, query,
		item.SenderID, item.RecipientID, item.StoredFilename,
		item.OriginalFilename, item.ContentType, item.Size, item.Checksum,
	).Scan(&item.ID, &item.UploadedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл %q уже зарегистрирован", ErrConflict, item.StoredFilename)
		}
		return fmt.Errorf("ошибка регистрации файла: %w", err)
	}
	return nil
}

func (r *contentRepo) GetByID(ctx context.Context, id int64) (*model.ContentItem, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM content_items
		WHERE id = $1`, contentColumns)

	item := &model.ContentItem{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&item.ID, &item.SenderID, &item.RecipientID, &item.StoredFilename,
		&item.OriginalFilename, &item.ContentType, &item.Size, &item.Checksum, &item.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return item, nil
}

// directionWhere возвращает WHERE-условие для направления выборки.
// Плейсхолдер $1 — идентификатор пользователя.
func directionWhere(direction model.ListDirection) (string, error) {
	switch direction {
	case model.DirectionReceived:
		return "recipient_id = $1", nil
	case model.DirectionSent:
		return "sender_id = $1", nil
	case model.DirectionAll:
		return "(sender_id = $1 OR recipient_id = $1)", nil
	default:
		return "", fmt.Errorf("недопустимое направление выборки: %q", direction)
	}
}

func (r *contentRepo) ListFor(ctx context.Context, userID int64, direction model.ListDirection, limit, offset int) ([]*model.ContentItem, error) {
	where, err := directionWhere(direction)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM content_items
		WHERE %s
		ORDER BY uploaded_at DESC, id DESC
		LIMIT $2 OFFSET $3`, contentColumns, where)

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.ContentItem
	for rows.Next() {
		item := &model.ContentItem{}
		if err := rows.Scan(
			&item.ID, &item.SenderID, &item.RecipientID, &item.StoredFilename,
			&item.OriginalFilename, &item.ContentType, &item.Size, &item.Checksum, &item.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (r *contentRepo) CountFor(ctx context.Context, userID int64, direction model.ListDirection) (int, error) {
	where, err := directionWhere(direction)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM content_items WHERE %s`, where)

	var count int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return count, nil
}
