// content.go — сервис загрузки и выдачи файлов.
// Порядок сохранения: файл пишется на диск ПЕРВЫМ, строка в БД — после.
// При ошибке вставки файл удаляется, осиротевших строк не бывает.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goshare/internal/domain/model"
	"github.com/bigkaa/goshare/internal/repository"
	"github.com/bigkaa/goshare/internal/storage/filestore"
)

// Ограничения выборки списка файлов.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Prometheus-метрики файловых операций.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gs_uploads_total",
		Help: "Общее количество загрузок файлов по результату.",
	}, []string{"result"})
	uploadedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gs_uploaded_bytes_total",
		Help: "Общий объём успешно загруженных данных в байтах.",
	})
	downloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gs_downloads_total",
		Help: "Общее количество скачиваний файлов.",
	})
)

// StoreParams — параметры загрузки файла.
type StoreParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalFilename — имя файла, указанное клиентом
	OriginalFilename string
	// ContentType — MIME-тип из multipart part
	ContentType string
	// Size — заявленный размер файла (0 — неизвестен)
	Size int64
	// RecipientName — имя получателя (пустое — без адресата)
	RecipientName string
}

// ContentService — загрузка, листинг и выдача файлов.
type ContentService struct {
	items        repository.ContentRepository
	users        repository.UserRepository
	store        *filestore.FileStore
	maxFileSize  int64
	mimePrefixes []string
	logger       *slog.Logger
}

// NewContentService создаёт сервис файлов.
// mimePrefixes — допустимые префиксы MIME-типов; пустой список
// разрешает любые типы.
func NewContentService(
	items repository.ContentRepository,
	users repository.UserRepository,
	store *filestore.FileStore,
	maxFileSize int64,
	mimePrefixes []string,
	logger *slog.Logger,
) *ContentService {
	return &ContentService{
		items:        items,
		users:        users,
		store:        store,
		maxFileSize:  maxFileSize,
		mimePrefixes: mimePrefixes,
		logger:       logger.With(slog.String("component", "content_service")),
	}
}

// Store загружает файл от имени sender.
//
// Поток:
//  1. Валидация имени файла и размера
//  2. Резолв получателя (ErrUnknownRecipient)
//  3. Проверка MIME-типа (ErrUnsupportedType)
//  4. Запись файла на диск (streaming + SHA-256, имя без коллизий)
//  5. Вставка строки в БД; при ошибке файл удаляется
//
// Сбой диска или БД на шагах 4-5 — ErrStorageFault.
func (s *ContentService) Store(ctx context.Context, sender *model.User, params StoreParams) (*model.ContentItem, error) {
	if params.OriginalFilename == "" {
		return nil, fmt.Errorf("%w: имя файла не указано", ErrValidation)
	}
	if params.Size > 0 && params.Size > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d байт при максимуме %d", ErrFileTooLarge, params.Size, s.maxFileSize)
	}

	// Получатель должен существовать ДО записи файла на диск
	var recipientID *int64
	if params.RecipientName != "" {
		recipient, err := s.users.GetByName(ctx, params.RecipientName)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownRecipient, params.RecipientName)
			}
			return nil, fmt.Errorf("ошибка резолва получателя: %w", err)
		}
		recipientID = &recipient.ID
	}

	contentType := normalizeContentType(params.ContentType)
	if !s.typeAllowed(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	// Файл пишется первым
	saved, err := s.store.SaveFile(params.Reader, params.OriginalFilename, sender.Name)
	if err != nil {
		uploadsTotal.WithLabelValues("storage_fault").Inc()
		s.logger.Error("Ошибка записи файла на диск",
			slog.String("filename", params.OriginalFilename),
			slog.String("sender", sender.Name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: запись файла: %w", ErrStorageFault, err)
	}

	item := &model.ContentItem{
		SenderID:         sender.ID,
		RecipientID:      recipientID,
		StoredFilename:   saved.StoredFilename,
		OriginalFilename: params.OriginalFilename,
		ContentType:      contentType,
		Size:             saved.Size,
		Checksum:         saved.Checksum,
	}

	// Строка в БД — после файла; при ошибке файл убирается с диска
	if err := s.items.Create(ctx, item); err != nil {
		if delErr := s.store.DeleteFile(saved.StoredFilename); delErr != nil {
			s.logger.Error("Ошибка удаления файла при откате",
				slog.String("stored_filename", saved.StoredFilename),
				slog.String("error", delErr.Error()),
			)
		}
		uploadsTotal.WithLabelValues("storage_fault").Inc()
		s.logger.Error("Ошибка регистрации файла в БД",
			slog.String("stored_filename", saved.StoredFilename),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: регистрация файла: %w", ErrStorageFault, err)
	}

	uploadsTotal.WithLabelValues("success").Inc()
	uploadedBytesTotal.Add(float64(saved.Size))
	s.logger.Info("Файл загружен",
		slog.Int64("id", item.ID),
		slog.String("filename", params.OriginalFilename),
		slog.String("stored_filename", saved.StoredFilename),
		slog.Int64("size", saved.Size),
		slog.String("checksum", saved.Checksum),
		slog.String("sender", sender.Name),
		slog.String("recipient", params.RecipientName),
	)
	return item, nil
}

// ListPage — страница листинга. Limit и Offset — фактически применённые
// значения после клампинга, их и нужно отдавать клиенту.
type ListPage struct {
	Items  []*model.ContentItem
	Total  int
	Limit  int
	Offset int
}

// ListFor возвращает страницу файлов пользователя в указанном направлении
// и общее количество. Листинг всегда ограничен файлами, где пользователь
// отправитель или получатель.
func (s *ContentService) ListFor(ctx context.Context, user *model.User, direction model.ListDirection, limit, offset int) (*ListPage, error) {
	if !model.ValidDirection(direction) {
		return nil, fmt.Errorf("%w: недопустимое направление %q", ErrValidation, direction)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.items.ListFor(ctx, user.ID, direction, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	total, err := s.items.CountFor(ctx, user.ID, direction)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return &ListPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Get возвращает метаданные файла с проверкой доступа.
// Файл видят только отправитель и получатель, остальным — ErrForbidden.
func (s *ContentService) Get(ctx context.Context, user *model.User, id int64) (*model.ContentItem, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}

	if !canAccess(user, item) {
		return nil, ErrForbidden
	}
	return item, nil
}

// Download возвращает метаданные и поток содержимого файла.
// Вызывающий код обязан закрыть ReadCloser.
func (s *ContentService) Download(ctx context.Context, user *model.User, id int64) (*model.ContentItem, io.ReadCloser, error) {
	item, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, nil, err
	}

	f, err := s.store.ReadFile(item.StoredFilename)
	if err != nil {
		s.logger.Error("Файл зарегистрирован в БД, но не читается с диска",
			slog.Int64("id", item.ID),
			slog.String("stored_filename", item.StoredFilename),
			slog.String("error", err.Error()),
		)
		return nil, nil, fmt.Errorf("%w: чтение файла: %w", ErrStorageFault, err)
	}

	downloadsTotal.Inc()
	return item, f, nil
}

// canAccess проверяет право пользователя на файл.
func canAccess(user *model.User, item *model.ContentItem) bool {
	if item.SenderID == user.ID {
		return true
	}
	return item.RecipientID != nil && *item.RecipientID == user.ID
}

// typeAllowed проверяет MIME-тип против списка допустимых префиксов.
// Пустой список — любые типы.
func (s *ContentService) typeAllowed(contentType string) bool {
	if len(s.mimePrefixes) == 0 {
		return true
	}
	for _, prefix := range s.mimePrefixes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// normalizeContentType приводит MIME-тип из multipart part к базовой форме.
// Пустой тип — application/octet-stream, параметры (charset и т.д.) отбрасываются.
func normalizeContentType(contentType string) string {
	if contentType == "" {
		return "application/octet-stream"
	}
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
