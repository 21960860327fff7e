// content.go — HTTP-обработчики файловых endpoints: загрузка,
// листинг, метаданные, скачивание.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goshare/internal/api/errors"
	"github.com/bigkaa/goshare/internal/api/middleware"
	"github.com/bigkaa/goshare/internal/domain/model"
	"github.com/bigkaa/goshare/internal/service"
)

// multipartMemory — буфер парсинга multipart form в памяти,
// остальное уходит во временные файлы.
const multipartMemory = 32 << 20

// ContentHandler — обработчик файловых endpoints.
type ContentHandler struct {
	content *service.ContentService
	// maxFileSize — жёсткий лимит тела запроса (GS_MAX_FILE_SIZE)
	maxFileSize int64
	logger      *slog.Logger
}

// NewContentHandler создаёт обработчик файловых endpoints.
func NewContentHandler(content *service.ContentService, maxFileSize int64, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{
		content:     content,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "content_handler")),
	}
}

// listResponse — тело ответа листинга файлов.
type listResponse struct {
	Items   []*model.ContentItem `json:"items"`
	Total   int                  `json:"total"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
	HasMore bool                 `json:"has_more"`
}

// Upload обрабатывает POST /api/v1/content.
// Multipart form: file (обязательно), recipient (опционально).
func (h *ContentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sender := middleware.UserFromContext(r.Context())
	if sender == nil {
		apierrors.NotAuthenticated(w, "Требуется аутентификация")
		return
	}

	// Жёсткий лимит тела: защита от безразмерных запросов
	// (запас на multipart заголовки и поля формы)
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Тело запроса превышает максимум %d байт", h.maxFileSize))
			return
		}
		apierrors.ValidationError(w, "Ошибка парсинга multipart: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	item, err := h.content.Store(r.Context(), sender, service.StoreParams{
		Reader:           file,
		OriginalFilename: header.Filename,
		ContentType:      header.Header.Get("Content-Type"),
		Size:             header.Size,
		RecipientName:    r.FormValue("recipient"),
	})
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// writeStoreError транслирует ошибки сервиса загрузки в HTTP-ответ.
func (h *ContentHandler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrUnknownRecipient):
		apierrors.UnknownRecipient(w, err.Error())
	case errors.Is(err, service.ErrUnsupportedType):
		apierrors.UnsupportedType(w, err.Error())
	case errors.Is(err, service.ErrFileTooLarge):
		apierrors.FileTooLarge(w, err.Error())
	case errors.Is(err, service.ErrStorageFault):
		apierrors.StorageFault(w, "Сбой хранилища при сохранении файла")
	default:
		h.logger.Error("Ошибка загрузки файла", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка загрузки файла")
	}
}

// List обрабатывает GET /api/v1/content.
// Query: direction (received|sent|all, по умолчанию all), limit, offset.
func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.NotAuthenticated(w, "Требуется аутентификация")
		return
	}

	direction := model.ListDirection(r.URL.Query().Get("direction"))
	if direction == "" {
		direction = model.DirectionAll
	}

	limit, ok := intQueryParam(w, r, "limit", 0)
	if !ok {
		return
	}
	offset, ok := intQueryParam(w, r, "offset", 0)
	if !ok {
		return
	}

	page, err := h.content.ListFor(r.Context(), user, direction, limit, offset)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.logger.Error("Ошибка получения списка файлов", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка получения списка файлов")
		return
	}

	items := page.Items
	if items == nil {
		items = []*model.ContentItem{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Items:   items,
		Total:   page.Total,
		Limit:   page.Limit,
		Offset:  page.Offset,
		HasMore: page.Offset+len(items) < page.Total,
	})
}

// Get обрабатывает GET /api/v1/content/{id}. Метаданные файла.
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.NotAuthenticated(w, "Требуется аутентификация")
		return
	}

	id, ok := idFromURL(w, r)
	if !ok {
		return
	}

	item, err := h.content.Get(r.Context(), user, id)
	if err != nil {
		h.writeAccessError(w, id, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// Download обрабатывает GET /api/v1/content/{id}/download.
// Отдаёт содержимое файла с оригинальным именем.
func (h *ContentHandler) Download(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.NotAuthenticated(w, "Требуется аутентификация")
		return
	}

	id, ok := idFromURL(w, r)
	if !ok {
		return
	}

	item, rc, err := h.content.Download(r.Context(), user, id)
	if err != nil {
		h.writeAccessError(w, id, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", item.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(item.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment",
		map[string]string{"filename": item.OriginalFilename}))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		// Заголовки уже отправлены, менять статус поздно
		h.logger.Warn("Ошибка отдачи файла клиенту",
			slog.Int64("id", item.ID),
			slog.String("error", err.Error()),
		)
	}
}

// writeAccessError транслирует ошибки доступа к файлу в HTTP-ответ.
func (h *ContentHandler) writeAccessError(w http.ResponseWriter, id int64, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, fmt.Sprintf("Файл %d не найден", id))
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, fmt.Sprintf("Нет доступа к файлу %d", id))
	case errors.Is(err, service.ErrStorageFault):
		apierrors.StorageFault(w, "Сбой хранилища при чтении файла")
	default:
		h.logger.Error("Ошибка доступа к файлу",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка доступа к файлу")
	}
}

// idFromURL извлекает числовой {id} из пути chi.
func idFromURL(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный идентификатор файла: %q", raw))
		return 0, false
	}
	return id, true
}

// intQueryParam извлекает неотрицательный целочисленный query-параметр.
func intQueryParam(w http.ResponseWriter, r *http.Request, name string, defaultVal int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal, true
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		apierrors.ValidationError(w, fmt.Sprintf("Параметр %s должен быть неотрицательным числом", name))
		return 0, false
	}
	return val, true
}
