package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/bigkaa/goshare/internal/domain/model"
	"github.com/bigkaa/goshare/internal/repository"
	"github.com/bigkaa/goshare/internal/storage/filestore"
)

// fakeContentRepo — in-memory реализация ContentRepository для тестов.
type fakeContentRepo struct {
	items      map[int64]*model.ContentItem
	nextID     int64
	failCreate error
	lastLimit  int
	lastOffset int
}

func newFakeContentRepo() *fakeContentRepo {
	return &fakeContentRepo{items: make(map[int64]*model.ContentItem), nextID: 1}
}

func (f *fakeContentRepo) Create(_ context.Context, item *model.ContentItem) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	item.ID = f.nextID
	f.nextID++
	item.UploadedAt = time.Now().UTC()
	f.items[item.ID] = item
	return nil
}

func (f *fakeContentRepo) GetByID(_ context.Context, id int64) (*model.ContentItem, error) {
	if item, ok := f.items[id]; ok {
		return item, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeContentRepo) matches(item *model.ContentItem, userID int64, direction model.ListDirection) bool {
	sent := item.SenderID == userID
	received := item.RecipientID != nil && *item.RecipientID == userID
	switch direction {
	case model.DirectionSent:
		return sent
	case model.DirectionReceived:
		return received
	default:
		return sent || received
	}
}

func (f *fakeContentRepo) ListFor(_ context.Context, userID int64, direction model.ListDirection, limit, offset int) ([]*model.ContentItem, error) {
	f.lastLimit = limit
	f.lastOffset = offset
	var result []*model.ContentItem
	for _, item := range f.items {
		if f.matches(item, userID, direction) {
			result = append(result, item)
		}
	}
	return result, nil
}

func (f *fakeContentRepo) CountFor(_ context.Context, userID int64, direction model.ListDirection) (int, error) {
	count := 0
	for _, item := range f.items {
		if f.matches(item, userID, direction) {
			count++
		}
	}
	return count, nil
}

// testContentEnv — собранный сервис файлов с реальным filestore в TempDir.
type testContentEnv struct {
	svc   *ContentService
	items *fakeContentRepo
	users *fakeUserRepo
	store *filestore.FileStore
}

func newTestContentEnv(t *testing.T, maxFileSize int64, mimePrefixes []string) *testContentEnv {
	t.Helper()

	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	items := newFakeContentRepo()
	users := newFakeUserRepo()
	svc := NewContentService(items, users, store, maxFileSize, mimePrefixes, testLogger())

	return &testContentEnv{svc: svc, items: items, users: users, store: store}
}

func (e *testContentEnv) addUser(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{Name: name, PasswordHash: "x"}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("ошибка создания пользователя %s: %v", name, err)
	}
	return u
}

// TestStore_Success проверяет загрузку файла без получателя.
func TestStore_Success(t *testing.T) {
	env := newTestContentEnv(t, 1<<20, nil)
	alice := env.addUser(t, "alice")

	content := []byte("содержимое файла")
	item, err := env.svc.Store(context.Background(), alice, StoreParams{
		Reader:           bytes.NewReader(content),
		OriginalFilename: "notes.txt",
		ContentType:      "text/plain; charset=utf-8",
		Size:             int64(len(content)),
	})
	if err != nil {
		t.Fatalf("Store() вернул ошибку: %v", err)
	}

	if item.ID == 0 {
		t.Error("файлу не присвоен идентификатор")
	}
	if item.SenderID != alice.ID {
		t.Errorf("SenderID = %d, ожидается %d", item.SenderID, alice.ID)
	}
	if item.RecipientID != nil {
		t.Error("RecipientID должен быть nil без получателя")
	}
	if item.ContentType != "text/plain" {
		t.Errorf("ContentType = %q, параметры должны отбрасываться", item.ContentType)
	}
	if item.Size != int64(len(content)) {
		t.Errorf("Size = %d, ожидается %d", item.Size, len(content))
	}
	if item.Checksum == "" {
		t.Error("Checksum не заполнен")
	}
	if !env.store.FileExists(item.StoredFilename) {
		t.Error("файл отсутствует на диске")
	}
}

// TestStore_WithRecipient проверяет загрузку с адресатом.
func TestStore_WithRecipient(t *testing.T) {
	env := newTestContentEnv(t, 1<<20, nil)
	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")

	item, err := env.svc.Store(context.Background(), alice, StoreParams{
		Reader:           bytes.NewReader([]byte("для боба")),
		OriginalFilename: "gift.png",
		ContentType:      "image/png",
		RecipientName:    "bob",
	})
	if err != nil {
		t.Fatalf("Store() вернул ошибку: %v", err)
	}
	if item.RecipientID == nil || *item.RecipientID != bob.ID {
		t.Errorf("RecipientID = %v, ожидается %d", item.RecipientID, bob.ID)
	}
}

// TestStore_UnknownRecipient проверяет отказ для незарегистрированного
// получателя: файл не попадает ни на диск, ни в БД.
func TestStore_UnknownRecipient(t *testing.T) {
	env := newTestContentEnv(t, 1<<20, nil)
	alice := env.addUser(t, "alice")

	_, err := env.svc.Store(context.Background(), alice, StoreParams{
		Reader:           bytes.NewReader([]byte("данные")),
		OriginalFilename: "file.txt",
		RecipientName:    "nobody",
	})
	if !errors.Is(err, ErrUnknownRecipient) {
		t.Fatalf("ожидается ErrUnknownRecipient, получено: %v", err)
	}
	if len(env.items.items) != 0 {
		t.Error("запись не должна создаваться при неизвестном получателе")
	}
}

// TestStore_UnsupportedType проверяет фильтр MIME-типов.
func TestStore_UnsupportedType(t *testing.T) {
	env := newTestContentEnv(t, 1<<20, []string{"image/"})
	alice := env.addUser(t, "alice")

	_, err := env.svc.Store(context.Background(), alice, StoreParams{
		Reader:           bytes.NewReader([]byte("текст")),
		OriginalFilename: "notes.txt",
		ContentType:      "text/plain",
	})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("ожидается ErrUnsupportedType, получено: %v", err)
	}

	// image/* проходит
	if _, err := env.svc.Store(context.Background(), alice, StoreParams{
		Reader:           bytes.NewReader([]byte("png")),
		OriginalFilename: "cat.png",
		ContentType:      "image/png",
	}); err != nil {
		t.Errorf("image/png должен приниматься: %v", err)
	}
}

// TestStore_FileTooLarge проверяет лимит размера файла.
func TestStore_FileTooLarge(t *testing.T) {
	env := newTestContentEnv(t, 10, nil)
	alice := env.addUser(t, "alice")

	_, err := env.svc.Store(context.Background(), alice, StoreParams{
		Reader:           bytes.NewReader(make([]byte, 100)),
		OriginalFilename: "big.bin",
		Size:             100,
	})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("ожидается ErrFileTooLarge, получено: %v", err)
	}
}

// TestStore_EmptyFilename проверяет валидацию имени файла.
func TestStore_EmptyFilename(t *testing.T) {
	env := newTestContentEnv(t, 1<<20, nil)
	alice := env.addUser(t, "alice")

	_, err := env.svc.Store(context.Background(), alice, StoreParams{
		Reader: bytes.NewReader([]byte("данные")),
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("ожидается ErrValidation, получено: %v", err)
	}
}

// TestStore_RollbackOnDBError проверяет откат: при ошибке вставки
// строки файл удаляется с диска, наружу уходит ErrStorageFault.
func TestStore_RollbackOnDBError(t *testing.T) {
	env := newTestContentEnv(t, 1<<20, nil)
	alice := env.addUser(t, "alice")
	env.items.failCreate = errors.New("БД недоступна")

	_, err := env.svc.Store(context.Background(), alice, StoreParams{
		Reader:           bytes.NewReader([]byte("данные")),
		OriginalFilename: "doomed.txt",
	})
	if !errors.Is(err, ErrStorageFault) {
		t.Fatalf("ожидается ErrStorageFault, получено: %v", err)
	}

	// На диске не должно остаться ни одного файла
	entries, readErr := os.ReadDir(env.store.DataDir())
	if readErr != nil {
		t.Fatalf("ошибка чтения директории данных: %v", readErr)
	}
	if len(entries) != 0 {
		t.Errorf("после отката в директории данных осталось файлов: %d", len(entries))
	}
}

// TestGet_AccessControl проверяет права доступа: файл видят только
// отправитель и получатель.
func TestGet_AccessControl(t *testing.T) {
	env := newTestContentEnv(t, 1<<20, nil)
	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")
	eve := env.addUser(t, "eve")

	item, err := env.svc.Store(context.Background(), alice, StoreParams{
		Reader:           bytes.NewReader([]byte("секрет")),
		OriginalFilename: "secret.txt",
		RecipientName:    "bob",
	})
	if err != nil {
		t.Fatalf("Store() вернул ошибку: %v", err)
	}

	// Отправитель и получатель видят файл
	if _, err := env.svc.Get(context.Background(), alice, item.ID); err != nil {
		t.Errorf("отправитель должен видеть файл: %v", err)
	}
	if _, err := env.svc.Get(context.Background(), bob, item.ID); err != nil {
		t.Errorf("получатель должен видеть файл: %v", err)
	}

	// Посторонний — нет
	if _, err := env.svc.Get(context.Background(), eve, item.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("ожидается ErrForbidden для постороннего, получено: %v", err)
	}

	// Несуществующий файл
	if _, err := env.svc.Get(context.Background(), alice, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидается ErrNotFound, получено: %v", err)
	}
}

// TestListFor проверяет направления выборки и клампинг limit.
func TestListFor(t *testing.T) {
	env := newTestContentEnv(t, 1<<20, nil)
	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")

	// alice отправляет bob, bob отправляет alice
	mustStore := func(sender *model.User, recipient string) {
		t.Helper()
		if _, err := env.svc.Store(context.Background(), sender, StoreParams{
			Reader:           bytes.NewReader([]byte("x")),
			OriginalFilename: "f.txt",
			RecipientName:    recipient,
		}); err != nil {
			t.Fatalf("Store() вернул ошибку: %v", err)
		}
	}
	mustStore(alice, "bob")
	mustStore(bob, "alice")

	sent, err := env.svc.ListFor(context.Background(), alice, model.DirectionSent, 0, 0)
	if err != nil {
		t.Fatalf("ListFor(sent) вернул ошибку: %v", err)
	}
	if len(sent.Items) != 1 || sent.Total != 1 {
		t.Errorf("sent: записей %d, total %d, ожидается 1/1", len(sent.Items), sent.Total)
	}

	all, err := env.svc.ListFor(context.Background(), alice, model.DirectionAll, 0, 0)
	if err != nil {
		t.Fatalf("ListFor(all) вернул ошибку: %v", err)
	}
	if len(all.Items) != 2 || all.Total != 2 {
		t.Errorf("all: записей %d, total %d, ожидается 2/2", len(all.Items), all.Total)
	}

	// limit по умолчанию: и репозиторий, и страница видят клампнутое значение
	if env.items.lastLimit != defaultListLimit {
		t.Errorf("limit = %d, ожидается %d по умолчанию", env.items.lastLimit, defaultListLimit)
	}
	if all.Limit != defaultListLimit {
		t.Errorf("page.Limit = %d, ожидается %d по умолчанию", all.Limit, defaultListLimit)
	}

	page, err := env.svc.ListFor(context.Background(), alice, model.DirectionAll, 100000, -5)
	if err != nil {
		t.Fatalf("ListFor() вернул ошибку: %v", err)
	}
	if env.items.lastLimit != maxListLimit {
		t.Errorf("limit = %d, ожидается максимум %d", env.items.lastLimit, maxListLimit)
	}
	if page.Limit != maxListLimit {
		t.Errorf("page.Limit = %d, ожидается максимум %d", page.Limit, maxListLimit)
	}
	if env.items.lastOffset != 0 || page.Offset != 0 {
		t.Errorf("offset = %d/%d, отрицательный должен становиться 0", env.items.lastOffset, page.Offset)
	}

	// Недопустимое направление
	if _, err := env.svc.ListFor(context.Background(), alice, "sideways", 0, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("ожидается ErrValidation, получено: %v", err)
	}
}

// TestDownload проверяет выдачу содержимого файла.
func TestDownload(t *testing.T) {
	env := newTestContentEnv(t, 1<<20, nil)
	alice := env.addUser(t, "alice")

	content := []byte("данные для скачивания")
	item, err := env.svc.Store(context.Background(), alice, StoreParams{
		Reader:           bytes.NewReader(content),
		OriginalFilename: "dl.bin",
	})
	if err != nil {
		t.Fatalf("Store() вернул ошибку: %v", err)
	}

	got, rc, err := env.svc.Download(context.Background(), alice, item.ID)
	if err != nil {
		t.Fatalf("Download() вернул ошибку: %v", err)
	}
	defer rc.Close()

	if got.ID != item.ID {
		t.Errorf("ID = %d, ожидается %d", got.ID, item.ID)
	}
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ошибка чтения потока: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("скачанные данные не совпадают с загруженными")
	}
}

// TestDownload_MissingOnDisk проверяет ErrStorageFault, когда запись
// в БД есть, а файла на диске нет.
func TestDownload_MissingOnDisk(t *testing.T) {
	env := newTestContentEnv(t, 1<<20, nil)
	alice := env.addUser(t, "alice")

	item, err := env.svc.Store(context.Background(), alice, StoreParams{
		Reader:           bytes.NewReader([]byte("x")),
		OriginalFilename: "gone.txt",
	})
	if err != nil {
		t.Fatalf("Store() вернул ошибку: %v", err)
	}
	if err := env.store.DeleteFile(item.StoredFilename); err != nil {
		t.Fatalf("ошибка удаления файла: %v", err)
	}

	_, _, err = env.svc.Download(context.Background(), alice, item.ID)
	if !errors.Is(err, ErrStorageFault) {
		t.Errorf("ожидается ErrStorageFault, получено: %v", err)
	}
}
