// Пакет filestore — операции с физическими файлами в корне хранения.
// Обеспечивает streaming-запись с подсчётом SHA-256 на лету и
// бесконфликтное размещение: существующий файл никогда не перезаписывается.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Количество попыток размещения при коллизии имени.
const placeAttempts = 3

// FileStore — управление физическими файлами на диске.
type FileStore struct {
	// dataDir — корневая директория хранения файлов (GS_DATA_DIR)
	dataDir string
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// StoredFilename — имя файла в dataDir
	StoredFilename string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого файла
	Checksum string
}

// New создаёт новый FileStore. Проверяет и создаёт директорию
// если она не существует.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

// SaveFile записывает данные из reader на диск с подсчётом SHA-256 на лету.
// Формат имени файла: {name}_{sender}_{timestamp}_{uuid}.{ext}
// Возвращает имя, размер и checksum записанного файла.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → hard link на финальное имя.
// Link атомарно отказывает, если имя занято: существующий файл
// никогда не перезаписывается, при коллизии имя генерируется заново.
// При ошибке temp файл удаляется.
func (fs *FileStore) SaveFile(reader io.Reader, originalFilename, sender string) (*SaveResult, error) {
	tmpPath := filepath.Join(fs.dataDir, ".tmp_"+uuid.New().String())

	// Создаём temp файл
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Streaming запись с одновременным подсчётом SHA-256
	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарное размещение: link отказывает при занятом имени
	var storedName string
	for attempt := 0; attempt < placeAttempts; attempt++ {
		storedName = generateStorageName(originalFilename, sender)
		fullPath := filepath.Join(fs.dataDir, storedName)

		linkErr := os.Link(tmpPath, fullPath)
		if linkErr == nil {
			os.Remove(tmpPath)
			return &SaveResult{
				StoredFilename: storedName,
				FullPath:       fullPath,
				Size:           size,
				Checksum:       hex.EncodeToString(hasher.Sum(nil)),
			}, nil
		}
		if !os.IsExist(linkErr) {
			os.Remove(tmpPath)
			return nil, fmt.Errorf("ошибка размещения файла: %w", linkErr)
		}
		// Имя занято — генерируем новое
	}

	os.Remove(tmpPath)
	return nil, fmt.Errorf("не удалось разместить файл %q за %d попыток", originalFilename, placeAttempts)
}

// ReadFile открывает файл для чтения и возвращает io.ReadCloser.
// storedFilename — имя файла в dataDir.
// Вызывающий код обязан закрыть ReadCloser.
func (fs *FileStore) ReadFile(storedFilename string) (*os.File, error) {
	fullPath := filepath.Join(fs.dataDir, storedFilename)

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("файл не найден: %s", storedFilename)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storedFilename, err)
	}

	return f, nil
}

// FullPath возвращает абсолютный путь к файлу на диске.
func (fs *FileStore) FullPath(storedFilename string) string {
	return filepath.Join(fs.dataDir, storedFilename)
}

// DeleteFile удаляет файл с диска.
// Возвращает nil если файл уже не существует.
func (fs *FileStore) DeleteFile(storedFilename string) error {
	fullPath := filepath.Join(fs.dataDir, storedFilename)

	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storedFilename, err)
	}
	return nil
}

// FileExists проверяет существование файла на диске.
func (fs *FileStore) FileExists(storedFilename string) bool {
	fullPath := filepath.Join(fs.dataDir, storedFilename)
	_, err := os.Stat(fullPath)
	return err == nil
}

// DataDir возвращает путь к директории данных.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// generateStorageName генерирует имя файла для хранения на диске.
// Формат: {name}_{sender}_{timestamp}_{uuid}.{ext}
// Пример: cat_alice_20260823150405_a1b2c3d4.png
func generateStorageName(originalFilename, sender string) string {
	ext := filepath.Ext(originalFilename)
	name := strings.TrimSuffix(originalFilename, ext)

	// Убираем небезопасные символы из имени и отправителя
	name = sanitize(name)
	user := sanitize(sender)

	// Ограничиваем длину имени для предотвращения проблем с FS
	if len(name) > 50 {
		name = name[:50]
	}
	if len(user) > 20 {
		user = user[:20]
	}

	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8] // Короткий UUID для уникальности

	if ext != "" {
		return fmt.Sprintf("%s_%s_%s_%s%s", name, user, ts, uid, ext)
	}
	return fmt.Sprintf("%s_%s_%s_%s", name, user, ts, uid)
}

// sanitize убирает небезопасные символы из строки для использования в имени файла.
// Оставляет только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' ||
			(r >= 0x0400 && r <= 0x04FF) { // Кириллица
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}
