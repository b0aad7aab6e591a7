package domain

import (
	"time"

	"github.com/google/uuid"
)

// FolderClass определяет категорию артефакта внутри сессии
type FolderClass string

const (
	FolderClassGallery FolderClass = "gallery"
	FolderClassRaw     FolderClass = "raw"
	FolderClassGeneric FolderClass = "generic"
)

// Valid проверяет, что класс папки входит в допустимый набор
func (fc FolderClass) Valid() bool {
	switch fc {
	case FolderClassGallery, FolderClassRaw, FolderClassGeneric:
		return true
	}
	return false
}

func (fc FolderClass) String() string {
	return string(fc)
}

// ArtifactRecord представляет одну запись реестра хранения.
// Кортеж (session_id, folder_class, filename) уникален: повторная загрузка
// заменяет размер и время, а не создает дубликат.
type ArtifactRecord struct {
	ID          int64       `json:"id" db:"id"`
	UUID        uuid.UUID   `json:"uuid" db:"uuid"`
	AccountID   string      `json:"account_id" db:"account_id"`
	SessionID   string      `json:"session_id" db:"session_id"`
	FolderClass FolderClass `json:"folder_class" db:"folder_class"`
	Filename    string      `json:"filename" db:"filename"`
	ObjectKey   string      `json:"object_key" db:"object_key"`
	ContentType string      `json:"content_type" db:"content_type"`
	SizeBytes   int64       `json:"size_bytes" db:"size_bytes"`
	UploadedAt  time.Time   `json:"uploaded_at" db:"uploaded_at"`
}

// UsageSnapshot содержит производную сводку по аккаунту. Не хранится как
// самостоятельный источник истины: сумма по реестру всегда авторитетна.
type UsageSnapshot struct {
	AccountID  string `json:"account_id"`
	TotalBytes int64  `json:"total_bytes"`
	TotalFiles int64  `json:"total_files"`
}

// UploadGrant несет подписанный URL для прямой загрузки или скачивания
type UploadGrant struct {
	URL       string    `json:"url"`
	ObjectKey string    `json:"object_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RebuildResult содержит итог сверки реестра с листингом хранилища
type RebuildResult struct {
	AccountID   string    `json:"account_id"`
	SessionID   string    `json:"session_id"`
	TotalFiles  int       `json:"total_files"`
	Synthesized int       `json:"synthesized"`
	Repaired    int       `json:"repaired"`
	Removed     int       `json:"removed"`
	RebuiltAt   time.Time `json:"rebuilt_at"`
}
