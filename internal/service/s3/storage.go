// storage.go
package s3

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound возвращается, когда объекта нет в бэкенде.
// Для координатора удаления это не ошибка, а подтверждение.
var ErrObjectNotFound = errors.New("object not found")

// S3Object определяет интерфейс для объектов S3
type S3Object interface {
	io.ReadCloser
	ContentLength() int64
	ContentType() string
}

// s3Object реализует интерфейс S3Object
type s3Object struct {
	io.ReadCloser
	contentLength int64
	contentType   string
}

func (o *s3Object) ContentLength() int64 {
	return o.contentLength
}

func (o *s3Object) ContentType() string {
	return o.contentType
}

// ObjectInfo содержит метаданные объекта из HEAD или листинга
type ObjectInfo struct {
	Key          string
	SizeBytes    int64
	ContentType  string
	LastModified time.Time
}

// CompletedPart представляет загруженную часть файла
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// Storage определяет интерфейс для работы с S3-совместимым хранилищем
type Storage interface {
	PutObject(ctx context.Context, key string, contentType string, data []byte) error
	GetObject(ctx context.Context, key string) (S3Object, error)
	HeadObject(ctx context.Context, key string) (*ObjectInfo, error)
	DeleteObject(ctx context.Context, key string) error
	ListPrefix(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Методы для загрузки по частям
	CreateMultipartUpload(ctx context.Context, key string, contentType string) (string, error)
	UploadPart(ctx context.Context, uploadID string, key string, partNumber int, data []byte) (string, error)
	CompleteMultipartUpload(ctx context.Context, uploadID string, key string, parts []CompletedPart) error
	AbortMultipartUpload(ctx context.Context, uploadID string, key string) error
	// Подписанные URL для прямого доступа клиента
	PresignPut(ctx context.Context, key string, contentType string, expires time.Duration) (string, time.Time, error)
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, time.Time, error)
}
