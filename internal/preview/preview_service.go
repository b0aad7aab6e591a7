package preview

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/h2non/bimg"

	"shuttervault/internal/domain"
	"shuttervault/internal/objectkey"
	"shuttervault/internal/service/s3"
)

const (
	maxImageSize = 1024 // максимальный размер превью в пикселях
	jpegQuality  = 85   // качество JPEG
)

// Service строит и отдает производные превью артефактов-изображений.
// Превью лежат под отдельным префиксом previews/ и не попадают в
// листинг сессии при сверке.
type Service struct {
	storage s3.Storage
	keys    objectkey.Builder
}

// NewService создает новый сервис для работы с превью
func NewService(storage s3.Storage) *Service {
	return &Service{storage: storage}
}

// Derive строит превью изображения и кладет его под производный ключ
func (s *Service) Derive(ctx context.Context, accountID, sessionID string, class domain.FolderClass, filename string, data []byte) error {
	key, err := s.keys.Preview(accountID, sessionID, class, filename)
	if err != nil {
		return err
	}

	thumb, err := s.optimizeImage(data)
	if err != nil {
		return fmt.Errorf("failed to generate preview: %w", err)
	}

	if err := s.storage.PutObject(ctx, key, "image/jpeg", thumb); err != nil {
		return fmt.Errorf("failed to save preview to S3: %w", err)
	}

	log.Printf("[Preview] Превью успешно сохранено: %s", key)
	return nil
}

// GetPreview отдает байты превью артефакта
func (s *Service) GetPreview(ctx context.Context, accountID, sessionID string, class domain.FolderClass, filename string) ([]byte, error) {
	key, err := s.keys.Preview(accountID, sessionID, class, filename)
	if err != nil {
		return nil, err
	}

	obj, err := s.storage.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	return io.ReadAll(obj)
}

// optimizeImage ужимает изображение до размера превью
func (s *Service) optimizeImage(data []byte) ([]byte, error) {
	image := bimg.NewImage(data)

	size, err := image.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to get image size: %w", err)
	}

	// Вычисляем новые размеры с сохранением пропорций
	width, height := calculateNewDimensions(size.Width, size.Height, maxImageSize)

	processed, err := image.Process(bimg.Options{
		Width:   width,
		Height:  height,
		Quality: jpegQuality,
		Type:    bimg.JPEG,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	return processed, nil
}

func calculateNewDimensions(width, height, maxSize int) (newWidth, newHeight int) {
	if width > height {
		newWidth = maxSize
		newHeight = (height * maxSize) / width
	} else {
		newHeight = maxSize
		newWidth = (width * maxSize) / height
	}
	return
}
