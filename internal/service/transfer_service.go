package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"shuttervault/internal/domain"
	"shuttervault/internal/objectkey"
	"shuttervault/internal/preview"
	"shuttervault/internal/service/s3"
)

// Константы стратегии переноса
const (
	singlePutThreshold = 32 * 1024 * 1024 // до 32MB грузим одним PUT
	basePartSize       = 10 * 1024 * 1024 // 10MB для частей multipart-загрузки
	maxConcurrentParts = 5                // максимальное количество параллельных частей

	// Жесткий лимит S3-совместимых бэкендов на количество частей
	maxParts = 10000

	// Жесткий лимит S3-совместимых бэкендов на размер объекта
	maxObjectSize = int64(5) * 1024 * 1024 * 1024 * 1024
)

// partSizeFor подбирает размер части так, чтобы объект уложился в лимит
// бэкенда на количество частей. До ~97GB части фиксированы (10MB), дальше
// они растут пропорционально размеру.
func partSizeFor(totalSize int64) int64 {
	size := int64(basePartSize)
	if minSize := (totalSize + maxParts - 1) / maxParts; minSize > size {
		size = minSize
	}
	return size
}

// TransferService переносит байты в хранилище через сервер.
// Стратегия выбирается по размеру: маленькие объекты уходят одним PUT,
// большие идут по частям с ограниченным параллелизмом. При любом сбое
// multipart-сессия явно отменяется: под итоговым ключом никогда не
// остается частичного объекта.
type TransferService struct {
	ledger   ArtifactLedger
	storage  s3.Storage
	quota    *QuotaService
	previews *preview.Service
	keys     objectkey.Builder
}

func NewTransferService(ledger ArtifactLedger, storage s3.Storage, quota *QuotaService, previews *preview.Service) *TransferService {
	return &TransferService{
		ledger:   ledger,
		storage:  storage,
		quota:    quota,
		previews: previews,
	}
}

// Upload переносит байты в хранилище и записывает строку реестра.
// Повтор всей операции безопасен: ключ детерминирован, повторная
// загрузка просто перезаписывает объект.
func (s *TransferService) Upload(ctx context.Context, accountID, sessionID string, class domain.FolderClass, filename, contentType string, data []byte) (*domain.ArtifactRecord, error) {
	key, err := s.keys.Object(accountID, sessionID, class, filename)
	if err != nil {
		return nil, err
	}

	size := int64(len(data))
	if size > maxObjectSize {
		return nil, fmt.Errorf("%w: %d bytes", domain.ErrPayloadTooLarge, size)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if size <= singlePutThreshold {
		if err := s.storage.PutObject(ctx, key, contentType, data); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
		}
	} else {
		if err := s.uploadMultipart(ctx, key, contentType, data); err != nil {
			return nil, err
		}
	}

	rec := &domain.ArtifactRecord{
		AccountID:   accountID,
		SessionID:   sessionID,
		FolderClass: class,
		Filename:    filename,
		ObjectKey:   key,
		ContentType: contentType,
		SizeBytes:   size,
	}

	if err := s.ledger.Upsert(ctx, rec); err != nil {
		// Объект уже лежит в хранилище; без строки реестра он станет
		// сиротой, поэтому убираем его перед возвратом ошибки
		if deleteErr := s.storage.DeleteObject(ctx, key); deleteErr != nil {
			log.Printf("[Transfer] Не удалось убрать объект %s после ошибки реестра: %v", key, deleteErr)
		}
		return nil, fmt.Errorf("failed to record artifact: %w", err)
	}

	s.quota.InvalidateUsage(ctx, accountID)

	// Отказ построения превью не валит загрузку: это производный артефакт
	if s.previews != nil && isImageContentType(contentType) {
		if err := s.previews.Derive(ctx, accountID, sessionID, class, filename, data); err != nil {
			log.Printf("[Transfer] Не удалось построить превью для %s: %v", key, err)
		}
	}

	return rec, nil
}

// uploadMultipart грузит объект по частям с ограниченным параллелизмом
func (s *TransferService) uploadMultipart(ctx context.Context, key, contentType string, data []byte) error {
	uploadID, err := s.storage.CreateMultipartUpload(ctx, key, contentType)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}

	totalSize := int64(len(data))
	partSize := partSizeFor(totalSize)
	partCount := (totalSize + partSize - 1) / partSize

	// Пул воркеров: WaitGroup + семафор + канал ошибок
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, maxConcurrentParts)
	errCh := make(chan error, partCount)
	etags := make([]string, partCount)

	for i := int64(0); i < partCount; i++ {
		if ctx.Err() != nil {
			errCh <- ctx.Err()
			break
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(partIdx int64) {
			defer wg.Done()
			defer func() { <-semaphore }()

			offset := partIdx * partSize
			end := offset + partSize
			if end > totalSize {
				end = totalSize
			}

			// Номера частей в S3 начинаются с 1
			etag, err := s.storage.UploadPart(ctx, uploadID, key, int(partIdx)+1, data[offset:end])
			if err != nil {
				errCh <- fmt.Errorf("failed to upload part %d: %w", partIdx+1, err)
				return
			}
			etags[partIdx] = etag
		}(i)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			// Любая упавшая часть отменяет всю сессию. Отмена идет на
			// фоновом контексте: исходный мог быть уже отменен, а
			// брошенные части продолжали бы тарифицироваться.
			s.abortUpload(uploadID, key)
			return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
		}
	}

	parts := make([]s3.CompletedPart, partCount)
	for i, etag := range etags {
		parts[i] = s3.CompletedPart{PartNumber: i + 1, ETag: etag}
	}

	if err := s.storage.CompleteMultipartUpload(ctx, uploadID, key, parts); err != nil {
		s.abortUpload(uploadID, key)
		return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}

	return nil
}

func (s *TransferService) abortUpload(uploadID, key string) {
	if err := s.storage.AbortMultipartUpload(context.Background(), uploadID, key); err != nil {
		log.Printf("[Transfer] Не удалось отменить multipart-сессию %s для %s: %v", uploadID, key, err)
	}
}

// RecordDirectUpload фиксирует в реестре загрузку, которую клиент
// выполнил сам по подписанному URL. Объект сверяется HEAD-запросом:
// в реестр попадает размер, который реально отдает бэкенд, а не
// заявленный вызывающим.
func (s *TransferService) RecordDirectUpload(ctx context.Context, accountID, sessionID string, class domain.FolderClass, filename, contentType string, claimedSize int64) (*domain.ArtifactRecord, error) {
	key, err := s.keys.Object(accountID, sessionID, class, filename)
	if err != nil {
		return nil, err
	}

	info, err := s.storage.HeadObject(ctx, key)
	if err != nil {
		if errors.Is(err, s3.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: object %s was never uploaded", domain.ErrArtifactNotFound, key)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}

	if claimedSize != info.SizeBytes {
		log.Printf("[Transfer] Заявленный размер %d для %s расходится с бэкендом (%d), верим бэкенду", claimedSize, key, info.SizeBytes)
	}

	if contentType == "" {
		contentType = info.ContentType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	rec := &domain.ArtifactRecord{
		AccountID:   accountID,
		SessionID:   sessionID,
		FolderClass: class,
		Filename:    filename,
		ObjectKey:   key,
		ContentType: contentType,
		SizeBytes:   info.SizeBytes,
	}

	if err := s.ledger.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to record artifact: %w", err)
	}

	s.quota.InvalidateUsage(ctx, accountID)

	return rec, nil
}

// ListArtifacts возвращает записи реестра для сессии строго в границах
// аккаунта вызывающего: чужая сессия отдает пустой список, а не чужие
// записи
func (s *TransferService) ListArtifacts(ctx context.Context, accountID, sessionID string, class *domain.FolderClass) ([]domain.ArtifactRecord, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: empty account id", domain.ErrUnknownAccount)
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidArgument)
	}
	if class != nil && !class.Valid() {
		return nil, fmt.Errorf("%w: folder class %q", domain.ErrInvalidArgument, *class)
	}

	recs, err := s.ledger.ListByAccountSession(ctx, accountID, sessionID)
	if err != nil {
		return nil, err
	}

	if class == nil {
		return recs, nil
	}

	filtered := recs[:0]
	for _, rec := range recs {
		if rec.FolderClass == *class {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

func isImageContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}
