package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"shuttervault/internal/domain"
	"shuttervault/internal/objectkey"
	"shuttervault/internal/service/s3"
)

// RebuildService сверяет реестр с хранилищем. Листинг бэкенда
// выигрывает любой спор: именно бэкенд отдает байты клиентам. Объект
// без строки реестра получает синтезированную строку, строка без
// объекта удаляется, расхождение размера чинится в пользу листинга.
type RebuildService struct {
	ledger  ArtifactLedger
	storage s3.Storage
	quota   *QuotaService
	keys    objectkey.Builder
}

func NewRebuildService(ledger ArtifactLedger, storage s3.Storage, quota *QuotaService) *RebuildService {
	return &RebuildService{
		ledger:  ledger,
		storage: storage,
		quota:   quota,
	}
}

// Rebuild восстанавливает реестр по листингу хранилища под префиксом
// сессии. Если листинг не удался, реестр не трогаем: спекулятивно
// стирать устаревшее состояние хуже, чем оставить его.
func (s *RebuildService) Rebuild(ctx context.Context, accountID, sessionID string) (*domain.RebuildResult, error) {
	prefix, err := s.keys.SessionPrefix(accountID, sessionID)
	if err != nil {
		return nil, err
	}

	objects, err := s.storage.ListPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}

	// Ключи, которые не разбираются в кортеж, пропускаем: синтезировать
	// из них строку нельзя, и тем более нельзя удалять чужое
	byKey := make(map[string]s3.ObjectInfo, len(objects))
	for _, obj := range objects {
		parsed, err := objectkey.Parse(obj.Key)
		if err != nil {
			log.Printf("[Rebuild] Пропускаем ключ чужого формата %q: %v", obj.Key, err)
			continue
		}
		if parsed.AccountID != accountID || parsed.SessionID != sessionID {
			log.Printf("[Rebuild] Пропускаем ключ %q вне границ сверки", obj.Key)
			continue
		}
		byKey[obj.Key] = obj
	}

	rows, err := s.ledger.ListByAccountSession(ctx, accountID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger rows: %w", err)
	}

	result := &domain.RebuildResult{
		AccountID: accountID,
		SessionID: sessionID,
	}

	// Строки без объекта считаются осиротевшими. Удаляем только те, чье отсутствие
	// подтверждено успешно завершившимся листингом.
	rowByKey := make(map[string]domain.ArtifactRecord, len(rows))
	for _, row := range rows {
		rowByKey[row.ObjectKey] = row

		if _, ok := byKey[row.ObjectKey]; ok {
			continue
		}

		if err := s.ledger.Delete(ctx, row.SessionID, row.FolderClass, row.Filename); err != nil {
			if errors.Is(err, domain.ErrArtifactNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to remove orphaned row %s: %w", row.ObjectKey, err)
		}
		log.Printf("[Rebuild] Удалена осиротевшая строка реестра %s", row.ObjectKey)
		result.Removed++
	}

	// Объекты без строки получают синтезированную запись по данным
	// листинга; расхождение размера чинится в пользу бэкенда
	for key, obj := range byKey {
		parsed, _ := objectkey.Parse(key)

		if row, ok := rowByKey[key]; ok {
			if row.SizeBytes == obj.SizeBytes {
				continue
			}
			row.SizeBytes = obj.SizeBytes
			if err := s.ledger.Upsert(ctx, &row); err != nil {
				return nil, fmt.Errorf("failed to repair row %s: %w", key, err)
			}
			log.Printf("[Rebuild] Починен размер строки %s: %d байт", key, obj.SizeBytes)
			result.Repaired++
			continue
		}

		rec := &domain.ArtifactRecord{
			AccountID:   parsed.AccountID,
			SessionID:   parsed.SessionID,
			FolderClass: parsed.FolderClass,
			Filename:    parsed.Filename,
			ObjectKey:   key,
			ContentType: s.contentTypeOf(ctx, key),
			SizeBytes:   obj.SizeBytes,
		}

		if err := s.ledger.Upsert(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to synthesize row %s: %w", key, err)
		}
		log.Printf("[Rebuild] Синтезирована строка реестра для %s (%d байт)", key, obj.SizeBytes)
		result.Synthesized++
	}

	result.TotalFiles = len(byKey)
	result.RebuiltAt = time.Now()

	s.quota.InvalidateUsage(ctx, accountID)

	log.Printf("[Rebuild] Сверка %s/%s: %d файлов, +%d синтезировано, %d починено, -%d удалено",
		accountID, sessionID, result.TotalFiles, result.Synthesized, result.Repaired, result.Removed)

	return result, nil
}

// contentTypeOf добирает тип контента HEAD-запросом, листинг его не отдает
func (s *RebuildService) contentTypeOf(ctx context.Context, key string) string {
	info, err := s.storage.HeadObject(ctx, key)
	if err != nil || info.ContentType == "" {
		return "application/octet-stream"
	}
	return info.ContentType
}
