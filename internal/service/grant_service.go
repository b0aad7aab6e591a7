package service

import (
	"context"
	"fmt"
	"time"

	"shuttervault/internal/domain"
	"shuttervault/internal/objectkey"
	"shuttervault/internal/service/s3"
)

// Срок действия подписанного URL. Механизма отзыва нет: выданный грант
// живет до истечения срока.
const grantTTL = 1 * time.Hour

// GrantService выдает подписанные URL для прямой работы клиента с
// хранилищем, минуя сервер приложения. Квоту сервис сознательно не
// проверяет: это обязанность вызывающего до выдачи гранта
// (известное TOCTOU-окно между проверкой и загрузкой).
type GrantService struct {
	storage s3.Storage
	keys    objectkey.Builder
}

func NewGrantService(storage s3.Storage) *GrantService {
	return &GrantService{storage: storage}
}

// IssueUploadGrant выдает грант на прямую загрузку одного объекта
func (s *GrantService) IssueUploadGrant(ctx context.Context, accountID, sessionID string, class domain.FolderClass, filename, contentType string, expectedSize int64) (*domain.UploadGrant, error) {
	if expectedSize < 0 {
		return nil, fmt.Errorf("%w: negative expected size", domain.ErrInvalidArgument)
	}

	key, err := s.keys.Object(accountID, sessionID, class, filename)
	if err != nil {
		return nil, err
	}

	url, expiresAt, err := s.storage.PresignPut(ctx, key, contentType, grantTTL)
	if err != nil {
		// Ошибка подписи означает проблему учетных данных или конфигурации,
		// повторять без вмешательства оператора бессмысленно
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}

	return &domain.UploadGrant{
		URL:       url,
		ObjectKey: key,
		ExpiresAt: expiresAt,
	}, nil
}

// IssueDownloadGrant выдает грант на чтение одного объекта
func (s *GrantService) IssueDownloadGrant(ctx context.Context, accountID, sessionID string, class domain.FolderClass, filename string) (*domain.UploadGrant, error) {
	key, err := s.keys.Object(accountID, sessionID, class, filename)
	if err != nil {
		return nil, err
	}

	url, expiresAt, err := s.storage.PresignGet(ctx, key, grantTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}

	return &domain.UploadGrant{
		URL:       url,
		ObjectKey: key,
		ExpiresAt: expiresAt,
	}, nil
}
