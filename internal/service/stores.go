package service

import (
	"context"

	"shuttervault/internal/domain"
)

// ArtifactLedger задает контракт реестра артефактов. Реализуется
// repository.ArtifactRepository, в тестах подменяется фейком.
type ArtifactLedger interface {
	Upsert(ctx context.Context, rec *domain.ArtifactRecord) error
	Get(ctx context.Context, sessionID string, class domain.FolderClass, filename string) (*domain.ArtifactRecord, error)
	ListBySession(ctx context.Context, sessionID string, class *domain.FolderClass) ([]domain.ArtifactRecord, error)
	ListByAccountSession(ctx context.Context, accountID, sessionID string) ([]domain.ArtifactRecord, error)
	Delete(ctx context.Context, sessionID string, class domain.FolderClass, filename string) error
	SumByAccount(ctx context.Context, accountID string) (totalBytes int64, totalFiles int64, err error)
}

// QuotaStore задает контракт хранилища квот аккаунтов
type QuotaStore interface {
	GetQuota(ctx context.Context, accountID string) (*domain.AccountQuota, error)
	UpdateBaseQuota(ctx context.Context, accountID string, newLimit int64) error
	AddAddonBytes(ctx context.Context, accountID string, deltaBytes int64) error
	SetAdminOverride(ctx context.Context, accountID string, override bool) error
	SetStatus(ctx context.Context, accountID string, status string) error
}
