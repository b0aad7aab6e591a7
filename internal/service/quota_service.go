package service

import (
	"context"
	"fmt"
	"log"

	"shuttervault/internal/domain"
	"shuttervault/internal/service/usagecache"
)

// Порог предупреждения о близости к лимиту
const nearLimitPercent = 90

// QuotaService проверяет допуск загрузок по квоте аккаунта. Проверка
// совещательная: она выполняется до начала трансфера и не держит
// никакой блокировки на время трансфера. Две конкурентные загрузки
// одного аккаунта могут вместе превысить лимит; это принятый размен
// пропускной способности на строгость, бэкстопом служит биллинг.
type QuotaService struct {
	quotaRepo QuotaStore
	ledger    ArtifactLedger
	cache     *usagecache.Cache
}

func NewQuotaService(quotaRepo QuotaStore, ledger ArtifactLedger, cache *usagecache.Cache) *QuotaService {
	return &QuotaService{
		quotaRepo: quotaRepo,
		ledger:    ledger,
		cache:     cache,
	}
}

// CanUpload решает, пускать ли загрузку кандидатного размера.
// При любой неопределенности (недоступен реестр, недоступна квота)
// отказываем: допуск закрыт по умолчанию.
func (s *QuotaService) CanUpload(ctx context.Context, accountID string, candidateSize int64) (*domain.AdmissionDecision, error) {
	denied := &domain.AdmissionDecision{Allowed: false}

	if accountID == "" {
		return denied, fmt.Errorf("%w: empty account id", domain.ErrUnknownAccount)
	}
	if candidateSize < 0 {
		return denied, fmt.Errorf("%w: negative candidate size", domain.ErrInvalidArgument)
	}

	quota, err := s.quotaRepo.GetQuota(ctx, accountID)
	if err != nil {
		return denied, fmt.Errorf("failed to get quota: %w", err)
	}

	usage, err := s.usage(ctx, accountID)
	if err != nil {
		// Отказываем, а не пускаем вслепую
		return denied, fmt.Errorf("failed to compute usage: %w", err)
	}

	total := quota.TotalQuotaBytes()
	remaining := total - usage.TotalBytes
	if remaining < 0 {
		remaining = 0
	}

	decision := &domain.AdmissionDecision{
		CurrentUsageBytes: usage.TotalBytes,
		QuotaBytes:        total,
		RemainingBytes:    remaining,
	}

	// Админский обход: политика, а не баг. Флаг хранится на аккаунте.
	if quota.IsAdminOverride {
		decision.Allowed = true
		return decision, nil
	}

	if quota.Status == domain.QuotaStatusSuspended {
		return decision, fmt.Errorf("%w: %s", domain.ErrAccountSuspended, accountID)
	}

	projected := usage.TotalBytes + candidateSize
	decision.Allowed = projected <= total
	if total > 0 {
		decision.NearLimit = projected*100 >= total*nearLimitPercent
	}

	return decision, nil
}

// GetUsage возвращает сводку использования: из кэша, если он свежий,
// иначе суммой по реестру. Сумма по реестру всегда авторитетна.
func (s *QuotaService) GetUsage(ctx context.Context, accountID string) (*domain.UsageSnapshot, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: empty account id", domain.ErrUnknownAccount)
	}
	return s.usage(ctx, accountID)
}

func (s *QuotaService) usage(ctx context.Context, accountID string) (*domain.UsageSnapshot, error) {
	if snap, ok := s.cache.Get(ctx, accountID); ok {
		return snap, nil
	}

	totalBytes, totalFiles, err := s.ledger.SumByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger: %w", err)
	}

	snap := &domain.UsageSnapshot{
		AccountID:  accountID,
		TotalBytes: totalBytes,
		TotalFiles: totalFiles,
	}
	s.cache.Set(ctx, snap)

	return snap, nil
}

// InvalidateUsage сбрасывает кэш после мутации реестра
func (s *QuotaService) InvalidateUsage(ctx context.Context, accountID string) {
	s.cache.Invalidate(ctx, accountID)
}

// GetQuotaInfo возвращает цифры квоты для UI
func (s *QuotaService) GetQuotaInfo(ctx context.Context, accountID string) (*domain.QuotaInfo, error) {
	quota, err := s.quotaRepo.GetQuota(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}

	usage, err := s.usage(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute usage: %w", err)
	}

	total := quota.TotalQuotaBytes()
	available := total - usage.TotalBytes
	if available < 0 {
		available = 0
	}

	var usagePercent float64
	if total > 0 {
		usagePercent = float64(usage.TotalBytes) / float64(total) * 100
	}

	return &domain.QuotaInfo{
		TotalSpace:     total,
		UsedSpace:      usage.TotalBytes,
		AvailableSpace: available,
		UsagePercent:   usagePercent,
	}, nil
}

// UpdateQuotaLimit задает базовый лимит аккаунта (админская операция)
func (s *QuotaService) UpdateQuotaLimit(ctx context.Context, accountID string, newLimit int64) error {
	if newLimit < 0 {
		return fmt.Errorf("%w: new quota limit cannot be negative", domain.ErrInvalidArgument)
	}
	return s.quotaRepo.UpdateBaseQuota(ctx, accountID, newLimit)
}

// AddPurchasedBytes стыкует докупленный биллингом пакет к квоте
func (s *QuotaService) AddPurchasedBytes(ctx context.Context, accountID string, deltaBytes int64) error {
	log.Printf("[QuotaService] Биллинг изменяет пакеты аккаунта %s на %d байт", accountID, deltaBytes)
	return s.quotaRepo.AddAddonBytes(ctx, accountID, deltaBytes)
}

// SetAdminOverride переключает обход квоты для аккаунта
func (s *QuotaService) SetAdminOverride(ctx context.Context, accountID string, override bool) error {
	log.Printf("[QuotaService] Админский обход квоты для %s: %v", accountID, override)
	return s.quotaRepo.SetAdminOverride(ctx, accountID, override)
}

// SetAccountStatus переводит аккаунт между active и suspended
func (s *QuotaService) SetAccountStatus(ctx context.Context, accountID string, status string) error {
	return s.quotaRepo.SetStatus(ctx, accountID, status)
}
