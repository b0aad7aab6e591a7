package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"shuttervault/internal/domain"
)

// Базовый лимит нового аккаунта
const defaultBaseQuotaBytes = 5368709120 // 5GB

type AccountQuotaRepository struct {
	db *sqlx.DB
}

func NewAccountQuotaRepository(db *sqlx.DB) *AccountQuotaRepository {
	return &AccountQuotaRepository{db: db}
}

// GetQuota возвращает квоту аккаунта. Если квота не найдена, создаем
// новую с дефолтным лимитом: семантика первого входа.
func (r *AccountQuotaRepository) GetQuota(ctx context.Context, accountID string) (*domain.AccountQuota, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: empty account id", domain.ErrUnknownAccount)
	}

	var quota domain.AccountQuota

	err := r.db.GetContext(ctx, &quota,
		`SELECT * FROM account_quotas WHERE account_id = $1`,
		accountID)

	if err != nil {
		if err == sql.ErrNoRows {
			quota = domain.AccountQuota{
				AccountID:      accountID,
				BaseQuotaBytes: defaultBaseQuotaBytes,
				Status:         domain.QuotaStatusActive,
			}

			if err := r.Create(ctx, &quota); err != nil {
				return nil, fmt.Errorf("failed to create quota: %w", err)
			}
			return &quota, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return &quota, nil
}

func (r *AccountQuotaRepository) Create(ctx context.Context, quota *domain.AccountQuota) error {
	query := `
        INSERT INTO account_quotas (account_id, base_quota_bytes, addon_bytes, status, is_admin_override)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (account_id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		quota.AccountID,
		quota.BaseQuotaBytes,
		quota.AddonBytes,
		quota.Status,
		quota.IsAdminOverride,
	).Scan(&quota.ID, &quota.CreatedAt, &quota.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return nil
}

// UpdateBaseQuota задает базовый лимит аккаунта (админская операция)
func (r *AccountQuotaRepository) UpdateBaseQuota(ctx context.Context, accountID string, newLimit int64) error {
	query := `
        UPDATE account_quotas
        SET base_quota_bytes = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE account_id = $2`

	return r.execExpectingRow(ctx, accountID, query, newLimit, accountID)
}

// AddAddonBytes прибавляет докупленный пакет к квоте. Пакеты складываются,
// отрицательная дельта допустима при возврате средств биллингом.
func (r *AccountQuotaRepository) AddAddonBytes(ctx context.Context, accountID string, deltaBytes int64) error {
	query := `
        UPDATE account_quotas
        SET addon_bytes = GREATEST(0, addon_bytes + $1),
            updated_at = CURRENT_TIMESTAMP
        WHERE account_id = $2`

	return r.execExpectingRow(ctx, accountID, query, deltaBytes, accountID)
}

// SetAdminOverride включает или выключает обход квоты для аккаунта.
// Флаг хранится в данных, а не в коде.
func (r *AccountQuotaRepository) SetAdminOverride(ctx context.Context, accountID string, override bool) error {
	query := `
        UPDATE account_quotas
        SET is_admin_override = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE account_id = $2`

	return r.execExpectingRow(ctx, accountID, query, override, accountID)
}

// SetStatus переводит аккаунт между active и suspended
func (r *AccountQuotaRepository) SetStatus(ctx context.Context, accountID string, status string) error {
	if status != domain.QuotaStatusActive && status != domain.QuotaStatusSuspended {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidArgument, status)
	}

	query := `
        UPDATE account_quotas
        SET status = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE account_id = $2`

	return r.execExpectingRow(ctx, accountID, query, status, accountID)
}

func (r *AccountQuotaRepository) execExpectingRow(ctx context.Context, accountID string, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: %s", domain.ErrUnknownAccount, accountID)
	}

	return nil
}
