package domain

import "time"

const (
	QuotaStatusActive    = "active"
	QuotaStatusSuspended = "suspended"
)

// AccountQuota описывает квоту хранения одного аккаунта. Создается при
// первом обращении, мутируется биллингом и админскими операциями,
// никогда не удаляется, только деактивируется.
type AccountQuota struct {
	ID              int64     `json:"id" db:"id"`
	AccountID       string    `json:"account_id" db:"account_id"`
	BaseQuotaBytes  int64     `json:"base_quota_bytes" db:"base_quota_bytes"`
	AddonBytes      int64     `json:"addon_bytes" db:"addon_bytes"`
	Status          string    `json:"status" db:"status"`
	IsAdminOverride bool      `json:"is_admin_override" db:"is_admin_override"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// TotalQuotaBytes возвращает полный лимит: базовый план плюс докупленные пакеты
func (q *AccountQuota) TotalQuotaBytes() int64 {
	return q.BaseQuotaBytes + q.AddonBytes
}

// AdmissionDecision фиксирует результат проверки перед загрузкой. Содержит цифры,
// достаточные для того, чтобы вышестоящий UI объяснил отказ.
type AdmissionDecision struct {
	Allowed           bool  `json:"allowed"`
	CurrentUsageBytes int64 `json:"current_usage_bytes"`
	QuotaBytes        int64 `json:"quota_bytes"`
	RemainingBytes    int64 `json:"remaining_bytes"`
	NearLimit         bool  `json:"near_limit"`
}

type QuotaInfo struct {
	TotalSpace     int64   `json:"total_space"`
	UsedSpace      int64   `json:"used_space"`
	AvailableSpace int64   `json:"available_space"`
	UsagePercent   float64 `json:"usage_percent"`
}
