package domain

// Шаги координатора удаления в порядке выполнения
const (
	DeletionStepObject  = "object-delete"
	DeletionStepPreview = "preview-delete"
	DeletionStepLedger  = "ledger-delete"
	DeletionStepVerify  = "verify"
)

const (
	StepOutcomeOK      = "ok"
	StepOutcomeSkipped = "skipped"
	StepOutcomeFailed  = "failed"
)

// DeletionStepResult фиксирует исход одного шага удаления
type DeletionStepResult struct {
	Step    string `json:"step"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

// DeletionReport собирает пошаговый отчет об удалении артефакта. Не сохраняется,
// возвращается вызывающему и пишется в лог.
type DeletionReport struct {
	AccountID      string               `json:"account_id"`
	SessionID      string               `json:"session_id"`
	FolderClass    FolderClass          `json:"folder_class"`
	Filename       string               `json:"filename"`
	Steps          []DeletionStepResult `json:"steps"`
	Success        bool                 `json:"success"`
	BytesReclaimed int64                `json:"bytes_reclaimed"`
}

// AddStep добавляет исход шага в отчет
func (r *DeletionReport) AddStep(step, outcome, detail string) {
	r.Steps = append(r.Steps, DeletionStepResult{Step: step, Outcome: outcome, Detail: detail})
}

// BatchDeletionSummary сводит пакетное удаление воедино: отказ одного
// артефакта не блокирует остальные
type BatchDeletionSummary struct {
	Requested      int               `json:"requested"`
	Succeeded      int               `json:"succeeded"`
	Failed         int               `json:"failed"`
	BytesReclaimed int64             `json:"bytes_reclaimed"`
	Reports        []*DeletionReport `json:"reports"`
}
