package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"shuttervault/internal/domain"
	"shuttervault/internal/objectkey"
	"shuttervault/internal/service/s3"
)

// DeletionService координирует удаление. Шаги идут строго по порядку:
// объект, превью, строка реестра, контрольное чтение. Отказ шага не
// останавливает следующие: полуудаленный артефакт (объект снесен,
// строка реестра осталась) хуже удаленного с пропущенным превью,
// поэтому координатор выбирает максимальное продвижение вперед и
// честный пошаговый отчет вместо отката всё-или-ничего.
type DeletionService struct {
	ledger  ArtifactLedger
	storage s3.Storage
	quota   *QuotaService
	keys    objectkey.Builder
}

func NewDeletionService(ledger ArtifactLedger, storage s3.Storage, quota *QuotaService) *DeletionService {
	return &DeletionService{
		ledger:  ledger,
		storage: storage,
		quota:   quota,
	}
}

// DeleteArtifact удаляет артефакт со всеми следами: объект, превью,
// строка реестра. Ошибка возвращается только на невалидных аргументах;
// операционные сбои живут в отчете.
func (s *DeletionService) DeleteArtifact(ctx context.Context, accountID, sessionID string, class domain.FolderClass, filename string) (*domain.DeletionReport, error) {
	objectKey, err := s.keys.Object(accountID, sessionID, class, filename)
	if err != nil {
		return nil, err
	}
	previewKey, err := s.keys.Preview(accountID, sessionID, class, filename)
	if err != nil {
		return nil, err
	}

	report := &domain.DeletionReport{
		AccountID:   accountID,
		SessionID:   sessionID,
		FolderClass: class,
		Filename:    filename,
		Success:     true,
	}

	// Размер для отчета берем из реестра до того, как строка исчезнет
	rec, err := s.ledger.Get(ctx, sessionID, class, filename)
	switch {
	case err == nil:
		report.BytesReclaimed = rec.SizeBytes
	case errors.Is(err, domain.ErrArtifactNotFound):
		// Строки уже нет, размер добираем из HEAD ниже
	default:
		log.Printf("[Deletion] Не удалось прочитать строку реестра для %s: %v", objectKey, err)
	}

	// Шаг 1: основной объект
	s.deleteObjectStep(ctx, report, objectKey)

	// Шаг 2: производное превью. Отказ здесь не прерывает шаги 3-4
	if err := s.storage.DeleteObject(ctx, previewKey); err != nil {
		report.AddStep(domain.DeletionStepPreview, domain.StepOutcomeFailed, err.Error())
		report.Success = false
	} else {
		report.AddStep(domain.DeletionStepPreview, domain.StepOutcomeOK, "")
	}

	// Шаг 3: строка реестра
	ledgerDeleted := false
	if err := s.ledger.Delete(ctx, sessionID, class, filename); err != nil {
		if errors.Is(err, domain.ErrArtifactNotFound) {
			// Уже нет, намерение вызывающего выполнено
			report.AddStep(domain.DeletionStepLedger, domain.StepOutcomeOK, "ledger row already absent")
		} else {
			report.AddStep(domain.DeletionStepLedger, domain.StepOutcomeFailed, err.Error())
			report.Success = false
		}
	} else {
		report.AddStep(domain.DeletionStepLedger, domain.StepOutcomeOK, "")
		ledgerDeleted = true
	}

	// Шаг 4: контрольное чтение. Объект, который все еще отвечает на
	// HEAD после заявленного удаления, переворачивает отчет в провал.
	if _, err := s.storage.HeadObject(ctx, objectKey); err == nil {
		report.AddStep(domain.DeletionStepVerify, domain.StepOutcomeFailed, domain.ErrVerificationFailed.Error())
		report.Success = false
		log.Printf("[Deletion] Объект %s все еще присутствует после удаления", objectKey)
	} else if errors.Is(err, s3.ErrObjectNotFound) {
		report.AddStep(domain.DeletionStepVerify, domain.StepOutcomeOK, "")
	} else {
		report.AddStep(domain.DeletionStepVerify, domain.StepOutcomeFailed, fmt.Sprintf("verification inconclusive: %v", err))
		report.Success = false
	}

	if ledgerDeleted {
		s.quota.InvalidateUsage(ctx, accountID)
	}

	if !report.Success {
		log.Printf("[Deletion] Частичный провал удаления %s: %+v", objectKey, report.Steps)
	}

	return report, nil
}

// deleteObjectStep удаляет основной объект. Отсутствие объекта считается
// успехом (идемпотентное удаление), но в отчете оно помечено отдельно от
// настоящего удаления.
func (s *DeletionService) deleteObjectStep(ctx context.Context, report *domain.DeletionReport, objectKey string) {
	info, err := s.storage.HeadObject(ctx, objectKey)
	if err != nil {
		if errors.Is(err, s3.ErrObjectNotFound) {
			report.AddStep(domain.DeletionStepObject, domain.StepOutcomeOK, "object already absent")
			log.Printf("[Deletion] Объект %s уже отсутствует, считаем удаление успешным", objectKey)
			return
		}
		report.AddStep(domain.DeletionStepObject, domain.StepOutcomeFailed, err.Error())
		report.Success = false
		return
	}

	if report.BytesReclaimed == 0 {
		report.BytesReclaimed = info.SizeBytes
	}

	if err := s.storage.DeleteObject(ctx, objectKey); err != nil {
		report.AddStep(domain.DeletionStepObject, domain.StepOutcomeFailed, err.Error())
		report.Success = false
		return
	}

	report.AddStep(domain.DeletionStepObject, domain.StepOutcomeOK, "")
}

// DeleteMany прогоняет одиночный поток удаления независимо по каждому
// имени. Провал одного артефакта не блокирует остальные.
func (s *DeletionService) DeleteMany(ctx context.Context, accountID, sessionID string, class domain.FolderClass, filenames []string) (*domain.BatchDeletionSummary, error) {
	if len(filenames) == 0 {
		return nil, fmt.Errorf("%w: no filenames given", domain.ErrInvalidArgument)
	}

	summary := &domain.BatchDeletionSummary{Requested: len(filenames)}

	for _, filename := range filenames {
		report, err := s.DeleteArtifact(ctx, accountID, sessionID, class, filename)
		if err != nil {
			summary.Failed++
			summary.Reports = append(summary.Reports, &domain.DeletionReport{
				AccountID:   accountID,
				SessionID:   sessionID,
				FolderClass: class,
				Filename:    filename,
				Success:     false,
				Steps: []domain.DeletionStepResult{{
					Step:    domain.DeletionStepObject,
					Outcome: domain.StepOutcomeSkipped,
					Detail:  err.Error(),
				}},
			})
			continue
		}

		summary.Reports = append(summary.Reports, report)
		if report.Success {
			summary.Succeeded++
			summary.BytesReclaimed += report.BytesReclaimed
		} else {
			summary.Failed++
		}
	}

	return summary, nil
}
