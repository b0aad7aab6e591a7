package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuttervault/internal/domain"
)

func newDeletionFixture() (*DeletionService, *fakeLedger, *fakeStorage) {
	ledger := newFakeLedger()
	storage := newFakeStorage()
	quota := NewQuotaService(newFakeQuotaStore(), ledger, nil)
	svc := NewDeletionService(ledger, storage, quota)
	return svc, ledger, storage
}

func seedArtifact(t *testing.T, ledger *fakeLedger, storage *fakeStorage, sizeBytes int64) {
	t.Helper()
	storage.putRaw("acc-1/sess-1/gallery/shot.jpg", sizeBytes, "image/jpeg")
	storage.putRaw("previews/acc-1/sess-1/gallery/shot.jpg", 100, "image/jpeg")
	require.NoError(t, ledger.Upsert(context.Background(), &domain.ArtifactRecord{
		AccountID:   "acc-1",
		SessionID:   "sess-1",
		FolderClass: domain.FolderClassGallery,
		Filename:    "shot.jpg",
		ObjectKey:   "acc-1/sess-1/gallery/shot.jpg",
		SizeBytes:   sizeBytes,
	}))
}

func stepOutcome(report *domain.DeletionReport, step string) (string, string) {
	for _, s := range report.Steps {
		if s.Step == step {
			return s.Outcome, s.Detail
		}
	}
	return "", ""
}

func TestDeleteArtifactRemovesEveryTrace(t *testing.T) {
	svc, ledger, storage := newDeletionFixture()
	seedArtifact(t, ledger, storage, 5000)

	report, err := svc.DeleteArtifact(context.Background(), "acc-1", "sess-1", domain.FolderClassGallery, "shot.jpg")
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, int64(5000), report.BytesReclaimed)
	assert.Len(t, report.Steps, 4)

	for _, step := range []string{domain.DeletionStepObject, domain.DeletionStepPreview, domain.DeletionStepLedger, domain.DeletionStepVerify} {
		outcome, _ := stepOutcome(report, step)
		assert.Equal(t, domain.StepOutcomeOK, outcome, "step %s", step)
	}

	assert.False(t, storage.has("acc-1/sess-1/gallery/shot.jpg"))
	assert.False(t, storage.has("previews/acc-1/sess-1/gallery/shot.jpg"))

	_, err = ledger.Get(context.Background(), "sess-1", domain.FolderClassGallery, "shot.jpg")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
}

func TestDeleteArtifactIdempotent(t *testing.T) {
	svc, ledger, storage := newDeletionFixture()
	seedArtifact(t, ledger, storage, 5000)

	first, err := svc.DeleteArtifact(context.Background(), "acc-1", "sess-1", domain.FolderClassGallery, "shot.jpg")
	require.NoError(t, err)
	require.True(t, first.Success)

	// Повторное удаление: уже отсутствующий объект считается успехом
	second, err := svc.DeleteArtifact(context.Background(), "acc-1", "sess-1", domain.FolderClassGallery, "shot.jpg")
	require.NoError(t, err)
	assert.True(t, second.Success)

	outcome, detail := stepOutcome(second, domain.DeletionStepObject)
	assert.Equal(t, domain.StepOutcomeOK, outcome)
	assert.Equal(t, "object already absent", detail)

	assert.Equal(t, int64(0), second.BytesReclaimed)
}

func TestDeleteArtifactVerificationFailure(t *testing.T) {
	svc, ledger, storage := newDeletionFixture()
	seedArtifact(t, ledger, storage, 5000)
	// Бэкенд подтверждает удаление, но объект продолжает отвечать
	storage.deleteIsNoop = true

	report, err := svc.DeleteArtifact(context.Background(), "acc-1", "sess-1", domain.FolderClassGallery, "shot.jpg")
	require.NoError(t, err)

	assert.False(t, report.Success)
	outcome, detail := stepOutcome(report, domain.DeletionStepVerify)
	assert.Equal(t, domain.StepOutcomeFailed, outcome)
	assert.Equal(t, domain.ErrVerificationFailed.Error(), detail)
}

func TestDeletePreviewFailureDoesNotAbortLaterSteps(t *testing.T) {
	svc, ledger, storage := newDeletionFixture()
	seedArtifact(t, ledger, storage, 5000)
	storage.failDeleteKeys["previews/acc-1/sess-1/gallery/shot.jpg"] = true

	report, err := svc.DeleteArtifact(context.Background(), "acc-1", "sess-1", domain.FolderClassGallery, "shot.jpg")
	require.NoError(t, err)

	// Частичный провал: превью не снесли, но реестр и объект дочищены
	assert.False(t, report.Success)

	outcome, _ := stepOutcome(report, domain.DeletionStepPreview)
	assert.Equal(t, domain.StepOutcomeFailed, outcome)

	outcome, _ = stepOutcome(report, domain.DeletionStepLedger)
	assert.Equal(t, domain.StepOutcomeOK, outcome)

	outcome, _ = stepOutcome(report, domain.DeletionStepVerify)
	assert.Equal(t, domain.StepOutcomeOK, outcome)

	_, err = ledger.Get(context.Background(), "sess-1", domain.FolderClassGallery, "shot.jpg")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
}

func TestDeleteArtifactRejectsBadTuple(t *testing.T) {
	svc, _, _ := newDeletionFixture()

	_, err := svc.DeleteArtifact(context.Background(), "acc-1", "sess-1", domain.FolderClass("videos"), "clip.mp4")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestDeleteManyIndependentFailures(t *testing.T) {
	svc, ledger, storage := newDeletionFixture()

	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		key := "acc-1/sess-1/gallery/" + name
		storage.putRaw(key, 100, "image/jpeg")
		require.NoError(t, ledger.Upsert(context.Background(), &domain.ArtifactRecord{
			AccountID:   "acc-1",
			SessionID:   "sess-1",
			FolderClass: domain.FolderClassGallery,
			Filename:    name,
			ObjectKey:   key,
			SizeBytes:   100,
		}))
	}
	storage.failDeleteKeys["acc-1/sess-1/gallery/b.jpg"] = true

	summary, err := svc.DeleteMany(context.Background(), "acc-1", "sess-1", domain.FolderClassGallery, []string{"a.jpg", "b.jpg", "c.jpg"})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Requested)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, int64(200), summary.BytesReclaimed)

	// Провал b.jpg не помешал убрать соседей
	assert.False(t, storage.has("acc-1/sess-1/gallery/a.jpg"))
	assert.True(t, storage.has("acc-1/sess-1/gallery/b.jpg"))
	assert.False(t, storage.has("acc-1/sess-1/gallery/c.jpg"))
}

func TestDeleteManyRequiresFilenames(t *testing.T) {
	svc, _, _ := newDeletionFixture()

	_, err := svc.DeleteMany(context.Background(), "acc-1", "sess-1", domain.FolderClassGallery, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
