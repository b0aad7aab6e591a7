package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuttervault/internal/domain"
)

func newTransferFixture() (*TransferService, *fakeLedger, *fakeStorage) {
	ledger := newFakeLedger()
	storage := newFakeStorage()
	quota := NewQuotaService(newFakeQuotaStore(), ledger, nil)
	svc := NewTransferService(ledger, storage, quota, nil)
	return svc, ledger, storage
}

func TestUploadSmallUsesSinglePut(t *testing.T) {
	svc, _, storage := newTransferFixture()

	data := make([]byte, 1024)
	rec, err := svc.Upload(context.Background(), "acc-1", "sess-1", domain.FolderClassGallery, "small.jpg", "image/jpeg", data)
	require.NoError(t, err)

	assert.Equal(t, "acc-1/sess-1/gallery/small.jpg", rec.ObjectKey)
	assert.Equal(t, int64(1024), rec.SizeBytes)
	assert.True(t, storage.has(rec.ObjectKey))
	// Маленький объект не должен заводить multipart-сессию
	assert.Empty(t, storage.completed)
	assert.Empty(t, storage.aborted)
}

func TestUploadLargeUsesMultipart(t *testing.T) {
	svc, _, storage := newTransferFixture()

	// 40MB: выше порога одиночного PUT, четыре части по 10MB
	data := make([]byte, 40*1024*1024)
	rec, err := svc.Upload(context.Background(), "acc-1", "sess-1", domain.FolderClassRaw, "burst.CR3", "image/x-canon-cr3", data)
	require.NoError(t, err)

	assert.Equal(t, int64(len(data)), rec.SizeBytes)
	assert.Len(t, storage.completed, 1)
	assert.Empty(t, storage.aborted)

	info, err := storage.HeadObject(context.Background(), rec.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.SizeBytes)
}

func TestMultipartFailureAbortsAndLeavesNoObject(t *testing.T) {
	svc, ledger, storage := newTransferFixture()
	storage.failPartNumber = 3

	data := make([]byte, 40*1024*1024)
	_, err := svc.Upload(context.Background(), "acc-1", "sess-1", domain.FolderClassRaw, "burst.CR3", "image/x-canon-cr3", data)
	assert.ErrorIs(t, err, domain.ErrTransferFailed)

	// Сессия явно отменена, под итоговым ключом ничего не видно
	assert.Len(t, storage.aborted, 1)
	assert.Empty(t, storage.completed)
	assert.False(t, storage.has("acc-1/sess-1/raw/burst.CR3"))

	_, err = ledger.Get(context.Background(), "sess-1", domain.FolderClassRaw, "burst.CR3")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
}

func TestUploadCancelledContextAborts(t *testing.T) {
	svc, _, storage := newTransferFixture()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data := make([]byte, 40*1024*1024)
	_, err := svc.Upload(ctx, "acc-1", "sess-1", domain.FolderClassRaw, "burst.CR3", "image/x-canon-cr3", data)
	require.Error(t, err)
	assert.False(t, storage.has("acc-1/sess-1/raw/burst.CR3"))
}

func TestIdempotentReupload(t *testing.T) {
	svc, ledger, _ := newTransferFixture()

	first := make([]byte, 2048)
	_, err := svc.Upload(context.Background(), "acc-1", "sess-1", domain.FolderClassGallery, "shot.jpg", "image/jpeg", first)
	require.NoError(t, err)

	second := make([]byte, 512)
	_, err = svc.Upload(context.Background(), "acc-1", "sess-1", domain.FolderClassGallery, "shot.jpg", "image/jpeg", second)
	require.NoError(t, err)

	// Ровно одна запись, размер от второй загрузки
	recs, err := ledger.ListBySession(context.Background(), "sess-1", nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(512), recs[0].SizeBytes)
}

func TestUploadRejectsInvalidFolderClass(t *testing.T) {
	svc, _, _ := newTransferFixture()

	_, err := svc.Upload(context.Background(), "acc-1", "sess-1", domain.FolderClass("videos"), "clip.mp4", "video/mp4", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestUploadCleansObjectOnLedgerFailure(t *testing.T) {
	ledger := newFakeLedger()
	storage := newFakeStorage()
	quota := NewQuotaService(newFakeQuotaStore(), ledger, nil)
	svc := NewTransferService(&failingLedger{fakeLedger: ledger}, storage, quota, nil)

	_, err := svc.Upload(context.Background(), "acc-1", "sess-1", domain.FolderClassGallery, "shot.jpg", "image/jpeg", []byte("data"))
	require.Error(t, err)

	// Объект убран, сиротой он не остался
	assert.False(t, storage.has("acc-1/sess-1/gallery/shot.jpg"))
}

func TestRecordDirectUploadTrustsBackendSize(t *testing.T) {
	svc, ledger, storage := newTransferFixture()

	// Клиент загрузил сам по гранту, бэкенд знает настоящий размер
	storage.putRaw("acc-1/sess-1/gallery/direct.jpg", 7777, "image/jpeg")

	rec, err := svc.RecordDirectUpload(context.Background(), "acc-1", "sess-1", domain.FolderClassGallery, "direct.jpg", "", 1234)
	require.NoError(t, err)
	assert.Equal(t, int64(7777), rec.SizeBytes)
	assert.Equal(t, "image/jpeg", rec.ContentType)

	stored, err := ledger.Get(context.Background(), "sess-1", domain.FolderClassGallery, "direct.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(7777), stored.SizeBytes)
}

func TestRecordDirectUploadRequiresObject(t *testing.T) {
	svc, _, _ := newTransferFixture()

	_, err := svc.RecordDirectUpload(context.Background(), "acc-1", "sess-1", domain.FolderClassGallery, "ghost.jpg", "", 100)
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
}

func TestListArtifactsFiltersByClass(t *testing.T) {
	svc, _, _ := newTransferFixture()

	_, err := svc.Upload(context.Background(), "acc-1", "sess-1", domain.FolderClassGallery, "a.jpg", "image/jpeg", []byte("a"))
	require.NoError(t, err)
	_, err = svc.Upload(context.Background(), "acc-1", "sess-1", domain.FolderClassRaw, "a.CR3", "image/x-canon-cr3", []byte("aa"))
	require.NoError(t, err)

	class := domain.FolderClassRaw
	recs, err := svc.ListArtifacts(context.Background(), "acc-1", "sess-1", &class)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a.CR3", recs[0].Filename)

	recs, err = svc.ListArtifacts(context.Background(), "acc-1", "sess-1", nil)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestListArtifactsScopedToOwnAccount(t *testing.T) {
	svc, _, _ := newTransferFixture()

	_, err := svc.Upload(context.Background(), "acc-owner", "sess-1", domain.FolderClassGallery, "private.jpg", "image/jpeg", []byte("secret"))
	require.NoError(t, err)

	// Чужой аккаунт со знанием идентификатора сессии не видит ни одной записи
	recs, err := svc.ListArtifacts(context.Background(), "acc-intruder", "sess-1", nil)
	require.NoError(t, err)
	assert.Empty(t, recs)

	// Владелец свои записи видит
	recs, err = svc.ListArtifacts(context.Background(), "acc-owner", "sess-1", nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "private.jpg", recs[0].Filename)

	// Без аккаунта листинг не выполняется вовсе
	_, err = svc.ListArtifacts(context.Background(), "", "sess-1", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownAccount)
}

func TestPartSizingStaysWithinBackendLimit(t *testing.T) {
	// Для небольших объектов размер части фиксирован
	assert.Equal(t, int64(basePartSize), partSizeFor(40*1024*1024))

	// На верхней границе и вблизи нее количество частей не превышает лимит
	for _, totalSize := range []int64{
		100 * 1024 * 1024 * 1024,
		int64(1) * 1024 * 1024 * 1024 * 1024,
		maxObjectSize,
	} {
		partSize := partSizeFor(totalSize)
		partCount := (totalSize + partSize - 1) / partSize
		assert.LessOrEqual(t, partCount, int64(maxParts), "size %d", totalSize)
		// Лимит бэкенда на размер одной части
		assert.LessOrEqual(t, partSize, int64(5)*1024*1024*1024, "size %d", totalSize)
	}
}

// failingLedger отказывает на upsert, остальное делегирует фейку
type failingLedger struct {
	*fakeLedger
}

func (f *failingLedger) Upsert(ctx context.Context, rec *domain.ArtifactRecord) error {
	return domain.ErrStoreUnavailable
}
