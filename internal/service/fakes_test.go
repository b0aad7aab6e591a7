package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shuttervault/internal/domain"
	"shuttervault/internal/service/s3"
)

// fakeObject хранит только метаданные: тесты переноса оперируют
// размерами, держать сами байты незачем
type fakeObject struct {
	size         int64
	contentType  string
	lastModified time.Time
}

type fakeMultipart struct {
	key         string
	contentType string
	parts       map[int]int64
}

type fakeStorage struct {
	mu         sync.Mutex
	objects    map[string]fakeObject
	multiparts map[string]*fakeMultipart
	nextUpload int

	aborted   []string
	completed []string

	failPut        bool
	failPartNumber int
	failList       bool
	failPresign    bool
	// Удаление молча не удаляет: моделирует отстающий бэкенд
	deleteIsNoop   bool
	failDeleteKeys map[string]bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		objects:        make(map[string]fakeObject),
		multiparts:     make(map[string]*fakeMultipart),
		failDeleteKeys: make(map[string]bool),
	}
}

func (f *fakeStorage) putRaw(key string, size int64, contentType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = fakeObject{size: size, contentType: contentType, lastModified: time.Now()}
}

func (f *fakeStorage) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeStorage) PutObject(ctx context.Context, key string, contentType string, data []byte) error {
	if f.failPut {
		return fmt.Errorf("backend refused put")
	}
	f.putRaw(key, int64(len(data)), contentType)
	return nil
}

func (f *fakeStorage) GetObject(ctx context.Context, key string) (s3.S3Object, error) {
	f.mu.Lock()
	obj, ok := f.objects[key]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", s3.ErrObjectNotFound, key)
	}
	return &fakeS3Object{
		ReadCloser:  io.NopCloser(bytes.NewReader(make([]byte, 0))),
		size:        obj.size,
		contentType: obj.contentType,
	}, nil
}

func (f *fakeStorage) HeadObject(ctx context.Context, key string) (*s3.ObjectInfo, error) {
	f.mu.Lock()
	obj, ok := f.objects[key]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", s3.ErrObjectNotFound, key)
	}
	return &s3.ObjectInfo{
		Key:          key,
		SizeBytes:    obj.size,
		ContentType:  obj.contentType,
		LastModified: obj.lastModified,
	}, nil
}

func (f *fakeStorage) DeleteObject(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDeleteKeys[key] {
		return fmt.Errorf("backend refused delete of %s", key)
	}
	if f.deleteIsNoop {
		return nil
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) ListPrefix(ctx context.Context, prefix string) ([]s3.ObjectInfo, error) {
	if f.failList {
		return nil, fmt.Errorf("backend listing outage")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var infos []s3.ObjectInfo
	for key, obj := range f.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, s3.ObjectInfo{
				Key:          key,
				SizeBytes:    obj.size,
				LastModified: obj.lastModified,
			})
		}
	}
	return infos, nil
}

func (f *fakeStorage) CreateMultipartUpload(ctx context.Context, key string, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextUpload++
	uploadID := fmt.Sprintf("upload-%d", f.nextUpload)
	f.multiparts[uploadID] = &fakeMultipart{key: key, contentType: contentType, parts: make(map[int]int64)}
	return uploadID, nil
}

func (f *fakeStorage) UploadPart(ctx context.Context, uploadID string, key string, partNumber int, data []byte) (string, error) {
	if f.failPartNumber != 0 && partNumber == f.failPartNumber {
		return "", fmt.Errorf("part %d rejected", partNumber)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	mp, ok := f.multiparts[uploadID]
	if !ok {
		return "", fmt.Errorf("unknown upload %s", uploadID)
	}
	mp.parts[partNumber] = int64(len(data))
	return fmt.Sprintf("etag-%d", partNumber), nil
}

func (f *fakeStorage) CompleteMultipartUpload(ctx context.Context, uploadID string, key string, parts []s3.CompletedPart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	mp, ok := f.multiparts[uploadID]
	if !ok {
		return fmt.Errorf("unknown upload %s", uploadID)
	}
	var total int64
	for _, part := range parts {
		size, ok := mp.parts[part.PartNumber]
		if !ok {
			return fmt.Errorf("part %d missing", part.PartNumber)
		}
		total += size
	}
	f.objects[key] = fakeObject{size: total, contentType: mp.contentType, lastModified: time.Now()}
	f.completed = append(f.completed, uploadID)
	delete(f.multiparts, uploadID)
	return nil
}

func (f *fakeStorage) AbortMultipartUpload(ctx context.Context, uploadID string, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = append(f.aborted, uploadID)
	delete(f.multiparts, uploadID)
	return nil
}

func (f *fakeStorage) PresignPut(ctx context.Context, key string, contentType string, expires time.Duration) (string, time.Time, error) {
	if f.failPresign {
		return "", time.Time{}, fmt.Errorf("signing credentials rejected")
	}
	return "https://backend.test/put/" + key, time.Now().Add(expires), nil
}

func (f *fakeStorage) PresignGet(ctx context.Context, key string, expires time.Duration) (string, time.Time, error) {
	if f.failPresign {
		return "", time.Time{}, fmt.Errorf("signing credentials rejected")
	}
	return "https://backend.test/get/" + key, time.Now().Add(expires), nil
}

type fakeS3Object struct {
	io.ReadCloser
	size        int64
	contentType string
}

func (o *fakeS3Object) ContentLength() int64 { return o.size }
func (o *fakeS3Object) ContentType() string  { return o.contentType }

// fakeLedger держит реестр в памяти с той же семантикой upsert-on-conflict
type fakeLedger struct {
	mu     sync.Mutex
	rows   map[string]*domain.ArtifactRecord
	nextID int64
	sumErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: make(map[string]*domain.ArtifactRecord)}
}

func ledgerKey(sessionID string, class domain.FolderClass, filename string) string {
	return sessionID + "|" + string(class) + "|" + filename
}

func (f *fakeLedger) Upsert(ctx context.Context, rec *domain.ArtifactRecord) error {
	if rec.AccountID == "" || rec.SessionID == "" || rec.Filename == "" || !rec.FolderClass.Valid() {
		return fmt.Errorf("%w: missing required fields", domain.ErrInvalidRecord)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	key := ledgerKey(rec.SessionID, rec.FolderClass, rec.Filename)
	if existing, ok := f.rows[key]; ok {
		existing.ObjectKey = rec.ObjectKey
		existing.ContentType = rec.ContentType
		existing.SizeBytes = rec.SizeBytes
		existing.UploadedAt = time.Now()
		*rec = *existing
		return nil
	}

	f.nextID++
	rec.ID = f.nextID
	if rec.UUID == uuid.Nil {
		rec.UUID = uuid.New()
	}
	rec.UploadedAt = time.Now()
	stored := *rec
	f.rows[key] = &stored
	return nil
}

func (f *fakeLedger) Get(ctx context.Context, sessionID string, class domain.FolderClass, filename string) (*domain.ArtifactRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.rows[ledgerKey(sessionID, class, filename)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s/%s", domain.ErrArtifactNotFound, sessionID, class, filename)
	}
	copied := *rec
	return &copied, nil
}

func (f *fakeLedger) ListBySession(ctx context.Context, sessionID string, class *domain.FolderClass) ([]domain.ArtifactRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var recs []domain.ArtifactRecord
	for _, rec := range f.rows {
		if rec.SessionID != sessionID {
			continue
		}
		if class != nil && rec.FolderClass != *class {
			continue
		}
		recs = append(recs, *rec)
	}
	return recs, nil
}

func (f *fakeLedger) ListByAccountSession(ctx context.Context, accountID, sessionID string) ([]domain.ArtifactRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var recs []domain.ArtifactRecord
	for _, rec := range f.rows {
		if rec.AccountID == accountID && rec.SessionID == sessionID {
			recs = append(recs, *rec)
		}
	}
	return recs, nil
}

func (f *fakeLedger) Delete(ctx context.Context, sessionID string, class domain.FolderClass, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ledgerKey(sessionID, class, filename)
	if _, ok := f.rows[key]; !ok {
		return fmt.Errorf("%w: %s/%s/%s", domain.ErrArtifactNotFound, sessionID, class, filename)
	}
	delete(f.rows, key)
	return nil
}

func (f *fakeLedger) SumByAccount(ctx context.Context, accountID string) (int64, int64, error) {
	if f.sumErr != nil {
		return 0, 0, f.sumErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var totalBytes, totalFiles int64
	for _, rec := range f.rows {
		if rec.AccountID == accountID {
			totalBytes += rec.SizeBytes
			totalFiles++
		}
	}
	return totalBytes, totalFiles, nil
}

// fakeQuotaStore хранит квоты в памяти с созданием по первому обращению
type fakeQuotaStore struct {
	mu     sync.Mutex
	quotas map[string]*domain.AccountQuota
	getErr error
}

func newFakeQuotaStore() *fakeQuotaStore {
	return &fakeQuotaStore{quotas: make(map[string]*domain.AccountQuota)}
}

func (f *fakeQuotaStore) setQuota(q *domain.AccountQuota) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotas[q.AccountID] = q
}

func (f *fakeQuotaStore) GetQuota(ctx context.Context, accountID string) (*domain.AccountQuota, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if q, ok := f.quotas[accountID]; ok {
		copied := *q
		return &copied, nil
	}
	q := &domain.AccountQuota{
		AccountID:      accountID,
		BaseQuotaBytes: 5368709120,
		Status:         domain.QuotaStatusActive,
	}
	f.quotas[accountID] = q
	copied := *q
	return &copied, nil
}

func (f *fakeQuotaStore) UpdateBaseQuota(ctx context.Context, accountID string, newLimit int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotas[accountID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownAccount, accountID)
	}
	q.BaseQuotaBytes = newLimit
	return nil
}

func (f *fakeQuotaStore) AddAddonBytes(ctx context.Context, accountID string, deltaBytes int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotas[accountID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownAccount, accountID)
	}
	q.AddonBytes += deltaBytes
	if q.AddonBytes < 0 {
		q.AddonBytes = 0
	}
	return nil
}

func (f *fakeQuotaStore) SetAdminOverride(ctx context.Context, accountID string, override bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotas[accountID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownAccount, accountID)
	}
	q.IsAdminOverride = override
	return nil
}

func (f *fakeQuotaStore) SetStatus(ctx context.Context, accountID string, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotas[accountID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownAccount, accountID)
	}
	q.Status = status
	return nil
}
