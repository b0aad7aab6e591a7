package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"shuttervault/internal/domain"
)

// ArtifactRepository хранит реестр артефактов, источник истины для
// "что существует и сколько весит"
type ArtifactRepository struct {
	db *sqlx.DB
}

func NewArtifactRepository(db *sqlx.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// Upsert вставляет запись или заменяет существующую по кортежу
// (session_id, folder_class, filename). Повторная загрузка обновляет
// размер и время, последняя запись выигрывает.
func (r *ArtifactRepository) Upsert(ctx context.Context, rec *domain.ArtifactRecord) error {
	if rec == nil || rec.AccountID == "" || rec.SessionID == "" || rec.Filename == "" || rec.ObjectKey == "" {
		return fmt.Errorf("%w: missing required fields", domain.ErrInvalidRecord)
	}
	if !rec.FolderClass.Valid() {
		return fmt.Errorf("%w: folder class %q", domain.ErrInvalidRecord, rec.FolderClass)
	}
	if rec.SizeBytes < 0 {
		return fmt.Errorf("%w: negative size", domain.ErrInvalidRecord)
	}

	if rec.UUID == uuid.Nil {
		rec.UUID = uuid.New()
	}

	query := `
        INSERT INTO artifacts (uuid, account_id, session_id, folder_class, filename, object_key, content_type, size_bytes)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (session_id, folder_class, filename) DO UPDATE
        SET object_key   = EXCLUDED.object_key,
            content_type = EXCLUDED.content_type,
            size_bytes   = EXCLUDED.size_bytes,
            uploaded_at  = CURRENT_TIMESTAMP
        RETURNING id, uuid, uploaded_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		rec.UUID,
		rec.AccountID,
		rec.SessionID,
		rec.FolderClass,
		rec.Filename,
		rec.ObjectKey,
		rec.ContentType,
		rec.SizeBytes,
	).Scan(&rec.ID, &rec.UUID, &rec.UploadedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return nil
}

func (r *ArtifactRepository) Get(ctx context.Context, sessionID string, class domain.FolderClass, filename string) (*domain.ArtifactRecord, error) {
	var rec domain.ArtifactRecord
	query := `SELECT * FROM artifacts WHERE session_id = $1 AND folder_class = $2 AND filename = $3`

	err := r.db.GetContext(ctx, &rec, query, sessionID, class, filename)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s/%s/%s", domain.ErrArtifactNotFound, sessionID, class, filename)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return &rec, nil
}

// ListBySession возвращает артефакты сессии, при необходимости
// отфильтрованные по классу папки
func (r *ArtifactRepository) ListBySession(ctx context.Context, sessionID string, class *domain.FolderClass) ([]domain.ArtifactRecord, error) {
	var recs []domain.ArtifactRecord
	var err error

	if class != nil {
		query := `SELECT * FROM artifacts WHERE session_id = $1 AND folder_class = $2 ORDER BY filename`
		err = r.db.SelectContext(ctx, &recs, query, sessionID, *class)
	} else {
		query := `SELECT * FROM artifacts WHERE session_id = $1 ORDER BY folder_class, filename`
		err = r.db.SelectContext(ctx, &recs, query, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return recs, nil
}

// ListByAccountSession используется сверкой: выбирает записи строго в
// границах аккаунта, чтобы чужие сессии не задевались
func (r *ArtifactRepository) ListByAccountSession(ctx context.Context, accountID, sessionID string) ([]domain.ArtifactRecord, error) {
	var recs []domain.ArtifactRecord
	query := `SELECT * FROM artifacts WHERE account_id = $1 AND session_id = $2 ORDER BY object_key`

	if err := r.db.SelectContext(ctx, &recs, query, accountID, sessionID); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return recs, nil
}

func (r *ArtifactRepository) Delete(ctx context.Context, sessionID string, class domain.FolderClass, filename string) error {
	query := `DELETE FROM artifacts WHERE session_id = $1 AND folder_class = $2 AND filename = $3`

	result, err := r.db.ExecContext(ctx, query, sessionID, class, filename)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: %s/%s/%s", domain.ErrArtifactNotFound, sessionID, class, filename)
	}

	return nil
}

// SumByAccount считает использованное место по записям реестра.
// Это всегда авторитетная цифра, кэш поверх нее только совещательный.
func (r *ArtifactRepository) SumByAccount(ctx context.Context, accountID string) (totalBytes int64, totalFiles int64, err error) {
	query := `SELECT COALESCE(SUM(size_bytes), 0), COUNT(*) FROM artifacts WHERE account_id = $1`

	if err := r.db.QueryRowContext(ctx, query, accountID).Scan(&totalBytes, &totalFiles); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return totalBytes, totalFiles, nil
}
