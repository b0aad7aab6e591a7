package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"shuttervault/internal/auth"
	"shuttervault/internal/domain"
	"shuttervault/internal/preview"
	"shuttervault/internal/service"
)

// Предел памяти на разбор multipart-формы при серверной загрузке
const uploadFormMemory = 64 * 1024 * 1024

type ArtifactHandler struct {
	transferService *service.TransferService
	grantService    *service.GrantService
	quotaService    *service.QuotaService
	deletionService *service.DeletionService
	rebuildService  *service.RebuildService
	previewService  *preview.Service
}

func NewArtifactHandler(
	transferService *service.TransferService,
	grantService *service.GrantService,
	quotaService *service.QuotaService,
	deletionService *service.DeletionService,
	rebuildService *service.RebuildService,
	previewService *preview.Service,
) *ArtifactHandler {
	return &ArtifactHandler{
		transferService: transferService,
		grantService:    grantService,
		quotaService:    quotaService,
		deletionService: deletionService,
		rebuildService:  rebuildService,
		previewService:  previewService,
	}
}

type grantRequest struct {
	SessionID   string `json:"session_id"`
	FolderClass string `json:"folder_class"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type quotaExceededResponse struct {
	Error    string                    `json:"error"`
	Decision *domain.AdmissionDecision `json:"decision"`
}

// RequestUploadGrant проверяет квоту и выдает подписанный URL.
// Проверка и загрузка не атомарны: это документированное окно.
func (h *ArtifactHandler) RequestUploadGrant(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	decision, err := h.quotaService.CanUpload(r.Context(), accountID, req.Size)
	if err != nil {
		writeError(w, err)
		return
	}
	if !decision.Allowed {
		writeJSON(w, http.StatusInsufficientStorage, quotaExceededResponse{
			Error:    domain.ErrQuotaExceeded.Error(),
			Decision: decision,
		})
		return
	}

	grant, err := h.grantService.IssueUploadGrant(
		r.Context(),
		accountID,
		req.SessionID,
		domain.FolderClass(req.FolderClass),
		req.Filename,
		req.ContentType,
		req.Size,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, grant)
}

type completeUploadRequest struct {
	SessionID   string `json:"session_id"`
	FolderClass string `json:"folder_class"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// CompleteUpload фиксирует прямую загрузку клиента в реестре
func (h *ArtifactHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req completeUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.transferService.RecordDirectUpload(
		r.Context(),
		accountID,
		req.SessionID,
		domain.FolderClass(req.FolderClass),
		req.Filename,
		req.ContentType,
		req.Size,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// UploadArtifact принимает байты через сервер и переносит их движком
func (h *ArtifactHandler) UploadArtifact(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(uploadFormMemory); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}

	decision, err := h.quotaService.CanUpload(r.Context(), accountID, int64(len(data)))
	if err != nil {
		writeError(w, err)
		return
	}
	if !decision.Allowed {
		writeJSON(w, http.StatusInsufficientStorage, quotaExceededResponse{
			Error:    domain.ErrQuotaExceeded.Error(),
			Decision: decision,
		})
		return
	}

	rec, err := h.transferService.Upload(
		r.Context(),
		accountID,
		r.FormValue("session_id"),
		domain.FolderClass(r.FormValue("folder_class")),
		header.Filename,
		header.Header.Get("Content-Type"),
		data,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// ListArtifacts возвращает записи реестра сессии в границах аккаунта
func (h *ArtifactHandler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID := r.URL.Query().Get("session_id")

	var class *domain.FolderClass
	if raw := r.URL.Query().Get("folder_class"); raw != "" {
		fc := domain.FolderClass(raw)
		class = &fc
	}

	recs, err := h.transferService.ListArtifacts(r.Context(), accountID, sessionID, class)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, recs)
}

// RequestDownloadGrant выдает подписанный URL на скачивание
func (h *ArtifactHandler) RequestDownloadGrant(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	grant, err := h.grantService.IssueDownloadGrant(
		r.Context(),
		accountID,
		q.Get("session_id"),
		domain.FolderClass(q.Get("folder_class")),
		q.Get("filename"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, grant)
}

// GetPreview отдает превью артефакта-изображения
func (h *ArtifactHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	data, err := h.previewService.GetPreview(
		r.Context(),
		accountID,
		q.Get("session_id"),
		domain.FolderClass(q.Get("folder_class")),
		q.Get("filename"),
	)
	if err != nil {
		http.Error(w, "Preview not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

type deleteRequest struct {
	SessionID   string `json:"session_id"`
	FolderClass string `json:"folder_class"`
	Filename    string `json:"filename"`
}

// DeleteArtifact удаляет один артефакт и возвращает пошаговый отчет
func (h *ArtifactHandler) DeleteArtifact(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	report, err := h.deletionService.DeleteArtifact(
		r.Context(),
		accountID,
		req.SessionID,
		domain.FolderClass(req.FolderClass),
		req.Filename,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

type deleteManyRequest struct {
	SessionID   string   `json:"session_id"`
	FolderClass string   `json:"folder_class"`
	Filenames   []string `json:"filenames"`
}

// DeleteMany удаляет набор артефактов, по одному независимо
func (h *ArtifactHandler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req deleteManyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	summary, err := h.deletionService.DeleteMany(
		r.Context(),
		accountID,
		req.SessionID,
		domain.FolderClass(req.FolderClass),
		req.Filenames,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

type rebuildRequest struct {
	SessionID string `json:"session_id"`
}

// Rebuild запускает сверку реестра с листингом хранилища
func (h *ArtifactHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req rebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.rebuildService.Rebuild(r.Context(), accountID, req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
