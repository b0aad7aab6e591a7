package handler

import (
	"encoding/json"
	"net/http"

	"shuttervault/internal/auth"
	"shuttervault/internal/service"
)

type QuotaHandler struct {
	quotaService *service.QuotaService
}

func NewQuotaHandler(quotaService *service.QuotaService) *QuotaHandler {
	return &QuotaHandler{
		quotaService: quotaService,
	}
}

// GetUsage возвращает сводку использования аккаунта
func (h *QuotaHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	usage, err := h.quotaService.GetUsage(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, usage)
}

// GetQuotaInfo возвращает цифры квоты для UI
func (h *QuotaHandler) GetQuotaInfo(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	info, err := h.quotaService.GetQuotaInfo(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// Эндпоинт для админа для изменения базовой квоты аккаунта
func (h *QuotaHandler) UpdateQuotaLimit(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.VerifyToken(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		AccountID string `json:"account_id"`
		NewLimit  int64  `json:"new_limit"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.quotaService.UpdateQuotaLimit(r.Context(), req.AccountID, req.NewLimit); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// AddPurchasedBytes стыкует докупленный биллингом пакет к квоте
func (h *QuotaHandler) AddPurchasedBytes(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.VerifyToken(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		AccountID  string `json:"account_id"`
		DeltaBytes int64  `json:"delta_bytes"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.quotaService.AddPurchasedBytes(r.Context(), req.AccountID, req.DeltaBytes); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// SetAdminOverride переключает обход квоты для аккаунта
func (h *QuotaHandler) SetAdminOverride(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.VerifyToken(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		AccountID string `json:"account_id"`
		Override  bool   `json:"override"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.quotaService.SetAdminOverride(r.Context(), req.AccountID, req.Override); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// SetAccountStatus переводит аккаунт между active и suspended
func (h *QuotaHandler) SetAccountStatus(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.VerifyToken(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		AccountID string `json:"account_id"`
		Status    string `json:"status"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.quotaService.SetAccountStatus(r.Context(), req.AccountID, req.Status); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
