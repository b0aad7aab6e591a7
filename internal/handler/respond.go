package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"shuttervault/internal/domain"
)

// writeJSON сериализует ответ хендлера
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError сопоставляет ошибку таксономии с HTTP-статусом
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidRecord):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrUnknownAccount) || errors.Is(err, domain.ErrArtifactNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrAccountSuspended):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrPayloadTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, domain.ErrQuotaExceeded):
		http.Error(w, err.Error(), http.StatusInsufficientStorage)
	case errors.Is(err, domain.ErrBackendUnavailable) ||
		errors.Is(err, domain.ErrStoreUnavailable) ||
		errors.Is(err, domain.ErrTransferFailed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
