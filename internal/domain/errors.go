package domain

import "errors"

// Таксономия ошибок подсистемы хранения. Хендлеры сопоставляют их с
// HTTP-статусами через errors.Is.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidRecord      = errors.New("invalid artifact record")
	ErrQuotaExceeded      = errors.New("storage quota exceeded")
	ErrUnknownAccount     = errors.New("unknown account")
	ErrAccountSuspended   = errors.New("account suspended")
	ErrArtifactNotFound   = errors.New("artifact not found")
	ErrPayloadTooLarge    = errors.New("payload exceeds backend limit")
	ErrTransferFailed     = errors.New("transfer failed")
	ErrBackendUnavailable = errors.New("object storage backend unavailable")
	ErrStoreUnavailable   = errors.New("ledger store unavailable")
	ErrVerificationFailed = errors.New("post-delete verification failed")
)
