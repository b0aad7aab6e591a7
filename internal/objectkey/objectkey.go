package objectkey

import (
	"fmt"
	"strings"

	"shuttervault/internal/domain"
)

// Формат ключа фиксирован: accountID/sessionID/folderClass/filename.
// Любой дрейф формата молча осиротит уже загруженные объекты, поэтому вся
// сборка и разбор ключей проходит только через этот пакет.
const previewPrefix = "previews/"

// Builder собирает детерминированные ключи объектов и их превью
type Builder struct{}

// Object возвращает ключ основного объекта артефакта
func (Builder) Object(accountID, sessionID string, class domain.FolderClass, filename string) (string, error) {
	if err := validateSegments(accountID, sessionID, filename); err != nil {
		return "", err
	}
	if !class.Valid() {
		return "", fmt.Errorf("%w: folder class %q", domain.ErrInvalidArgument, class)
	}
	return fmt.Sprintf("%s/%s/%s/%s", accountID, sessionID, class, filename), nil
}

// Preview возвращает ключ производного превью. Префикс previews/ выводит
// превью из-под листинга сессии, чтобы сверка их не видела.
func (b Builder) Preview(accountID, sessionID string, class domain.FolderClass, filename string) (string, error) {
	key, err := b.Object(accountID, sessionID, class, filename)
	if err != nil {
		return "", err
	}
	return previewPrefix + key, nil
}

// SessionPrefix возвращает префикс листинга для всех объектов сессии
func (Builder) SessionPrefix(accountID, sessionID string) (string, error) {
	if err := validateSegments(accountID, sessionID, "-"); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/", accountID, sessionID), nil
}

// Parsed содержит кортеж, восстановленный из ключа объекта
type Parsed struct {
	AccountID   string
	SessionID   string
	FolderClass domain.FolderClass
	Filename    string
}

// Parse разбирает ключ объекта обратно в кортеж. Ключи превью и ключи
// чужого формата возвращают ошибку, а не пустой кортеж.
func Parse(key string) (Parsed, error) {
	if strings.HasPrefix(key, previewPrefix) {
		return Parsed{}, fmt.Errorf("%w: preview key %q", domain.ErrInvalidArgument, key)
	}

	parts := strings.SplitN(key, "/", 4)
	if len(parts) != 4 {
		return Parsed{}, fmt.Errorf("%w: malformed object key %q", domain.ErrInvalidArgument, key)
	}

	p := Parsed{
		AccountID:   parts[0],
		SessionID:   parts[1],
		FolderClass: domain.FolderClass(parts[2]),
		Filename:    parts[3],
	}

	if p.AccountID == "" || p.SessionID == "" || p.Filename == "" {
		return Parsed{}, fmt.Errorf("%w: empty segment in key %q", domain.ErrInvalidArgument, key)
	}
	if !p.FolderClass.Valid() {
		return Parsed{}, fmt.Errorf("%w: folder class %q in key %q", domain.ErrInvalidArgument, parts[2], key)
	}

	return p, nil
}

func validateSegments(accountID, sessionID, filename string) error {
	if accountID == "" || sessionID == "" || filename == "" {
		return fmt.Errorf("%w: account, session and filename are required", domain.ErrInvalidArgument)
	}
	for _, seg := range []string{accountID, sessionID, filename} {
		if strings.Contains(seg, "/") {
			return fmt.Errorf("%w: segment %q must not contain '/'", domain.ErrInvalidArgument, seg)
		}
	}
	return nil
}
