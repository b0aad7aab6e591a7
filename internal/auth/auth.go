package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var secret []byte

// Init задает секрет проверки токенов. Вызывается один раз при старте.
func Init(cfg *Config) {
	secret = []byte(cfg.JWTSecret)
}

// VerifyToken проверяет bearer-токен запроса и возвращает идентификатор
// аккаунта из claim sub
func VerifyToken(r *http.Request) (string, error) {
	authToken := r.Header.Get("Authorization")
	if authToken == "" {
		return "", fmt.Errorf("no authorization header")
	}
	authToken = strings.TrimPrefix(authToken, "Bearer ")

	token, err := jwt.Parse(authToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	accountID, err := token.Claims.GetSubject()
	if err != nil || accountID == "" {
		return "", fmt.Errorf("token has no subject")
	}

	return accountID, nil
}
