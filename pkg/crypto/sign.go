package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// Ошибки подписи
var (
	ErrEmptySecret   = errors.New("signing secret cannot be empty")
	ErrInvalidSecret = errors.New("signing secret is not valid base64")
)

// SignHMAC подписывает сообщение HMAC-SHA256 секретом в base64url.
// Используется для L2-аутентификации запросов к торговой площадке:
// message = timestamp + method + path + body
func SignHMAC(secretBase64, message string) (string, error) {
	if secretBase64 == "" {
		return "", ErrEmptySecret
	}

	secret, err := base64.URLEncoding.DecodeString(secretBase64)
	if err != nil {
		return "", ErrInvalidSecret
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))

	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// VerifyHMAC проверяет подпись сообщения constant-time сравнением
func VerifyHMAC(secretBase64, message, signature string) bool {
	expected, err := SignHMAC(secretBase64, message)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}
