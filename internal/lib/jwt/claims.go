// Package jwt выпускает и проверяет сервисные JWT, которыми чат и оператор
// авторизуются в HTTP API.
package jwt

import (
	"time"
)

// Роли сервисных токенов.
const (
	RoleChat     = "chat"     // Чат-бот, действует от имени своих пользователей
	RoleOperator = "operator" // Оператор хоста, доступны все операции
)

// Maker описывает выпуск и разбор сервисных токенов.
type Maker interface {
	// GenerateToken выпускает токен для subject с ролью role
	GenerateToken(subject, role string) (string, error)
	// ParseToken проверяет подпись и срок и возвращает claims
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl подписывает токены HS256 общим секретом.
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни токена.
}

// NewJWTMaker создаёт MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}

// ValidRole сообщает, известна ли роль.
func ValidRole(role string) bool {
	return role == RoleChat || role == RoleOperator
}
