package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "reflections"
)

// Ключи для отозванных (использованных) refresh-токенов
const (
	RedisKeyConsumedRefreshPrefix = RedisNamespace + ":auth:refresh:consumed:"
)

// ConsumedRefreshKey Генератор ключа для jti использованного refresh-токена
func ConsumedRefreshKey(jti string) string {
	return fmt.Sprintf("%s%s", RedisKeyConsumedRefreshPrefix, jti)
}
