package interfaces

import (
	"context"
	"time"
)

// CachePort определяет интерфейс для работы с системой кэширования.
// Реализация по умолчанию использует Redis.
type CachePort interface {
	// Get получает значение из кэша по ключу.
	// Если ключ отсутствует, возвращает ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set сохраняет значение в кэше с указанным сроком действия.
	// Если expiration равно 0, срок действия не устанавливается.
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// Delete удаляет значение из кэша по ключу
	Delete(ctx context.Context, key string) error

	// DeleteByPattern удаляет все значения, соответствующие шаблону,
	// например "ean:*", и возвращает число удаленных ключей
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)

	// Close закрывает соединение с системой кэширования
	Close() error
}
