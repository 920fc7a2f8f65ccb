package interfaces

import "errors"

// ErrCacheMiss возвращается CachePort.Get, если ключ не найден
var ErrCacheMiss = errors.New("cache miss")
