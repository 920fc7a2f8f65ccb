package middleware

import (
	"net/http"

	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/services"
)

// UnavailableFunc отвечает на запрос, когда плагин отключен
type UnavailableFunc func(w http.ResponseWriter, r *http.Request, reason error)

// PluginActive пропускает запросы, только пока каталог платформы доступен
// и плагин не деактивирован
func PluginActive(state *services.PluginState, onUnavailable UnavailableFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := state.Err(); err != nil {
				onUnavailable(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCapability пропускает запрос, если у пользователя есть право capability
func RequireCapability(checker services.CapabilityChecker, capability string, onDenied http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checker.Can(r.Context(), capability) {
				onDenied(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
