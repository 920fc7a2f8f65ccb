package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
)

// SessionCookie - cookie, в которой админка хранит id_token
const SessionCookie = "ean_session"

type principalKey struct{}

// WithPrincipal кладет пользователя в контекст
func WithPrincipal(ctx context.Context, p *interfaces.Principal) context.Context {
	ctx = context.WithValue(ctx, "user_id", p.UserID)
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext извлекает пользователя из контекста
func PrincipalFromContext(ctx context.Context) (*interfaces.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*interfaces.Principal)
	return p, ok && p != nil
}

// UnauthorizedFunc отвечает на запрос без валидного токена
type UnauthorizedFunc func(w http.ResponseWriter, r *http.Request)

// AuthMiddleware промежуточное ПО для проверки токенов.
// Токен берется из заголовка Authorization, а для админки - из cookie сессии.
func AuthMiddleware(port interfaces.AuthPort, logger interfaces.LoggerPort, onUnauthorized UnauthorizedFunc) func(http.Handler) http.Handler {
	if onUnauthorized == nil {
		onUnauthorized = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractToken(r)
			if !ok {
				onUnauthorized(w, r)
				return
			}

			principal, err := port.Authenticate(r.Context(), tokenStr)
			if err != nil {
				logger.WarnWithContext(r.Context(), "Невалидный токен",
					interfaces.LogField{Key: "error", Value: err.Error()})
				onUnauthorized(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func extractToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}

	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value, true
	}

	return "", false
}
