package interfaces

import (
	"context"
)

// Principal описывает аутентифицированного пользователя запроса
type Principal struct {
	UserID   string
	Username string
	Email    string
	Roles    []string
}

// HasRole проверяет наличие роли у пользователя
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthPort определяет интерфейс проверки токенов доступа.
// Реализации: Keycloak (OIDC) и локальный JWT менеджер.
type AuthPort interface {
	// Authenticate проверяет токен и возвращает пользователя
	Authenticate(ctx context.Context, token string) (*Principal, error)
}
