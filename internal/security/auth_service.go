package security

import (
	"context"

	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/auth"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
)

// AllCapabilities дает роли все права
const AllCapabilities = "*"

// DefaultRoleCapabilities - соответствие ролей правам, если в конфигурации оно не задано
func DefaultRoleCapabilities() map[string][]string {
	return map[string][]string{
		"admin":        {AllCapabilities},
		"shop_manager": {models.CapEditProducts, models.CapManageCatalog},
		"editor":       {models.CapEditProducts},
	}
}

// Authorizer проверяет права пользователя по его ролям
type Authorizer struct {
	roleCaps map[string]map[string]struct{}
}

func NewAuthorizer(roleCaps map[string][]string) *Authorizer {
	if len(roleCaps) == 0 {
		roleCaps = DefaultRoleCapabilities()
	}

	a := &Authorizer{roleCaps: make(map[string]map[string]struct{}, len(roleCaps))}
	for role, caps := range roleCaps {
		set := make(map[string]struct{}, len(caps))
		for _, c := range caps {
			set[c] = struct{}{}
		}
		a.roleCaps[role] = set
	}
	return a
}

// PrincipalCan сообщает, есть ли у пользователя право capability
func (a *Authorizer) PrincipalCan(p *interfaces.Principal, capability string) bool {
	if p == nil {
		return false
	}
	for _, role := range p.Roles {
		caps, ok := a.roleCaps[role]
		if !ok {
			continue
		}
		if _, ok := caps[AllCapabilities]; ok {
			return true
		}
		if _, ok := caps[capability]; ok {
			return true
		}
	}
	return false
}

// Can проверяет право пользователя из контекста запроса
func (a *Authorizer) Can(ctx context.Context, capability string) bool {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return false
	}
	return a.PrincipalCan(p, capability)
}
