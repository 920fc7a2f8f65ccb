package config

import (
	"github.com/athebyme/gomarket-platform/ean-service/pkg/auth"
)

// KeycloakConfig представляет конфигурацию Keycloak для ean-service
type KeycloakConfig struct {
	Enabled      bool
	ServerURL    string
	Realm        string
	ClientID     string
	ClientSecret string
	RedirectURL  string // адрес /admin/callback
}

// GetKeycloakConfig возвращает конфигурацию для auth.KeycloakClient
func (k *KeycloakConfig) GetKeycloakConfig() auth.KeycloakConfig {
	return auth.KeycloakConfig{
		ServerURL:    k.ServerURL,
		Realm:        k.Realm,
		ClientID:     k.ClientID,
		ClientSecret: k.ClientSecret,
		RedirectURL:  k.RedirectURL,
	}
}
