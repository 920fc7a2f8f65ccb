package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
)

// KeycloakConfig конфигурация для Keycloak
type KeycloakConfig struct {
	ServerURL    string
	Realm        string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// KeycloakClaims представляет собой структуру claims из токена Keycloak
type KeycloakClaims struct {
	UserID      string `json:"sub"`
	Username    string `json:"preferred_username"`
	Email       string `json:"email"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	ResourceAccess map[string]struct {
		Roles []string `json:"roles"`
	} `json:"resource_access"`
}

// KeycloakClient клиент для работы с Keycloak
type KeycloakClient struct {
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
	tokenCache   *cache.Cache
	clientID     string
}

var _ interfaces.AuthPort = (*KeycloakClient)(nil)

// NewKeycloakClient создает новый клиент Keycloak
func NewKeycloakClient(ctx context.Context, cfg KeycloakConfig) (*KeycloakClient, error) {
	providerURL := fmt.Sprintf("%s/realms/%s", cfg.ServerURL, cfg.Realm)

	provider, err := oidc.NewProvider(ctx, providerURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания OIDC провайдера: %w", err)
	}

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID:        cfg.ClientID,
		SkipIssuerCheck: true,
	})

	return &KeycloakClient{
		verifier:     verifier,
		oauth2Config: oauth2Config,
		tokenCache:   cache.New(5*time.Minute, 10*time.Minute),
		clientID:     cfg.ClientID,
	}, nil
}

// ValidateToken проверяет JWT токен и возвращает claims
func (k *KeycloakClient) ValidateToken(ctx context.Context, tokenString string) (*KeycloakClaims, error) {
	if cachedClaims, found := k.tokenCache.Get(tokenString); found {
		return cachedClaims.(*KeycloakClaims), nil
	}

	idToken, err := k.verifier.Verify(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("ошибка верификации токена: %w", err)
	}

	var claims KeycloakClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("ошибка извлечения claims: %w", err)
	}

	if expiresIn := time.Until(idToken.Expiry); expiresIn > 0 {
		k.tokenCache.Set(tokenString, &claims, expiresIn)
	}

	return &claims, nil
}

// Authenticate реализует AuthPort: роли realm и роли клиента объединяются
func (k *KeycloakClient) Authenticate(ctx context.Context, token string) (*interfaces.Principal, error) {
	claims, err := k.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	roles := append([]string{}, claims.RealmAccess.Roles...)
	if clientRoles, ok := claims.ResourceAccess[k.clientID]; ok {
		roles = append(roles, clientRoles.Roles...)
	}

	return &interfaces.Principal{
		UserID:   claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
		Roles:    roles,
	}, nil
}

// GetAuthURL возвращает URL для входа в админку через Keycloak
func (k *KeycloakClient) GetAuthURL(state string) string {
	return k.oauth2Config.AuthCodeURL(state)
}

// ExchangeCode обменивает код авторизации на id_token
func (k *KeycloakClient) ExchangeCode(ctx context.Context, code string) (string, time.Time, error) {
	token, err := k.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ошибка обмена кода авторизации: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", time.Time{}, errors.New("id_token отсутствует в ответе Keycloak")
	}

	return rawIDToken, token.Expiry, nil
}
