package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Действия, для которых выпускаются CSRF токены
const (
	ActionSaveProduct     = "woocommerce_save_data"
	ActionManualUninstall = "jtl_ean_manual_uninstall"
	ActionExportData      = "jtl_ean_export_data"
)

// Имена полей форм с CSRF токенами
const (
	FieldProductNonce   = "woocommerce_meta_nonce"
	FieldUninstallNonce = "jtl_ean_nonce"
	FieldExportNonce    = "jtl_ean_export_nonce"
)

var ErrInvalidNonce = errors.New("invalid nonce")

const defaultNonceLifetime = 24 * time.Hour

type nonceClaims struct {
	jwt.RegisteredClaims
	Action string `json:"act"`
}

// NonceManager выпускает CSRF токены, привязанные к действию и пользователю
type NonceManager struct {
	secret   []byte
	lifetime time.Duration
}

func NewNonceManager(secret string, lifetime time.Duration) (*NonceManager, error) {
	if secret == "" {
		return nil, errors.New("nonce secret is empty")
	}
	if lifetime <= 0 {
		lifetime = defaultNonceLifetime
	}
	return &NonceManager{secret: []byte(secret), lifetime: lifetime}, nil
}

// Create возвращает токен для действия action от имени userID
func (m *NonceManager) Create(userID, action string) (string, error) {
	now := time.Now()
	claims := nonceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
		},
		Action: action,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign nonce: %w", err)
	}
	return token, nil
}

// Verify проверяет, что токен выпущен для этого пользователя и действия
func (m *NonceManager) Verify(token, userID, action string) error {
	if token == "" {
		return ErrInvalidNonce
	}

	var claims nonceClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return ErrInvalidNonce
	}

	if claims.Subject != userID || claims.Action != action {
		return ErrInvalidNonce
	}
	return nil
}
