package security

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/auth"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKeyPair(t *testing.T) ([]byte, []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	return privPEM, pubPEM
}

func TestJWTManagerRoundTrip(t *testing.T) {
	priv, pub := generateKeyPair(t)
	m, err := NewJWTManager(priv, pub, time.Hour, "ean-service")
	require.NoError(t, err)

	token, err := m.Generate("u-1", "alice", []string{"editor"})
	require.NoError(t, err)

	p, err := m.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", p.UserID)
	assert.Equal(t, "alice", p.Username)
	assert.True(t, p.HasRole("editor"))
}

func TestJWTManagerRejectsExpiredAndForeignTokens(t *testing.T) {
	priv, pub := generateKeyPair(t)
	m, err := NewJWTManager(priv, pub, -time.Minute, "ean-service")
	require.NoError(t, err)

	expired, err := m.Generate("u-1", "alice", nil)
	require.NoError(t, err)
	_, err = m.Validate(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	otherPriv, otherPub := generateKeyPair(t)
	other, err := NewJWTManager(otherPriv, otherPub, time.Hour, "ean-service")
	require.NoError(t, err)
	foreign, err := other.Generate("u-2", "bob", nil)
	require.NoError(t, err)

	_, err = m.Validate(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManagerVerifyOnly(t *testing.T) {
	_, pub := generateKeyPair(t)
	m, err := NewJWTManager(nil, pub, time.Hour, "ean-service")
	require.NoError(t, err)

	_, err = m.Generate("u-1", "alice", nil)
	assert.Error(t, err)
}

func TestNonceBoundToUserAndAction(t *testing.T) {
	m, err := NewNonceManager("secret", time.Hour)
	require.NoError(t, err)

	token, err := m.Create("u-1", ActionManualUninstall)
	require.NoError(t, err)

	assert.NoError(t, m.Verify(token, "u-1", ActionManualUninstall))
	assert.ErrorIs(t, m.Verify(token, "u-2", ActionManualUninstall), ErrInvalidNonce)
	assert.ErrorIs(t, m.Verify(token, "u-1", ActionExportData), ErrInvalidNonce)
	assert.ErrorIs(t, m.Verify("", "u-1", ActionManualUninstall), ErrInvalidNonce)
	assert.ErrorIs(t, m.Verify("garbage", "u-1", ActionManualUninstall), ErrInvalidNonce)

	other, err := NewNonceManager("other", time.Hour)
	require.NoError(t, err)
	assert.ErrorIs(t, other.Verify(token, "u-1", ActionManualUninstall), ErrInvalidNonce)

	_, err = NewNonceManager("", time.Hour)
	assert.Error(t, err)
}

func TestAuthorizer(t *testing.T) {
	a := NewAuthorizer(nil)

	editor := &interfaces.Principal{UserID: "e", Roles: []string{"editor"}}
	manager := &interfaces.Principal{UserID: "m", Roles: []string{"viewer", "shop_manager"}}
	admin := &interfaces.Principal{UserID: "a", Roles: []string{"admin"}}

	assert.True(t, a.PrincipalCan(editor, models.CapEditProducts))
	assert.False(t, a.PrincipalCan(editor, models.CapManageCatalog))
	assert.True(t, a.PrincipalCan(manager, models.CapManageCatalog))
	assert.False(t, a.PrincipalCan(manager, models.CapActivatePlugins))
	assert.True(t, a.PrincipalCan(admin, models.CapActivatePlugins))
	assert.False(t, a.PrincipalCan(nil, models.CapEditProducts))

	assert.False(t, a.Can(context.Background(), models.CapEditProducts))
	ctx := auth.WithPrincipal(context.Background(), editor)
	assert.True(t, a.Can(ctx, models.CapEditProducts))

	custom := NewAuthorizer(map[string][]string{"catalog": {models.CapEditProducts}})
	assert.False(t, custom.PrincipalCan(admin, models.CapEditProducts))
}
