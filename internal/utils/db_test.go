package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateConnectionString(t *testing.T) {
	dsn, err := GenerateConnectionString("db", "shop", "secret", "catalog", "disable", 5432, 15, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t,
		"host=db port=5432 user=shop password=secret dbname=catalog sslmode=disable connect_timeout=5 pool_max_conns=15",
		dsn)
}

func TestGenerateConnectionStringValidation(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		port    int
		sslMode string
		want    error
	}{
		{"empty host", "", 5432, "disable", ErrStorageEmptyHostName},
		{"port out of range", "db", 70000, "disable", ErrStorageInvalidPortNumber},
		{"zero port", "db", 0, "disable", ErrStorageInvalidPortNumber},
		{"bad ssl mode", "db", 5432, "sometimes", ErrStorageInvalidSslMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateConnectionString(tt.host, "u", "p", "d", tt.sslMode, tt.port, 0, 0)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
