package utils

import "errors"

// ----------------- storage ------------------
var (
	ErrStorageEmptyHostName       = errors.New("host name is empty")
	ErrStorageInvalidPortNumber   = errors.New("port number is invalid")
	ErrStorageEmptyUsername       = errors.New("username is empty")
	ErrStorageEmptyPassword       = errors.New("password is empty")
	ErrStorageInvalidDatabaseName = errors.New("database name is empty")
	ErrStorageInvalidSslMode      = errors.New("SSL mode is invalid")
	ErrStorageInvalidPoolSize     = errors.New("pool size is invalid")
	ErrStorageInvalidTimeout      = errors.New("timeout is invalid")
)

// ----------------- identifier service ------------------
var (
	ErrInvalidProductId     = errors.New("invalid product id")
	ErrProductNotFound      = errors.New("product not found")
	ErrHostUnavailable      = errors.New("host catalog is not available")
	ErrPluginDeactivated    = errors.New("plugin deactivated")
	ErrForbidden            = errors.New("insufficient permissions")
	ErrInvalidNonce         = errors.New("security check failed")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrNoExportData         = errors.New("no identifier data to export")
)
