package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// goose хранит FS и диалект в глобальном состоянии
var gooseMu sync.Mutex

// Migrator применяет встроенные SQL миграции через goose
type Migrator struct {
	db     *sql.DB
	logger interfaces.LoggerPort
}

// NewMigrator создает мигратор поверх пула pgx
func NewMigrator(pool *pgxpool.Pool, logger interfaces.LoggerPort) *Migrator {
	return &Migrator{db: stdlib.OpenDBFromPool(pool), logger: logger}
}

func (m *Migrator) prepare() error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return nil
}

// Up применяет все недостающие миграции
func (m *Migrator) Up(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := m.prepare(); err != nil {
		return err
	}

	currentVersion, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	m.logger.Info("Применение миграций",
		interfaces.LogField{Key: "version", Value: currentVersion})

	if err := goose.UpContext(ctx, m.db, migrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	finalVersion, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return fmt.Errorf("failed to get final version: %w", err)
	}

	m.logger.Info("Миграции применены",
		interfaces.LogField{Key: "from_version", Value: currentVersion},
		interfaces.LogField{Key: "to_version", Value: finalVersion})

	return nil
}

// Down откатывает последние steps миграций
func (m *Migrator) Down(ctx context.Context, steps int) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := m.prepare(); err != nil {
		return err
	}

	for i := 0; i < steps; i++ {
		if err := goose.DownContext(ctx, m.db, migrationsDir); err != nil {
			return fmt.Errorf("failed to run down migration: %w", err)
		}
	}

	return nil
}

// Version возвращает текущую версию схемы
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := m.prepare(); err != nil {
		return 0, err
	}

	version, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return 0, fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// Close закрывает обертку database/sql. Пул pgx остается открытым.
func (m *Migrator) Close() error {
	return m.db.Close()
}
