package tx

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// txKeyType - приватный тип ключа контекста, чтобы избежать коллизий
type txKeyType struct{}

var txKey = txKeyType{}

// Beginner открывает транзакции. Ему удовлетворяют *pgxpool.Pool и pgxmock.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxManager управляет жизненным циклом транзакций БД.
type TxManager interface {
	// Do выполняет fn внутри транзакции.
	// Ошибка fn приводит к Rollback, успешное завершение - к Commit.
	// Если в ctx уже есть транзакция, fn выполняется в ней.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type pgxTxManager struct {
	db Beginner
}

// NewTxManager создает новый менеджер транзакций.
func NewTxManager(db Beginner) TxManager {
	return &pgxTxManager{db: db}
}

// Do реализует метод интерфейса TxManager.
func (m *pgxTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := GetTxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx.Begin failed: %w", err)
	}

	committed := false
	defer func() {
		// откат нужен на случай паники внутри fn
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx.Commit failed: %w", err)
	}
	committed = true

	return nil
}

// WithTx кладет транзакцию в контекст
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// GetTxFromContext извлекает транзакцию из контекста.
func GetTxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok
}
