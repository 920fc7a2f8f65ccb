package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	basemodels "github.com/athebyme/gomarket-platform/ean-service/pkg/models"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/tx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProductReader читает товары платформы. Товары сервис не изменяет.
type ProductReader interface {
	// GetProduct возвращает товар с ID вариаций. Если товар не найден, возвращает nil, nil.
	GetProduct(ctx context.Context, productID int64) (*basemodels.Product, error)
	// CatalogAvailable проверяет, что схема каталога платформы существует
	CatalogAvailable(ctx context.Context) (bool, error)
}

// MetaStorage - метаданные товаров (идентификаторы)
type MetaStorage interface {
	GetIdentifiers(ctx context.Context, productID int64) (models.Identifiers, error)
	UpdateMeta(ctx context.Context, productID int64, key, value string) error
	DeleteProductMeta(ctx context.Context, productID int64, keys ...string) (int64, error)
	DeleteMetaByKey(ctx context.Context, key string) (int64, error)
	Statistics(ctx context.Context) (models.Statistics, error)
	StreamIdentifiers(ctx context.Context, fn func(models.IdentifierRecord) error) (int, error)
	ListIdentifiers(ctx context.Context, filter models.IdentifierFilter, limit, offset int) ([]models.IdentifierRecord, int64, error)
}

// OptionStorage - опции плагина
type OptionStorage interface {
	GetOption(ctx context.Context, name string) (string, bool, error)
	AddOption(ctx context.Context, name, value string) (bool, error)
	DeleteOptions(ctx context.Context, names ...string) (int64, error)
	DeleteTransients(ctx context.Context) (int64, error)
	Analyze(ctx context.Context) error
}

// CatalogStoragePort объединяет все операции хранилища каталога
type CatalogStoragePort interface {
	ProductReader
	MetaStorage
	OptionStorage
	interfaces.StoragePort
}

// Pool - подмножество методов *pgxpool.Pool, которым пользуется хранилище
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// CatalogStorage реализация CatalogStoragePort для PostgreSQL
type CatalogStorage struct {
	pool Pool
}

var _ CatalogStoragePort = (*CatalogStorage)(nil)

// NewPostgresStorage подключается к БД и создает CatalogStorage
func NewPostgresStorage(ctx context.Context, connectionString string) (*CatalogStorage, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &CatalogStorage{pool: pool}, pool, nil
}

// NewPostgresStorageWithPool создает CatalogStorage поверх готового пула
func NewPostgresStorageWithPool(pool Pool) (*CatalogStorage, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	return &CatalogStorage{pool: pool}, nil
}

// Ping проверяет соединение с БД
func (r *CatalogStorage) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close закрывает соединение с БД
func (r *CatalogStorage) Close() error {
	r.pool.Close()
	return nil
}

type executor interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// getExecutor возвращает исполнителя запросов (транзакцию из контекста или пул)
func (r *CatalogStorage) getExecutor(ctx context.Context) executor {
	if t, ok := tx.GetTxFromContext(ctx); ok {
		return t
	}
	return r.pool
}

// ---------------------------- products ----------------------------

// GetProduct получает товар по ID. Для вариативного товара загружаются ID вариаций.
func (r *CatalogStorage) GetProduct(ctx context.Context, productID int64) (*basemodels.Product, error) {
	e := r.getExecutor(ctx)

	query := `
		SELECT id, parent_id, type, name, sku, status, global_unique_id, created_at, updated_at
		FROM catalog.products
		WHERE id = $1
	`

	var (
		p     basemodels.Product
		ptype string
	)
	err := e.QueryRow(ctx, query, productID).Scan(
		&p.ID, &p.ParentID, &ptype, &p.Name, &p.SKU, &p.Status, &p.GlobalUniqueID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	p.Type = basemodels.ProductType(ptype)

	if p.IsVariable() {
		children, err := r.getChildren(ctx, e, p.ID)
		if err != nil {
			return nil, err
		}
		p.Children = children
	}

	return &p, nil
}

func (r *CatalogStorage) getChildren(ctx context.Context, e executor, parentID int64) ([]int64, error) {
	query := `
		SELECT id FROM catalog.products
		WHERE parent_id = $1 AND type = $2
		ORDER BY id
	`

	rows, err := e.Query(ctx, query, parentID, string(basemodels.ProductTypeVariation))
	if err != nil {
		return nil, fmt.Errorf("failed to get variations: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan variation id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variations: %w", err)
	}

	return ids, nil
}

// CatalogAvailable проверяет наличие таблицы товаров платформы
func (r *CatalogStorage) CatalogAvailable(ctx context.Context) (bool, error) {
	var available bool
	err := r.getExecutor(ctx).QueryRow(ctx,
		`SELECT to_regclass('catalog.products') IS NOT NULL`,
	).Scan(&available)
	if err != nil {
		return false, fmt.Errorf("failed to check catalog schema: %w", err)
	}
	return available, nil
}

// ---------------------------- meta ----------------------------

// GetIdentifiers читает оба ключа товара одним запросом.
// При нескольких строках с одним ключом используется первая.
func (r *CatalogStorage) GetIdentifiers(ctx context.Context, productID int64) (models.Identifiers, error) {
	query := `
		SELECT meta_key, meta_value
		FROM catalog.product_meta
		WHERE product_id = $1 AND meta_key IN ($2, $3)
		ORDER BY meta_id
	`

	rows, err := r.getExecutor(ctx).Query(ctx, query, productID, models.MetaKeyGTIN, models.MetaKeyMPN)
	if err != nil {
		return models.Identifiers{}, fmt.Errorf("failed to get identifiers: %w", err)
	}
	defer rows.Close()

	var (
		ids               models.Identifiers
		seenGTIN, seenMPN bool
	)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.Identifiers{}, fmt.Errorf("failed to scan meta row: %w", err)
		}

		switch {
		case key == models.MetaKeyGTIN && !seenGTIN:
			ids.GTIN, seenGTIN = value, true
		case key == models.MetaKeyMPN && !seenMPN:
			ids.MPN, seenMPN = value, true
		}
	}

	if err := rows.Err(); err != nil {
		return models.Identifiers{}, fmt.Errorf("error iterating meta rows: %w", err)
	}

	return ids, nil
}

// UpdateMeta обновляет значение ключа, а если строки нет - создает ее
func (r *CatalogStorage) UpdateMeta(ctx context.Context, productID int64, key, value string) error {
	e := r.getExecutor(ctx)

	tag, err := e.Exec(ctx,
		`UPDATE catalog.product_meta SET meta_value = $3 WHERE product_id = $1 AND meta_key = $2`,
		productID, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to update meta %s: %w", key, err)
	}

	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := e.Exec(ctx,
		`INSERT INTO catalog.product_meta (product_id, meta_key, meta_value) VALUES ($1, $2, $3)`,
		productID, key, value,
	); err != nil {
		return fmt.Errorf("failed to insert meta %s: %w", key, err)
	}

	return nil
}

// DeleteProductMeta удаляет указанные ключи одного товара
func (r *CatalogStorage) DeleteProductMeta(ctx context.Context, productID int64, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	tag, err := r.getExecutor(ctx).Exec(ctx,
		`DELETE FROM catalog.product_meta WHERE product_id = $1 AND meta_key = ANY($2)`,
		productID, keys,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete product meta: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteMetaByKey удаляет ключ у всех товаров
func (r *CatalogStorage) DeleteMetaByKey(ctx context.Context, key string) (int64, error) {
	tag, err := r.getExecutor(ctx).Exec(ctx,
		`DELETE FROM catalog.product_meta WHERE meta_key = $1`,
		key,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete meta %s: %w", key, err)
	}
	return tag.RowsAffected(), nil
}

// Statistics считает товары с непустыми идентификаторами и общее число строк
func (r *CatalogStorage) Statistics(ctx context.Context) (models.Statistics, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE meta_key = $1 AND meta_value <> ''),
			COUNT(*) FILTER (WHERE meta_key = $2 AND meta_value <> ''),
			COUNT(*)
		FROM catalog.product_meta
		WHERE meta_key IN ($1, $2)
	`

	var s models.Statistics
	err := r.getExecutor(ctx).QueryRow(ctx, query, models.MetaKeyGTIN, models.MetaKeyMPN).Scan(
		&s.ProductsWithGTIN, &s.ProductsWithMPN, &s.TotalMetaRows,
	)
	if err != nil {
		return models.Statistics{}, fmt.Errorf("failed to get statistics: %w", err)
	}
	return s, nil
}

const identifiersFrom = `
	FROM catalog.products p
	LEFT JOIN LATERAL (
		SELECT meta_value FROM catalog.product_meta
		WHERE product_id = p.id AND meta_key = $1
		ORDER BY meta_id LIMIT 1
	) g ON true
	LEFT JOIN LATERAL (
		SELECT meta_value FROM catalog.product_meta
		WHERE product_id = p.id AND meta_key = $2
		ORDER BY meta_id LIMIT 1
	) m ON true
`

const identifiersColumns = `
	SELECT p.id, p.parent_id, p.name, p.type,
		COALESCE(g.meta_value, ''), COALESCE(m.meta_value, '')
`

// buildIdentifierConditions строит WHERE для выборки товаров с идентификаторами
func buildIdentifierConditions(filter models.IdentifierFilter) (string, []interface{}) {
	args := []interface{}{models.MetaKeyGTIN, models.MetaKeyMPN}
	var conditions []string

	switch filter.Has {
	case models.HasGTIN:
		conditions = append(conditions, "COALESCE(g.meta_value, '') <> ''")
	case models.HasMPN:
		conditions = append(conditions, "COALESCE(m.meta_value, '') <> ''")
	default:
		conditions = append(conditions, "(COALESCE(g.meta_value, '') <> '' OR COALESCE(m.meta_value, '') <> '')")
	}

	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, "p.type = $"+strconv.Itoa(len(args)))
	}

	if filter.ParentID != 0 {
		args = append(args, filter.ParentID)
		conditions = append(conditions, "p.parent_id = $"+strconv.Itoa(len(args)))
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanIdentifierRecord(rows pgx.Rows) (models.IdentifierRecord, error) {
	var rec models.IdentifierRecord
	err := rows.Scan(&rec.ProductID, &rec.ParentID, &rec.Name, &rec.Type, &rec.GTIN, &rec.MPN)
	return rec, err
}

// StreamIdentifiers построчно отдает все товары и вариации с непустым gtin или mpn,
// упорядоченные по ID. Возвращает количество переданных строк.
func (r *CatalogStorage) StreamIdentifiers(ctx context.Context, fn func(models.IdentifierRecord) error) (int, error) {
	where, args := buildIdentifierConditions(models.IdentifierFilter{})
	query := identifiersColumns + identifiersFrom + where + " ORDER BY p.id"

	rows, err := r.getExecutor(ctx).Query(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to query identifiers: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		rec, err := scanIdentifierRecord(rows)
		if err != nil {
			return count, fmt.Errorf("failed to scan identifier row: %w", err)
		}
		if err := fn(rec); err != nil {
			return count, err
		}
		count++
	}

	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("error iterating identifier rows: %w", err)
	}

	return count, nil
}

// ListIdentifiers возвращает страницу товаров с идентификаторами и общее количество
func (r *CatalogStorage) ListIdentifiers(ctx context.Context, filter models.IdentifierFilter, limit, offset int) ([]models.IdentifierRecord, int64, error) {
	e := r.getExecutor(ctx)
	where, args := buildIdentifierConditions(filter)

	var total int64
	if err := e.QueryRow(ctx, "SELECT COUNT(*) "+identifiersFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count identifiers: %w", err)
	}

	if total == 0 {
		return []models.IdentifierRecord{}, 0, nil
	}

	args = append(args, limit, offset)
	query := identifiersColumns + identifiersFrom + where +
		" ORDER BY p.id LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))

	rows, err := e.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list identifiers: %w", err)
	}
	defer rows.Close()

	records := make([]models.IdentifierRecord, 0, limit)
	for rows.Next() {
		rec, err := scanIdentifierRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan identifier row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating identifier rows: %w", err)
	}

	return records, total, nil
}

// ---------------------------- options ----------------------------

// GetOption возвращает значение опции и признак ее наличия
func (r *CatalogStorage) GetOption(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := r.getExecutor(ctx).QueryRow(ctx,
		`SELECT option_value FROM catalog.options WHERE option_name = $1`,
		name,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get option %s: %w", name, err)
	}
	return value, true, nil
}

// AddOption добавляет опцию, если ее еще нет. Возвращает true, если опция создана.
func (r *CatalogStorage) AddOption(ctx context.Context, name, value string) (bool, error) {
	tag, err := r.getExecutor(ctx).Exec(ctx,
		`INSERT INTO catalog.options (option_name, option_value) VALUES ($1, $2)
		ON CONFLICT (option_name) DO NOTHING`,
		name, value,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add option %s: %w", name, err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteOptions удаляет опции по именам
func (r *CatalogStorage) DeleteOptions(ctx context.Context, names ...string) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}

	tag, err := r.getExecutor(ctx).Exec(ctx,
		`DELETE FROM catalog.options WHERE option_name = ANY($1)`,
		names,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete options: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteTransients удаляет временные опции плагина и их таймауты
func (r *CatalogStorage) DeleteTransients(ctx context.Context) (int64, error) {
	tag, err := r.getExecutor(ctx).Exec(ctx,
		`DELETE FROM catalog.options WHERE option_name LIKE $1 OR option_name LIKE $2`,
		likePrefix(models.TransientPrefix), likePrefix(models.TransientTimeoutPrefix),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transients: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Analyze обновляет статистику планировщика после массового удаления
func (r *CatalogStorage) Analyze(ctx context.Context) error {
	for _, table := range []string{"catalog.product_meta", "catalog.options"} {
		if _, err := r.pool.Exec(ctx, "ANALYZE "+table); err != nil {
			return fmt.Errorf("failed to analyze %s: %w", table, err)
		}
	}
	return nil
}

// likePrefix экранирует спецсимволы LIKE и добавляет %
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
