// Package testutil содержит in-memory реализации портов для тестов
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"

	postgres "github.com/athebyme/gomarket-platform/ean-service/internal/adapters/storage"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	basemodels "github.com/athebyme/gomarket-platform/ean-service/pkg/models"
)

type metaRow struct {
	id        int64
	productID int64
	key       string
	value     string
}

// MemoryCatalog - in-memory каталог платформы
type MemoryCatalog struct {
	mu       sync.Mutex
	products map[int64]*basemodels.Product
	meta     []metaRow
	nextMeta int64
	options  map[string]string

	// Missing имитирует отсутствие схемы каталога
	Missing bool
	// Errors - ошибки, которые возвращают методы по имени
	Errors map[string]error

	Analyzed int
}

var _ postgres.CatalogStoragePort = (*MemoryCatalog)(nil)

// NewMemoryCatalog создает пустой каталог
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		products: make(map[int64]*basemodels.Product),
		options:  make(map[string]string),
		Errors:   make(map[string]error),
	}
}

// AddProduct добавляет товар. Вариация регистрируется у родителя.
func (c *MemoryCatalog) AddProduct(p *basemodels.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.products[p.ID] = p
	if p.IsVariation() {
		if parent, ok := c.products[p.ParentID]; ok {
			parent.Children = append(parent.Children, p.ID)
		}
	}
}

// SetMeta добавляет строку метаданных, как это сделала бы платформа
func (c *MemoryCatalog) SetMeta(productID int64, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertMeta(productID, key, value)
}

// Meta возвращает первое значение ключа и признак наличия строки
func (c *MemoryCatalog) Meta(productID int64, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, row := range c.meta {
		if row.productID == productID && row.key == key {
			return row.value, true
		}
	}
	return "", false
}

// SetOption записывает опцию
func (c *MemoryCatalog) SetOption(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options[name] = value
}

// Option возвращает опцию
func (c *MemoryCatalog) Option(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.options[name]
	return v, ok
}

func (c *MemoryCatalog) insertMeta(productID int64, key, value string) {
	c.nextMeta++
	c.meta = append(c.meta, metaRow{id: c.nextMeta, productID: productID, key: key, value: value})
}

func (c *MemoryCatalog) fail(method string) error {
	return c.Errors[method]
}

// GetProduct возвращает копию товара или nil
func (c *MemoryCatalog) GetProduct(_ context.Context, productID int64) (*basemodels.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("GetProduct"); err != nil {
		return nil, err
	}

	p, ok := c.products[productID]
	if !ok {
		return nil, nil
	}
	cp := *p
	cp.Children = append([]int64(nil), p.Children...)
	return &cp, nil
}

func (c *MemoryCatalog) CatalogAvailable(_ context.Context) (bool, error) {
	if err := c.fail("CatalogAvailable"); err != nil {
		return false, err
	}
	return !c.Missing, nil
}

func (c *MemoryCatalog) GetIdentifiers(_ context.Context, productID int64) (models.Identifiers, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("GetIdentifiers"); err != nil {
		return models.Identifiers{}, err
	}
	return c.identifiers(productID), nil
}

func (c *MemoryCatalog) identifiers(productID int64) models.Identifiers {
	var ids models.Identifiers
	var gotGTIN, gotMPN bool
	for _, row := range c.meta {
		if row.productID != productID {
			continue
		}
		switch {
		case row.key == models.MetaKeyGTIN && !gotGTIN:
			ids.GTIN, gotGTIN = row.value, true
		case row.key == models.MetaKeyMPN && !gotMPN:
			ids.MPN, gotMPN = row.value, true
		}
	}
	return ids
}

func (c *MemoryCatalog) UpdateMeta(_ context.Context, productID int64, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("UpdateMeta"); err != nil {
		return err
	}

	updated := false
	for i := range c.meta {
		if c.meta[i].productID == productID && c.meta[i].key == key {
			c.meta[i].value = value
			updated = true
		}
	}
	if !updated {
		c.insertMeta(productID, key, value)
	}
	return nil
}

func (c *MemoryCatalog) DeleteProductMeta(_ context.Context, productID int64, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("DeleteProductMeta"); err != nil {
		return 0, err
	}

	return c.deleteWhere(func(row metaRow) bool {
		if row.productID != productID {
			return false
		}
		for _, k := range keys {
			if row.key == k {
				return true
			}
		}
		return false
	}), nil
}

func (c *MemoryCatalog) DeleteMetaByKey(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("DeleteMetaByKey"); err != nil {
		return 0, err
	}
	return c.deleteWhere(func(row metaRow) bool { return row.key == key }), nil
}

func (c *MemoryCatalog) deleteWhere(match func(metaRow) bool) int64 {
	kept := c.meta[:0]
	var deleted int64
	for _, row := range c.meta {
		if match(row) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	c.meta = kept
	return deleted
}

func (c *MemoryCatalog) Statistics(_ context.Context) (models.Statistics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("Statistics"); err != nil {
		return models.Statistics{}, err
	}

	var s models.Statistics
	for _, row := range c.meta {
		switch row.key {
		case models.MetaKeyGTIN:
			s.TotalMetaRows++
			if row.value != "" {
				s.ProductsWithGTIN++
			}
		case models.MetaKeyMPN:
			s.TotalMetaRows++
			if row.value != "" {
				s.ProductsWithMPN++
			}
		}
	}
	return s, nil
}

func (c *MemoryCatalog) records(filter models.IdentifierFilter) []models.IdentifierRecord {
	ids := make([]int64, 0, len(c.products))
	for id := range c.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []models.IdentifierRecord
	for _, id := range ids {
		p := c.products[id]
		ident := c.identifiers(id)

		switch filter.Has {
		case models.HasGTIN:
			if ident.GTIN == "" {
				continue
			}
		case models.HasMPN:
			if ident.MPN == "" {
				continue
			}
		default:
			if ident.GTIN == "" && ident.MPN == "" {
				continue
			}
		}
		if filter.Type != "" && string(p.Type) != filter.Type {
			continue
		}
		if filter.ParentID != 0 && p.ParentID != filter.ParentID {
			continue
		}

		out = append(out, models.IdentifierRecord{
			ProductID: p.ID,
			ParentID:  p.ParentID,
			Name:      p.Name,
			Type:      string(p.Type),
			GTIN:      ident.GTIN,
			MPN:       ident.MPN,
		})
	}
	return out
}

func (c *MemoryCatalog) StreamIdentifiers(_ context.Context, fn func(models.IdentifierRecord) error) (int, error) {
	c.mu.Lock()
	if err := c.fail("StreamIdentifiers"); err != nil {
		c.mu.Unlock()
		return 0, err
	}
	records := c.records(models.IdentifierFilter{})
	c.mu.Unlock()

	count := 0
	for _, rec := range records {
		if err := fn(rec); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (c *MemoryCatalog) ListIdentifiers(_ context.Context, filter models.IdentifierFilter, limit, offset int) ([]models.IdentifierRecord, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("ListIdentifiers"); err != nil {
		return nil, 0, err
	}

	all := c.records(filter)
	total := int64(len(all))
	if offset >= len(all) {
		return []models.IdentifierRecord{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (c *MemoryCatalog) GetOption(_ context.Context, name string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("GetOption"); err != nil {
		return "", false, err
	}
	v, ok := c.options[name]
	return v, ok, nil
}

func (c *MemoryCatalog) AddOption(_ context.Context, name, value string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("AddOption"); err != nil {
		return false, err
	}
	if _, ok := c.options[name]; ok {
		return false, nil
	}
	c.options[name] = value
	return true, nil
}

func (c *MemoryCatalog) DeleteOptions(_ context.Context, names ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("DeleteOptions"); err != nil {
		return 0, err
	}

	var n int64
	for _, name := range names {
		if _, ok := c.options[name]; ok {
			delete(c.options, name)
			n++
		}
	}
	return n, nil
}

func (c *MemoryCatalog) DeleteTransients(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("DeleteTransients"); err != nil {
		return 0, err
	}

	var n int64
	for name := range c.options {
		if strings.HasPrefix(name, models.TransientPrefix) || strings.HasPrefix(name, models.TransientTimeoutPrefix) {
			delete(c.options, name)
			n++
		}
	}
	return n, nil
}

func (c *MemoryCatalog) Analyze(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("Analyze"); err != nil {
		return err
	}
	c.Analyzed++
	return nil
}

func (c *MemoryCatalog) Ping(_ context.Context) error { return nil }

func (c *MemoryCatalog) Close() error { return nil }

// NoTx выполняет fn без транзакции
type NoTx struct{}

func (NoTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
