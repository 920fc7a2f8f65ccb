// Package hooks - явный реестр точек расширения платформы.
// Каждая точка имеет имя и упорядоченный список обработчиков:
// сначала по приоритету (меньше - раньше), затем по порядку регистрации.
package hooks

import (
	"context"
	"sort"
	"sync"

	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	basemodels "github.com/athebyme/gomarket-platform/ean-service/pkg/models"
)

// DefaultPriority - приоритет обработчика по умолчанию
const DefaultPriority = 10

// Имена точек расширения
const (
	ProductGetGTIN             = "product_get_gtin"
	ProductGetMPN              = "product_get_mpn"
	ProductGetGlobalUniqueID   = "product_get_global_unique_id"
	VariationGetGlobalUniqueID = "product_variation_get_global_unique_id"
	RestPrepareProduct         = "rest_prepare_product_object"
	RestPrepareVariation       = "rest_prepare_product_variation_object"
	RestPreInsertProduct       = "rest_pre_insert_product_object"
	RestPreInsertVariation     = "rest_pre_insert_product_variation_object"
	RestProductSchema          = "rest_product_schema"
	RestVariationSchema        = "rest_product_variation_schema"
	IdentifiersSaved           = "identifiers_saved"
	IdentifiersPurged          = "identifiers_purged"
)

// Filter преобразует значение. Ошибка прерывает цепочку.
type Filter[T any, A any] func(ctx context.Context, value T, args A) (T, error)

// Action реагирует на событие
type Action[A any] func(ctx context.Context, args A)

type entry[H any] struct {
	priority int
	seq      int
	handler  H
}

type chain[H any] struct {
	mu      sync.RWMutex
	name    string
	seq     int
	entries []entry[H]
}

func (c *chain[H]) add(priority int, h H) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.entries = append(c.entries, entry[H]{priority: priority, seq: c.seq, handler: h})
	sort.SliceStable(c.entries, func(i, j int) bool {
		if c.entries[i].priority != c.entries[j].priority {
			return c.entries[i].priority < c.entries[j].priority
		}
		return c.entries[i].seq < c.entries[j].seq
	})
}

func (c *chain[H]) snapshot() []H {
	c.mu.RLock()
	defer c.mu.RUnlock()

	handlers := make([]H, len(c.entries))
	for i, e := range c.entries {
		handlers[i] = e.handler
	}
	return handlers
}

// Len возвращает количество зарегистрированных обработчиков
func (c *chain[H]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Name возвращает имя точки расширения
func (c *chain[H]) Name() string {
	return c.name
}

// FilterSet - именованная цепочка фильтров
type FilterSet[T any, A any] struct {
	chain[Filter[T, A]]
}

// NewFilterSet создает пустую цепочку фильтров
func NewFilterSet[T any, A any](name string) *FilterSet[T, A] {
	return &FilterSet[T, A]{chain: chain[Filter[T, A]]{name: name}}
}

// Add регистрирует фильтр с приоритетом
func (f *FilterSet[T, A]) Add(priority int, filter Filter[T, A]) {
	f.add(priority, filter)
}

// Apply прогоняет значение через все фильтры по порядку
func (f *FilterSet[T, A]) Apply(ctx context.Context, value T, args A) (T, error) {
	for _, filter := range f.snapshot() {
		next, err := filter(ctx, value, args)
		if err != nil {
			return value, err
		}
		value = next
	}
	return value, nil
}

// ActionSet - именованная цепочка обработчиков событий
type ActionSet[A any] struct {
	chain[Action[A]]
}

// NewActionSet создает пустую цепочку действий
func NewActionSet[A any](name string) *ActionSet[A] {
	return &ActionSet[A]{chain: chain[Action[A]]{name: name}}
}

// Add регистрирует обработчик с приоритетом
func (a *ActionSet[A]) Add(priority int, action Action[A]) {
	a.add(priority, action)
}

// Do вызывает все обработчики по порядку
func (a *ActionSet[A]) Do(ctx context.Context, args A) {
	for _, action := range a.snapshot() {
		action(ctx, args)
	}
}

// ValueArgs - аргументы фильтров чтения значения товара
type ValueArgs struct {
	Product *basemodels.Product
	Context models.Context
}

// RestArgs - аргументы REST фильтров
type RestArgs struct {
	Product *basemodels.Product
	// Request - тело запроса для pre-insert и параметры для prepare
	Request  models.Payload
	Context  models.Context
	Creating bool
}

// Registry содержит все точки расширения сервиса
type Registry struct {
	GTIN               *FilterSet[string, ValueArgs]
	MPN                *FilterSet[string, ValueArgs]
	GlobalUniqueID     *FilterSet[string, ValueArgs]
	VariationGlobalID  *FilterSet[string, ValueArgs]
	PrepareProduct     *FilterSet[models.Payload, RestArgs]
	PrepareVariation   *FilterSet[models.Payload, RestArgs]
	PreInsertProduct   *FilterSet[*basemodels.Product, RestArgs]
	PreInsertVariation *FilterSet[*basemodels.Product, RestArgs]
	ProductSchema      *FilterSet[models.Schema, struct{}]
	VariationSchema    *FilterSet[models.Schema, struct{}]
	Saved              *ActionSet[models.IdentifiersEvent]
	Purged             *ActionSet[models.UninstallReport]
}

// NewRegistry создает реестр с пустыми цепочками
func NewRegistry() *Registry {
	return &Registry{
		GTIN:               NewFilterSet[string, ValueArgs](ProductGetGTIN),
		MPN:                NewFilterSet[string, ValueArgs](ProductGetMPN),
		GlobalUniqueID:     NewFilterSet[string, ValueArgs](ProductGetGlobalUniqueID),
		VariationGlobalID:  NewFilterSet[string, ValueArgs](VariationGetGlobalUniqueID),
		PrepareProduct:     NewFilterSet[models.Payload, RestArgs](RestPrepareProduct),
		PrepareVariation:   NewFilterSet[models.Payload, RestArgs](RestPrepareVariation),
		PreInsertProduct:   NewFilterSet[*basemodels.Product, RestArgs](RestPreInsertProduct),
		PreInsertVariation: NewFilterSet[*basemodels.Product, RestArgs](RestPreInsertVariation),
		ProductSchema:      NewFilterSet[models.Schema, struct{}](RestProductSchema),
		VariationSchema:    NewFilterSet[models.Schema, struct{}](RestVariationSchema),
		Saved:              NewActionSet[models.IdentifiersEvent](IdentifiersSaved),
		Purged:             NewActionSet[models.UninstallReport](IdentifiersPurged),
	}
}

// GlobalUniqueIDFor возвращает цепочку global_unique_id для типа товара
func (r *Registry) GlobalUniqueIDFor(p *basemodels.Product) *FilterSet[string, ValueArgs] {
	if p.IsVariation() {
		return r.VariationGlobalID
	}
	return r.GlobalUniqueID
}

// PrepareFor возвращает цепочку подготовки ответа для типа товара
func (r *Registry) PrepareFor(p *basemodels.Product) *FilterSet[models.Payload, RestArgs] {
	if p.IsVariation() {
		return r.PrepareVariation
	}
	return r.PrepareProduct
}

// PreInsertFor возвращает цепочку обработки входящих данных для типа товара
func (r *Registry) PreInsertFor(p *basemodels.Product) *FilterSet[*basemodels.Product, RestArgs] {
	if p.IsVariation() {
		return r.PreInsertVariation
	}
	return r.PreInsertProduct
}

// Describe возвращает число обработчиков по каждой точке расширения
func (r *Registry) Describe() map[string]int {
	return map[string]int{
		r.GTIN.Name():               r.GTIN.Len(),
		r.MPN.Name():                r.MPN.Len(),
		r.GlobalUniqueID.Name():     r.GlobalUniqueID.Len(),
		r.VariationGlobalID.Name():  r.VariationGlobalID.Len(),
		r.PrepareProduct.Name():     r.PrepareProduct.Len(),
		r.PrepareVariation.Name():   r.PrepareVariation.Len(),
		r.PreInsertProduct.Name():   r.PreInsertProduct.Len(),
		r.PreInsertVariation.Name(): r.PreInsertVariation.Len(),
		r.ProductSchema.Name():      r.ProductSchema.Len(),
		r.VariationSchema.Name():    r.VariationSchema.Len(),
		r.Saved.Name():              r.Saved.Len(),
		r.Purged.Name():             r.Purged.Len(),
	}
}
