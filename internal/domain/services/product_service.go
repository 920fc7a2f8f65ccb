package services

import (
	"context"
	"fmt"
	"time"

	postgres "github.com/athebyme/gomarket-platform/ean-service/internal/adapters/storage"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/hooks"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/internal/utils"
	basemodels "github.com/athebyme/gomarket-platform/ean-service/pkg/models"
)

const jsonSchemaDraft = "http://json-schema.org/draft-04/schema#"

// ProductService отдает REST представление товаров платформы и прогоняет
// его через точки расширения
type ProductService struct {
	products postgres.ProductReader
	hooks    *hooks.Registry
}

// NewProductService создает новый экземпляр ProductService
func NewProductService(products postgres.ProductReader, registry *hooks.Registry) *ProductService {
	return &ProductService{
		products: products,
		hooks:    registry,
	}
}

// GetProduct возвращает подготовленное представление товара
func (s *ProductService) GetProduct(ctx context.Context, productID int64, c models.Context) (models.Payload, error) {
	product, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.prepare(ctx, product, c)
}

// GetVariation возвращает подготовленное представление вариации товара parentID
func (s *ProductService) GetVariation(ctx context.Context, parentID, variationID int64, c models.Context) (models.Payload, error) {
	variation, err := s.loadVariation(ctx, parentID, variationID)
	if err != nil {
		return nil, err
	}
	return s.prepare(ctx, variation, c)
}

// ListVariations возвращает представления всех вариаций товара
func (s *ProductService) ListVariations(ctx context.Context, parentID int64, c models.Context) ([]models.Payload, error) {
	parent, err := s.load(ctx, parentID)
	if err != nil {
		return nil, err
	}

	result := make([]models.Payload, 0, len(parent.Children))
	for _, id := range parent.Children {
		variation, err := s.products.GetProduct(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get variation %d: %w", id, err)
		}
		if variation == nil {
			continue
		}

		payload, err := s.prepare(ctx, variation, c)
		if err != nil {
			return nil, err
		}
		result = append(result, payload)
	}

	return result, nil
}

// UpdateProduct прогоняет тело запроса через фильтры pre-insert
// и возвращает представление в контексте edit
func (s *ProductService) UpdateProduct(ctx context.Context, productID int64, request models.Payload) (models.Payload, error) {
	product, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, product, request)
}

// UpdateVariation делает то же для вариации
func (s *ProductService) UpdateVariation(ctx context.Context, parentID, variationID int64, request models.Payload) (models.Payload, error) {
	variation, err := s.loadVariation(ctx, parentID, variationID)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, variation, request)
}

// ProductSchema возвращает схему ресурса товара с учетом фильтров
func (s *ProductService) ProductSchema(ctx context.Context) (models.Schema, error) {
	return s.hooks.ProductSchema.Apply(ctx, baseProductSchema(), struct{}{})
}

// VariationSchema возвращает схему ресурса вариации с учетом фильтров
func (s *ProductService) VariationSchema(ctx context.Context) (models.Schema, error) {
	return s.hooks.VariationSchema.Apply(ctx, baseVariationSchema(), struct{}{})
}

func (s *ProductService) update(ctx context.Context, product *basemodels.Product, request models.Payload) (models.Payload, error) {
	args := hooks.RestArgs{Product: product, Request: request, Context: models.ContextEdit}

	updated, err := s.hooks.PreInsertFor(product).Apply(ctx, product, args)
	if err != nil {
		return nil, fmt.Errorf("failed to apply request to product %d: %w", product.ID, err)
	}
	return s.prepare(ctx, updated, models.ContextEdit)
}

func (s *ProductService) load(ctx context.Context, productID int64) (*basemodels.Product, error) {
	if productID <= 0 {
		return nil, utils.ErrInvalidProductId
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, utils.ErrProductNotFound
	}
	return product, nil
}

func (s *ProductService) loadVariation(ctx context.Context, parentID, variationID int64) (*basemodels.Product, error) {
	variation, err := s.load(ctx, variationID)
	if err != nil {
		return nil, err
	}
	if !variation.IsVariation() || variation.ParentID != parentID {
		return nil, utils.ErrProductNotFound
	}
	return variation, nil
}

// prepare строит базовое представление и применяет фильтры prepare
func (s *ProductService) prepare(ctx context.Context, product *basemodels.Product, c models.Context) (models.Payload, error) {
	valueArgs := hooks.ValueArgs{Product: product, Context: c}
	globalID, err := s.hooks.GlobalUniqueIDFor(product).Apply(ctx, product.GlobalUniqueID, valueArgs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve global unique id: %w", err)
	}

	payload := models.Payload{
		"id":               product.ID,
		"name":             product.Name,
		"type":             string(product.Type),
		"sku":              product.SKU,
		"status":           product.Status,
		"global_unique_id": globalID,
		"date_created":     product.CreatedAt.UTC().Format(time.RFC3339),
		"date_modified":    product.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if product.IsVariation() {
		payload["parent_id"] = product.ParentID
	}
	if product.IsVariable() {
		variations := product.Children
		if variations == nil {
			variations = []int64{}
		}
		payload["variations"] = variations
	}

	return s.hooks.PrepareFor(product).Apply(ctx, payload, hooks.RestArgs{Product: product, Context: c})
}

func baseProperties() map[string]models.SchemaProperty {
	viewEdit := []string{string(models.ContextView), string(models.ContextEdit)}
	return map[string]models.SchemaProperty{
		"id":               {Description: "Unique identifier for the resource.", Type: "integer", Context: viewEdit, ReadOnly: true},
		"sku":              {Description: "Stock-keeping unit.", Type: "string", Context: viewEdit},
		"status":           {Description: "Product status.", Type: "string", Context: viewEdit},
		"global_unique_id": {Description: "GTIN, UPC, EAN or ISBN.", Type: "string", Context: viewEdit},
		"date_created":     {Description: "The date the product was created.", Type: "date-time", Context: viewEdit, ReadOnly: true},
		"date_modified":    {Description: "The date the product was last modified.", Type: "date-time", Context: viewEdit, ReadOnly: true},
	}
}

// baseProductSchema собирается заново на каждый запрос, фильтры меняют ее на месте
func baseProductSchema() models.Schema {
	viewEdit := []string{string(models.ContextView), string(models.ContextEdit)}
	props := baseProperties()
	props["name"] = models.SchemaProperty{Description: "Product name.", Type: "string", Context: viewEdit}
	props["type"] = models.SchemaProperty{Description: "Product type.", Type: "string", Context: viewEdit, Default: "simple"}
	props["variations"] = models.SchemaProperty{Description: "List of variations IDs.", Type: "array", Context: viewEdit, ReadOnly: true}

	return models.Schema{
		Schema:     jsonSchemaDraft,
		Title:      "product",
		Type:       "object",
		Properties: props,
	}
}

func baseVariationSchema() models.Schema {
	viewEdit := []string{string(models.ContextView), string(models.ContextEdit)}
	props := baseProperties()
	props["parent_id"] = models.SchemaProperty{Description: "Product parent ID.", Type: "integer", Context: viewEdit, ReadOnly: true}

	return models.Schema{
		Schema:     jsonSchemaDraft,
		Title:      "product_variation",
		Type:       "object",
		Properties: props,
	}
}
