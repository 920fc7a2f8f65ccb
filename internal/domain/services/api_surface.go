package services

import (
	"context"

	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/hooks"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	basemodels "github.com/athebyme/gomarket-platform/ean-service/pkg/models"
)

// CapabilityChecker проверяет права пользователя из контекста запроса
type CapabilityChecker interface {
	Can(ctx context.Context, capability string) bool
}

// IdentifierSchemaProperties возвращает описания полей gtin и mpn для схемы ресурса
func IdentifierSchemaProperties() map[string]models.SchemaProperty {
	ctxs := []string{string(models.ContextView), string(models.ContextEdit)}
	return map[string]models.SchemaProperty{
		models.FieldGTIN: {
			Description: "Global Trade Item Number (GTIN)",
			Type:        "string",
			Context:     ctxs,
			Default:     "",
		},
		models.FieldMPN: {
			Description: "Manufacturer Part Number (MPN)",
			Type:        "string",
			Context:     ctxs,
			Default:     "",
		},
	}
}

// RegisterAPISurface подключает обработчики плагина к точкам расширения REST
// слоя платформы: поля gtin/mpn в ответе, прием значений из запроса,
// расширение схем и запасной global_unique_id
func RegisterAPISurface(registry *hooks.Registry, accessors *AccessorFactory, caps CapabilityChecker, logger interfaces.LoggerPort) {
	prepare := func(ctx context.Context, payload models.Payload, args hooks.RestArgs) (models.Payload, error) {
		ids, err := accessors.For(args.Product).Identifiers(ctx, args.Context)
		if err != nil {
			return payload, err
		}
		if payload == nil {
			payload = models.Payload{}
		}
		payload[models.FieldGTIN] = ids.GTIN
		payload[models.FieldMPN] = ids.MPN
		return payload, nil
	}
	registry.PrepareProduct.Add(hooks.DefaultPriority, prepare)
	registry.PrepareVariation.Add(hooks.DefaultPriority, prepare)

	preInsert := func(ctx context.Context, product *basemodels.Product, args hooks.RestArgs) (*basemodels.Product, error) {
		if product == nil {
			return product, nil
		}

		gtin, hasGTIN := args.Request.String(models.FieldGTIN)
		mpn, hasMPN := args.Request.String(models.FieldMPN)
		if !hasGTIN && !hasMPN {
			return product, nil
		}

		if !caps.Can(ctx, models.CapEditProducts) {
			logger.DebugWithContext(ctx, "Нет прав на изменение идентификаторов, пропускаем",
				interfaces.LogField{Key: "product_id", Value: product.ID})
			return product, nil
		}

		a := accessors.For(product)
		if hasGTIN {
			a.SetGTIN(ctx, gtin)
		}
		if hasMPN {
			a.SetMPN(ctx, mpn)
		}
		return product, a.Save(ctx)
	}
	registry.PreInsertProduct.Add(hooks.DefaultPriority, preInsert)
	registry.PreInsertVariation.Add(hooks.DefaultPriority, preInsert)

	registry.ProductSchema.Add(hooks.DefaultPriority, func(_ context.Context, schema models.Schema, _ struct{}) (models.Schema, error) {
		if schema.Properties == nil {
			schema.Properties = map[string]models.SchemaProperty{}
		}
		for name, prop := range IdentifierSchemaProperties() {
			schema.Properties[name] = prop
		}
		return schema, nil
	})

	registry.VariationSchema.Add(hooks.DefaultPriority, func(_ context.Context, schema models.Schema, _ struct{}) (models.Schema, error) {
		// схема вариации расширяется, только если у нее уже есть свойства
		if schema.Properties == nil {
			return schema, nil
		}
		for name, prop := range IdentifierSchemaProperties() {
			schema.Properties[name] = prop
		}
		return schema, nil
	})

	fallback := func(ctx context.Context, value string, args hooks.ValueArgs) (string, error) {
		if value != "" {
			return value, nil
		}
		return accessors.For(args.Product).GTIN(ctx, models.ContextEdit)
	}
	registry.GlobalUniqueID.Add(hooks.DefaultPriority, fallback)
	registry.VariationGlobalID.Add(hooks.DefaultPriority, fallback)
}
