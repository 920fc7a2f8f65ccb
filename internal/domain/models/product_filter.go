package models

// Значения фильтра Has
const (
	HasAny  = ""
	HasGTIN = "gtin"
	HasMPN  = "mpn"
)

// IdentifierFilter задает выборку товаров с сохраненными идентификаторами
type IdentifierFilter struct {
	// Has ограничивает выборку товарами с непустым gtin или mpn.
	// Пустое значение означает "любой из двух".
	Has string `json:"has,omitempty" validate:"omitempty,oneof=gtin mpn"`

	// Type - тип товара (simple, variable, variation, ...)
	Type string `json:"type,omitempty" validate:"omitempty,oneof=simple variable variation external grouped"`

	// ParentID - только вариации указанного товара
	ParentID int64 `json:"parent_id,omitempty" validate:"omitempty,gt=0"`
}

// ToMap преобразует фильтр в map для логирования и ответа API
func (f *IdentifierFilter) ToMap() map[string]interface{} {
	result := make(map[string]interface{})

	if f.Has != "" {
		result["has"] = f.Has
	}

	if f.Type != "" {
		result["type"] = f.Type
	}

	if f.ParentID != 0 {
		result["parent_id"] = f.ParentID
	}

	return result
}
