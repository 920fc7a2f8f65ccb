package models

import "time"

// ProductType тип товара в каталоге платформы
type ProductType string

const (
	ProductTypeSimple    ProductType = "simple"
	ProductTypeVariable  ProductType = "variable"
	ProductTypeVariation ProductType = "variation"
	ProductTypeExternal  ProductType = "external"
	ProductTypeGrouped   ProductType = "grouped"
)

// Product - товар каталога платформы. Сервис идентификаторов его не создает
// и не удаляет, только читает.
type Product struct {
	ID       int64       `json:"id"`
	ParentID int64       `json:"parent_id"`
	Type     ProductType `json:"type"`
	Name     string      `json:"name"`
	SKU      string      `json:"sku"`
	Status   string      `json:"status"`
	// GlobalUniqueID - собственное поле GTIN платформы
	GlobalUniqueID string `json:"global_unique_id"`
	// Children - ID вариаций для вариативного товара
	Children  []int64   `json:"variations,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsType проверяет тип товара
func (p *Product) IsType(t ProductType) bool {
	return p != nil && p.Type == t
}

// IsVariation сообщает, является ли товар вариацией
func (p *Product) IsVariation() bool {
	return p.IsType(ProductTypeVariation)
}

// IsVariable сообщает, является ли товар вариативным (родительским)
func (p *Product) IsVariable() bool {
	return p.IsType(ProductTypeVariable)
}
