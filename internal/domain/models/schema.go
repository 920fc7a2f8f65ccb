package models

import "strconv"

// Payload - REST представление товара или тело запроса на его изменение
type Payload map[string]interface{}

// String возвращает строковое значение поля и признак его наличия.
// Числа приводятся к строке. null и значения других типов считаются
// отсутствующими.
func (p Payload) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}

	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return formatNumber(val), true
	case int64:
		return formatNumber(float64(val)), true
	case int:
		return formatNumber(float64(val)), true
	default:
		return "", false
	}
}

// Has сообщает, присутствует ли поле
func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// SchemaProperty описывает поле ресурса в опубликованной схеме
type SchemaProperty struct {
	Description string      `json:"description"`
	Type        string      `json:"type"`
	Context     []string    `json:"context"`
	Default     interface{} `json:"default,omitempty"`
	ReadOnly    bool        `json:"readonly,omitempty"`
}

// Schema - опубликованная JSON схема REST ресурса
type Schema struct {
	Schema     string                    `json:"$schema"`
	Title      string                    `json:"title"`
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties,omitempty"`
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
