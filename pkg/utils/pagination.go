package utils

import "strconv"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination представляет модель пагинации для списков
type Pagination struct {
	Page       int   `json:"page"`        // Номер страницы (начиная с 1)
	PageSize   int   `json:"page_size"`   // Размер страницы
	TotalItems int64 `json:"total_items"` // Общее количество элементов
	TotalPages int   `json:"total_pages"` // Общее количество страниц
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// NewPagination создает Pagination, приводя параметры к допустимым границам
func NewPagination(page, pageSize int) *Pagination {
	if page < 1 {
		page = 1
	}

	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return &Pagination{
		Page:     page,
		PageSize: pageSize,
	}
}

// ParsePagination читает page и page_size из строковых параметров запроса
func ParsePagination(pageStr, pageSizeStr string) *Pagination {
	page, _ := strconv.Atoi(pageStr)
	pageSize, _ := strconv.Atoi(pageSizeStr)
	return NewPagination(page, pageSize)
}

// SetTotal устанавливает общее количество элементов и пересчитывает зависимые поля
func (p *Pagination) SetTotal(totalItems int64) {
	p.TotalItems = totalItems
	p.TotalPages = int((totalItems + int64(p.PageSize) - 1) / int64(p.PageSize))
	p.HasNext = p.Page < p.TotalPages
	p.HasPrev = p.Page > 1
}

// GetOffset возвращает смещение для SQL запроса
func (p *Pagination) GetOffset() int {
	return (p.Page - 1) * p.PageSize
}

// GetLimit возвращает лимит для SQL запроса
func (p *Pagination) GetLimit() int {
	return p.PageSize
}

// PagedResult представляет результат запроса с пагинацией
type PagedResult struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// NewPagedResult создает новый результат с пагинацией
func NewPagedResult(items interface{}, pagination *Pagination) *PagedResult {
	return &PagedResult{
		Items:      items,
		Pagination: pagination,
	}
}
