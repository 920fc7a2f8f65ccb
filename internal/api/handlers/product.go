package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/go-chi/render"
)

// ProductHandler обработчик REST ресурса товаров платформы
type ProductHandler struct {
	productService *services.ProductService
	logger         interfaces.LoggerPort
}

// NewProductHandler создает новый обработчик продуктов
func NewProductHandler(productService *services.ProductService, logger interfaces.LoggerPort) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// GetProduct обрабатывает запрос на получение продукта по ID
//
//	@Summary	Товар с идентификаторами
//	@Tags		products
//	@Produce	json
//	@Param		id		path		int		true	"ID товара"
//	@Param		context	query		string	false	"view или edit"
//	@Success	200		{object}	map[string]interface{}
//	@Failure	404		{object}	errorResponse
//	@Router		/products/{id} [get]
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := urlID(r, "id")
	if !ok {
		writeError(w, r, http.StatusNotFound, codeProductNotFound, messageProductNotFound)
		return
	}

	product, err := h.productService.GetProduct(r.Context(), productID, models.ParseContext(r.URL.Query().Get("context")))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка получения продукта")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, product)
}

// UpdateProduct применяет тело запроса к товару через цепочку pre-insert
//
//	@Summary	Изменение товара
//	@Tags		products
//	@Accept		json
//	@Produce	json
//	@Param		id	path		int	true	"ID товара"
//	@Success	200	{object}	map[string]interface{}
//	@Failure	400	{object}	errorResponse
//	@Failure	404	{object}	errorResponse
//	@Router		/products/{id} [put]
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := urlID(r, "id")
	if !ok {
		writeError(w, r, http.StatusNotFound, codeProductNotFound, messageProductNotFound)
		return
	}

	request, ok := h.decodePayload(w, r)
	if !ok {
		return
	}

	product, err := h.productService.UpdateProduct(r.Context(), productID, request)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка обновления продукта")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, product)
}

// GetVariation обрабатывает запрос на получение вариации товара
func (h *ProductHandler) GetVariation(w http.ResponseWriter, r *http.Request) {
	parentID, ok := urlID(r, "id")
	variationID, vok := urlID(r, "vid")
	if !ok || !vok {
		writeError(w, r, http.StatusNotFound, codeProductNotFound, messageProductNotFound)
		return
	}

	variation, err := h.productService.GetVariation(r.Context(), parentID, variationID, models.ParseContext(r.URL.Query().Get("context")))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка получения вариации")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, variation)
}

// UpdateVariation применяет тело запроса к вариации товара
func (h *ProductHandler) UpdateVariation(w http.ResponseWriter, r *http.Request) {
	parentID, ok := urlID(r, "id")
	variationID, vok := urlID(r, "vid")
	if !ok || !vok {
		writeError(w, r, http.StatusNotFound, codeProductNotFound, messageProductNotFound)
		return
	}

	request, ok := h.decodePayload(w, r)
	if !ok {
		return
	}

	variation, err := h.productService.UpdateVariation(r.Context(), parentID, variationID, request)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка обновления вариации")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, variation)
}

// ListVariations возвращает все вариации товара
func (h *ProductHandler) ListVariations(w http.ResponseWriter, r *http.Request) {
	parentID, ok := urlID(r, "id")
	if !ok {
		writeError(w, r, http.StatusNotFound, codeProductNotFound, messageProductNotFound)
		return
	}

	variations, err := h.productService.ListVariations(r.Context(), parentID, models.ParseContext(r.URL.Query().Get("context")))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка получения списка вариаций")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, variations)
}

// ProductSchema публикует схему ресурса товара
//
//	@Summary	Схема ресурса товара
//	@Tags		schemas
//	@Produce	json
//	@Success	200	{object}	models.Schema
//	@Router		/schemas/product [get]
func (h *ProductHandler) ProductSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.productService.ProductSchema(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка построения схемы товара")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, schema)
}

// VariationSchema публикует схему ресурса вариации
func (h *ProductHandler) VariationSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.productService.VariationSchema(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка построения схемы вариации")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, schema)
}

func (h *ProductHandler) decodePayload(w http.ResponseWriter, r *http.Request) (models.Payload, bool) {
	var request models.Payload
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "Некорректный формат данных")
		return nil, false
	}
	if request == nil {
		request = models.Payload{}
	}
	return request, true
}
