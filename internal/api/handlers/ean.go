package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	pkgutils "github.com/athebyme/gomarket-platform/ean-service/pkg/utils"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// EANHandler обслуживает собственные маршруты плагина /api/v1/ean
type EANHandler struct {
	service *services.IdentifierService
	logger  interfaces.LoggerPort
}

// NewEANHandler создает обработчик маршрутов идентификаторов
func NewEANHandler(service *services.IdentifierService, logger interfaces.LoggerPort) *EANHandler {
	return &EANHandler{
		service: service,
		logger:  logger,
	}
}

type gtinRequest struct {
	GTIN *string `json:"gtin" validate:"required"`
}

type mpnRequest struct {
	MPN *string `json:"mpn" validate:"required"`
}

type gtinResponse struct {
	ID   int64  `json:"id"`
	GTIN string `json:"gtin"`
}

type mpnResponse struct {
	ID  int64  `json:"id"`
	MPN string `json:"mpn"`
}

// UpdateGTIN сохраняет GTIN товара
//
//	@Summary	Изменение GTIN товара
//	@Tags		ean
//	@Accept		json
//	@Produce	json
//	@Param		id		path		int			true	"ID товара"
//	@Param		body	body		gtinRequest	true	"Новое значение"
//	@Success	200		{object}	gtinResponse
//	@Failure	400		{object}	errorResponse
//	@Failure	403		{object}	errorResponse
//	@Failure	404		{object}	errorResponse
//	@Router		/ean/products/{id}/gtin [put]
func (h *EANHandler) UpdateGTIN(w http.ResponseWriter, r *http.Request) {
	productID, ok := urlID(r, "id")
	if !ok {
		writeError(w, r, http.StatusNotFound, codeProductNotFound, messageProductNotFound)
		return
	}

	var req gtinRequest
	if !decodeIdentifierRequest(w, r, &req, models.FieldGTIN) {
		return
	}

	gtin, err := h.service.UpdateGTIN(r.Context(), productID, *req.GTIN)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка сохранения GTIN")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, gtinResponse{ID: productID, GTIN: gtin})
}

// UpdateMPN сохраняет MPN товара
//
//	@Summary	Изменение MPN товара
//	@Tags		ean
//	@Accept		json
//	@Produce	json
//	@Param		id		path		int			true	"ID товара"
//	@Param		body	body		mpnRequest	true	"Новое значение"
//	@Success	200		{object}	mpnResponse
//	@Failure	400		{object}	errorResponse
//	@Failure	403		{object}	errorResponse
//	@Failure	404		{object}	errorResponse
//	@Router		/ean/products/{id}/mpn [put]
func (h *EANHandler) UpdateMPN(w http.ResponseWriter, r *http.Request) {
	productID, ok := urlID(r, "id")
	if !ok {
		writeError(w, r, http.StatusNotFound, codeProductNotFound, messageProductNotFound)
		return
	}

	var req mpnRequest
	if !decodeIdentifierRequest(w, r, &req, models.FieldMPN) {
		return
	}

	mpn, err := h.service.UpdateMPN(r.Context(), productID, *req.MPN)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка сохранения MPN")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, mpnResponse{ID: productID, MPN: mpn})
}

// GetLegacyData отдает идентификаторы в формате старого коннектора
func (h *EANHandler) GetLegacyData(w http.ResponseWriter, r *http.Request) {
	productID, ok := urlID(r, "id")
	if !ok {
		writeError(w, r, http.StatusNotFound, codeProductNotFound, messageProductNotFound)
		return
	}

	data, err := h.service.GetLegacyData(r.Context(), productID)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка получения данных коннектора")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, data)
}

// SetLegacyData принимает данные старого коннектора {gtin|ean, mpn}
func (h *EANHandler) SetLegacyData(w http.ResponseWriter, r *http.Request) {
	productID, ok := urlID(r, "id")
	if !ok {
		writeError(w, r, http.StatusNotFound, codeProductNotFound, messageProductNotFound)
		return
	}

	var data models.Payload
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "Некорректный формат данных")
		return
	}

	if err := h.service.SetLegacyData(r.Context(), productID, data); err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка сохранения данных коннектора")
		return
	}

	h.GetLegacyData(w, r)
}

// ListIdentifiers возвращает страницу товаров с непустыми идентификаторами
//
//	@Summary	Товары с идентификаторами
//	@Tags		ean
//	@Produce	json
//	@Param		page		query		int		false	"Номер страницы"
//	@Param		page_size	query		int		false	"Размер страницы"
//	@Param		has			query		string	false	"gtin или mpn"
//	@Param		type		query		string	false	"Тип товара"
//	@Param		parent_id	query		int		false	"ID родительского товара"
//	@Success	200			{object}	response
//	@Failure	400			{object}	errorResponse
//	@Router		/ean/identifiers [get]
func (h *EANHandler) ListIdentifiers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := models.IdentifierFilter{
		Has:  query.Get("has"),
		Type: query.Get("type"),
	}
	if parent := query.Get("parent_id"); parent != "" {
		id, err := strconv.ParseInt(parent, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, codeValidation, "Некорректный parent_id")
			return
		}
		filter.ParentID = id
	}

	if err := validate.Struct(filter); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	pagination := pkgutils.ParsePagination(query.Get("page"), query.Get("page_size"))
	result, err := h.service.ListIdentifiers(r.Context(), filter, pagination)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка получения списка идентификаторов")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    result.Items,
		Meta: map[string]interface{}{
			"pagination": result.Pagination,
			"filter":     filter.ToMap(),
		},
	})
}

// decodeIdentifierRequest разбирает тело {gtin} или {mpn}. Отсутствие поля - 400.
func decodeIdentifierRequest(w http.ResponseWriter, r *http.Request, dst interface{}, field string) bool {
	err := decodeJSON(r, dst)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) || errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, codeValidation, "Missing parameter(s): "+field)
		return false
	}

	writeError(w, r, http.StatusBadRequest, codeBadRequest, "Некорректный формат данных")
	return false
}
