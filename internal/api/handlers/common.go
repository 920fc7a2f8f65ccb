package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/athebyme/gomarket-platform/ean-service/internal/utils"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// errorResponse представляет структуру ответа с ошибкой
type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// response представляет структуру успешного ответа
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// Коды ошибок в ответах API
const (
	codeBadRequest         = "bad_request"
	codeValidation         = "validation_error"
	codeProductNotFound    = "product_not_found"
	codeForbidden          = "forbidden"
	codeUnauthorized       = "unauthorized"
	codeInternal           = "internal_error"
	codePluginUnavailable  = "plugin_unavailable"
	codePluginDeactivated  = "plugin_deactivated"
	messageProductNotFound = "Product not found."
)

var validate = validator.New()

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{
		Error:   code,
		Code:    status,
		Message: message,
	})
}

// writeServiceError переводит ошибку сервиса в HTTP ответ. Неизвестные ошибки
// логируются и отдаются как 500 с сообщением message.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger interfaces.LoggerPort, err error, message string) {
	switch {
	case errors.Is(err, utils.ErrProductNotFound), errors.Is(err, utils.ErrInvalidProductId):
		writeError(w, r, http.StatusNotFound, codeProductNotFound, messageProductNotFound)
	case errors.Is(err, utils.ErrHostUnavailable), errors.Is(err, utils.ErrPluginDeactivated):
		PluginUnavailableJSON(w, r, err)
	default:
		logger.ErrorWithContext(r.Context(), message,
			interfaces.LogField{Key: "error", Value: err.Error()})
		writeError(w, r, http.StatusInternalServerError, codeInternal, message)
	}
}

// PluginUnavailableJSON отвечает 503 на функциональные маршруты API,
// пока плагин отключен или деактивирован
func PluginUnavailableJSON(w http.ResponseWriter, r *http.Request, reason error) {
	if errors.Is(reason, utils.ErrPluginDeactivated) {
		writeError(w, r, http.StatusServiceUnavailable, codePluginDeactivated, "plugin deactivated")
		return
	}
	writeError(w, r, http.StatusServiceUnavailable, codePluginUnavailable, HostMissingNotice)
}

// Forbidden отвечает 403 без права на операцию
func Forbidden(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusForbidden, codeForbidden, "Sorry, you are not allowed to do that.")
}

// Unauthorized отвечает 401 на запрос без токена
func Unauthorized(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusUnauthorized, codeUnauthorized, "Authentication required.")
}

// urlID читает положительный числовой параметр маршрута
func urlID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// decodeJSON разбирает тело запроса и проверяет его тегами validate
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}
