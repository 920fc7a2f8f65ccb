// Package docs содержит описание REST API для swagger UI
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/products/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Товар с идентификаторами",
                "parameters": [
                    {"type": "integer", "description": "ID товара", "name": "id", "in": "path", "required": true},
                    {"enum": ["view", "edit"], "type": "string", "description": "Контекст", "name": "context", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.errorResponse"}}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Обновление товара",
                "parameters": [
                    {"type": "integer", "description": "ID товара", "name": "id", "in": "path", "required": true},
                    {"description": "Поля товара", "name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.errorResponse"}}
                }
            }
        },
        "/schemas/product": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Схема ресурса товара",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        },
        "/ean/products/{id}/gtin": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ean"],
                "summary": "Сохранение GTIN",
                "parameters": [
                    {"type": "integer", "description": "ID товара", "name": "id", "in": "path", "required": true},
                    {"description": "GTIN", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.gtinRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.gtinResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.errorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.errorResponse"}}
                }
            }
        },
        "/ean/products/{id}/mpn": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ean"],
                "summary": "Сохранение MPN",
                "parameters": [
                    {"type": "integer", "description": "ID товара", "name": "id", "in": "path", "required": true},
                    {"description": "MPN", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.mpnRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.mpnResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.errorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.errorResponse"}}
                }
            }
        },
        "/ean/identifiers": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ean"],
                "summary": "Товары с сохраненными идентификаторами",
                "parameters": [
                    {"enum": ["gtin", "mpn"], "type": "string", "name": "has", "in": "query"},
                    {"enum": ["simple", "variable", "variation", "external", "grouped"], "type": "string", "name": "type", "in": "query"},
                    {"type": "integer", "name": "parent_id", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "integer"},
                "message": {"type": "string"}
            }
        },
        "handlers.gtinRequest": {
            "type": "object",
            "required": ["gtin"],
            "properties": {"gtin": {"type": "string"}}
        },
        "handlers.gtinResponse": {
            "type": "object",
            "properties": {"id": {"type": "integer"}, "gtin": {"type": "string"}}
        },
        "handlers.mpnRequest": {
            "type": "object",
            "required": ["mpn"],
            "properties": {"mpn": {"type": "string"}}
        },
        "handlers.mpnResponse": {
            "type": "object",
            "properties": {"id": {"type": "integer"}, "mpn": {"type": "string"}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo содержит экспортируемую информацию Swagger
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "EAN Service API",
	Description:      "GTIN и MPN идентификаторы товаров каталога",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
