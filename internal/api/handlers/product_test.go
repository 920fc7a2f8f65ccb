package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/athebyme/gomarket-platform/ean-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProductAddsIdentifiers(t *testing.T) {
	e := newEnv(t)
	e.catalog.SetMeta(1, models.MetaKeyMPN, "ABC-123")
	h := NewProductHandler(e.products, logger.NewNopLogger())

	req := withParams(as(httptest.NewRequest(http.MethodGet, "/api/v1/products/1", nil), "editor"), "id", "1")
	rec := serve(h.GetProduct, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "00012345600012", body["gtin"])
	assert.Equal(t, "ABC-123", body["mpn"])
	assert.Equal(t, "00012345600012", body["global_unique_id"])

	req = withParams(as(httptest.NewRequest(http.MethodGet, "/api/v1/products/1?context=edit", nil), "editor"), "id", "1")
	rec = serve(h.GetProduct, req)
	assert.Equal(t, "", decodeBody(t, rec)["gtin"])
}

func TestGetProductNotFound(t *testing.T) {
	e := newEnv(t)
	h := NewProductHandler(e.products, logger.NewNopLogger())

	for _, id := range []string{"999", "abc", "0"} {
		req := withParams(as(httptest.NewRequest(http.MethodGet, "/api/v1/products/"+id, nil), "editor"), "id", id)
		rec := serve(h.GetProduct, req)

		assert.Equal(t, http.StatusNotFound, rec.Code, id)
		assert.Equal(t, "product_not_found", decodeBody(t, rec)["error"])
	}
}

func TestUpdateProductAppliesIdentifiers(t *testing.T) {
	e := newEnv(t)
	h := NewProductHandler(e.products, logger.NewNopLogger())

	req := withParams(as(jsonRequest(http.MethodPut, "/api/v1/products/10", `{"gtin":"4250123456789","name":"ignored"}`), "editor"), "id", "10")
	rec := serve(h.UpdateProduct, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "4250123456789", body["gtin"])
	assert.Equal(t, "4250123456789", body["global_unique_id"])
	assert.Equal(t, "4250123456789", meta(t, e, 10, models.MetaKeyGTIN))
}

func TestUpdateProductWithoutCapabilityIsSkipped(t *testing.T) {
	e := newEnv(t)
	h := NewProductHandler(e.products, logger.NewNopLogger())

	req := withParams(as(jsonRequest(http.MethodPatch, "/api/v1/products/10", `{"mpn":"X-1"}`), "customer"), "id", "10")
	rec := serve(h.UpdateProduct, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", decodeBody(t, rec)["mpn"])
	_, ok := e.catalog.Meta(10, models.MetaKeyMPN)
	assert.False(t, ok)
}

func TestVariationRoutes(t *testing.T) {
	e := newEnv(t)
	e.catalog.SetMeta(12, models.MetaKeyMPN, "L-1")
	h := NewProductHandler(e.products, logger.NewNopLogger())

	req := withParams(as(httptest.NewRequest(http.MethodGet, "/api/v1/products/10/variations/12", nil), "editor"), "id", "10", "vid", "12")
	rec := serve(h.GetVariation, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "L-1", body["mpn"])
	assert.Equal(t, float64(10), body["parent_id"])

	// вариация чужого товара не находится
	req = withParams(as(httptest.NewRequest(http.MethodGet, "/api/v1/products/1/variations/12", nil), "editor"), "id", "1", "vid", "12")
	rec = serve(h.GetVariation, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = withParams(as(jsonRequest(http.MethodPut, "/api/v1/products/10/variations/11", `{"gtin":"12345670"}`), "editor"), "id", "10", "vid", "11")
	rec = serve(h.UpdateVariation, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345670", meta(t, e, 11, models.MetaKeyGTIN))

	req = withParams(as(httptest.NewRequest(http.MethodGet, "/api/v1/products/10/variations", nil), "editor"), "id", "10")
	rec = serve(h.ListVariations, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mpn":"L-1"`)
	assert.Contains(t, rec.Body.String(), `"gtin":"12345670"`)
}

func TestSchemasIncludeIdentifiers(t *testing.T) {
	e := newEnv(t)
	h := NewProductHandler(e.products, logger.NewNopLogger())

	for _, handler := range []http.HandlerFunc{h.ProductSchema, h.VariationSchema} {
		rec := serve(handler, httptest.NewRequest(http.MethodGet, "/api/v1/schemas/product", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		props := decodeBody(t, rec)["properties"].(map[string]interface{})
		gtin := props["gtin"].(map[string]interface{})
		assert.Equal(t, "string", gtin["type"])
		assert.Equal(t, []interface{}{"view", "edit"}, gtin["context"])
		assert.Contains(t, props, "mpn")
	}
}

func TestBadJSONBody(t *testing.T) {
	e := newEnv(t)
	h := NewProductHandler(e.products, logger.NewNopLogger())

	req := withParams(as(jsonRequest(http.MethodPut, "/api/v1/products/10", `[1,2`), "editor"), "id", "10")
	rec := serve(h.UpdateProduct, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
