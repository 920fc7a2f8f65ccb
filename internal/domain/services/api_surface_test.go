package services

import (
	"context"
	"testing"

	"github.com/athebyme/gomarket-platform/ean-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSurfaceFixture(t *testing.T, allowed bool) *fixture {
	t.Helper()
	f := newFixture(t)
	RegisterAPISurface(f.hooks, f.accessors, allowAll(allowed), logger.NewNopLogger())
	return f
}

func TestPrepareAddsIdentifiersByContext(t *testing.T) {
	f := newSurfaceFixture(t, true)
	ctx := context.Background()
	f.catalog.SetMeta(1, models.MetaKeyMPN, "MUG-1")

	view, err := f.products.GetProduct(ctx, 1, models.ContextView)
	require.NoError(t, err)
	assert.Equal(t, "00012345600012", view["gtin"])
	assert.Equal(t, "MUG-1", view["mpn"])
	assert.Equal(t, "00012345600012", view["global_unique_id"])

	edit, err := f.products.GetProduct(ctx, 1, models.ContextEdit)
	require.NoError(t, err)
	assert.Equal(t, "", edit["gtin"])
}

func TestGlobalUniqueIDFallsBackToStoredGTIN(t *testing.T) {
	f := newSurfaceFixture(t, true)
	ctx := context.Background()
	f.catalog.SetMeta(11, models.MetaKeyGTIN, "12345670")

	v, err := f.products.GetVariation(ctx, 10, 11, models.ContextView)
	require.NoError(t, err)
	assert.Equal(t, "12345670", v["global_unique_id"])
	assert.Equal(t, "12345670", v["gtin"])
	assert.Equal(t, int64(10), v["parent_id"])

	_, err = f.products.GetVariation(ctx, 1, 11, models.ContextView)
	assert.ErrorIs(t, err, utils.ErrProductNotFound)
}

func TestListVariations(t *testing.T) {
	f := newSurfaceFixture(t, true)

	list, err := f.products.ListVariations(context.Background(), 10, models.ContextView)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(11), list[0]["id"])
	assert.Contains(t, list[1], "gtin")
}

func TestPreInsertSavesIdentifiers(t *testing.T) {
	f := newSurfaceFixture(t, true)
	ctx := context.Background()

	out, err := f.products.UpdateProduct(ctx, 1, models.Payload{"gtin": "4250123456789", "mpn": "A B"})
	require.NoError(t, err)
	assert.Equal(t, "4250123456789", out["gtin"])
	assert.Equal(t, "AB", out["mpn"])

	gtin, _ := f.catalog.Meta(1, models.MetaKeyGTIN)
	assert.Equal(t, "4250123456789", gtin)
}

func TestPreInsertWithoutFieldsWritesNothing(t *testing.T) {
	f := newSurfaceFixture(t, true)

	_, err := f.products.UpdateVariation(context.Background(), 10, 12, models.Payload{"name": "x"})
	require.NoError(t, err)

	_, ok := f.catalog.Meta(12, models.MetaKeyGTIN)
	assert.False(t, ok)
}

func TestPreInsertIgnoresNullAndNonScalarValues(t *testing.T) {
	f := newSurfaceFixture(t, true)
	ctx := context.Background()
	f.catalog.SetMeta(1, models.MetaKeyGTIN, "4250123456789")
	f.catalog.SetMeta(1, models.MetaKeyMPN, "KEEP-1")

	_, err := f.products.UpdateProduct(ctx, 1, models.Payload{"gtin": nil, "name": "x"})
	require.NoError(t, err)
	_, err = f.products.UpdateProduct(ctx, 1, models.Payload{"mpn": map[string]interface{}{"a": 1.0}})
	require.NoError(t, err)
	_, err = f.products.UpdateProduct(ctx, 1, models.Payload{"gtin": []interface{}{"4250123456789"}, "mpn": true})
	require.NoError(t, err)

	gtin, _ := f.catalog.Meta(1, models.MetaKeyGTIN)
	assert.Equal(t, "4250123456789", gtin)
	mpn, _ := f.catalog.Meta(1, models.MetaKeyMPN)
	assert.Equal(t, "KEEP-1", mpn)
}

func TestPreInsertWithoutCapabilityIsSkipped(t *testing.T) {
	f := newSurfaceFixture(t, false)

	_, err := f.products.UpdateProduct(context.Background(), 1, models.Payload{"gtin": "4250123456789"})
	require.NoError(t, err)

	_, ok := f.catalog.Meta(1, models.MetaKeyGTIN)
	assert.False(t, ok)
}

func TestSchemasAreExtended(t *testing.T) {
	f := newSurfaceFixture(t, true)
	ctx := context.Background()

	product, err := f.products.ProductSchema(ctx)
	require.NoError(t, err)
	require.Contains(t, product.Properties, "gtin")
	assert.Equal(t, "Global Trade Item Number (GTIN)", product.Properties["gtin"].Description)
	assert.Equal(t, []string{"view", "edit"}, product.Properties["mpn"].Context)
	assert.Equal(t, "", product.Properties["mpn"].Default)

	variation, err := f.products.VariationSchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Manufacturer Part Number (MPN)", variation.Properties["mpn"].Description)
}

func TestVariationSchemaWithoutPropertiesIsUntouched(t *testing.T) {
	f := newSurfaceFixture(t, true)

	schema, err := f.hooks.VariationSchema.Apply(context.Background(), models.Schema{Title: "product_variation"}, struct{}{})
	require.NoError(t, err)
	assert.Nil(t, schema.Properties)

	product, err := f.hooks.ProductSchema.Apply(context.Background(), models.Schema{Title: "product"}, struct{}{})
	require.NoError(t, err)
	assert.Len(t, product.Properties, 2)
}

func TestProductServiceNotFound(t *testing.T) {
	f := newSurfaceFixture(t, true)

	_, err := f.products.GetProduct(context.Background(), 404, models.ContextView)
	assert.ErrorIs(t, err, utils.ErrProductNotFound)

	_, err = f.products.UpdateProduct(context.Background(), -1, nil)
	assert.ErrorIs(t, err, utils.ErrInvalidProductId)
}
