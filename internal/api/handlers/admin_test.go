package handlers

import (
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/internal/security"
	"github.com/athebyme/gomarket-platform/ean-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meta(t *testing.T, e *env, productID int64, key string) string {
	t.Helper()
	v, _ := e.catalog.Meta(productID, key)
	return v
}

func TestProductFieldsRenderEditValues(t *testing.T) {
	e := newEnv(t)
	e.catalog.SetMeta(1, models.MetaKeyMPN, "ABC-123")

	req := withParams(as(httptest.NewRequest(http.MethodGet, "/admin/products/1/fields", nil), "editor"), "id", "1")
	rec := serve(e.admin.ProductFields, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="_ts_mpn" id="_ts_mpn" value="ABC-123"`)
	// в контексте edit собственный GTIN платформы не подставляется
	assert.Contains(t, body, `name="_ts_gtin" id="_ts_gtin" value=""`)
	assert.Contains(t, body, `name="woocommerce_meta_nonce"`)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestProductFieldsUnknownProductIsEmpty(t *testing.T) {
	e := newEnv(t)

	req := withParams(as(httptest.NewRequest(http.MethodGet, "/admin/products/999/fields", nil), "editor"), "id", "999")
	rec := serve(e.admin.ProductFields, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestVariationFieldsUseLoopIndex(t *testing.T) {
	e := newEnv(t)
	e.catalog.SetMeta(11, models.MetaKeyGTIN, "12345670")

	req := withParams(as(httptest.NewRequest(http.MethodGet, "/admin/variations/11/fields?loop=3", nil), "editor"), "id", "11")
	rec := serve(e.admin.VariationFields, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="variable_gtin[3]" id="variable_gtin_3" value="12345670"`)
	assert.Contains(t, body, `name="variable_mpn[3]"`)
	assert.Contains(t, body, `name="variable_post_id[3]" value="11"`)
}

func TestInlineData(t *testing.T) {
	e := newEnv(t)
	e.catalog.SetMeta(1, models.MetaKeyGTIN, "4250123456789")

	req := withParams(as(httptest.NewRequest(http.MethodGet, "/admin/products/1/inline-data", nil), "editor"), "id", "1")
	rec := serve(e.admin.InlineData, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="jtl_ean_inline_1"`)
	assert.Contains(t, rec.Body.String(), `<div class="gtin">4250123456789</div>`)
}

func TestBlankEditRows(t *testing.T) {
	e := newEnv(t)

	rec := serve(e.admin.BulkEditFields, httptest.NewRequest(http.MethodGet, "/admin/bulk-edit", nil))
	assert.Contains(t, rec.Body.String(), `name="_ts_gtin" class="text gtin" placeholder="GTIN" value=""`)

	rec = serve(e.admin.QuickEditFields, httptest.NewRequest(http.MethodGet, "/admin/quick-edit", nil))
	assert.Contains(t, rec.Body.String(), `name="_ts_mpn" class="text mpn" value=""`)
}

func TestSaveProductNormalizesAndOverwrites(t *testing.T) {
	e := newEnv(t)
	e.catalog.SetMeta(1, models.MetaKeyMPN, "OLD")

	form := url.Values{}
	form.Set(security.FieldProductNonce, e.nonce(t, security.ActionSaveProduct))
	form.Set("_ts_gtin", "4250-1234-56789")
	form.Set("_ts_mpn", "")

	req := withParams(as(formRequest(http.MethodPost, "/admin/products/1", form), "editor"), "id", "1")
	rec := serve(e.admin.SaveProduct, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "4250123456789", meta(t, e, 1, models.MetaKeyGTIN))
	assert.Equal(t, "", meta(t, e, 1, models.MetaKeyMPN))
}

func TestSaveProductWithoutNonceOrCapabilityIsNoop(t *testing.T) {
	e := newEnv(t)

	form := url.Values{}
	form.Set(security.FieldProductNonce, "forged")
	form.Set("_ts_gtin", "4250123456789")
	req := withParams(as(formRequest(http.MethodPost, "/admin/products/1", form), "editor"), "id", "1")
	rec := serve(e.admin.SaveProduct, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := e.catalog.Meta(1, models.MetaKeyGTIN)
	assert.False(t, ok)

	form.Set(security.FieldProductNonce, e.nonce(t, security.ActionSaveProduct))
	req = withParams(as(formRequest(http.MethodPost, "/admin/products/1", form), "customer"), "id", "1")
	rec = serve(e.admin.SaveProduct, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok = e.catalog.Meta(1, models.MetaKeyGTIN)
	assert.False(t, ok)
}

func TestSaveVariations(t *testing.T) {
	e := newEnv(t)

	form := url.Values{}
	form.Set("variable_post_id[0]", "11")
	form.Set("variable_gtin[0]", "12345670")
	form.Set("variable_post_id[1]", "12")
	form.Set("variable_mpn[1]", "M-1")

	rec := serve(e.admin.SaveVariations, as(formRequest(http.MethodPost, "/admin/variations", form), "editor"))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "12345670", meta(t, e, 11, models.MetaKeyGTIN))
	assert.Equal(t, "M-1", meta(t, e, 12, models.MetaKeyMPN))
	_, ok := e.catalog.Meta(12, models.MetaKeyGTIN)
	assert.False(t, ok)
}

func TestBulkEditSkipsEmptyValues(t *testing.T) {
	e := newEnv(t)
	e.catalog.SetMeta(1, models.MetaKeyGTIN, "4250123456789")
	e.catalog.SetMeta(1, models.MetaKeyMPN, "OLD")

	form := url.Values{}
	form.Add("post[]", "1")
	form.Add("post[]", "10")
	form.Set("_ts_gtin", "")
	form.Set("_ts_mpn", "NEW")

	rec := serve(e.admin.SaveBulkEdit, as(formRequest(http.MethodPost, "/admin/bulk-edit", form), "editor"))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "4250123456789", meta(t, e, 1, models.MetaKeyGTIN))
	assert.Equal(t, "NEW", meta(t, e, 1, models.MetaKeyMPN))
	assert.Equal(t, "NEW", meta(t, e, 10, models.MetaKeyMPN))
}

func TestQuickEditOverwritesPresentKeys(t *testing.T) {
	e := newEnv(t)
	e.catalog.SetMeta(1, models.MetaKeyGTIN, "4250123456789")
	e.catalog.SetMeta(1, models.MetaKeyMPN, "KEEP")

	form := url.Values{}
	form.Set("_ts_gtin", "")

	req := withParams(as(formRequest(http.MethodPost, "/admin/products/1/quick-edit", form), "editor"), "id", "1")
	rec := serve(e.admin.SaveQuickEdit, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "", meta(t, e, 1, models.MetaKeyGTIN))
	assert.Equal(t, "KEEP", meta(t, e, 1, models.MetaKeyMPN))
}

func TestSettingsShowsStatistics(t *testing.T) {
	e := newEnv(t)
	e.catalog.SetMeta(1, models.MetaKeyGTIN, "4250123456789")
	e.catalog.SetMeta(11, models.MetaKeyGTIN, "12345670")
	e.catalog.SetMeta(11, models.MetaKeyMPN, "")

	rec := serve(e.admin.Settings, as(httptest.NewRequest(http.MethodGet, "/admin/settings", nil), "shop_manager"))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "JTL EAN Plugin Settings")
	assert.Contains(t, body, "<td><strong>Plugin Version:</strong></td>\n\t\t\t\t\t\t<td>1.0.0</td>")
	assert.Contains(t, body, "<td><strong>Products with GTIN:</strong></td>\n\t\t\t\t\t\t<td>2</td>")
	assert.Contains(t, body, "<td><strong>Products with MPN:</strong></td>\n\t\t\t\t\t\t<td>0</td>")
	assert.Contains(t, body, "<td><strong>Database Entries:</strong></td>\n\t\t\t\t\t\t<td>3</td>")
	assert.Contains(t, body, `name="jtl_ean_nonce"`)
	assert.Contains(t, body, `name="jtl_ean_export_nonce"`)
}

func uninstallForm(nonce string, confirmations ...string) url.Values {
	form := url.Values{}
	form.Set(security.FieldUninstallNonce, nonce)
	form.Set("jtl_ean_manual_uninstall", "1")
	for _, c := range confirmations {
		form.Set(c, "on")
	}
	return form
}

func TestManualUninstallChecks(t *testing.T) {
	e := newEnv(t)
	e.catalog.SetMeta(1, models.MetaKeyGTIN, "4250123456789")
	valid := e.nonce(t, security.ActionManualUninstall)

	cases := []struct {
		name    string
		form    url.Values
		roles   []string
		message string
	}{
		{"bad nonce", uninstallForm("forged", "confirm_data_deletion", "confirm_no_backup"), []string{"admin"}, "Security check failed."},
		{"wrong action nonce", uninstallForm(e.nonce(t, security.ActionExportData), "confirm_data_deletion", "confirm_no_backup"), []string{"admin"}, "Security check failed."},
		{"no capability", uninstallForm(valid, "confirm_data_deletion", "confirm_no_backup"), []string{"editor"}, "You do not have sufficient permissions."},
		{"one confirmation", uninstallForm(valid, "confirm_data_deletion"), []string{"admin"}, "Please confirm both checkboxes to proceed."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(e.admin.ManualUninstall, as(formRequest(http.MethodPost, "/admin/uninstall", tc.form), tc.roles...))

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.message)
			assert.Equal(t, "4250123456789", meta(t, e, 1, models.MetaKeyGTIN))
			assert.True(t, e.state.Active())
		})
	}
}

func TestManualUninstallPurgesAndRedirects(t *testing.T) {
	e := newEnv(t)
	e.catalog.SetMeta(1, models.MetaKeyGTIN, "4250123456789")
	e.catalog.SetMeta(11, models.MetaKeyGTIN, "12345670")
	e.catalog.SetMeta(11, models.MetaKeyMPN, "M-1")
	e.catalog.SetOption(models.OptionPluginVersion, "1.0.0")

	form := uninstallForm(e.nonce(t, security.ActionManualUninstall), "confirm_data_deletion", "confirm_no_backup")
	rec := serve(e.admin.ManualUninstall, as(formRequest(http.MethodPost, "/admin/uninstall", form), "shop_manager"))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/admin/plugins", loc.Path)
	assert.Equal(t, "success", loc.Query().Get("type"))
	assert.Equal(t,
		"JTL EAN Plugin successfully uninstalled! Deleted: 2 GTIN entries, 1 MPN entries. Database cleaned and plugin deactivated.",
		loc.Query().Get("message"))

	_, ok := e.catalog.Meta(1, models.MetaKeyGTIN)
	assert.False(t, ok)
	_, ok = e.catalog.Option(models.OptionPluginVersion)
	assert.False(t, ok)
	assert.False(t, e.state.Active())
	assert.ErrorIs(t, e.state.Err(), utils.ErrPluginDeactivated)
}

func TestExportWithoutDataIsFatal(t *testing.T) {
	e := newEnv(t)

	form := url.Values{}
	form.Set(security.FieldExportNonce, e.nonce(t, security.ActionExportData))
	rec := serve(e.admin.Export, as(formRequest(http.MethodPost, "/admin/export", form), "admin"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No EAN/GTIN data found to export.")
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestExportRejectsBadNonceAndCapability(t *testing.T) {
	e := newEnv(t)
	e.catalog.SetMeta(1, models.MetaKeyGTIN, "4250123456789")

	form := url.Values{}
	form.Set(security.FieldExportNonce, e.nonce(t, security.ActionManualUninstall))
	rec := serve(e.admin.Export, as(formRequest(http.MethodPost, "/admin/export", form), "admin"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Security check failed.")

	form.Set(security.FieldExportNonce, e.nonce(t, security.ActionExportData))
	rec = serve(e.admin.Export, as(formRequest(http.MethodPost, "/admin/export", form), "editor"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "You do not have sufficient permissions.")
}

func TestExportStreamsCSV(t *testing.T) {
	e := newEnv(t)
	e.admin.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	e.catalog.SetMeta(1, models.MetaKeyGTIN, "4250123456789")
	e.catalog.SetMeta(11, models.MetaKeyMPN, "M-1")

	form := url.Values{}
	form.Set(security.FieldExportNonce, e.nonce(t, security.ActionExportData))
	rec := serve(e.admin.Export, as(formRequest(http.MethodPost, "/admin/export", form), "admin"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=jtl-ean-export-2026-01-02-03-04-05.csv", rec.Header().Get("Content-Disposition"))

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Product ID", "Product Name", "Product Type", "GTIN/EAN", "MPN", "Export Date"},
		{"1", "Mug", "product", "4250123456789", "", "2026-01-02 03:04:05"},
		{"11", "Shirt - M", "product_variation", "", "M-1", "2026-01-02 03:04:05"},
	}, rows)
}

func TestPluginsPageShowsMessage(t *testing.T) {
	e := newEnv(t)
	e.state.Deactivate()

	req := httptest.NewRequest(http.MethodGet, "/admin/plugins?message=Done%21&type=success", nil)
	rec := serve(e.admin.Plugins, as(req, "admin"))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<div class="notice notice-success is-dismissible">`)
	assert.Contains(t, body, "<p>Done!</p>")
	assert.Contains(t, body, "Inactive")
}

func TestUnavailableRendersHostNotice(t *testing.T) {
	e := newEnv(t)

	rec := httptest.NewRecorder()
	e.admin.Unavailable(rec, httptest.NewRequest(http.MethodGet, "/admin/settings", nil), utils.ErrHostUnavailable)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), HostMissingNotice)
}

func TestAssetsServed(t *testing.T) {
	e := newEnv(t)

	rec := httptest.NewRecorder()
	http.StripPrefix("/admin/assets/", e.admin.Assets()).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/assets/admin.js", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jtl_ean_inline_")
}
