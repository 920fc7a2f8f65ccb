package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/ean-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/hooks"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/validation"
	"github.com/athebyme/gomarket-platform/ean-service/internal/security"
	"github.com/athebyme/gomarket-platform/ean-service/internal/testutil"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/auth"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	basemodels "github.com/athebyme/gomarket-platform/ean-service/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenAuth принимает токен вида "<роль>-token"
type tokenAuth struct{}

func (tokenAuth) Authenticate(_ context.Context, token string) (*interfaces.Principal, error) {
	role, ok := strings.CutSuffix(token, "-token")
	if !ok {
		return nil, errors.New("bad token")
	}
	return &interfaces.Principal{UserID: "u-" + role, Roles: []string{role}}, nil
}

// pinger - зависимость, доступность которой задает тест
type pinger struct{ err error }

func (p *pinger) Ping(context.Context) error { return p.err }
func (p *pinger) Close() error               { return nil }

type testRouter struct {
	mux     *chi.Mux
	catalog *testutil.MemoryCatalog
	state   *services.PluginState
	redis   *pinger
}

func newTestRouter(t *testing.T) *testRouter {
	t.Helper()

	log := logger.NewNopLogger()
	settings := models.PluginSettings{Version: "1.0.0", CacheTTL: time.Minute}
	catalog := testutil.NewMemoryCatalog()
	catalog.AddProduct(&basemodels.Product{ID: 1, Type: basemodels.ProductTypeSimple, Name: "Mug"})

	registry := hooks.NewRegistry()
	state := services.NewPluginState()
	caps := security.NewAuthorizer(nil)
	accessors := services.NewAccessorFactory(catalog, catalog, testutil.NoTx{}, nil, registry, validation.NewNormalizer(log, false, nil), log, settings)
	identifiers := services.NewIdentifierService(catalog, testutil.NoTx{}, nil, accessors, registry, state, log, settings)
	services.RegisterAPISurface(registry, accessors, caps, log)

	nonces, err := security.NewNonceManager("secret", time.Hour)
	require.NoError(t, err)

	redis := &pinger{}

	mux, err := SetupRouter(RouterConfig{
		Logger:         log,
		Identifiers:    identifiers,
		Products:       services.NewProductService(catalog, registry),
		Caps:           caps,
		Nonces:         nonces,
		Auth:           tokenAuth{},
		RequestTimeout: time.Second,
		BodyLimitMB:    1,
		Readiness: map[string]interfaces.StoragePort{
			"postgres": catalog,
			"redis":    redis,
		},
	})
	require.NoError(t, err)

	return &testRouter{mux: mux, catalog: catalog, state: state, redis: redis}
}

func (tr *testRouter) do(method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	tr.mux.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	tr := newTestRouter(t)

	rec := tr.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestReadiness(t *testing.T) {
	tr := newTestRouter(t)

	rec := tr.do(http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"postgres":"ok","redis":"ok"}`, rec.Body.String())

	tr.redis.err = errors.New("connection refused")
	rec = tr.do(http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"postgres":"ok","redis":"unavailable"}`, rec.Body.String())
}

func TestAPIRequiresToken(t *testing.T) {
	tr := newTestRouter(t)

	assert.Equal(t, http.StatusUnauthorized, tr.do(http.MethodGet, "/api/v1/products/1", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, tr.do(http.MethodGet, "/api/v1/products/1", "garbage", "").Code)
	assert.Equal(t, http.StatusOK, tr.do(http.MethodGet, "/api/v1/products/1", "customer-token", "").Code)
}

func TestCustomRoutesRequireEditCapability(t *testing.T) {
	tr := newTestRouter(t)

	rec := tr.do(http.MethodPut, "/api/v1/ean/products/1/gtin", "customer-token", `{"gtin":"4250123456789"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	_, ok := tr.catalog.Meta(1, models.MetaKeyGTIN)
	assert.False(t, ok)

	rec = tr.do(http.MethodPatch, "/api/v1/ean/products/1/gtin", "editor-token", `{"gtin":"4250123456789"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1,"gtin":"4250123456789"}`, rec.Body.String())

	// права проверяются раньше поиска товара
	rec = tr.do(http.MethodPut, "/api/v1/ean/products/999/mpn", "customer-token", `{"mpn":"X"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = tr.do(http.MethodPut, "/api/v1/ean/products/999/mpn", "editor-token", `{"mpn":"X"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDisabledPluginAnswers503(t *testing.T) {
	tr := newTestRouter(t)
	tr.state.SetHostAvailable(false)

	rec := tr.do(http.MethodGet, "/api/v1/products/1", "admin-token", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "JTL EAN Plugin requires WooCommerce to be installed and active.")

	rec = tr.do(http.MethodGet, "/admin/settings", "admin-token", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "JTL EAN Plugin requires WooCommerce to be installed and active.")

	rec = tr.do(http.MethodGet, "/admin/plugins", "admin-token", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeactivatedPluginAnswers503(t *testing.T) {
	tr := newTestRouter(t)
	tr.state.Deactivate()

	rec := tr.do(http.MethodPut, "/api/v1/ean/products/1/gtin", "admin-token", `{"gtin":"4250123456789"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "plugin deactivated")
}

func TestAdminRedirectsToLogin(t *testing.T) {
	tr := newTestRouter(t)

	rec := tr.do(http.MethodGet, "/admin/settings", "", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/login", rec.Header().Get("Location"))
}

func TestAdminSessionCookie(t *testing.T) {
	tr := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: "shop_manager-token"})
	rec := httptest.NewRecorder()
	tr.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "JTL EAN Plugin Settings")

	req = httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: "editor-token"})
	rec = httptest.NewRecorder()
	tr.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "You do not have sufficient permissions.")
}

func TestSchemaRoute(t *testing.T) {
	tr := newTestRouter(t)

	rec := tr.do(http.MethodGet, "/api/v1/schemas/product_variation", "customer-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mpn"`)
}

func TestAdminAssets(t *testing.T) {
	tr := newTestRouter(t)

	rec := tr.do(http.MethodGet, "/admin/assets/admin.css", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".jtl-ean-variation-fields")
}
