package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
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
	"github.com/stretchr/testify/require"
)

const testUser = "u1"

type env struct {
	catalog  *testutil.MemoryCatalog
	cache    *testutil.MemoryCache
	state    *services.PluginState
	service  *services.IdentifierService
	products *services.ProductService
	nonces   *security.NonceManager
	admin    *AdminHandler
}

func newEnv(t *testing.T) *env {
	t.Helper()

	log := logger.NewNopLogger()
	settings := models.PluginSettings{Version: "1.0.0", Debug: true, CacheTTL: time.Minute}

	e := &env{
		catalog: testutil.NewMemoryCatalog(),
		cache:   testutil.NewMemoryCache(),
		state:   services.NewPluginState(),
	}

	registry := hooks.NewRegistry()
	caps := security.NewAuthorizer(nil)
	normalizer := validation.NewNormalizer(log, false, nil)
	accessors := services.NewAccessorFactory(e.catalog, e.catalog, testutil.NoTx{}, e.cache, registry, normalizer, log, settings)
	e.service = services.NewIdentifierService(e.catalog, testutil.NoTx{}, e.cache, accessors, registry, e.state, log, settings)
	services.RegisterAPISurface(registry, accessors, caps, log)
	e.products = services.NewProductService(e.catalog, registry)

	var err error
	e.nonces, err = security.NewNonceManager("test-secret", time.Hour)
	require.NoError(t, err)
	e.admin, err = NewAdminHandler(e.service, caps, e.nonces, log)
	require.NoError(t, err)

	e.catalog.AddProduct(&basemodels.Product{ID: 1, Type: basemodels.ProductTypeSimple, Name: "Mug", GlobalUniqueID: "00012345600012"})
	e.catalog.AddProduct(&basemodels.Product{ID: 10, Type: basemodels.ProductTypeVariable, Name: "Shirt"})
	e.catalog.AddProduct(&basemodels.Product{ID: 11, ParentID: 10, Type: basemodels.ProductTypeVariation, Name: "Shirt - M"})
	e.catalog.AddProduct(&basemodels.Product{ID: 12, ParentID: 10, Type: basemodels.ProductTypeVariation, Name: "Shirt - L"})

	return e
}

func (e *env) nonce(t *testing.T, action string) string {
	t.Helper()
	token, err := e.nonces.Create(testUser, action)
	require.NoError(t, err)
	return token
}

// as выполняет запрос от имени пользователя с ролями roles
func as(req *http.Request, roles ...string) *http.Request {
	p := &interfaces.Principal{UserID: testUser, Username: "tester", Roles: roles}
	return req.WithContext(auth.WithPrincipal(req.Context(), p))
}

// withParams добавляет параметры маршрута chi
func withParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}
