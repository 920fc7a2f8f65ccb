package api

import (
	"context"
	"net/http"
	"time"

	"github.com/athebyme/gomarket-platform/ean-service/internal/api/handlers"
	"github.com/athebyme/gomarket-platform/ean-service/internal/api/middleware"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/ean-service/internal/security"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/auth"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	httpSwagger "github.com/swaggo/http-swagger"
)

// HTTPMetrics - коллекторы HTTP метрик, любой может быть nil
type HTTPMetrics struct {
	Durations *prometheus.HistogramVec
	Requests  *prometheus.CounterVec
	Active    prometheus.Gauge
}

// RouterConfig содержит зависимости маршрутизатора
type RouterConfig struct {
	Logger      interfaces.LoggerPort
	Identifiers *services.IdentifierService
	Products    *services.ProductService
	Caps        services.CapabilityChecker
	Nonces      *security.NonceManager
	Auth        interfaces.AuthPort

	// OAuth - вход в админку через Keycloak, nil если выключен
	OAuth handlers.OAuthFlow

	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
	BodyLimitMB        int
	RateLimitRPS       float64
	RateLimitBurst     int
	SecureCookies      bool
	Metrics            HTTPMetrics

	// Readiness - зависимости, которые проверяет /ready
	Readiness map[string]interfaces.StoragePort
}

// SetupRouter настраивает маршрутизатор
func SetupRouter(cfg RouterConfig) (*chi.Mux, error) {
	logger := cfg.Logger
	state := cfg.Identifiers.State()

	adminHandler, err := handlers.NewAdminHandler(cfg.Identifiers, cfg.Caps, cfg.Nonces, logger)
	if err != nil {
		return nil, err
	}
	productHandler := handlers.NewProductHandler(cfg.Products, logger)
	eanHandler := handlers.NewEANHandler(cfg.Identifiers, logger)
	authHandler := handlers.NewAuthHandler(cfg.OAuth, cfg.SecureCookies, logger)

	r := chi.NewRouter()

	// Глобальные middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Metrics(cfg.Metrics.Durations, cfg.Metrics.Requests, cfg.Metrics.Active))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.BodyLimit(cfg.BodyLimitMB))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))

	r.Method(http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	r.Method(http.MethodHead, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r.Get("/ready", readinessHandler(cfg.Readiness, logger))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.AuthMiddleware(cfg.Auth, logger, handlers.Unauthorized))
		r.Use(middleware.PluginActive(state, handlers.PluginUnavailableJSON))

		// REST ресурс товаров платформы
		r.Route("/products/{id}", func(r chi.Router) {
			r.Get("/", productHandler.GetProduct)
			r.Put("/", productHandler.UpdateProduct)
			r.Patch("/", productHandler.UpdateProduct)

			r.Get("/variations", productHandler.ListVariations)
			r.Get("/variations/{vid}", productHandler.GetVariation)
			r.Put("/variations/{vid}", productHandler.UpdateVariation)
			r.Patch("/variations/{vid}", productHandler.UpdateVariation)
		})

		r.Get("/schemas/product", productHandler.ProductSchema)
		r.Get("/schemas/product_variation", productHandler.VariationSchema)

		// Собственные маршруты плагина
		r.Route("/ean", func(r chi.Router) {
			r.Use(middleware.RequireCapability(cfg.Caps, models.CapEditProducts, handlers.Forbidden))

			r.Put("/products/{id}/gtin", eanHandler.UpdateGTIN)
			r.Patch("/products/{id}/gtin", eanHandler.UpdateGTIN)
			r.Put("/products/{id}/mpn", eanHandler.UpdateMPN)
			r.Patch("/products/{id}/mpn", eanHandler.UpdateMPN)

			r.Get("/products/{id}/legacy", eanHandler.GetLegacyData)
			r.Put("/products/{id}/legacy", eanHandler.SetLegacyData)

			r.Get("/identifiers", eanHandler.ListIdentifiers)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Handle("/assets/*", http.StripPrefix("/admin/assets/", adminHandler.Assets()))
		r.Get("/login", authHandler.Login)
		r.Get("/callback", authHandler.Callback)

		r.Group(func(r chi.Router) {
			r.Use(auth.AuthMiddleware(cfg.Auth, logger, handlers.RedirectToLogin))

			r.Get("/plugins", adminHandler.Plugins)

			r.Group(func(r chi.Router) {
				r.Use(middleware.PluginActive(state, adminHandler.Unavailable))

				// Фрагменты для встраивания в админку платформы
				r.Get("/products/{id}/fields", adminHandler.ProductFields)
				r.Get("/products/{id}/inline-data", adminHandler.InlineData)
				r.Get("/variations/{id}/fields", adminHandler.VariationFields)
				r.Get("/bulk-edit", adminHandler.BulkEditFields)
				r.Get("/quick-edit", adminHandler.QuickEditFields)

				r.Post("/products/{id}", adminHandler.SaveProduct)
				r.Post("/products/{id}/quick-edit", adminHandler.SaveQuickEdit)
				r.Post("/variations", adminHandler.SaveVariations)
				r.Post("/bulk-edit", adminHandler.SaveBulkEdit)

				r.With(middleware.RequireCapability(cfg.Caps, models.CapManageCatalog, adminHandler.Denied)).
					Get("/settings", adminHandler.Settings)
				r.Post("/uninstall", adminHandler.ManualUninstall)
				r.Post("/export", adminHandler.Export)
			})
		})
	})

	return r, nil
}

const readinessTimeout = 2 * time.Second

// readinessHandler пингует зависимости и отвечает 503, если хотя бы одна недоступна
func readinessHandler(checks map[string]interfaces.StoragePort, logger interfaces.LoggerPort) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := http.StatusOK
		result := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check.Ping(ctx); err != nil {
				logger.WarnWithContext(ctx, "Зависимость недоступна",
					interfaces.LogField{Key: "dependency", Value: name},
					interfaces.LogField{Key: "error", Value: err.Error()})
				result[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			result[name] = "ok"
		}

		render.Status(r, status)
		render.JSON(w, r, result)
	}
}
