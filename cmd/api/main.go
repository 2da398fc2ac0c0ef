package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/admin"
	"github.com/noah-isme/toko-storefront/internal/analytics"
	"github.com/noah-isme/toko-storefront/internal/app"
	"github.com/noah-isme/toko-storefront/internal/audit"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/config"
	"github.com/noah-isme/toko-storefront/internal/health"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/order"
	"github.com/noah-isme/toko-storefront/internal/ratelimit"
	"github.com/noah-isme/toko-storefront/internal/security"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/tenant"
	"github.com/noah-isme/toko-storefront/internal/voucher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "toko-storefront-api",
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	deps, err := app.New(ctx, cfg, logger)
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(cfg, deps, logger, tracingEnabled),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		health.SetReady(false)
		logger.Info().Msg("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

func newRouter(cfg *config.Config, deps *app.Dependencies, logger zerolog.Logger, tracingEnabled bool) http.Handler {
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Backend:    deps.Backend,
		Cache:      catalog.NewCache(deps.Redis, cfg.CatalogCacheTTL),
		PerPage:    cfg.CatalogPerPage,
		MaxPerPage: cfg.CatalogMaxPerPage,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})

	checkoutHandler := &checkout.Handler{Svc: &checkout.Service{
		Backend:          deps.Backend,
		Audit:            deps.Audit,
		Validate:         deps.Validator,
		OriginPostalCode: cfg.OriginPostalCode,
	}}
	voucherHandler := &voucher.Handler{Svc: &voucher.Service{Backend: deps.Backend, Claimer: deps.Tasks}}
	orderHandler := &order.Handler{
		Svc:            &order.Service{Backend: deps.Backend, Canceler: deps.Tasks},
		DefaultPerPage: cfg.CatalogPerPage,
		MaxPerPage:     cfg.CatalogMaxPerPage,
	}
	adminHandler := &admin.Handler{
		Svc:            &admin.Service{Backend: deps.Backend, LowStockThreshold: cfg.LowStockThreshold},
		DefaultPerPage: cfg.CatalogPerPage,
		MaxPerPage:     cfg.CatalogMaxPerPage,
	}
	analyticsHandler := &analytics.Handler{Svc: &analytics.Service{
		Backend:           deps.Backend,
		R:                 deps.Redis,
		Lock:              lock.Locker{R: deps.Redis},
		TTL:               cfg.AnalyticsCacheTTL,
		LowStockThreshold: cfg.LowStockThreshold,
	}}
	auditHandler := audit.Handler{Service: deps.Audit}

	verifier, err := session.NewVerifier(cfg.JWTSecret, session.TokenValidator{
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		ClockSkew: cfg.JWTClockSkew,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token verifier")
	}
	sessions := session.Middleware{Verifier: verifier, AccessCookie: cfg.AccessCookieName}

	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL, Scope: ratelimit.ByUser}
	limitErr := func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") }
	publicLimit := ratelimit.Handler{Limiter: deps.PublicLimiter, Key: ratelimit.ByClientIP, OnError: limitErr}
	checkoutLimit := ratelimit.Handler{Limiter: deps.CheckoutLimiter, Key: ratelimit.ByUser, OnError: limitErr}
	auditor := audit.HTTPRecorder{
		Service: deps.Audit,
		OnError: func(err error) { logger.Error().Err(err).Msg("record audit entry") },
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", "")), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger, Skip: obs.SkipPaths("/health/", "/metrics")}.Middleware)
	r.Use(security.Headers{HSTSMaxAge: cfg.HSTSMaxAge}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", common.IdempotencyHeader, tenant.HeaderStoreID, session.CartHeader, cfg.CSRFHeader},
		ExposedHeaders: []string{
			"X-Total-Count", "Retry-After", common.IdempotencyHeader,
			"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
		},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", ""), envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")))
	}

	healthHandler := health.Handler{Checks: deps.HealthChecks()}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(tenant.NewResolver(cfg.TenantBaseDomain, cfg.DefaultStoreID).Middleware)
		v.Use(sessions.Authenticate)
		v.Use(security.CSRF{Header: cfg.CSRFHeader, AccessCookie: cfg.AccessCookieName}.Middleware)

		v.Group(func(pub chi.Router) {
			pub.Use(publicLimit.Middleware)
			pub.Get("/products", catalogHandler.Products)
			pub.Get("/products/{id}", catalogHandler.ProductDetail)
			pub.Get("/stores/nearest", catalogHandler.NearestStores)
		})

		v.Group(func(c chi.Router) {
			c.Use(sessions.RequireAuth)

			c.With(publicLimit.Middleware).Post("/checkout/quote", checkoutHandler.Quote)
			c.With(checkoutLimit.Middleware, idem.Middleware).Post("/checkout/pay", checkoutHandler.Pay)

			c.Get("/vouchers/eligible", voucherHandler.Eligible)
			c.With(idem.Middleware, auditor.Middleware(audit.HTTPConfig{
				Action:          "voucher.claim",
				ResourceType:    "voucher",
				ResourceIDParam: "id",
			})).Post("/vouchers/{id}/claim", voucherHandler.Claim)

			c.Get("/orders", orderHandler.List)
			c.Get("/orders/{id}", orderHandler.Get)
			c.With(idem.Middleware, auditor.Middleware(audit.HTTPConfig{
				Action:          "order.cancel",
				ResourceType:    "order",
				ResourceIDParam: "id",
			})).Post("/orders/{id}/cancel", orderHandler.Cancel)
		})

		v.Route("/admin", func(a chi.Router) {
			a.Use(sessions.RequireAuth)
			a.Use(session.RequireRole(session.RoleAdmin))
			a.With(auditor.Middleware(audit.HTTPConfig{Action: "admin.discounts.list", ResourceType: "discount"})).
				Get("/discounts", adminHandler.Discounts)
			a.With(auditor.Middleware(audit.HTTPConfig{Action: "admin.inventory.report", ResourceType: "inventory"})).
				Get("/reports/inventory", adminHandler.Inventory)
			a.With(session.RequireRole(session.RoleSuperAdmin)).Get("/audit", auditHandler.List)
		})

		v.Route("/analytics", func(an chi.Router) {
			an.Use(sessions.RequireAuth)
			an.Use(session.RequireRole(session.RoleSuperAdmin))
			an.Get("/revenue", analyticsHandler.Revenue)
			an.Get("/inventory", analyticsHandler.Inventory)
		})
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
