package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"CellarSociety/internal/catalog"
	"CellarSociety/internal/config"
	"CellarSociety/internal/order"
	"CellarSociety/internal/records"
	"CellarSociety/internal/session"
	"CellarSociety/pkg/kit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := kit.NewLogger("storefront", cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal("open record store", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	metrics := kit.NewMetrics(registry)
	ixm := kit.NewIndexMetrics(registry)

	cat := catalog.New(store, log, ixm)
	orders := order.New(store, cat, log, ixm)

	warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := cat.WarmUp(warmCtx); err != nil {
		log.Fatal("catalog warm-up", zap.Error(err))
	}
	if err := orders.WarmUp(warmCtx); err != nil {
		log.Fatal("order queue warm-up", zap.Error(err))
	}

	sessions := session.NewManager(log, ixm)
	sessServer := &session.Server{
		Sessions: sessions,
		Catalog:  cat,
		Orders:   orders,
		JWT:      session.NewTokenMaker(cfg.Session.JWTSecret),
		Log:      log,
		Limiter:  kit.NewIPRateLimiter(cfg.Session.RateLimit, cfg.Session.RateLimitWindow),
	}

	catServer := &catalog.Server{
		Catalog: cat,
		Log:     log,
		Viewed: func(ctx context.Context, productID string) {
			if sess, ok := session.FromContext(ctx); ok {
				sess.RecordBrowse(productID)
			}
		},
		Searched: func(ctx context.Context, term string) {
			if sess, ok := session.FromContext(ctx); ok {
				sess.RecordSearch(term)
			}
		},
	}

	orderServer := &order.Server{Orders: orders, Log: log}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(log))
	r.Use(metrics.Middleware("storefront", kit.ChiRoutePatternOrPath))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", readyz(store, log))

	if cfg.Metrics.Enabled {
		r.With(kit.MetricsAuth(cfg.Metrics.Token)).
			Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.With(sessServer.OptionalSession).Mount("/products", catServer.Routes())
	r.Mount("/session", sessServer.Routes())
	r.With(sessServer.RequireSession).Mount("/orders", orderServer.CustomerRoutes())

	if err := kit.RunHTTPServer(cfg.Storefront.Addr, r, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func openStore(cfg *config.Config) (records.Store, error) {
	if cfg.Store.Backend != "postgres" {
		return records.NewMemStore(), nil
	}

	db, err := sql.Open("pgx", cfg.Store.PostgresDSN)
	if err != nil {
		return nil, err
	}
	return records.NewPostgresStore(db), nil
}

func readyz(store records.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			log.Warn("readyz failed", zap.Error(err))
			kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
