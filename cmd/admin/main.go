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
	"CellarSociety/pkg/kit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := kit.NewLogger("admin", cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal("open record store", zap.Error(err))
	}
	if cfg.Store.Backend != "postgres" {
		log.Warn("memory store is process-local; run both services on postgres to share records")
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

	catServer := &catalog.Server{Catalog: cat, Log: log}
	orderServer := &order.Server{Orders: orders, Log: log}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(log))
	r.Use(metrics.Middleware("admin", kit.ChiRoutePatternOrPath))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", readyz(store, log))

	if cfg.Metrics.Enabled {
		r.With(kit.MetricsAuth(cfg.Metrics.Token)).
			Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Mount("/products", catServer.AdminRoutes())
	r.Mount("/orders", orderServer.AdminRoutes())

	if err := kit.RunHTTPServer(cfg.Admin.Addr, r, log); err != nil {
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
