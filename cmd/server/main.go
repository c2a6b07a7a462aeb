package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopbd-be/internal/config"
	"shopbd-be/internal/db"
	"shopbd-be/internal/events"
	"shopbd-be/internal/logger"
	"shopbd-be/internal/metrics"
	"shopbd-be/internal/middleware"
	"shopbd-be/internal/notification"
	"shopbd-be/internal/order"
	"shopbd-be/internal/payment"
	"shopbd-be/internal/payment/webhook"
	"shopbd-be/internal/sales"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	initDBFunc      = db.InitDB
	startServerFunc = serve
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher := newPublisher(cfg)
	if c, ok := publisher.(interface{ Close() error }); ok {
		defer c.Close()
	}

	router := newServer(ctx, cfg, database, publisher)

	logger.L().Info("🚀 server running", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
	return startServerFunc(":"+cfg.AppPort, router)
}

// newPublisher connects to RabbitMQ when configured. A broker outage at
// startup degrades to dropping events.
func newPublisher(cfg *config.Config) events.Publisher {
	if cfg.AMQP.URL == "" {
		return events.NopPublisher{}
	}

	p, err := events.Dial(cfg.AMQP.URL, cfg.AMQP.Queue)
	if err != nil {
		logger.L().Warn("order events disabled", zap.Error(err))
		return events.NopPublisher{}
	}
	return p
}

type routerDeps struct {
	webhook  *webhook.Handler
	sales    *sales.Handler
	limiter  *middleware.RateLimiter
	registry *prometheus.Registry
	cfg      *config.Config
}

func newServer(ctx context.Context, cfg *config.Config, database *sql.DB, publisher events.Publisher) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(registry); err != nil {
		logger.L().Warn("metrics registration failed", zap.Error(err))
	}

	orderRepo := order.NewRepository(database)
	paymentRepo := payment.NewRepository(database)
	gateway := payment.NewSSLCommerzGateway(cfg.SSLCommerz)
	notifier := notification.New(cfg.SMTP)

	salesRepo := sales.NewRepository(database, cfg.Timezone)
	salesSvc := sales.NewService(salesRepo, cfg.Location())

	limiter := middleware.NewRateLimiter()
	go limiter.Run(ctx)

	return setupRouter(routerDeps{
		webhook:  webhook.NewHandler(orderRepo, gateway, paymentRepo, notifier, publisher),
		sales:    sales.NewHandler(salesSvc),
		limiter:  limiter,
		registry: registry,
		cfg:      cfg,
	})
}

func setupRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(logger.RequestIDMiddleware)
	r.Use(chimw.RealIP)
	r.Use(logger.LoggingMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(d.cfg),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", logger.RequestIDHeader},
		ExposedHeaders:   []string{logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(metrics.InstrumentHandler)
	r.Use(d.limiter.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))

	d.webhook.Register(r)

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AdminAuth([]byte(d.cfg.JWTSecret)))
		r.Get("/sales-metrics", d.sales.GetSalesMetrics)
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL != "" {
		return []string{cfg.FrontendURL}
	}
	return []string{"http://localhost:3000"}
}

// serve runs the HTTP server until SIGINT/SIGTERM, then drains it.
func serve(addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error, 1)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		logger.L().Info("signal caught", zap.String("signal", s.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdown <- srv.Shutdown(ctx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdown; err != nil {
		return err
	}
	logger.L().Info("server stopped")
	return nil
}
