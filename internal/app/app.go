// Package app wires the storage, domain services and HTTP server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/rentkart/internal/domain/cart"
	"github.com/xenking/rentkart/internal/domain/order"
	"github.com/xenking/rentkart/internal/domain/payment"
	"github.com/xenking/rentkart/internal/domain/rental"
	"github.com/xenking/rentkart/internal/handler"
	"github.com/xenking/rentkart/internal/paynow"
	"github.com/xenking/rentkart/internal/storage/postgres"
	"github.com/xenking/rentkart/pkg/health"
	"github.com/xenking/rentkart/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	rentalRepo := postgres.NewRentalRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Domain services.
	gateway := paynow.New(paynow.Config{
		IntegrationID:  cfg.Paynow.IntegrationID,
		IntegrationKey: cfg.Paynow.IntegrationKey,
		BaseURL:        cfg.Paynow.BaseURL,
		ResultURL:      cfg.Paynow.ResultURL,
		ReturnURL:      cfg.Paynow.ReturnURL,
		AuthEmail:      cfg.Paynow.AuthEmail,
		Timeout:        cfg.Paynow.Timeout,
	}, m.TracerProvider())
	paymentService, err := payment.NewService(
		payment.Config{InvoicePrefix: cfg.Invoice.Prefix},
		orderRepo,
		paymentRepo,
		gateway,
		m.MeterProvider(),
	)
	if err != nil {
		return errors.Wrap(err, "create payment service")
	}

	h := handler.NewHandler(
		handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL},
		handler.Deps{
			Products:      productRepo,
			Carts:         cart.NewService(productRepo, cartRepo),
			Orders:        order.NewService(orderRepo),
			Payments:      paymentService,
			Rentals:       rental.NewService(rentalRepo),
			Notifications: gateway,
			Auth:          handler.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper)),
		},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Payment initiation waits on the gateway for up to Paynow.Timeout.
		WriteTimeout:   cfg.Paynow.Timeout + 10*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler:        newHTTPHandler(ctx, cfg, mux, m),
	}
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newHTTPHandler wraps mux with the middleware chain. The request logger is
// injected ahead of Recovery so recovered panics carry the request id.
func newHTTPHandler(ctx context.Context, cfg *Config, mux *http.ServeMux, m httpmiddleware.Telemetry) http.Handler {
	routeFinder := httpmiddleware.MakeRouteFinder(mux)
	return httpmiddleware.Wrap(mux,
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window,
			KeyFunc: httpmiddleware.ClientKey(handler.APIKeyHeader),
		}),
		httpmiddleware.Instrument("rentkart-api", routeFinder, m),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	)
}
