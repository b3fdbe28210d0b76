package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/feliperosa/pos-cart-engine/internal/catalog"
	"github.com/feliperosa/pos-cart-engine/internal/checkout"
	"github.com/feliperosa/pos-cart-engine/internal/config"
	"github.com/feliperosa/pos-cart-engine/internal/messaging"
	"github.com/feliperosa/pos-cart-engine/internal/orders"
	"github.com/feliperosa/pos-cart-engine/internal/pos"
	"github.com/feliperosa/pos-cart-engine/internal/session"
	"github.com/feliperosa/pos-cart-engine/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()

	if cfg.PostgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, "pos", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("pos", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var producer *messaging.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicSaleCompleted)
		defer func() { _ = producer.Close() }()
	}

	catalogStore := catalog.NewStore(db)
	orderStore := orders.NewStore(db)
	sessionStore := session.NewStore(db)

	var publisher checkout.Publisher
	if producer != nil {
		publisher = producer
	}
	assembler := checkout.NewAssembler(sessionStore, catalogStore, orderStore, publisher, logger)

	handler, err := pos.NewHandler(pos.NewRegistry(), catalogStore, assembler, sessionStore, orderStore, logger)
	if err != nil {
		logger.Error("failed to create handler", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /carts/{terminal}", telemetry.WithHTTPRoute(handler.HandleGetCart))
	mux.HandleFunc("DELETE /carts/{terminal}", telemetry.WithHTTPRoute(handler.HandleClearCart))
	mux.HandleFunc("POST /carts/{terminal}/products/{productId}", telemetry.WithHTTPRoute(handler.HandleAddProduct))
	mux.HandleFunc("POST /carts/{terminal}/combos/{comboId}", telemetry.WithHTTPRoute(handler.HandleAddCombo))
	mux.HandleFunc("PUT /carts/{terminal}/lines/{kind}/{id}", telemetry.WithHTTPRoute(handler.HandleSetLineQuantity))
	mux.HandleFunc("DELETE /carts/{terminal}/lines/{kind}/{id}", telemetry.WithHTTPRoute(handler.HandleRemoveLine))
	mux.HandleFunc("PUT /carts/{terminal}/discount", telemetry.WithHTTPRoute(handler.HandleApplyDiscount))
	mux.HandleFunc("POST /carts/{terminal}/checkout", telemetry.WithHTTPRoute(handler.HandleCheckout))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(handler.HandleGetOrder))
	mux.HandleFunc("POST /sessions/{terminal}/open", telemetry.WithHTTPRoute(handler.HandleOpenSession))
	mux.HandleFunc("POST /sessions/{terminal}/close", telemetry.WithHTTPRoute(handler.HandleCloseSession))
	mux.HandleFunc("GET /sessions/{terminal}", telemetry.WithHTTPRoute(handler.HandleCurrentSession))
	mux.Handle("GET /metrics", metricsHandler)

	port := cfg.Port
	if port == "" {
		port = "8081"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "pos",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting pos service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
