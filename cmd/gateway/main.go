package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/feliperosa/pos-cart-engine/internal/config"
	"github.com/feliperosa/pos-cart-engine/internal/gateway"
	"github.com/feliperosa/pos-cart-engine/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, "gateway", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	if cfg.POSServiceURL == "" {
		logger.Error("POS_SERVICE_URL is required")
		os.Exit(1)
	}
	if cfg.AlertsURL == "" {
		logger.Error("ALERTS_SERVICE_URL is required")
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	posProxy := gateway.NewServiceProxy(cfg.POSServiceURL, httpClient)
	alertsProxy := gateway.NewServiceProxy(cfg.AlertsURL, httpClient)
	handler := gateway.NewHandler(posProxy, alertsProxy, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /carts/{terminal}", telemetry.WithHTTPRoute(handler.HandlePOS))
	mux.HandleFunc("DELETE /carts/{terminal}", telemetry.WithHTTPRoute(handler.HandlePOS))
	mux.HandleFunc("POST /carts/{terminal}/products/{productId}", telemetry.WithHTTPRoute(handler.HandlePOS))
	mux.HandleFunc("POST /carts/{terminal}/combos/{comboId}", telemetry.WithHTTPRoute(handler.HandlePOS))
	mux.HandleFunc("PUT /carts/{terminal}/lines/{kind}/{id}", telemetry.WithHTTPRoute(handler.HandlePOS))
	mux.HandleFunc("DELETE /carts/{terminal}/lines/{kind}/{id}", telemetry.WithHTTPRoute(handler.HandlePOS))
	mux.HandleFunc("PUT /carts/{terminal}/discount", telemetry.WithHTTPRoute(handler.HandlePOS))
	mux.HandleFunc("POST /carts/{terminal}/checkout", telemetry.WithHTTPRoute(handler.HandlePOS))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(handler.HandlePOS))
	mux.HandleFunc("POST /sessions/{terminal}/open", telemetry.WithHTTPRoute(handler.HandlePOS))
	mux.HandleFunc("POST /sessions/{terminal}/close", telemetry.WithHTTPRoute(handler.HandlePOS))
	mux.HandleFunc("GET /sessions/{terminal}", telemetry.WithHTTPRoute(handler.HandlePOS))
	mux.HandleFunc("POST /alerts/send", telemetry.WithHTTPRoute(handler.HandleAlerts))

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "gateway",
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
		logger.Info("starting gateway service", "port", port)
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
