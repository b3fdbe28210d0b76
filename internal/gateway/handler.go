package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Handler is the terminal-facing edge: it forwards cart, session and order
// traffic to the pos service and alert-mail traffic to the alerts service.
type Handler struct {
	posProxy    *ServiceProxy
	alertsProxy *ServiceProxy
	logger      *slog.Logger
}

func NewHandler(posProxy, alertsProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		posProxy:    posProxy,
		alertsProxy: alertsProxy,
		logger:      logger,
	}
}

// HandlePOS forwards /carts, /sessions and /orders paths unchanged.
func (h *Handler) HandlePOS(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.posProxy, r.URL.Path)
}

// HandleAlerts rewrites the public /alerts prefix onto the alerts service's
// root, so /alerts/send reaches the sink's /send.
func (h *Handler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/alerts")
	h.proxyRequest(w, r, h.alertsProxy, path)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
