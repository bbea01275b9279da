package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"apigateway/internal/metrics"
	"apigateway/internal/models"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	msgAccessDenied    = "Invalid API key or Referer, or monthly limit exceeded"
	msgServiceNotFound = "Requested service not found"
	msgInternalError   = "An error occurred processing your request"
)

// Verifier authorizes a caller; false denies with no sub-cause surfaced.
type Verifier interface {
	Verify(ctx context.Context, apiKey, referer string) bool
}

// ServiceResolver maps a routing name to a service record. With
// routeUnhealthy false, services last seen unhealthy do not resolve.
type ServiceResolver interface {
	ResolveService(ctx context.Context, name string, routeUnhealthy bool) (*models.Service, error)
}

// CallRecorder persists per-call timing off the response path.
type CallRecorder interface {
	Record(serviceID int, method, path string, statusCode int, requestTime, responseTime time.Time)
}

// Handler serves the proxied routes: verify, resolve, forward, relay.
type Handler struct {
	verifier  Verifier
	services  ServiceResolver
	forwarder *Forwarder
	calls     CallRecorder
	strict    bool
	logger    *zap.Logger
}

func NewHandler(verifier Verifier, services ServiceResolver, forwarder *Forwarder, calls CallRecorder, strict bool, logger *zap.Logger) *Handler {
	return &Handler{
		verifier:  verifier,
		services:  services,
		forwarder: forwarder,
		calls:     calls,
		strict:    strict,
		logger:    logger,
	}
}

// RegisterRoutes mounts the proxied paths. The swagger route must come
// first so it wins over the generic sub-path match.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/{service}/swagger", h.Swagger).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/{service}/{path:.*}", h.Proxy)
	router.HandleFunc("/api/v1/{service}", h.Proxy)
}

// Proxy handles one verified, quota-gated, forwarded call.
func (h *Handler) Proxy(w http.ResponseWriter, r *http.Request) {
	requestTime := time.Now()
	vars := mux.Vars(r)
	serviceName := vars["service"]

	if !h.verifier.Verify(r.Context(), r.Header.Get("X-API-Key"), r.Header.Get("Referer")) {
		metrics.AccessDeniedTotal.Inc()
		WriteError(w, http.StatusForbidden, msgAccessDenied)
		return
	}

	svc, err := h.services.ResolveService(r.Context(), serviceName, !h.strict)
	if err != nil {
		h.writeResolveError(w, serviceName, err)
		return
	}

	resp, err := h.forwarder.Forward(r.Context(), svc, vars["path"], r)
	if err != nil {
		h.logger.Error("forwarding failed",
			zap.String("service", serviceName),
			zap.String("method", r.Method),
			zap.Error(err),
		)
		WriteError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	responseTime := time.Now()

	h.calls.Record(svc.ID, r.Method, r.URL.Path, resp.StatusCode, requestTime, responseTime)
	metrics.RequestsTotal.WithLabelValues(serviceName, strconv.Itoa(resp.StatusCode)).Inc()

	relay(w, resp)
}

// Swagger relays the backend's API documentation without an access gate.
func (h *Handler) Swagger(w http.ResponseWriter, r *http.Request) {
	serviceName := mux.Vars(r)["service"]

	svc, err := h.services.ResolveService(r.Context(), serviceName, true)
	if err != nil {
		h.writeResolveError(w, serviceName, err)
		return
	}

	resp, err := h.forwarder.ForwardDocs(r.Context(), svc, r)
	if err != nil {
		h.logger.Error("swagger passthrough failed",
			zap.String("service", serviceName),
			zap.Error(err),
		)
		WriteError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	relay(w, resp)
}

// writeResolveError maps a failed lookup to the caller's view: no such
// service is 404, a broken store is the generic 500.
func (h *Handler) writeResolveError(w http.ResponseWriter, serviceName string, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		WriteError(w, http.StatusNotFound, msgServiceNotFound)
		return
	}

	h.logger.Error("service lookup failed",
		zap.String("service", serviceName),
		zap.Error(err),
	)
	WriteError(w, http.StatusInternalServerError, msgInternalError)
}

// relay writes the backend's status and body verbatim. Only content and
// redirect headers are copied; backend error bodies are never
// reinterpreted.
func relay(w http.ResponseWriter, resp *BackendResponse) {
	for _, header := range []string{"Content-Type", "Content-Disposition", "Location", "Cache-Control"} {
		if value := resp.Header.Get(header); value != "" {
			w.Header().Set(header, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

// WriteError emits the gateway's stable JSON error body.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
