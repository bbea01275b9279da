package proxy

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"apigateway/internal/metrics"
	"apigateway/internal/models"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// gatewayReferer identifies gateway-originated traffic to backends that
// run their own access verification.
const gatewayReferer = "Gateway"

// ErrUpstreamUnavailable marks a backend that produced no response at all:
// timeout, refused connection, or an open circuit breaker.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// StatusWriter records health classifications derived from call outcomes.
type StatusWriter interface {
	UpdateServiceStatus(ctx context.Context, id int, status models.ServiceStatus, checkedAt time.Time) error
}

// BackendResponse is the backend's answer, held verbatim for relaying.
type BackendResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Forwarder translates one inbound request into one outbound backend call.
type Forwarder struct {
	client      *http.Client
	statuses    StatusWriter
	logger      *zap.Logger
	timeout     time.Duration
	docsTimeout time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewForwarder(statuses StatusWriter, timeout time.Duration, logger *zap.Logger) *Forwarder {
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		// Redirects belong to the caller: the backend's 3xx is relayed
		// as-is, never chased on the caller's behalf.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Forwarder{
		client:      client,
		statuses:    statuses,
		logger:      logger,
		timeout:     timeout,
		docsTimeout: 2 * timeout,
		breakers:    make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Forward sends the inbound request to the resolved service and returns
// the backend's response verbatim. Call outcomes are classified and
// written back as the service's health: < 500 healthy, >= 500 or any
// transport failure unhealthy.
func (f *Forwarder) Forward(ctx context.Context, svc *models.Service, subPath string, r *http.Request) (*BackendResponse, error) {
	return f.forward(ctx, svc, subPath, r, f.timeout)
}

// ForwardDocs relays the service's swagger document. Documentation
// payloads can be large, so the deadline is extended.
func (f *Forwarder) ForwardDocs(ctx context.Context, svc *models.Service, r *http.Request) (*BackendResponse, error) {
	return f.forward(ctx, svc, "swagger", r, f.docsTimeout)
}

func (f *Forwarder) forward(ctx context.Context, svc *models.Service, subPath string, r *http.Request, timeout time.Duration) (*BackendResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := f.buildRequest(ctx, svc, subPath, r)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", svc.Name, err)
	}

	start := time.Now()
	resp, err := f.do(svc.Name, out)
	metrics.UpstreamLatency.WithLabelValues(svc.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		f.markStatus(svc, models.ServiceUnhealthy)
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, svc.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.markStatus(svc, models.ServiceUnhealthy)
		return nil, fmt.Errorf("%w: %s: reading response: %v", ErrUpstreamUnavailable, svc.Name, err)
	}

	status := models.ServiceHealthy
	if resp.StatusCode >= http.StatusInternalServerError {
		status = models.ServiceUnhealthy
	}
	f.markStatus(svc, status)

	return &BackendResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

func (f *Forwarder) buildRequest(ctx context.Context, svc *models.Service, subPath string, r *http.Request) (*http.Request, error) {
	target := joinURL(svc.BaseURL, subPath)

	var body io.Reader
	if r.Method != http.MethodGet && r.Body != nil {
		body = r.Body
	}

	out, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		out.ContentLength = r.ContentLength
	}

	if r.Method == http.MethodGet {
		out.URL.RawQuery = escapeQuery(r.URL.Query())
	}

	out.Header.Set("X-API-Key", svc.APIKey)
	out.Header.Set("Referer", gatewayReferer)
	if auth := r.Header.Get("Authorization"); auth != "" {
		out.Header.Set("Authorization", auth)
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		out.Header.Set("Content-Type", ct)
	}

	return out, nil
}

// do executes the outbound call through the service's circuit breaker. A
// tripped breaker fails fast without touching the backend.
func (f *Forwarder) do(service string, req *http.Request) (*http.Response, error) {
	resp, err := f.breaker(service).Execute(func() (interface{}, error) {
		return f.client.Do(req)
	})
	if err != nil {
		return nil, err
	}
	return resp.(*http.Response), nil
}

func (f *Forwarder) breaker(service string) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[service]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn("circuit breaker state change",
				zap.String("service", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	f.breakers[service] = cb
	return cb
}

// markStatus writes the classification after every forwarded call, always
// paired with a fresh last-checked timestamp. The write runs on its own
// deadline so a slow store cannot hold up the response.
func (f *Forwarder) markStatus(svc *models.Service, status models.ServiceStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := f.statuses.UpdateServiceStatus(ctx, svc.ID, status, time.Now()); err != nil {
		f.logger.Warn("service status update failed",
			zap.String("service", svc.Name),
			zap.Error(err),
		)
		return
	}

	healthy := 0.0
	if status == models.ServiceHealthy {
		healthy = 1
	}
	metrics.ServiceHealthy.WithLabelValues(svc.Name).Set(healthy)
}

// joinURL concatenates a base URL and sub path with exactly one slash
// between them, regardless of how either side is written.
func joinURL(base, subPath string) string {
	base = strings.TrimRight(base, "/")
	subPath = strings.TrimLeft(subPath, "/")
	if subPath == "" {
		return base + "/"
	}
	return base + "/" + subPath
}

// escapeQuery HTML-escapes every query value before it goes out, so a
// backend that reflects parameters cannot echo raw markup back through
// the gateway.
func escapeQuery(params url.Values) string {
	escaped := make(url.Values, len(params))
	for key, values := range params {
		for _, value := range values {
			escaped.Add(key, html.EscapeString(value))
		}
	}
	return escaped.Encode()
}
