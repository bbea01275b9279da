// Package health probes registered backends outside the request path.
package health

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"apigateway/internal/metrics"
	"apigateway/internal/models"

	"go.uber.org/zap"
)

// Registry is the slice of the service store the monitor needs.
type Registry interface {
	ListServices(ctx context.Context) ([]models.Service, error)
	UpdateServiceStatus(ctx context.Context, id int, status models.ServiceStatus, checkedAt time.Time) error
}

// Monitor sweeps every registered service on a fixed interval and writes
// the probed status back. It is owned by the process lifecycle: started
// once at startup, stopped at shutdown, never joined by request handlers.
type Monitor struct {
	registry     Registry
	client       *http.Client
	interval     time.Duration
	probeTimeout time.Duration
	logger       *zap.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMonitor(registry Registry, interval time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		registry:     registry,
		client:       &http.Client{},
		interval:     interval,
		probeTimeout: 10 * time.Second,
		logger:       logger,
		stop:         make(chan struct{}),
	}
}

// Start launches the sweep loop. It returns immediately; the loop ends
// when Stop is called or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("health monitor started", zap.Duration("interval", m.interval))

	// Probe once up front so fresh services do not sit unclassified for a
	// whole interval.
	m.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("health monitor stopped", zap.String("reason", "context cancelled"))
			return
		case <-m.stop:
			m.logger.Info("health monitor stopped", zap.String("reason", "shutdown"))
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Stop signals the loop to exit. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
}

// Sweep probes every registered service once. A failing probe or status
// write never aborts the remaining services.
func (m *Monitor) Sweep(ctx context.Context) {
	services, err := m.registry.ListServices(ctx)
	if err != nil {
		m.logger.Error("health sweep: listing services failed", zap.Error(err))
		return
	}

	for _, svc := range services {
		status := m.probe(ctx, svc.BaseURL)

		if err := m.registry.UpdateServiceStatus(ctx, svc.ID, status, time.Now()); err != nil {
			m.logger.Warn("health sweep: status update failed",
				zap.String("service", svc.Name),
				zap.Error(err),
			)
			continue
		}

		healthy := 0.0
		if status == models.ServiceHealthy {
			healthy = 1
		}
		metrics.ServiceHealthy.WithLabelValues(svc.Name).Set(healthy)

		if status != svc.Status {
			m.logger.Info("service status transition",
				zap.String("service", svc.Name),
				zap.String("from", svc.Status.String()),
				zap.String("to", status.String()),
			)
		}
	}
}

// probe issues one lightweight reachability check: anything the backend
// answers below 500 counts as healthy, everything else (including
// transport errors) as unhealthy.
func (m *Monitor) probe(ctx context.Context, baseURL string) models.ServiceStatus {
	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return models.ServiceUnhealthy
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return models.ServiceUnhealthy
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return models.ServiceUnhealthy
	}
	return models.ServiceHealthy
}
