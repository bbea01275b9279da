package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"apigateway/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type registryFake struct {
	mu       sync.Mutex
	services []models.Service
	updates  []statusUpdate
}

type statusUpdate struct {
	id        int
	status    models.ServiceStatus
	checkedAt time.Time
}

func (f *registryFake) ListServices(ctx context.Context) ([]models.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Service(nil), f.services...), nil
}

func (f *registryFake) UpdateServiceStatus(ctx context.Context, id int, status models.ServiceStatus, checkedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, statusUpdate{id: id, status: status, checkedAt: checkedAt})
	return nil
}

func (f *registryFake) recorded() []statusUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]statusUpdate(nil), f.updates...)
}

func TestSweepMarksReachableServiceHealthy(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	registry := &registryFake{services: []models.Service{
		{ID: 1, Name: "echo", BaseURL: backend.URL, Status: models.ServiceUnset},
	}}

	m := NewMonitor(registry, time.Hour, zap.NewNop())
	m.Sweep(context.Background())

	updates := registry.recorded()
	require.Len(t, updates, 1)
	assert.Equal(t, models.ServiceHealthy, updates[0].status)
	assert.False(t, updates[0].checkedAt.IsZero())
}

func TestSweepMarksServerErrorUnhealthy(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer backend.Close()

	registry := &registryFake{services: []models.Service{
		{ID: 1, Name: "echo", BaseURL: backend.URL, Status: models.ServiceHealthy},
	}}

	m := NewMonitor(registry, time.Hour, zap.NewNop())
	m.Sweep(context.Background())

	updates := registry.recorded()
	require.Len(t, updates, 1)
	assert.Equal(t, models.ServiceUnhealthy, updates[0].status)
}

func TestRepeatedProbesAgainstDeadBackendStayUnhealthy(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close()

	registry := &registryFake{services: []models.Service{
		{ID: 1, Name: "echo", BaseURL: backend.URL, Status: models.ServiceUnset},
	}}

	m := NewMonitor(registry, time.Hour, zap.NewNop())
	m.Sweep(context.Background())
	m.Sweep(context.Background())

	updates := registry.recorded()
	require.Len(t, updates, 2)
	for _, update := range updates {
		assert.Equal(t, models.ServiceUnhealthy, update.status)
		assert.False(t, update.checkedAt.IsZero())
	}
}

func TestSweepContinuesPastFailingService(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	registry := &registryFake{services: []models.Service{
		{ID: 1, Name: "dead", BaseURL: "http://127.0.0.1:1", Status: models.ServiceUnset},
		{ID: 2, Name: "live", BaseURL: backend.URL, Status: models.ServiceUnset},
	}}

	m := NewMonitor(registry, time.Hour, zap.NewNop())
	m.probeTimeout = 2 * time.Second
	m.Sweep(context.Background())

	updates := registry.recorded()
	require.Len(t, updates, 2)
	assert.Equal(t, models.ServiceUnhealthy, updates[0].status)
	assert.Equal(t, models.ServiceHealthy, updates[1].status)
}

func TestStartSweepsImmediately(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	registry := &registryFake{services: []models.Service{
		{ID: 1, Name: "echo", BaseURL: backend.URL, Status: models.ServiceUnset},
	}}

	// With an hour-long interval only the up-front sweep can fire.
	m := NewMonitor(registry, time.Hour, zap.NewNop())
	m.Start(context.Background())
	defer m.Stop()

	require.Eventually(t, func() bool {
		return len(registry.recorded()) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, models.ServiceHealthy, registry.recorded()[0].status)
}

func TestStartAndStop(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	registry := &registryFake{services: []models.Service{
		{ID: 1, Name: "echo", BaseURL: backend.URL},
	}}

	m := NewMonitor(registry, 10*time.Millisecond, zap.NewNop())
	m.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(registry.recorded()) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	m.Stop()
	m.Stop() // idempotent
}
