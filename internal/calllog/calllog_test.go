package calllog

import (
	"context"
	"errors"
	"testing"
	"time"

	"apigateway/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type storeFake struct {
	entries chan *models.CallLog
	err     error
}

func newStoreFake() *storeFake {
	return &storeFake{entries: make(chan *models.CallLog, 1)}
}

func (f *storeFake) InsertCallLog(ctx context.Context, log *models.CallLog) error {
	f.entries <- log
	return f.err
}

func TestRecordPersistsEntry(t *testing.T) {
	store := newStoreFake()
	l := New(store, true, zap.NewNop())

	requestTime := time.Now()
	responseTime := requestTime.Add(250 * time.Millisecond)
	l.Record(4, "POST", "/api/v1/billing/invoices", 201, requestTime, responseTime)

	select {
	case entry := <-store.entries:
		assert.Equal(t, 4, entry.ServiceID)
		assert.Equal(t, "POST", entry.Method)
		assert.Equal(t, "/api/v1/billing/invoices", entry.Path)
		assert.Equal(t, 201, entry.StatusCode)
		assert.Equal(t, requestTime, entry.RequestTime)
		assert.Equal(t, responseTime, entry.ResponseTime)
		assert.InDelta(t, 0.25, entry.ExecutionTime, 0.001)
	case <-time.After(time.Second):
		t.Fatal("expected a call log write")
	}
}

func TestDisabledRecorderWritesNothing(t *testing.T) {
	store := newStoreFake()
	l := New(store, false, zap.NewNop())

	require.False(t, l.Enabled())
	l.Record(4, "GET", "/api/v1/billing", 200, time.Now(), time.Now())

	select {
	case <-store.entries:
		t.Fatal("disabled recorder must not write")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRecordSwallowsStoreErrors(t *testing.T) {
	store := newStoreFake()
	store.err = errors.New("table missing")
	l := New(store, true, zap.NewNop())

	l.Record(1, "GET", "/api/v1/echo", 200, time.Now(), time.Now())

	select {
	case <-store.entries:
	case <-time.After(time.Second):
		t.Fatal("expected the write attempt")
	}
}
