package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"inventory-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompensator struct {
	mu       sync.Mutex
	sweeps   int
	limits   []int
	handled  []int64
	repaired int
	err      error
}

func (f *fakeCompensator) HandleCompensationPending(_ context.Context, event *models.CompensationPendingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handled = append(f.handled, event.SaleID)
	return nil
}

func (f *fakeCompensator) RepairPendingCompensations(_ context.Context, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	f.limits = append(f.limits, limit)
	return f.repaired, f.err
}

func (f *fakeCompensator) sweepCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweeps
}

func TestNewRepairWorkerDefaults(t *testing.T) {
	w := NewRepairWorker(nil, &fakeCompensator{}, 0, 0)

	assert.Equal(t, time.Minute, w.interval)
	assert.Equal(t, 100, w.batchSize)
	assert.NoError(t, w.Stop())
}

func TestSweepUsesBatchSize(t *testing.T) {
	comp := &fakeCompensator{repaired: 3}
	w := NewRepairWorker(nil, comp, time.Second, 25)

	assert.Equal(t, 3, w.Sweep(context.Background()))
	assert.Equal(t, []int{25}, comp.limits)
}

func TestSweepSurvivesErrors(t *testing.T) {
	comp := &fakeCompensator{err: errors.New("db down")}
	w := NewRepairWorker(nil, comp, time.Second, 10)

	assert.Equal(t, 0, w.Sweep(context.Background()))
}

func TestStartSweepsUntilCancelled(t *testing.T) {
	comp := &fakeCompensator{}
	w := NewRepairWorker(nil, comp, 10*time.Millisecond, 5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		assert.NoError(t, w.Start(ctx))
		close(done)
	}()

	require.Eventually(t, func() bool { return comp.sweepCount() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestEventsReachCompensator(t *testing.T) {
	comp := &fakeCompensator{}
	w := NewRepairWorker(nil, comp, time.Second, 5)

	payload, err := json.Marshal(&models.CompensationPendingEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-1", EventType: models.EventTypeCompensationPending, OwnerID: 1},
		SaleID:    42,
	})
	require.NoError(t, err)

	require.NoError(t, w.eventHandler.HandleMessage(context.Background(), kafka.Message{Value: payload}))
	assert.Equal(t, []int64{42}, comp.handled)
}
