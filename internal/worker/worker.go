package worker

import (
	"context"
	"time"

	"inventory-service/internal/broker"
	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// Compensator completes sale cancellations whose stock reversal failed
type Compensator interface {
	HandleCompensationPending(ctx context.Context, event *models.CompensationPendingEvent) error
	RepairPendingCompensations(ctx context.Context, limit int) (int, error)
}

// RepairWorker drives pending compensations to completion from two
// sources: COMPENSATION_PENDING events and a periodic storage sweep.
type RepairWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	compensator  Compensator
	interval     time.Duration
	batchSize    int
	logger       *zap.Logger
}

// NewRepairWorker creates a new repair worker. A nil consumer disables the
// event path and leaves only the sweep.
func NewRepairWorker(consumer *broker.Consumer, compensator Compensator, interval time.Duration, batchSize int) *RepairWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnCompensationPending(compensator.HandleCompensationPending)

	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	return &RepairWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		compensator:  compensator,
		interval:     interval,
		batchSize:    batchSize,
		logger:       util.ComponentLogger("repair-worker"),
	}
}

// Start runs the consumer and the sweep until ctx is cancelled
func (w *RepairWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting repair worker",
		zap.Duration("interval", w.interval),
		zap.Int("batch_size", w.batchSize),
	)

	if w.consumer != nil {
		go func() {
			if err := w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage); err != nil && ctx.Err() == nil {
				w.logger.Error("Compensation consumer stopped", zap.Error(err))
			}
		}()
	}

	w.runSweeper(ctx)
	return nil
}

func (w *RepairWorker) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep repairs one batch of pending compensations and returns how many
// were completed
func (w *RepairWorker) Sweep(ctx context.Context) int {
	repaired, err := w.compensator.RepairPendingCompensations(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("Compensation sweep failed", zap.Error(err))
	}
	if repaired > 0 {
		w.logger.Info("Compensation sweep finished", zap.Int("repaired", repaired))
	}
	return repaired
}

// Stop stops the worker
func (w *RepairWorker) Stop() error {
	w.logger.Info("Stopping repair worker")
	if w.consumer == nil {
		return nil
	}
	return w.consumer.Close()
}
