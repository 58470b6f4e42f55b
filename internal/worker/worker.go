package worker

import (
	"context"
	"fmt"

	"provenance-service/internal/broker"
	"provenance-service/internal/models"
	"provenance-service/internal/util"

	"go.uber.org/zap"
)

// MirrorSink receives the events applied by the worker.
type MirrorSink interface {
	MirrorProduct(ctx context.Context, p models.Product) error
	MirrorStep(ctx context.Context, s models.Step, status models.Status) error
}

// MirrorWorker copies streamed provenance events into the remote mirror.
type MirrorWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	sink         MirrorSink
	logger       *zap.Logger
}

// NewMirrorWorker creates a new mirror worker
func NewMirrorWorker(consumer *broker.Consumer, sink MirrorSink) *MirrorWorker {
	w := &MirrorWorker{
		consumer: consumer,
		sink:     sink,
		logger:   util.GetLogger(),
	}

	w.eventHandler = broker.NewEventHandler()
	w.eventHandler.OnProductCreated(w.HandleProductCreated)
	w.eventHandler.OnStepRecorded(w.HandleStepRecorded)
	return w
}

// HandleProductCreated writes the product row.
func (w *MirrorWorker) HandleProductCreated(ctx context.Context, event *models.ProductCreatedEvent) error {
	ctx, span := util.StartSpan(ctx, "MirrorWorker.HandleProductCreated")
	defer span.End()

	if err := w.sink.MirrorProduct(ctx, event.Product); err != nil {
		util.MirrorWriteFailuresTotal.WithLabelValues("stream").Inc()
		return fmt.Errorf("mirror product %s: %w", event.Product.ProductID, err)
	}
	w.logger.Debug("Mirrored product", zap.String("product_id", event.Product.ProductID))
	return nil
}

// HandleStepRecorded writes the step row and the derived product status.
func (w *MirrorWorker) HandleStepRecorded(ctx context.Context, event *models.StepRecordedEvent) error {
	ctx, span := util.StartSpan(ctx, "MirrorWorker.HandleStepRecorded")
	defer span.End()

	status, err := models.StatusForStep(event.Step.StepType)
	if err != nil {
		w.logger.Warn("Dropping step with unknown type",
			zap.String("event_id", event.EventID),
			zap.Error(err))
		return nil
	}

	if err := w.sink.MirrorStep(ctx, event.Step, status); err != nil {
		util.MirrorWriteFailuresTotal.WithLabelValues("stream").Inc()
		return fmt.Errorf("mirror step %s/%d: %w", event.Step.ProductID, event.Step.StepID, err)
	}
	w.logger.Debug("Mirrored step",
		zap.String("product_id", event.Step.ProductID),
		zap.Int("step_id", event.Step.StepID))
	return nil
}

// Start consumes until ctx ends.
func (w *MirrorWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting mirror worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop closes the consumer.
func (w *MirrorWorker) Stop() error {
	w.logger.Info("Stopping mirror worker")
	return w.consumer.Close()
}
