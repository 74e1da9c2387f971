// Package worker consumes attendance events off the queue and runs their
// side effects outside the request path.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/events"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultConcurrency = 4
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Processor handles one event. Returning an error marked with Permanent
// skips the remaining attempts.
type Processor interface {
	Process(ctx context.Context, event events.Event) error
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Worker pulls messages from a Consumer and hands them to a pool of
// Concurrency goroutines.
type Worker struct {
	consumer  events.Consumer
	processor Processor
	metrics   *metrics.Metrics

	Concurrency int
	MaxAttempts int
	BaseDelay   time.Duration
}

func NewWorker(consumer events.Consumer, processor Processor, m *metrics.Metrics) *Worker {
	return &Worker{
		consumer:    consumer,
		processor:   processor,
		metrics:     m,
		Concurrency: DefaultConcurrency,
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
	}
}

// Run blocks until ctx is cancelled or the consumer closes its channel,
// then waits for in-flight messages to finish.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.consumer.Consume(ctx)
	if err != nil {
		return err
	}

	concurrency := w.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	slog.Info("Worker started", "concurrency", concurrency, "max_attempts", w.MaxAttempts)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range messages {
				w.handle(ctx, msg)
			}
		}()
	}
	wg.Wait()

	slog.Info("Worker stopped")
	return nil
}

func (w *Worker) handle(ctx context.Context, msg events.Message) {
	ctx, span := telemetry.Tracer().Start(ctx, "worker.Process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("event.type", string(msg.Event.Type)),
			attribute.String("attendance.record_id", msg.Event.RecordID),
		),
	)
	defer span.End()

	err := w.processWithRetry(ctx, msg.Event)
	if err != nil && ctx.Err() != nil {
		// shutting down; leave the message for redelivery
		slog.Warn("Event processing interrupted", "event_id", msg.Event.ID, "error", err)
		return
	}

	w.metrics.EventProcessed(string(msg.Event.Type), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Dropping event after failed attempts",
			"event_id", msg.Event.ID,
			"type", msg.Event.Type,
			"record_id", msg.Event.RecordID,
			"error", err,
		)
	}

	if msg.Ack == nil {
		return
	}
	if err := msg.Ack(ctx); err != nil {
		slog.Error("Failed to acknowledge event", "event_id", msg.Event.ID, "error", err)
	}
}

func (w *Worker) processWithRetry(ctx context.Context, event events.Event) error {
	attempts := w.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = w.processor.Process(ctx, event)
		if err == nil || isPermanent(err) || attempt == attempts {
			return err
		}

		delay := w.BaseDelay << (attempt - 1)
		slog.Warn("Event processing failed, retrying",
			"event_id", event.ID,
			"attempt", attempt,
			"retry_in", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
