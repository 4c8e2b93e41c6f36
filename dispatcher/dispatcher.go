// Package dispatcher delivers best-effort side effects of order transitions
// off the request path.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-svc/middleware"
	"storefront-svc/models"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, event models.OrderEvent) error
}

type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

type job struct {
	ctx   context.Context
	event models.OrderEvent
}

// Dispatcher runs a fixed pool of workers over a bounded queue. Every event
// gets one publish attempt; failures are logged and counted, never retried.
type Dispatcher struct {
	publisher Publisher
	breaker   *gobreaker.CircuitBreaker
	timeout   time.Duration
	logger    *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

func New(publisher Publisher, opts Options, logger *zap.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	d := &Dispatcher{
		publisher: publisher,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "order-events",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
		timeout: opts.Timeout,
		logger:  logger,
		queue:   make(chan job, opts.QueueSize),
	}

	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Dispatch enqueues event without blocking. The caller's cancellation does
// not reach the delivery; its trace context does.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.OrderEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ctx, event, "dispatcher closed")
		return
	}

	select {
	case d.queue <- job{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		d.drop(ctx, event, "queue full")
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) drop(ctx context.Context, event models.OrderEvent, reason string) {
	middleware.RecordSideEffect(event.EventType, "dropped")
	d.logger.Error("Side effect dropped",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("reason", reason),
		zap.String("event_type", event.EventType),
		zap.String("order_id", event.OrderID),
	)
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
	defer cancel()

	ctx, span := otel.Tracer("dispatcher").Start(ctx, "DispatchSideEffect")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.type", j.event.EventType),
		attribute.String("order.id", j.event.OrderID),
	)

	_, err := d.breaker.Execute(func() (result interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("publisher panic: %v", r)
			}
		}()
		return nil, d.publisher.Publish(ctx, j.event)
	})
	if err != nil {
		span.RecordError(err)
		result := "failed"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "circuit_open"
		}
		middleware.RecordSideEffect(j.event.EventType, result)
		d.logger.Error("Side effect failed",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("event_type", j.event.EventType),
			zap.String("order_id", j.event.OrderID),
			zap.String("result", result),
			zap.Error(err),
		)
		return
	}

	middleware.RecordSideEffect(j.event.EventType, "delivered")
}
