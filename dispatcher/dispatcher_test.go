package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront-svc/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fakePublisher struct {
	mu      sync.Mutex
	events  []models.OrderEvent
	ctxErrs []error
	fail    func(models.OrderEvent) error
	block   chan struct{}
	started chan struct{}
}

func (f *fakePublisher) Publish(ctx context.Context, event models.OrderEvent) error {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.fail != nil {
		return f.fail(event)
	}
	return nil
}

func (f *fakePublisher) published() []models.OrderEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OrderEvent(nil), f.events...)
}

func newTestDispatcher(t *testing.T, pub Publisher, opts Options) *Dispatcher {
	return New(pub, opts, zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel)))
}

func TestDispatcher_DeliversAndDrainsOnClose(t *testing.T) {
	pub := &fakePublisher{}
	d := newTestDispatcher(t, pub, Options{Workers: 2, QueueSize: 10, Timeout: time.Second})

	for _, id := range []string{"ord-1", "ord-2", "ord-3"} {
		d.Dispatch(context.Background(), models.OrderEvent{EventType: "order_paid", OrderID: id})
	}
	d.Close()

	ids := make([]string, 0, 3)
	for _, e := range pub.published() {
		ids = append(ids, e.OrderID)
	}
	assert.ElementsMatch(t, []string{"ord-1", "ord-2", "ord-3"}, ids)
}

func TestDispatcher_DetachedFromRequestCancellation(t *testing.T) {
	pub := &fakePublisher{}
	d := newTestDispatcher(t, pub, Options{Workers: 1, QueueSize: 1, Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Dispatch(ctx, models.OrderEvent{EventType: "order_paid", OrderID: "ord-1"})
	d.Close()

	require.Len(t, pub.ctxErrs, 1)
	assert.NoError(t, pub.ctxErrs[0])
}

func TestDispatcher_FailureIsNotRetried(t *testing.T) {
	pub := &fakePublisher{fail: func(models.OrderEvent) error { return errors.New("broker down") }}
	d := newTestDispatcher(t, pub, Options{Workers: 1, QueueSize: 4, Timeout: time.Second})

	d.Dispatch(context.Background(), models.OrderEvent{EventType: "order_cancelled", OrderID: "ord-1"})
	d.Close()

	assert.Len(t, pub.published(), 1)
}

func TestDispatcher_RecoversPublisherPanic(t *testing.T) {
	pub := &fakePublisher{fail: func(e models.OrderEvent) error {
		if e.OrderID == "ord-1" {
			panic("boom")
		}
		return nil
	}}
	d := newTestDispatcher(t, pub, Options{Workers: 1, QueueSize: 4, Timeout: time.Second})

	d.Dispatch(context.Background(), models.OrderEvent{EventType: "order_paid", OrderID: "ord-1"})
	d.Dispatch(context.Background(), models.OrderEvent{EventType: "order_paid", OrderID: "ord-2"})
	d.Close()

	assert.Len(t, pub.published(), 2)
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	pub := &fakePublisher{block: make(chan struct{}), started: make(chan struct{}, 3)}
	d := newTestDispatcher(t, pub, Options{Workers: 1, QueueSize: 1, Timeout: time.Second})

	d.Dispatch(context.Background(), models.OrderEvent{EventType: "order_paid", OrderID: "ord-1"})
	<-pub.started // the worker holds ord-1

	d.Dispatch(context.Background(), models.OrderEvent{EventType: "order_paid", OrderID: "ord-2"})
	d.Dispatch(context.Background(), models.OrderEvent{EventType: "order_paid", OrderID: "ord-3"})

	close(pub.block)
	d.Close()

	ids := make([]string, 0, 2)
	for _, e := range pub.published() {
		ids = append(ids, e.OrderID)
	}
	assert.Equal(t, []string{"ord-1", "ord-2"}, ids)
}

func TestDispatcher_DispatchAfterClose(t *testing.T) {
	pub := &fakePublisher{}
	d := newTestDispatcher(t, pub, Options{Workers: 1, QueueSize: 1, Timeout: time.Second})
	d.Close()
	d.Close()

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), models.OrderEvent{EventType: "order_paid", OrderID: "ord-1"})
	})
	assert.Empty(t, pub.published())
}
