package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/invoicesync/internal/domain/shared"
)

type testEvent struct {
	shared.EventHeader
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{EventHeader: shared.NewEventHeader(eventType, "1002")}
}

// testHandler records what it handled
type testHandler struct {
	eventTypes []string
	mu         sync.Mutex
	handled    []shared.DomainEvent
	err        error
	panicMsg   string
	block      chan struct{}
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	h.handled = append(h.handled, event)
	h.mu.Unlock()
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	tests := []struct {
		name      string
		subscribe func(bus *InMemoryEventBus) []*testHandler
		publish   []string
		want      []int
	}{
		{
			name: "matching handler",
			subscribe: func(bus *InMemoryEventBus) []*testHandler {
				h := newTestHandler("OrderPaid")
				bus.Subscribe(h)
				return []*testHandler{h}
			},
			publish: []string{"OrderPaid", "OrderPaid"},
			want:    []int{2},
		},
		{
			name: "non-matching handler",
			subscribe: func(bus *InMemoryEventBus) []*testHandler {
				h := newTestHandler("Other")
				bus.Subscribe(h)
				return []*testHandler{h}
			},
			publish: []string{"OrderPaid"},
			want:    []int{0},
		},
		{
			name: "wildcard handler",
			subscribe: func(bus *InMemoryEventBus) []*testHandler {
				h := newTestHandler()
				bus.Subscribe(h)
				return []*testHandler{h}
			},
			publish: []string{"OrderPaid", "Anything"},
			want:    []int{2},
		},
		{
			name: "failing and panicking handlers do not stop the others",
			subscribe: func(bus *InMemoryEventBus) []*testHandler {
				failing := newTestHandler("OrderPaid")
				failing.err = errors.New("boom")
				panicking := newTestHandler("OrderPaid")
				panicking.panicMsg = "nil map"
				ok := newTestHandler("OrderPaid")
				bus.Subscribe(failing)
				bus.Subscribe(panicking)
				bus.Subscribe(ok)
				return []*testHandler{failing, panicking, ok}
			},
			publish: []string{"OrderPaid"},
			want:    []int{1, 1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := NewInMemoryEventBus(zap.NewNop())
			handlers := tt.subscribe(bus)

			for _, et := range tt.publish {
				require.NoError(t, bus.Publish(context.Background(), newTestEvent(et)))
			}

			for i, h := range handlers {
				assert.Equal(t, tt.want[i], h.count())
			}
		})
	}
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := newTestHandler("OrderPaid")
	bus.Subscribe(h)

	_ = bus.Publish(context.Background(), newTestEvent("OrderPaid"))
	bus.Unsubscribe(h)
	_ = bus.Publish(context.Background(), newTestEvent("OrderPaid"))

	assert.Equal(t, 1, h.count())
}

func TestInMemoryEventBus_Async(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop(), WithAsyncDispatch(2, 10))
	h := newTestHandler("OrderPaid")
	bus.Subscribe(h)

	assert.ErrorIs(t, bus.Publish(context.Background(), newTestEvent("OrderPaid")), ErrBusStopped)

	require.NoError(t, bus.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(ctx, newTestEvent("OrderPaid")))
	}
	// a cancelled request must not cancel queued work
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, bus.Stop(stopCtx))

	assert.Equal(t, 5, h.count())
	assert.ErrorIs(t, bus.Publish(context.Background(), newTestEvent("OrderPaid")), ErrBusStopped)
	assert.NoError(t, bus.Stop(stopCtx))
}

func TestInMemoryEventBus_AsyncQueueFull(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop(), WithAsyncDispatch(1, 1))
	h := newTestHandler("OrderPaid")
	h.block = make(chan struct{})
	bus.Subscribe(h)
	require.NoError(t, bus.Start(context.Background()))

	// the worker may or may not have dequeued the first event yet
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = bus.Publish(context.Background(), newTestEvent("OrderPaid"))
	}
	assert.ErrorIs(t, err, ErrQueueFull)

	close(h.block)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, bus.Stop(ctx))
}

func TestInMemoryEventBus_StopTimeout(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop(), WithAsyncDispatch(1, 1))
	h := newTestHandler("OrderPaid")
	h.block = make(chan struct{})
	defer close(h.block)
	bus.Subscribe(h)
	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("OrderPaid")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Stop(ctx), context.DeadlineExceeded)
}
