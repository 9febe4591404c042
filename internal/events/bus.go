// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBusClosed  = errors.New("event bus is shutting down")
	ErrBusFull    = errors.New("event channel full")
	_   Publisher = (*Bus)(nil)
)

// Bus is an in-memory event bus. Events are delivered to handlers in
// publish order by a single dispatch goroutine.
type Bus struct {
	mu         sync.RWMutex
	handlers   map[EventType]map[string]Handler
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	queue      chan Event
	bufferSize int
	dropped    atomic.Uint64
	delivered  atomic.Uint64
}

// NewBus creates a new event bus and starts its dispatch loop.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	bus := &Bus{
		handlers:   make(map[EventType]map[string]Handler),
		logger:     logger.Named("event_bus"),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		queue:      make(chan Event, bufferSize),
		bufferSize: bufferSize,
	}

	go bus.dispatch()

	return bus
}

// Subscribe registers handler for kinds; an event reaches each subscription once.
func (b *Bus) Subscribe(handler Handler, kinds ...EventType) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	for _, t := range kinds {
		if b.handlers[t] == nil {
			b.handlers[t] = make(map[string]Handler)
		}
		b.handlers[t][id] = handler
	}

	b.logger.Debug("Handler subscribed",
		zap.Any("event_types", kinds),
		zap.String("subscription_id", id))

	return &subscription{id: id, bus: b, kinds: kinds}
}

func (b *Bus) SubscribeFunc(fn func(context.Context, Event) error, kinds ...EventType) Subscription {
	return b.Subscribe(HandlerFunc(fn), kinds...)
}

// Publish queues an event without blocking. When the buffer is full the
// event is dropped and counted. A nil result means the event will be delivered,
// even if Shutdown starts right after.
func (b *Bus) Publish(event Event) error {
	// RLock против Shutdown: проверка и запись в очередь атомарны
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.ctx.Err() != nil {
		return ErrBusClosed
	}

	select {
	case b.queue <- event:
		return nil
	default:
		b.dropped.Add(1)
		b.logger.Warn("Event channel full, dropping event",
			zap.String("event_type", string(event.Type())))
		return ErrBusFull
	}
}

// PublishSync delivers an event to all registered handlers on the caller's goroutine.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type()]))
	ids := make([]string, 0, cap(handlers))
	for id, h := range b.handlers[event.Type()] {
		ids = append(ids, id)
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	var errs []error
	for i, handler := range handlers {
		if err := handler.Handle(ctx, event); err != nil {
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.String("handler_id", ids[i]),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	b.delivered.Add(1)

	if len(errs) > 0 {
		return fmt.Errorf("handlers failed: %w", errors.Join(errs...))
	}
	return nil
}

func (b *Bus) dispatch() {
	defer close(b.done)

	for {
		select {
		case <-b.ctx.Done():
			// Drain whatever was queued before shutdown.
			for {
				select {
				case event := <-b.queue:
					_ = b.PublishSync(context.Background(), event)
				default:
					return
				}
			}
		case event := <-b.queue:
			_ = b.PublishSync(b.ctx, event)
		}
	}
}

func (b *Bus) unsubscribe(id string, kinds []EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range kinds {
		if handlers, ok := b.handlers[t]; ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(b.handlers, t)
			}
		}
	}

	b.logger.Debug("Handler unsubscribed", zap.String("subscription_id", id))
}

// Shutdown stops accepting events, drains the queue and waits for the
// dispatch loop to exit or ctx to expire.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.logger.Info("Shutting down event bus")
	b.mu.Lock()
	b.cancel()
	b.mu.Unlock()

	select {
	case <-b.done:
		b.logger.Info("Event bus shutdown complete",
			zap.Uint64("delivered", b.delivered.Load()),
			zap.Uint64("dropped", b.dropped.Load()))
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}

// Stats reports queue depth and delivery counters.
func (b *Bus) Stats() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	handlerCounts := make(map[string]int)
	for eventType, handlers := range b.handlers {
		handlerCounts[string(eventType)] = len(handlers)
	}

	return map[string]interface{}{
		"buffer_size":       b.bufferSize,
		"pending_events":    len(b.queue),
		"delivered_events":  b.delivered.Load(),
		"dropped_events":    b.dropped.Load(),
		"handlers_per_type": handlerCounts,
	}
}
