package events

import "context"

// Handler consumes bus events. Handlers run on the bus goroutine and must return promptly.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error { return f(ctx, event) }

// Subscription is returned by Subscribe; Unsubscribe stops further deliveries.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id    string
	bus   *Bus
	kinds []EventType
}

func (s *subscription) Unsubscribe() { s.bus.unsubscribe(s.id, s.kinds) }

// Discard drops every event; used when no sink is configured.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) error { return nil }
