// Package eventbus provides an in-process pub/sub event bus for domain events.
// Handlers publish events after commit; subscribers process them asynchronously.
package eventbus

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/matthewbaird/lawoffice/internal/event"
)

// Handler processes a domain event. Implementations must be safe for
// concurrent calls from different goroutines.
type Handler interface {
	HandleEvent(ctx context.Context, evt event.DomainEvent) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt event.DomainEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	return f(ctx, evt)
}

// Bus is a simple in-process event bus. Events are published to a buffered
// channel and dispatched to all subscribers in a single consumer goroutine,
// so subscribers see events in publish order.
type Bus struct {
	mu          sync.RWMutex
	subscribers []namedHandler
	events      chan event.DomainEvent
	done        chan struct{}
	started     bool
	closed      bool
	log         logrus.FieldLogger
}

type namedHandler struct {
	name    string
	handler Handler
}

// New creates a new Bus with the given channel buffer size.
func New(bufSize int, log logrus.FieldLogger) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bus{
		events: make(chan event.DomainEvent, bufSize),
		done:   make(chan struct{}),
		log:    log.WithField("module", "eventbus"),
	}
}

// Subscribe registers a named handler. Must be called before Start.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedHandler{name: name, handler: h})
}

// Publish sends an event to the bus. Non-blocking: if the buffer is full or
// the bus is stopped the event is dropped and a warning is logged.
func (b *Bus) Publish(_ context.Context, evt event.DomainEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.log.WithFields(logrus.Fields{"event_type": evt.EventType, "event_id": evt.ID}).Warn("bus stopped, dropping event")
		return
	}
	select {
	case b.events <- evt:
	default:
		b.log.WithFields(logrus.Fields{"event_type": evt.EventType, "event_id": evt.ID}).Warn("buffer full, dropping event")
	}
}

// Start begins the consumer goroutine. It processes events until the
// context is cancelled or Stop is called.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	b.started = true
	b.mu.Unlock()

	go func() {
		defer close(b.done)
		for {
			select {
			case evt, ok := <-b.events:
				if !ok {
					return
				}
				b.dispatch(ctx, evt)
			case <-ctx.Done():
				// Drain remaining events before exiting.
				for {
					select {
					case evt, ok := <-b.events:
						if !ok {
							return
						}
						b.dispatch(ctx, evt)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop closes the bus to new events, lets the consumer drain what is queued
// and waits for it to finish. Safe to call more than once.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
	started := b.started
	b.mu.Unlock()

	if started {
		<-b.done
	}
}

func (b *Bus) dispatch(ctx context.Context, evt event.DomainEvent) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s, evt)
	}
}

// deliver isolates one subscriber so a panic does not take down the bus.
func (b *Bus) deliver(ctx context.Context, s namedHandler, evt event.DomainEvent) {
	defer func() {
		if p := recover(); p != nil {
			b.log.WithFields(logrus.Fields{"subscriber": s.name, "event_type": evt.EventType, "panic": p}).Error("handler panicked")
		}
	}()
	if err := s.handler.HandleEvent(ctx, evt); err != nil {
		b.log.WithFields(logrus.Fields{"subscriber": s.name, "event_type": evt.EventType}).WithError(err).Warn("handler error")
	}
}
