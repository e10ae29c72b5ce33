package events

import (
	"sync"
	"time"

	"hms-notification-service/internal/domain"

	"go.uber.org/zap"
)

// Observer receives lifecycle events. Implementations must not block.
type Observer interface {
	Observe(ev domain.Event)
}

type ObserverFunc func(ev domain.Event)

func (f ObserverFunc) Observe(ev domain.Event) { f(ev) }

// Bus fans events out to the subscribed observers in registration order.
// A panicking observer is logged and skipped; it never reaches the emitter.
type Bus struct {
	mu        sync.RWMutex
	observers []Observer
	logger    *zap.Logger
	now       func() time.Time
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{logger: logger, now: time.Now}
}

func (b *Bus) Subscribe(o Observer) {
	b.mu.Lock()
	b.observers = append(b.observers, o)
	b.mu.Unlock()
}

func (b *Bus) Emit(ev domain.Event) {
	if ev.At.IsZero() {
		ev.At = b.now()
	}
	b.mu.RLock()
	observers := b.observers
	b.mu.RUnlock()

	for _, o := range observers {
		b.deliver(o, ev)
	}
}

func (b *Bus) deliver(o Observer, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event observer panicked",
				zap.String("event", string(ev.Type)),
				zap.Any("panic", r))
		}
	}()
	o.Observe(ev)
}
