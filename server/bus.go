package server

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Listener receives the data of a fired event.
type Listener func(ctx context.Context, data any)

type listenerEntry struct {
	id       uint64
	listener Listener
}

// Bus delivers events to listeners synchronously, in registration order, on
// the goroutine that fired them.
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[string][]listenerEntry
	logger    logrus.FieldLogger
}

func NewBus(logger logrus.FieldLogger) *Bus {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Bus{listeners: map[string][]listenerEntry{}, logger: logger}
}

// Listen subscribes to eventType. The returned func unsubscribes.
func (b *Bus) Listen(eventType string, listener Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners[eventType] = append(b.listeners[eventType], listenerEntry{id: id, listener: listener})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.listeners[eventType]
		for i, e := range entries {
			if e.id == id {
				b.listeners[eventType] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) Fire(ctx context.Context, eventType string, data any) {
	b.mu.RLock()
	entries := b.listeners[eventType]
	b.mu.RUnlock()

	b.logger.WithField("event_type", eventType).Trace("Firing event")
	for _, e := range entries {
		e.listener(ctx, data)
	}
}
