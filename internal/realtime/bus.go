// Package realtime fans playback events out across server instances.
package realtime

import (
	"context"
	"errors"
	"sync"

	"lessoncast/pkg/types"
)

var ErrBusClosed = errors.New("event bus closed")

// Bus carries playback events between instances. Every event published is
// stamped with the publishing instance as Origin, and forwarders skip
// events that originated locally.
type Bus interface {
	Publish(ctx context.Context, ev types.PlaybackEvent) error
	StartForwarder(ctx context.Context, onEvent func(types.PlaybackEvent)) error
	Close() error
}

// MemoryBus connects instances living in one process. It backs single-node
// deployments and tests.
type MemoryBus struct {
	origin string
	net    *MemoryNetwork
}

// MemoryNetwork is the shared medium of a set of MemoryBus instances.
type MemoryNetwork struct {
	mu     sync.RWMutex
	subs   map[int]memorySub
	nextID int
	closed bool
}

type memorySub struct {
	origin string
	fn     func(types.PlaybackEvent)
}

func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{subs: make(map[int]memorySub)}
}

// Join returns a bus for the instance named origin.
func (n *MemoryNetwork) Join(origin string) *MemoryBus {
	return &MemoryBus{origin: origin, net: n}
}

func (b *MemoryBus) Publish(ctx context.Context, ev types.PlaybackEvent) error {
	b.net.mu.RLock()
	defer b.net.mu.RUnlock()
	if b.net.closed {
		return ErrBusClosed
	}
	ev.Origin = b.origin
	for _, s := range b.net.subs {
		if s.origin != b.origin {
			s.fn(ev)
		}
	}
	return nil
}

// StartForwarder registers onEvent until ctx is done.
func (b *MemoryBus) StartForwarder(ctx context.Context, onEvent func(types.PlaybackEvent)) error {
	if onEvent == nil {
		return errors.New("onEvent callback required")
	}
	b.net.mu.Lock()
	if b.net.closed {
		b.net.mu.Unlock()
		return ErrBusClosed
	}
	id := b.net.nextID
	b.net.nextID++
	b.net.subs[id] = memorySub{origin: b.origin, fn: onEvent}
	b.net.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.net.mu.Lock()
		delete(b.net.subs, id)
		b.net.mu.Unlock()
	}()
	return nil
}

func (b *MemoryBus) Close() error {
	b.net.mu.Lock()
	defer b.net.mu.Unlock()
	b.net.closed = true
	b.net.subs = make(map[int]memorySub)
	return nil
}
