// Package livesync keeps local copies of tree subtrees current.
//
// A synchronizer subscribes to one path and replaces its whole state on every
// delivery. Snapshots that fail to decode are logged and dropped, leaving the
// previous state in place. After Close returns no further state is applied
// and the change callback is not invoked again.
package livesync

import (
	"context"
	"log/slog"
	"sync"

	"studentcenter/internal/adapters/storage/tree"
)

// Subscriber is the part of tree.Store a synchronizer needs.
type Subscriber interface {
	Subscribe(ctx context.Context, path string, fn func(tree.Snapshot)) (*tree.Subscription, error)
}

// guard serializes deliveries against Close.
// onChange callbacks run under mu, so they must not call Close themselves.
type guard struct {
	mu     sync.Mutex
	closed bool
	sub    *tree.Subscription
	ready  chan struct{}
	once   sync.Once
}

func newGuard() *guard {
	return &guard{ready: make(chan struct{})}
}

func (g *guard) attach(sub *tree.Subscription) {
	g.mu.Lock()
	closed := g.closed
	g.sub = sub
	g.mu.Unlock()
	if closed {
		sub.Close()
	}
}

// deliver runs apply unless the synchronizer is closed.
func (g *guard) deliver(apply func() bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	if apply() {
		g.once.Do(func() { close(g.ready) })
	}
}

func (g *guard) close() {
	g.mu.Lock()
	g.closed = true
	sub := g.sub
	g.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

func (g *guard) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

func logDecodeFailure(path string, err error) {
	slog.Warn("livesync_event", "event", "decode_failed", "path", path, "error", err)
}
