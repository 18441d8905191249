package tree

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"studentcenter/internal/adapters/http/perf"
)

// Subscription is a live listener on one subtree.
type Subscription struct {
	id     uint64
	path   string
	signal chan struct{} // cap 1: pending writes collapse into one delivery
	stop   chan struct{}
	once   sync.Once
	hub    *hub
}

// Path returns the watched path.
func (s *Subscription) Path() string { return s.path }

// Close detaches the listener. It does not wait for a delivery already in
// progress; callers that share state with the callback must guard it.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
		close(s.stop)
	})
}

// Done is closed once the subscription has been detached.
func (s *Subscription) Done() <-chan struct{} { return s.stop }

type hub struct {
	mu        sync.Mutex
	nextID    uint64
	subs      map[uint64]*Subscription
	collector *perf.Collector
}

func newHub() *hub {
	return &hub{subs: map[uint64]*Subscription{}}
}

func (h *hub) setCollector(c *perf.Collector) {
	h.mu.Lock()
	h.collector = c
	h.mu.Unlock()
}

func (h *hub) add(path string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{
		id:     h.nextID,
		path:   path,
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		hub:    h,
	}
	sub.signal <- struct{}{} // initial delivery
	h.subs[sub.id] = sub
	return sub
}

func (h *hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// notify signals every subscription overlapping one of the changed paths.
func (h *hub) notify(changed ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		for _, p := range changed {
			if !overlaps(sub.path, p) {
				continue
			}
			select {
			case sub.signal <- struct{}{}:
			default:
			}
			break
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

type loadFunc func(ctx context.Context, path string) (Snapshot, error)

// run is the delivery loop of one subscription.
func (h *hub) run(ctx context.Context, sub *Subscription, load loadFunc, fn func(Snapshot)) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.stop:
			return
		case <-sub.signal:
		}

		snap, err := load(ctx, sub.path)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("tree_event", "event", "snapshot_load_failed", "path", sub.path, "error", err)
			continue
		}

		select {
		case <-sub.stop:
			return
		default:
		}

		start := time.Now()
		fn(snap)

		h.mu.Lock()
		c := h.collector
		h.mu.Unlock()
		if c != nil {
			c.Record(perf.Entry{
				Kind:       perf.KindDelivery,
				Path:       sub.path,
				DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
				Timestamp:  start,
			})
		}
	}
}
