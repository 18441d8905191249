package livesync

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"studentcenter/internal/adapters/storage/tree"
)

// Item is one child of a synchronized collection.
type Item[T any] struct {
	Key   string `json:"key"`
	Value T      `json:"value"`
}

// Order compares two items for sorting.
type Order[T any] func(a, b Item[T]) int

// ByKey orders items by key. Push keys are time-ordered, so this is insertion order.
func ByKey[T any]() Order[T] {
	return func(a, b Item[T]) int { return strings.Compare(a.Key, b.Key) }
}

// NewestFirst orders items by descending timestamp, then descending key.
func NewestFirst[T any](ts func(T) time.Time) Order[T] {
	return func(a, b Item[T]) int {
		if c := ts(b.Value).Compare(ts(a.Value)); c != 0 {
			return c
		}
		return strings.Compare(b.Key, a.Key)
	}
}

// List mirrors the children of a subtree as an ordered slice.
type List[T any] struct {
	path     string
	order    Order[T]
	onChange func([]Item[T])
	g        *guard

	mu    sync.RWMutex
	items []Item[T]
}

// NewList subscribes to path. onChange, if non-nil, receives a copy of the
// items after every applied delivery.
// PRE: order is non-nil
// POST: the first delivery is in flight; use Ready to wait for it
func NewList[T any](ctx context.Context, s Subscriber, path string, order Order[T], onChange func([]Item[T])) (*List[T], error) {
	if order == nil {
		return nil, fmt.Errorf("livesync list %q: nil order", path)
	}
	l := &List[T]{path: path, order: order, onChange: onChange, g: newGuard()}
	sub, err := s.Subscribe(ctx, path, func(snap tree.Snapshot) {
		l.g.deliver(func() bool { return l.apply(snap) })
	})
	if err != nil {
		return nil, err
	}
	l.g.attach(sub)
	return l, nil
}

func (l *List[T]) apply(snap tree.Snapshot) bool {
	items, err := decodeList[T](snap)
	if err != nil {
		logDecodeFailure(l.path, err)
		return false
	}
	slices.SortStableFunc(items, l.order)

	l.mu.Lock()
	l.items = items
	l.mu.Unlock()

	if l.onChange != nil {
		l.onChange(slices.Clone(items))
	}
	return true
}

func decodeList[T any](snap tree.Snapshot) ([]Item[T], error) {
	children := snap.Children()
	items := make([]Item[T], 0, len(children))
	for _, child := range children {
		var v T
		if err := child.Decode(&v); err != nil {
			return nil, err
		}
		items = append(items, Item[T]{Key: child.Key(), Value: v})
	}
	return items, nil
}

// Path returns the synchronized path.
func (l *List[T]) Path() string { return l.path }

// Items returns a copy of the current items.
func (l *List[T]) Items() []Item[T] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

// Len returns the current number of items.
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Ready is closed after the first delivery has been applied.
func (l *List[T]) Ready() <-chan struct{} { return l.g.ready }

// Close detaches the listener. It waits for a delivery in progress.
func (l *List[T]) Close() { l.g.close() }

// Closed reports whether Close has been called.
func (l *List[T]) Closed() bool { return l.g.isClosed() }
