package livesync

import (
	"context"
	"sync"

	"studentcenter/internal/adapters/storage/tree"
)

// Value mirrors a single record.
type Value[T any] struct {
	path     string
	onChange func(T, bool)
	g        *guard

	mu     sync.RWMutex
	value  T
	exists bool
}

// NewValue subscribes to path. onChange, if non-nil, receives the decoded
// record and whether it exists after every applied delivery.
func NewValue[T any](ctx context.Context, s Subscriber, path string, onChange func(T, bool)) (*Value[T], error) {
	v := &Value[T]{path: path, onChange: onChange, g: newGuard()}
	sub, err := s.Subscribe(ctx, path, func(snap tree.Snapshot) {
		v.g.deliver(func() bool { return v.apply(snap) })
	})
	if err != nil {
		return nil, err
	}
	v.g.attach(sub)
	return v, nil
}

func (v *Value[T]) apply(snap tree.Snapshot) bool {
	var next T
	exists := snap.Exists()
	if exists {
		if err := snap.Decode(&next); err != nil {
			logDecodeFailure(v.path, err)
			return false
		}
	}

	v.mu.Lock()
	v.value, v.exists = next, exists
	v.mu.Unlock()

	if v.onChange != nil {
		v.onChange(next, exists)
	}
	return true
}

// Path returns the synchronized path.
func (v *Value[T]) Path() string { return v.path }

// Get returns the current record and whether it exists.
func (v *Value[T]) Get() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value, v.exists
}

// Ready is closed after the first delivery has been applied.
func (v *Value[T]) Ready() <-chan struct{} { return v.g.ready }

// Close detaches the listener. It waits for a delivery in progress.
func (v *Value[T]) Close() { v.g.close() }
