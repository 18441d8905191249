// Package tree is a hierarchical keyed store with subtree listeners.
//
// Values are JSON documents addressed by slash-separated paths. Objects are
// stored as one leaf per scalar or array so any subtree can be read, replaced
// or watched on its own. An empty object or null stores nothing: writing one
// deletes the node.
package tree

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"studentcenter/internal/adapters/http/perf"
)

// Store is the persistence contract the application layer depends on.
type Store interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	Exists(ctx context.Context, path string) (bool, error)
	Set(ctx context.Context, path string, value any) error
	Update(ctx context.Context, path string, values map[string]any) error
	Push(ctx context.Context, path string, value any) (string, error)
	Delete(ctx context.Context, path string) error
	Transact(ctx context.Context, path string, fn TransactFunc) (Snapshot, error)
	Subscribe(ctx context.Context, path string, fn func(Snapshot)) (*Subscription, error)
}

// TransactFunc computes the replacement for the current value at a path.
// Returning nil deletes the node; returning an error aborts without writing.
type TransactFunc func(current Snapshot) (any, error)

// Tree implements Store over a backend. Writes, including the read half of
// Transact, are serialized by mu and committed before listeners are signalled.
type Tree struct {
	be     backend
	mu     sync.Mutex
	hub    *hub
	newKey func() string
}

var _ Store = (*Tree)(nil)

func newTree(be backend) *Tree {
	return &Tree{
		be:     be,
		hub:    newHub(),
		newKey: newPushKey,
	}
}

// newPushKey returns a UUIDv7, so keys sort in creation order.
func newPushKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// SetCollector records each listener delivery in c.
func (t *Tree) SetCollector(c *perf.Collector) {
	t.hub.setCollector(c)
}

// SetKeyFunc replaces the push-key generator. Keys must sort in creation order.
func (t *Tree) SetKeyFunc(fn func() string) {
	t.mu.Lock()
	t.newKey = fn
	t.mu.Unlock()
}

// Close detaches every subscription.
func (t *Tree) Close() {
	t.hub.closeAll()
}

// Get returns the snapshot at path. A missing node is not an error.
func (t *Tree) Get(ctx context.Context, path string) (Snapshot, error) {
	if err := ValidatePath(path); err != nil {
		return Snapshot{}, err
	}
	return t.load(ctx, path)
}

func (t *Tree) load(ctx context.Context, path string) (Snapshot, error) {
	leaves, err := t.be.load(ctx, path)
	if err != nil {
		return Snapshot{}, err
	}
	return buildSnapshot(path, leaves), nil
}

// Exists reports whether anything is stored at or below path.
func (t *Tree) Exists(ctx context.Context, path string) (bool, error) {
	snap, err := t.Get(ctx, path)
	if err != nil {
		return false, err
	}
	return snap.Exists(), nil
}

// Set replaces the node at path with value.
func (t *Tree) Set(ctx context.Context, path string, value any) error {
	if err := validateWritePath(path); err != nil {
		return err
	}
	ops, err := setOps(path, value)
	if err != nil {
		return err
	}
	return t.commit(ctx, ops, path)
}

// Update replaces several children of path in one atomic write.
// Keys are relative paths and may contain "/"; they are applied in key order.
func (t *Tree) Update(ctx context.Context, path string, values map[string]any) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var ops []op
	changed := make([]string, 0, len(keys))
	for _, k := range keys {
		full := Join(path, k)
		if err := validateWritePath(full); err != nil {
			return err
		}
		o, err := setOps(full, values[k])
		if err != nil {
			return err
		}
		ops = append(ops, o...)
		changed = append(changed, full)
	}
	if len(ops) == 0 {
		return nil
	}
	return t.commit(ctx, ops, changed...)
}

// Push stores value under a fresh time-ordered key below path and returns the key.
func (t *Tree) Push(ctx context.Context, path string, value any) (string, error) {
	t.mu.Lock()
	key := t.newKey()
	t.mu.Unlock()
	full := Join(path, key)
	if err := t.Set(ctx, full, value); err != nil {
		return "", err
	}
	return key, nil
}

// Delete removes the node at path and everything below it.
func (t *Tree) Delete(ctx context.Context, path string) error {
	if err := validateWritePath(path); err != nil {
		return err
	}
	return t.commit(ctx, []op{{kind: opClearTree, path: path}}, path)
}

// Transact runs fn against the current value at path and writes its result,
// with no other write interleaved. It returns the committed snapshot.
func (t *Tree) Transact(ctx context.Context, path string, fn TransactFunc) (Snapshot, error) {
	if err := validateWritePath(path); err != nil {
		return Snapshot{}, err
	}
	t.mu.Lock()
	current, err := t.load(ctx, path)
	if err != nil {
		t.mu.Unlock()
		return Snapshot{}, err
	}
	next, err := fn(current)
	if err != nil {
		t.mu.Unlock()
		return Snapshot{}, err
	}
	ops, err := setOps(path, next)
	if err != nil {
		t.mu.Unlock()
		return Snapshot{}, err
	}
	if err := t.be.apply(ctx, ops); err != nil {
		t.mu.Unlock()
		return Snapshot{}, err
	}
	t.mu.Unlock()
	t.hub.notify(path)

	leaves, err := flatten(path, next)
	if err != nil {
		return Snapshot{}, err
	}
	return buildSnapshot(path, leaves), nil
}

// Subscribe delivers the snapshot at path once now and again after every
// overlapping write. Deliveries run on one goroutine per subscription; a burst
// of writes may coalesce into a single delivery of the latest state.
// The subscription ends on Close or when ctx is cancelled.
func (t *Tree) Subscribe(ctx context.Context, path string, fn func(Snapshot)) (*Subscription, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("subscribe %q: nil callback", path)
	}
	sub := t.hub.add(path)
	go t.hub.run(ctx, sub, t.load, fn)
	return sub, nil
}

func (t *Tree) commit(ctx context.Context, ops []op, changed ...string) error {
	t.mu.Lock()
	err := t.be.apply(ctx, ops)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	t.hub.notify(changed...)
	return nil
}

func validateWritePath(p string) error {
	if p == "" {
		return fmt.Errorf("%w: cannot write the root", ErrInvalidPath)
	}
	return ValidatePath(p)
}
