package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Snapshot is an immutable view of a subtree at one moment.
// The value is nil (absent), a json.RawMessage leaf, or a map[string]any interior node.
type Snapshot struct {
	path  string
	value any
}

// Path returns the absolute path the snapshot was taken at.
func (s Snapshot) Path() string { return s.path }

// Key returns the last segment of the path.
func (s Snapshot) Key() string { return lastSegment(s.path) }

// Exists reports whether anything is stored at or below the path.
func (s Snapshot) Exists() bool { return s.value != nil }

// Decode unmarshals the subtree into v.
// POST: returns ErrNotFound when the node is absent, v untouched
func (s Snapshot) Decode(v any) error {
	if s.value == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, s.path)
	}
	raw, err := s.JSON()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	return nil
}

// JSON returns the subtree encoded as a JSON document ("null" when absent).
func (s Snapshot) JSON() (json.RawMessage, error) {
	if s.value == nil {
		return json.RawMessage("null"), nil
	}
	raw, err := json.Marshal(s.value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", s.path, err)
	}
	return raw, nil
}

// Child returns the snapshot at a path relative to this one.
func (s Snapshot) Child(rel string) Snapshot {
	cur := s.value
	for _, seg := range strings.Split(strings.Trim(rel, "/"), "/") {
		if seg == "" {
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			cur = nil
			break
		}
		cur = m[seg]
	}
	return Snapshot{path: Join(s.path, rel), value: cur}
}

// Keys returns the child keys in ascending order. Leaves have no keys.
func (s Snapshot) Keys() []string {
	m, ok := s.value.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Children returns one snapshot per child in key order.
func (s Snapshot) Children() []Snapshot {
	keys := s.Keys()
	out := make([]Snapshot, 0, len(keys))
	m, _ := s.value.(map[string]any)
	for _, k := range keys {
		out = append(out, Snapshot{path: Join(s.path, k), value: m[k]})
	}
	return out
}

// buildSnapshot nests the leaves stored under root. Leaf paths are absolute.
func buildSnapshot(root string, leaves map[string]json.RawMessage) Snapshot {
	if raw, ok := leaves[root]; ok && len(leaves) == 1 {
		return Snapshot{path: root, value: raw}
	}
	var top map[string]any
	for p, raw := range leaves {
		rel := p
		if root != "" {
			if p == root {
				continue
			}
			rel = strings.TrimPrefix(p, root+"/")
		}
		if top == nil {
			top = map[string]any{}
		}
		segs := strings.Split(rel, "/")
		node := top
		for _, seg := range segs[:len(segs)-1] {
			next, ok := node[seg].(map[string]any)
			if !ok {
				next = map[string]any{}
				node[seg] = next
			}
			node = next
		}
		last := segs[len(segs)-1]
		if _, isMap := node[last].(map[string]any); !isMap {
			node[last] = raw
		}
	}
	if top == nil {
		return Snapshot{path: root}
	}
	return Snapshot{path: root, value: top}
}

// flatten converts any JSON-encodable value into absolute leaf paths under root.
// Objects become interior nodes; empty objects and nulls store nothing; arrays are leaves.
func flatten(root string, v any) (map[string]json.RawMessage, error) {
	generic, err := normalize(v)
	if err != nil {
		return nil, err
	}
	out := map[string]json.RawMessage{}
	if err := flattenInto(out, root, generic); err != nil {
		return nil, err
	}
	return out, nil
}

func normalize(v any) (any, error) {
	var raw []byte
	switch x := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		raw = x
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode value: %w", err)
		}
		raw = b
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return generic, nil
}

func flattenInto(out map[string]json.RawMessage, p string, v any) error {
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]any:
		for k, child := range x {
			if err := validateSegment(k); err != nil {
				return fmt.Errorf("%w: key %q under %q", err, k, p)
			}
			if err := flattenInto(out, Join(p, k), child); err != nil {
				return err
			}
		}
		return nil
	default:
		if p == "" {
			return fmt.Errorf("%w: scalar at root", ErrInvalidPath)
		}
		raw, err := json.Marshal(x)
		if err != nil {
			return fmt.Errorf("encode leaf %s: %w", p, err)
		}
		out[p] = raw
		return nil
	}
}
