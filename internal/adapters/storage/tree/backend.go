package tree

import (
	"context"
	"encoding/json"
)

type opKind uint8

const (
	opClearTree opKind = iota // remove path and every descendant
	opClearLeaf               // remove path only
	opPut                     // upsert one leaf
)

type op struct {
	kind  opKind
	path  string
	value json.RawMessage
}

// backend persists leaves. apply must commit the ops atomically and in order.
// Writers are serialized by Tree, so backends only guard their own reads.
type backend interface {
	load(ctx context.Context, root string) (map[string]json.RawMessage, error)
	apply(ctx context.Context, ops []op) error
}

// setOps replaces the node at p with v.
func setOps(p string, v any) ([]op, error) {
	leaves, err := flatten(p, v)
	if err != nil {
		return nil, err
	}
	ops := make([]op, 0, len(leaves)+8)
	ops = append(ops, op{kind: opClearTree, path: p})
	for _, a := range ancestors(p) {
		ops = append(ops, op{kind: opClearLeaf, path: a})
	}
	for leaf, raw := range leaves {
		ops = append(ops, op{kind: opPut, path: leaf, value: raw})
	}
	return ops, nil
}
