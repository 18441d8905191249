package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"

	"studentcenter/internal/adapters/storage/tree"
)

// transactField runs fn against one field of the record at path, inside a
// transaction on the whole record. A record deleted before the transaction
// runs yields notFound and stays deleted.
// POST: fn returning nil removes the field
func transactField(ctx context.Context, s tree.Store, path, field string, notFound error, fn tree.TransactFunc) error {
	_, err := s.Transact(ctx, path, func(cur tree.Snapshot) (any, error) {
		if !cur.Exists() {
			return nil, notFound
		}
		raw, err := cur.JSON()
		if err != nil {
			return nil, err
		}
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		next, err := fn(cur.Child(field))
		if err != nil {
			return nil, err
		}
		if next == nil {
			delete(doc, field)
			return doc, nil
		}
		b, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("encode %s/%s: %w", path, field, err)
		}
		doc[field] = b
		return doc, nil
	})
	return err
}
