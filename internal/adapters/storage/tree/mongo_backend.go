package tree

import (
	"context"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoNode is one leaf document. The path doubles as the primary key.
type mongoNode struct {
	Path  string `bson:"_id"`
	Value string `bson:"value"`
}

// mongoBackend stores leaves in a single collection.
// Ops are sent as one ordered bulk write; a standalone server gives no
// multi-document rollback, so a failed batch can leave earlier ops applied.
type mongoBackend struct {
	coll *mongo.Collection
}

// NewMongo returns a Tree persisted in coll.
func NewMongo(coll *mongo.Collection) *Tree {
	return newTree(&mongoBackend{coll: coll})
}

func subtreeFilter(root string) bson.M {
	lo, hi := subtreeBounds(root)
	return bson.M{"$or": bson.A{
		bson.M{"_id": root},
		bson.M{"_id": bson.M{"$gt": lo, "$lt": hi}},
	}}
}

func (m *mongoBackend) load(ctx context.Context, root string) (map[string]json.RawMessage, error) {
	filter := bson.M{}
	if root != "" {
		filter = subtreeFilter(root)
	}
	cur, err := m.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find tree %q: %w", root, err)
	}
	defer cur.Close(ctx)

	out := map[string]json.RawMessage{}
	for cur.Next(ctx) {
		var n mongoNode
		if err := cur.Decode(&n); err != nil {
			return nil, fmt.Errorf("decode tree node: %w", err)
		}
		out[n.Path] = json.RawMessage(n.Value)
	}
	return out, cur.Err()
}

func (m *mongoBackend) apply(ctx context.Context, ops []op) error {
	models := make([]mongo.WriteModel, 0, len(ops))
	for _, o := range ops {
		switch o.kind {
		case opClearTree:
			models = append(models, mongo.NewDeleteManyModel().SetFilter(subtreeFilter(o.path)))
		case opClearLeaf:
			models = append(models, mongo.NewDeleteOneModel().SetFilter(bson.M{"_id": o.path}))
		case opPut:
			models = append(models, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"_id": o.path}).
				SetReplacement(mongoNode{Path: o.path, Value: string(o.value)}).
				SetUpsert(true))
		}
	}
	if len(models) == 0 {
		return nil
	}
	if _, err := m.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("bulk write tree: %w", err)
	}
	return nil
}
