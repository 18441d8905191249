package tree

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"studentcenter/internal/adapters/storage"
)

// sqliteBackend stores one tree_node row per leaf.
type sqliteBackend struct {
	db storage.SQLDB
}

// NewSQLite returns a Tree persisted in the tree_node table.
// PRE: storage.InitDB has been run on db
func NewSQLite(db storage.SQLDB) *Tree {
	return newTree(&sqliteBackend{db: db})
}

func (s *sqliteBackend) load(ctx context.Context, root string) (map[string]json.RawMessage, error) {
	query := "SELECT path, value FROM tree_node"
	var args []any
	if root != "" {
		lo, hi := subtreeBounds(root)
		query += " WHERE path = ? OR (path > ? AND path < ?)"
		args = []any{root, lo, hi}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tree %q: %w", root, err)
	}
	defer rows.Close()

	out := map[string]json.RawMessage{}
	for rows.Next() {
		var p, v string
		if err := rows.Scan(&p, &v); err != nil {
			return nil, fmt.Errorf("scan tree node: %w", err)
		}
		out[p] = json.RawMessage(v)
	}
	return out, rows.Err()
}

func (s *sqliteBackend) apply(ctx context.Context, ops []op) error {
	return storage.RunInTx(ctx, s.db, "tree write", func(tx *sql.Tx) error {
		var err error
		for _, o := range ops {
			switch o.kind {
			case opClearTree:
				lo, hi := subtreeBounds(o.path)
				_, err = tx.ExecContext(ctx,
					"DELETE FROM tree_node WHERE path = ? OR (path > ? AND path < ?)", o.path, lo, hi)
			case opClearLeaf:
				_, err = tx.ExecContext(ctx, "DELETE FROM tree_node WHERE path = ?", o.path)
			case opPut:
				_, err = tx.ExecContext(ctx,
					`INSERT INTO tree_node (path, value) VALUES (?, ?)
					 ON CONFLICT(path) DO UPDATE SET value = excluded.value`, o.path, string(o.value))
			}
			if err != nil {
				return fmt.Errorf("write tree node %q: %w", o.path, err)
			}
		}
		return nil
	})
}
