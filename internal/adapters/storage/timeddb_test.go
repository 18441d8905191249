package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"studentcenter/internal/adapters/http/perf"
)

func openTimedTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// A second pooled connection would see a different in-memory database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("CREATE TABLE test (id TEXT PRIMARY KEY, val TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestTimedDB_RecordsEachCall verifies every wrapped call lands in the collector.
func TestTimedDB_RecordsEachCall(t *testing.T) {
	db := openTimedTestDB(t)
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(db, collector, 0)
	ctx := context.Background()

	if _, err := tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	rows, err := tdb.QueryContext(ctx, "SELECT id, val FROM test")
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	rows.Close()

	var val string
	if err := tdb.QueryRowContext(ctx, "SELECT val FROM test WHERE id = ?", "1").Scan(&val); err != nil {
		t.Fatalf("QueryRowContext: %v", err)
	}
	if val != "hello" {
		t.Errorf("val = %q, want hello", val)
	}
	if collector.TotalRecorded() != 3 {
		t.Errorf("TotalRecorded = %d, want 3", collector.TotalRecorded())
	}
}

// TestTimedDB_ErrorPassthrough verifies SQL errors are returned unchanged and still timed.
func TestTimedDB_ErrorPassthrough(t *testing.T) {
	db := openTimedTestDB(t)
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(db, collector, 0)

	if _, err := tdb.ExecContext(context.Background(), "INSERT INTO nonexistent_table VALUES (?)", 1); err == nil {
		t.Fatal("expected error from invalid SQL, got nil")
	}
	var val string
	err := tdb.QueryRowContext(context.Background(), "SELECT val FROM test WHERE id = ?", "missing").Scan(&val)
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
	if collector.TotalRecorded() != 2 {
		t.Errorf("TotalRecorded = %d, want 2", collector.TotalRecorded())
	}
}

// TestTimedDB_NilCollector verifies TimedDB works without a collector.
func TestTimedDB_NilCollector(t *testing.T) {
	db := openTimedTestDB(t)
	tdb := NewTimedDB(db, nil, 0)

	if _, err := tdb.ExecContext(context.Background(), "INSERT INTO test (id, val) VALUES (?, ?)", "1", "x"); err != nil {
		t.Fatalf("ExecContext with nil collector: %v", err)
	}
	if tdb.RawDB() != db {
		t.Error("RawDB() should return the original *sql.DB")
	}
}

// TestOpName verifies queries are labelled by call and SQL verb.
func TestOpName(t *testing.T) {
	tests := []struct {
		call, query, want string
	}{
		{"ExecContext", "DELETE FROM tree_node WHERE path = ?", "ExecContext DELETE"},
		{"QueryContext", "\n\t select path from tree_node", "QueryContext SELECT"},
		{"ExecContext", "", "ExecContext"},
	}
	for _, tt := range tests {
		if got := opName(tt.call, tt.query); got != tt.want {
			t.Errorf("opName(%q, %q) = %q, want %q", tt.call, tt.query, got, tt.want)
		}
	}
}

// TestRunInTx_TimesWholeUnit verifies a committed transaction is recorded once under its label.
func TestRunInTx_TimesWholeUnit(t *testing.T) {
	db := openTimedTestDB(t)
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(db, collector, 0)
	ctx := context.Background()

	err := RunInTx(ctx, tdb, "seed", func(tx *sql.Tx) error {
		for _, id := range []string{"1", "2"} {
			if _, err := tx.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", id, "v"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}
	snap := collector.Snapshot(time.Now().Add(-time.Minute), 10)
	if len(snap.SlowestQueries) != 1 || snap.SlowestQueries[0].Path != "Tx seed" {
		t.Errorf("queries = %+v, want one \"Tx seed\"", snap.SlowestQueries)
	}
	if got := countRows(t, db); got != 2 {
		t.Errorf("rows = %d, want 2", got)
	}
}

// TestRunInTx_RollsBackOnError verifies nothing is written when fn fails.
func TestRunInTx_RollsBackOnError(t *testing.T) {
	db := openTimedTestDB(t)
	ctx := context.Background()
	errStop := errors.New("stop")

	err := RunInTx(ctx, db, "partial", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "v"); err != nil {
			return err
		}
		return errStop
	})
	if !errors.Is(err, errStop) {
		t.Fatalf("err = %v, want errStop", err)
	}
	if got := countRows(t, db); got != 0 {
		t.Errorf("rows = %d, want 0 after rollback", got)
	}
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM test").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// TestInitDB_Idempotent verifies the schema can be applied twice.
func TestInitDB_Idempotent(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	for i := 0; i < 2; i++ {
		if err := InitDB(db); err != nil {
			t.Fatalf("InitDB run %d: %v", i+1, err)
		}
	}
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&n); err != nil {
		t.Fatalf("count schema_version: %v", err)
	}
	if n != 1 {
		t.Errorf("schema_version rows = %d, want 1", n)
	}
	for _, table := range []string{"tree_node", "outbox"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func BenchmarkTimedDB_QueryRow(b *testing.B) {
	db, _ := sql.Open("sqlite", ":memory:")
	defer db.Close()
	db.SetMaxOpenConns(1)
	db.Exec("CREATE TABLE bench (id INTEGER PRIMARY KEY, val TEXT)")
	db.Exec("INSERT INTO bench VALUES (1, 'x')")
	tdb := NewTimedDB(db, perf.NewCollector(perf.DefaultRingSize), 0)

	ctx := context.Background()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var v string
		tdb.QueryRowContext(ctx, "SELECT val FROM bench WHERE id = 1").Scan(&v)
	}
}
