package orchestrators

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"studentcenter/internal/adapters/ai"
	"studentcenter/internal/adapters/storage"
	"studentcenter/internal/adapters/storage/outbox"
	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/notification"
	"studentcenter/internal/domain/organization"
	"studentcenter/internal/domain/profile"
	"studentcenter/internal/domain/role"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return fixedTime }

func fixedID() string { return "test-id-001" }

// seqIDs returns a generator of distinct ids.
func seqIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%03d", n.Add(1)) }
}

// Members of the seeded center.
const (
	testOrg       = "org-1"
	ownerID       = "u-owner"
	adminPlusID   = "u-adminplus"
	adminID       = "u-admin"
	studentID     = "u-student"
	student2ID    = "u-student2"
	outsiderID    = "u-outsider"
	testOrgName   = "Centro Test"
	testPassword  = "correct horse battery"
	testAccessKey = "clave-secreta"
)

var allMemberIDs = []string{adminID, adminPlusID, ownerID, studentID, student2ID}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *tree.Tree
	center organization.Center
}

// newFixture seeds six users and one center where everyone but the outsider is a member.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := tree.NewMemory()
	t.Cleanup(store.Close)
	f := &fixture{t: t, ctx: context.Background(), store: store}

	for _, uid := range append([]string{outsiderID}, allMemberIDs...) {
		f.set(paths.User(uid), profile.User{
			ID:        uid,
			Name:      "Nombre " + uid,
			Surname:   "Apellido",
			Username:  "user_" + uid[2:],
			Email:     uid + "@example.com",
			CreatedAt: fixedTime.Add(-48 * time.Hour),
		})
	}
	f.center = organization.Center{
		Membership: role.Membership{
			OwnerID:    ownerID,
			AdminsPlus: map[string]bool{adminPlusID: true},
			Admins:     map[string]bool{adminID: true},
			Students:   map[string]bool{studentID: true, student2ID: true},
		},
		ID:        testOrg,
		Name:      testOrgName,
		Color:     organization.ColorIndigo,
		Courses:   []string{"5A", "5B", "5C"},
		CreatedAt: fixedTime.Add(-24 * time.Hour),
	}
	if err := f.center.SetAccessCode(testAccessKey); err != nil {
		t.Fatalf("SetAccessCode: %v", err)
	}
	f.set(paths.Center(testOrg), f.center)
	for _, uid := range allMemberIDs {
		f.set(paths.OrgProfile(testOrg, uid), profile.OrgProfile{Course: "5A", JoinedAt: fixedTime.Add(-24 * time.Hour)})
		f.set(paths.UserCenter(uid, testOrg), true)
	}
	return f
}

func (f *fixture) set(p string, v any) {
	f.t.Helper()
	if err := f.store.Set(f.ctx, p, v); err != nil {
		f.t.Fatalf("set %s: %v", p, err)
	}
}

// get decodes the node at p into v and reports whether it exists.
func (f *fixture) get(p string, v any) bool {
	f.t.Helper()
	snap, err := f.store.Get(f.ctx, p)
	if err != nil {
		f.t.Fatalf("get %s: %v", p, err)
	}
	if !snap.Exists() {
		return false
	}
	if v != nil {
		if err := snap.Decode(v); err != nil {
			f.t.Fatalf("decode %s: %v", p, err)
		}
	}
	return true
}

func (f *fixture) exists(p string) bool {
	f.t.Helper()
	return f.get(p, nil)
}

func (f *fixture) rawJSON(p string) string {
	f.t.Helper()
	snap, err := f.store.Get(f.ctx, p)
	if err != nil {
		f.t.Fatalf("get %s: %v", p, err)
	}
	raw, err := snap.JSON()
	if err != nil {
		f.t.Fatalf("json %s: %v", p, err)
	}
	return string(raw)
}

func (f *fixture) notifications(userID string) []notification.Notification {
	f.t.Helper()
	snap, err := f.store.Get(f.ctx, paths.UserNotifications(userID))
	if err != nil {
		f.t.Fatalf("get notifications: %v", err)
	}
	var out []notification.Notification
	for _, child := range snap.Children() {
		var n notification.Notification
		if err := child.Decode(&n); err != nil {
			f.t.Fatalf("decode notification: %v", err)
		}
		n.ID = child.Key()
		out = append(out, n)
	}
	return out
}

func (f *fixture) notificationsOfType(userID string, typ notification.Type) int {
	count := 0
	for _, n := range f.notifications(userID) {
		if n.Type == typ {
			count++
		}
	}
	return count
}

// newOutbox returns an outbox store on a private in-memory database.
func newOutbox(t *testing.T) *outbox.SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := storage.InitDB(db); err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return outbox.NewSQLiteStore(db)
}

// fakeGenerator returns a canned response and records prompts.
type fakeGenerator struct {
	mu      sync.Mutex
	out     string
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, req ai.Request) (json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, req.Prompt)
	if g.err != nil {
		return nil, g.err
	}
	return json.RawMessage(g.out), nil
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// failingPushStore fails every Push below one path.
type failingPushStore struct {
	tree.Store
	failPath string
	err      error
}

func (s failingPushStore) Push(ctx context.Context, p string, v any) (string, error) {
	if p == s.failPath {
		return "", s.err
	}
	return s.Store.Push(ctx, p, v)
}
