package projections

import (
	"context"
	"testing"
	"time"

	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/organization"
	"studentcenter/internal/domain/profile"
	"studentcenter/internal/domain/role"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return fixedTime }

const (
	testOrg    = "org-1"
	ownerID    = "u-owner"
	adminPlus  = "u-adminplus"
	adminID    = "u-admin"
	studentID  = "u-student"
	student2ID = "u-student2"
	outsiderID = "u-outsider"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *tree.Tree
}

// newFixture seeds one center with an owner, an admin-plus, an admin and two
// students, plus an outsider who belongs to no center.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := tree.NewMemory()
	t.Cleanup(store.Close)
	f := &fixture{t: t, ctx: context.Background(), store: store}

	names := map[string]string{
		ownerID: "Olga", adminPlus: "Pablo", adminID: "Ana", studentID: "Sofía", student2ID: "Bruno", outsiderID: "Xavier",
	}
	for uid, name := range names {
		f.set(paths.User(uid), profile.User{
			ID: uid, Name: name, Surname: "Rojas", Username: "user_" + uid[2:],
			Email: uid + "@example.com", PasswordHash: "secret-hash", CreatedAt: fixedTime,
		})
	}
	c := organization.Center{
		Membership: role.Membership{
			OwnerID:    ownerID,
			AdminsPlus: map[string]bool{adminPlus: true},
			Admins:     map[string]bool{adminID: true},
			Students:   map[string]bool{studentID: true, student2ID: true},
		},
		ID:        testOrg,
		Name:      "Centro Test",
		Color:     organization.ColorIndigo,
		Courses:   []string{"5A", "5B", "5C"},
		CreatedAt: fixedTime,
	}
	if err := c.SetAccessCode("clave-secreta"); err != nil {
		t.Fatalf("SetAccessCode: %v", err)
	}
	f.set(paths.Center(testOrg), c)
	for uid, course := range map[string]string{ownerID: "5A", adminPlus: "5A", adminID: "5B", studentID: "5B", student2ID: "5C"} {
		f.set(paths.OrgProfile(testOrg, uid), profile.OrgProfile{Course: course, DocumentNumber: "DNI-" + uid, JoinedAt: fixedTime})
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
