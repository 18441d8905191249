package paths_test

import (
	"testing"

	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/feature"
)

func TestPaths(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{paths.Center("o1"), "organizations/o1/center"},
		{paths.Feature("o1", feature.Finances), "organizations/o1/finances"},
		{paths.Permissions("o1", feature.Surveys), "organizations/o1/surveys/permissions"},
		{paths.Initialized("o1", feature.Competition), "organizations/o1/competition/initializedAt"},
		{paths.Record("o1", feature.Forums, "messages", "m1"), "organizations/o1/forums/messages/m1"},
		{paths.OrgProfile("o1", "u1"), "orgProfiles/o1/u1"},
		{paths.Notification("u1", "n1"), "notifications/u1/n1"},
		{paths.ChatAuthors("o1"), "organizations/o1/anonymousChat/authors"},
		{paths.UserCenter("u1", "o1"), "userCenters/u1/o1"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
		if err := tree.ValidatePath(tt.got); err != nil {
			t.Errorf("%q is not a valid tree path: %v", tt.got, err)
		}
	}
}

func TestUserEmail_CaseInsensitive(t *testing.T) {
	a := paths.UserEmail("Ana@Example.com ")
	b := paths.UserEmail("ana@example.com")
	if a != b {
		t.Errorf("%q != %q", a, b)
	}
	if err := tree.ValidatePath(a); err != nil {
		t.Errorf("email index path invalid: %v", err)
	}
}

func TestCheckIDs(t *testing.T) {
	if err := paths.CheckIDs("o1", "0190a3c2-7b7e-7c4e-9d0a-1f2e3d4c5b6a"); err != nil {
		t.Errorf("valid ids rejected: %v", err)
	}
	for _, bad := range []string{"", "a/b", "a.b", "x$", "../o2"} {
		if err := paths.CheckIDs("ok", bad); err == nil {
			t.Errorf("CheckIDs(%q) = nil, want error", bad)
		}
	}
}
