package organization_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"studentcenter/internal/domain/organization"
	"studentcenter/internal/domain/role"
)

func validCenter() organization.Center {
	return organization.Center{
		Membership: role.Membership{OwnerID: "owner"},
		ID:         "o1",
		Name:       "Centro de Estudiantes",
		Color:      organization.ColorRose,
		Courses:    []string{"5A", "5B"},
	}
}

func TestCenter_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *organization.Center)
		wantErr error
	}{
		{"valid", func(c *organization.Center) {}, nil},
		{"empty name", func(c *organization.Center) { c.Name = "  " }, organization.ErrEmptyName},
		{"long name", func(c *organization.Center) { c.Name = strings.Repeat("x", 81) }, organization.ErrNameTooLong},
		{"no owner", func(c *organization.Center) { c.OwnerID = "" }, organization.ErrEmptyOwner},
		{"bad color", func(c *organization.Center) { c.Color = "neon" }, organization.ErrInvalidColor},
		{"no courses", func(c *organization.Center) { c.Courses = nil }, organization.ErrNoCourses},
		{"duplicate course", func(c *organization.Center) { c.Courses = []string{"5A", "5A"} }, organization.ErrInvalidCourse},
		{"course with slash", func(c *organization.Center) { c.Courses = []string{"5/A"} }, organization.ErrInvalidCourse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCenter()
			tt.mutate(&c)
			if err := c.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestCenter_JSONShape verifies membership sets sit at the top level of the record.
func TestCenter_JSONShape(t *testing.T) {
	c := validCenter()
	c.Admins = map[string]bool{"a1": true}
	raw, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	json.Unmarshal(raw, &m)
	if m["ownerId"] != "owner" {
		t.Errorf("ownerId = %v", m["ownerId"])
	}
	if _, ok := m["admins"].(map[string]any); !ok {
		t.Errorf("admins missing at top level: %s", raw)
	}
}

func TestCenter_AccessCode(t *testing.T) {
	c := validCenter()
	if err := c.SetAccessCode("123"); !errors.Is(err, organization.ErrAccessCodeShort) {
		t.Errorf("short code err = %v", err)
	}
	if err := c.SetAccessCode("secret-code"); err != nil {
		t.Fatalf("SetAccessCode: %v", err)
	}
	if err := c.CheckAccessCode("secret-code"); err != nil {
		t.Errorf("CheckAccessCode(correct) = %v", err)
	}
	if err := c.CheckAccessCode("wrong-code"); !errors.Is(err, organization.ErrWrongAccessCode) {
		t.Errorf("CheckAccessCode(wrong) = %v", err)
	}
}

func TestCenter_JoinSetTierRemove(t *testing.T) {
	c := validCenter()
	if err := c.Join("u1"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := c.Join("u1"); !errors.Is(err, organization.ErrAlreadyMember) {
		t.Errorf("second Join = %v", err)
	}

	if err := c.SetTier("u1", role.AdminPlus); err != nil {
		t.Fatalf("SetTier: %v", err)
	}
	if c.Students["u1"] || !c.AdminsPlus["u1"] {
		t.Errorf("u1 should only be admin-plus: %+v", c.Membership)
	}
	if got := role.Resolve("u1", c.Membership, nil); got != role.AdminPlus {
		t.Errorf("Resolve = %q", got)
	}

	if err := c.SetTier("owner", role.Admin); !errors.Is(err, organization.ErrCannotChangeOwner) {
		t.Errorf("owner SetTier = %v", err)
	}
	if err := c.SetTier("u1", role.Manager); !errors.Is(err, organization.ErrInvalidTier) {
		t.Errorf("manager tier = %v", err)
	}
	if err := c.SetTier("ghost", role.Admin); !errors.Is(err, organization.ErrNotMember) {
		t.Errorf("ghost SetTier = %v", err)
	}

	if err := c.Remove("owner"); !errors.Is(err, organization.ErrCannotRemoveOwner) {
		t.Errorf("Remove(owner) = %v", err)
	}
	if err := c.Remove("u1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if c.IsMember("u1") {
		t.Error("u1 still a member after Remove")
	}
}

func TestCanAssignTier(t *testing.T) {
	tests := []struct {
		actor, from, to role.Role
		want            bool
	}{
		{role.Owner, role.Student, role.AdminPlus, true},
		{role.AdminPlus, role.Student, role.Admin, true},
		{role.AdminPlus, role.Admin, role.AdminPlus, false},
		{role.AdminPlus, role.AdminPlus, role.Student, false},
		{role.Admin, role.Student, role.Admin, false},
	}
	for _, tt := range tests {
		if got := organization.CanAssignTier(tt.actor, tt.from, tt.to); got != tt.want {
			t.Errorf("CanAssignTier(%s, %s, %s) = %v, want %v", tt.actor, tt.from, tt.to, got, tt.want)
		}
	}
}
