package orchestrators

import (
	"errors"
	"strings"
	"testing"

	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/notification"
	outboxDomain "studentcenter/internal/domain/outbox"
	"studentcenter/internal/domain/organization"
	"studentcenter/internal/domain/profile"
	"studentcenter/internal/domain/role"
)

func TestExecuteCreateCenter(t *testing.T) {
	f := newFixture(t)
	deps := CenterDeps{Tree: f.store, GenerateID: fixedID, Now: fixedNow}

	c, err := ExecuteCreateCenter(f.ctx, CreateCenterInput{
		UserID:     outsiderID,
		Name:       " Centro Nuevo ",
		Courses:    []string{"1A", " 1B "},
		AccessCode: "abcdef",
	}, deps)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID != "test-id-001" || c.Name != "Centro Nuevo" || c.Color != organization.ColorIndigo || c.Courses[1] != "1B" {
		t.Errorf("center = %+v", c)
	}
	stored, err := gate.LoadCenter(f.ctx, f.store, c.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.OwnerID != outsiderID || stored.CheckAccessCode("abcdef") != nil {
		t.Errorf("stored = %+v", stored)
	}
	if !f.exists(paths.UserCenter(outsiderID, c.ID)) {
		t.Error("owner index missing the new center")
	}
	if strings.Contains(f.rawJSON(paths.Center(c.ID)), "abcdef") {
		t.Error("access code stored in clear text")
	}
}

func TestExecuteCreateCenter_Rejects(t *testing.T) {
	f := newFixture(t)
	deps := CenterDeps{Tree: f.store, GenerateID: fixedID, Now: fixedNow}
	tests := []struct {
		name  string
		input CreateCenterInput
		want  error
	}{
		{"no profile", CreateCenterInput{UserID: "ghost", Name: "X", Courses: []string{"1A"}, AccessCode: "abcdef"}, profile.ErrNotFound},
		{"no courses", CreateCenterInput{UserID: ownerID, Name: "X", AccessCode: "abcdef"}, organization.ErrNoCourses},
		{"duplicate course", CreateCenterInput{UserID: ownerID, Name: "X", Courses: []string{"1A", "1A"}, AccessCode: "abcdef"}, organization.ErrInvalidCourse},
		{"short code", CreateCenterInput{UserID: ownerID, Name: "X", Courses: []string{"1A"}, AccessCode: "abc"}, organization.ErrAccessCodeShort},
		{"bad color", CreateCenterInput{UserID: ownerID, Name: "X", Color: "pink", Courses: []string{"1A"}, AccessCode: "abcdef"}, organization.ErrInvalidColor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ExecuteCreateCenter(f.ctx, tt.input, deps); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExecuteJoinCenter(t *testing.T) {
	f := newFixture(t)
	deps := CenterDeps{Tree: f.store, GenerateID: fixedID, Now: fixedNow}
	join := JoinCenterInput{OrgID: testOrg, UserID: outsiderID, AccessCode: testAccessKey, Course: "5C", DocumentNumber: " 12345678 "}

	bad := join
	bad.AccessCode = "wrong-code"
	if _, err := ExecuteJoinCenter(f.ctx, bad, deps); !errors.Is(err, organization.ErrWrongAccessCode) {
		t.Errorf("wrong code err = %v", err)
	}
	bad = join
	bad.Course = "6A"
	if _, err := ExecuteJoinCenter(f.ctx, bad, deps); !errors.Is(err, organization.ErrUnknownCourse) {
		t.Errorf("unknown course err = %v", err)
	}

	op, err := ExecuteJoinCenter(f.ctx, join, deps)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if op.Course != "5C" || op.DocumentNumber != "12345678" || !op.JoinedAt.Equal(fixedTime) {
		t.Errorf("org profile = %+v", op)
	}
	c, _ := gate.LoadCenter(f.ctx, f.store, testOrg)
	if r, ok := c.Tier(outsiderID); !ok || r != role.Student {
		t.Errorf("tier = %v, %v", r, ok)
	}
	if !f.exists(paths.OrgProfile(testOrg, outsiderID)) || !f.exists(paths.UserCenter(outsiderID, testOrg)) {
		t.Error("org profile or index entry not stored")
	}
	if _, err := ExecuteJoinCenter(f.ctx, join, deps); !errors.Is(err, organization.ErrAlreadyMember) {
		t.Errorf("second join err = %v", err)
	}
}

func TestExecuteChangeMemberTier(t *testing.T) {
	f := newFixture(t)
	deps := CenterDeps{Tree: f.store, GenerateID: fixedID, Now: fixedNow}

	if _, err := ExecuteChangeMemberTier(f.ctx, ChangeMemberTierInput{OrgID: testOrg, ActorID: ownerID, MemberID: studentID, Tier: role.AdminPlus}, deps); err != nil {
		t.Fatalf("promote: %v", err)
	}
	c, _ := gate.LoadCenter(f.ctx, f.store, testOrg)
	if !c.AdminsPlus[studentID] || c.Students[studentID] || c.Admins[studentID] {
		t.Errorf("membership = %+v", c.Membership)
	}
	got := f.notifications(studentID)
	if len(got) != 1 || got[0].Type != notification.TypeRoleChanged || got[0].Payload["role"] != string(role.AdminPlus) || got[0].Payload["previousRole"] != string(role.Student) {
		t.Errorf("notifications = %+v", got)
	}

	// Admin-plus may move members between admin and student only.
	if _, err := ExecuteChangeMemberTier(f.ctx, ChangeMemberTierInput{OrgID: testOrg, ActorID: adminPlusID, MemberID: student2ID, Tier: role.Admin}, deps); err != nil {
		t.Errorf("admin-plus promote to admin: %v", err)
	}
	denied := []ChangeMemberTierInput{
		{OrgID: testOrg, ActorID: adminPlusID, MemberID: adminID, Tier: role.AdminPlus},
		{OrgID: testOrg, ActorID: adminPlusID, MemberID: studentID, Tier: role.Admin},
		{OrgID: testOrg, ActorID: adminID, MemberID: student2ID, Tier: role.Student},
		{OrgID: testOrg, ActorID: outsiderID, MemberID: adminID, Tier: role.Student},
	}
	for _, in := range denied {
		if _, err := ExecuteChangeMemberTier(f.ctx, in, deps); !errors.Is(err, feature.ErrPermissionDenied) {
			t.Errorf("%s moving %s: err = %v, want denied", in.ActorID, in.MemberID, err)
		}
	}

	if _, err := ExecuteChangeMemberTier(f.ctx, ChangeMemberTierInput{OrgID: testOrg, ActorID: ownerID, MemberID: ownerID, Tier: role.Admin}, deps); !errors.Is(err, organization.ErrCannotChangeOwner) {
		t.Errorf("owner demotion err = %v", err)
	}
	if _, err := ExecuteChangeMemberTier(f.ctx, ChangeMemberTierInput{OrgID: testOrg, ActorID: ownerID, MemberID: outsiderID, Tier: role.Admin}, deps); !errors.Is(err, organization.ErrNotMember) {
		t.Errorf("non-member err = %v", err)
	}
	if _, err := ExecuteChangeMemberTier(f.ctx, ChangeMemberTierInput{OrgID: testOrg, ActorID: ownerID, MemberID: adminID, Tier: role.Owner}, deps); !errors.Is(err, organization.ErrInvalidTier) {
		t.Errorf("owner tier err = %v", err)
	}
}

func TestExecuteExpelMember(t *testing.T) {
	f := newFixture(t)
	box := newOutbox(t)
	deps := CenterDeps{Tree: f.store, Outbox: box, GenerateID: seqIDs(), Now: fixedNow}
	permDeps := PermissionDeps{Tree: f.store, Now: fixedNow}
	for _, k := range []feature.Key{feature.Finances, feature.AnonymousChat} {
		if err := ExecuteSetFeatureManagers(f.ctx, SetFeatureManagersInput{OrgID: testOrg, UserID: ownerID, Feature: k, Managers: []string{studentID}}, permDeps); err != nil {
			t.Fatalf("set managers: %v", err)
		}
	}

	if _, err := ExecuteExpelMember(f.ctx, ExpelMemberInput{OrgID: testOrg, ActorID: adminID, MemberID: studentID}, deps); !errors.Is(err, feature.ErrPermissionDenied) {
		t.Errorf("admin expel err = %v", err)
	}
	res, err := ExecuteExpelMember(f.ctx, ExpelMemberInput{OrgID: testOrg, ActorID: adminPlusID, MemberID: studentID, Reason: "Inactividad"}, deps)
	if err != nil {
		t.Fatalf("expel: %v", err)
	}
	if len(res.Delivered) != 1 || res.Delivered[0] != studentID {
		t.Errorf("delivered = %v", res.Delivered)
	}

	for _, k := range []feature.Key{feature.Finances, feature.AnonymousChat} {
		g, err := gate.Load(f.ctx, f.store, testOrg, k, studentID)
		if err != nil {
			t.Fatalf("gate: %v", err)
		}
		if g.Access.IsMember || g.Access.Role == role.Manager {
			t.Errorf("%s: expelled member still has access %+v", k, g.Access)
		}
	}
	if f.exists(paths.OrgProfile(testOrg, studentID)) || f.exists(paths.UserCenter(studentID, testOrg)) {
		t.Error("org profile or index entry survived expulsion")
	}
	got := f.notifications(studentID)
	if len(got) != 1 || got[0].Type != notification.TypeExpulsion || got[0].Payload["reason"] != "Inactividad" {
		t.Errorf("notifications = %+v", got)
	}

	pending, err := box.ListPending(f.ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %+v, %v", pending, err)
	}
	mail, err := pending[0].Email()
	if err != nil || mail.To != studentID+"@example.com" || !strings.Contains(mail.Body, "Inactividad") {
		t.Errorf("email = %+v, %v", mail, err)
	}

	if _, err := ExecuteExpelMember(f.ctx, ExpelMemberInput{OrgID: testOrg, ActorID: adminPlusID, MemberID: adminPlusID}, deps); !errors.Is(err, feature.ErrPermissionDenied) {
		t.Errorf("self expel err = %v", err)
	}
	if _, err := ExecuteExpelMember(f.ctx, ExpelMemberInput{OrgID: testOrg, ActorID: ownerID, MemberID: ownerID}, deps); err == nil {
		t.Error("owner expelled")
	}
}

func TestExecuteDeleteCenter(t *testing.T) {
	f := newFixture(t)
	box := newOutbox(t)
	deps := CenterDeps{Tree: f.store, Outbox: box, GenerateID: seqIDs(), Now: fixedNow}

	if _, err := ExecuteDeleteCenter(f.ctx, DeleteCenterInput{OrgID: testOrg, ActorID: adminPlusID}, deps); !errors.Is(err, feature.ErrPermissionDenied) {
		t.Errorf("admin-plus delete err = %v", err)
	}
	if !f.exists(paths.Center(testOrg)) {
		t.Fatal("denied delete removed the center")
	}

	res, err := ExecuteDeleteCenter(f.ctx, DeleteCenterInput{OrgID: testOrg, ActorID: ownerID}, deps)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(res.Delivered) != len(allMemberIDs) {
		t.Errorf("delivered = %v", res.Delivered)
	}
	for _, uid := range allMemberIDs {
		if f.notificationsOfType(uid, notification.TypeCenterDeleted) != 1 {
			t.Errorf("%s missing CENTER_DELETED", uid)
		}
	}
	if f.exists(paths.Org(testOrg)) || f.exists(paths.OrgProfiles(testOrg)) {
		t.Error("center data survived deletion")
	}
	for _, uid := range allMemberIDs {
		if f.exists(paths.UserCenter(uid, testOrg)) {
			t.Errorf("%s index still lists the deleted center", uid)
		}
	}
	counts, _ := box.CountByStatus(f.ctx)
	if counts[outboxDomain.StatusPending] != len(allMemberIDs)-1 {
		t.Errorf("queued emails = %v, want one per member except the owner", counts)
	}
	if _, err := gate.LoadCenter(f.ctx, f.store, testOrg); !errors.Is(err, organization.ErrNotFound) {
		t.Errorf("load after delete err = %v", err)
	}
}
