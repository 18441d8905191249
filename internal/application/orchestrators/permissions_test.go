package orchestrators

import (
	"errors"
	"testing"
	"time"

	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/finance"
	"studentcenter/internal/domain/notification"
	"studentcenter/internal/domain/organization"
)

func TestExecuteSetFinanceVisibility_NotifiesEveryMember(t *testing.T) {
	f := newFixture(t)
	deps := PermissionDeps{Tree: f.store, Now: fixedNow}

	g, err := gate.Load(f.ctx, f.store, testOrg, feature.Finances, studentID)
	if err != nil {
		t.Fatalf("load gate: %v", err)
	}
	if g.CanRead() {
		t.Fatal("students should not read private finances")
	}

	res, err := ExecuteSetFinanceVisibility(f.ctx, SetFinanceVisibilityInput{OrgID: testOrg, UserID: ownerID, Public: true}, deps)
	if err != nil {
		t.Fatalf("set visibility: %v", err)
	}
	if len(res.Delivered) != len(allMemberIDs) {
		t.Errorf("delivered = %v", res.Delivered)
	}
	for _, uid := range allMemberIDs {
		got := f.notifications(uid)
		if len(got) != 1 || got[0].Type != notification.TypeFinanceVisibilityChanged || got[0].Payload["publicVisibility"] != "true" {
			t.Errorf("%s notifications = %+v", uid, got)
		}
	}

	g, _ = gate.Load(f.ctx, f.store, testOrg, feature.Finances, studentID)
	if !g.CanRead() {
		t.Error("students should read public finances")
	}

	// Same value again: nothing to announce.
	res, err = ExecuteSetFinanceVisibility(f.ctx, SetFinanceVisibilityInput{OrgID: testOrg, UserID: ownerID, Public: true}, deps)
	if err != nil || len(res.Recipients) != 0 {
		t.Errorf("unchanged = %+v, %v", res, err)
	}
	if n := len(f.notifications(studentID)); n != 1 {
		t.Errorf("student has %d notifications after no-op, want 1", n)
	}
}

func TestExecuteSetFinanceVisibility_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	deps := PermissionDeps{Tree: f.store, Now: fixedNow}
	for _, uid := range []string{adminPlusID, adminID, studentID, outsiderID} {
		_, err := ExecuteSetFinanceVisibility(f.ctx, SetFinanceVisibilityInput{OrgID: testOrg, UserID: uid, Public: true}, deps)
		if !errors.Is(err, feature.ErrPermissionDenied) {
			t.Errorf("%s err = %v, want permission denied", uid, err)
		}
	}
	for _, uid := range allMemberIDs {
		if len(f.notifications(uid)) != 0 {
			t.Errorf("%s notified after denied call", uid)
		}
	}
}

func TestExecuteSetFeatureManagers(t *testing.T) {
	f := newFixture(t)
	deps := PermissionDeps{Tree: f.store, Now: fixedNow}
	finDeps := FinanceDeps{Tree: f.store, Now: fixedNow}
	add := AddTransactionInput{OrgID: testOrg, UserID: studentID, Type: finance.TypeIncome, Amount: 10, Description: "Rifa"}

	if _, err := ExecuteAddTransaction(f.ctx, add, finDeps); !errors.Is(err, feature.ErrPermissionDenied) {
		t.Fatalf("before delegation err = %v", err)
	}

	err := ExecuteSetFeatureManagers(f.ctx, SetFeatureManagersInput{
		OrgID: testOrg, UserID: ownerID, Feature: feature.Finances, Managers: []string{studentID, ownerID},
	}, deps)
	if err != nil {
		t.Fatalf("set managers: %v", err)
	}
	var p feature.Permissions
	f.get(paths.Permissions(testOrg, feature.Finances), &p)
	if len(p.Managers) != 1 || !p.Managers[studentID] {
		t.Errorf("managers = %v", p.Managers)
	}
	if _, err := ExecuteAddTransaction(f.ctx, add, finDeps); err != nil {
		t.Errorf("manager add transaction: %v", err)
	}

	err = ExecuteSetFeatureManagers(f.ctx, SetFeatureManagersInput{
		OrgID: testOrg, UserID: ownerID, Feature: feature.Finances, Managers: []string{outsiderID},
	}, deps)
	if !errors.Is(err, organization.ErrNotMember) {
		t.Errorf("outsider manager err = %v", err)
	}

	err = ExecuteSetFeatureManagers(f.ctx, SetFeatureManagersInput{
		OrgID: testOrg, UserID: adminPlusID, Feature: feature.Finances, Managers: []string{adminID},
	}, deps)
	if !errors.Is(err, feature.ErrPermissionDenied) {
		t.Errorf("admin-plus err = %v", err)
	}

	// Clearing the managers revokes the student's access on the next call.
	if err := ExecuteSetFeatureManagers(f.ctx, SetFeatureManagersInput{OrgID: testOrg, UserID: ownerID, Feature: feature.Finances}, deps); err != nil {
		t.Fatalf("clear managers: %v", err)
	}
	if _, err := ExecuteAddTransaction(f.ctx, add, finDeps); !errors.Is(err, feature.ErrPermissionDenied) {
		t.Errorf("after revocation err = %v", err)
	}
}

func TestExecuteSetAdminPlusCanManage(t *testing.T) {
	f := newFixture(t)
	deps := PermissionDeps{Tree: f.store, Now: fixedNow}
	survey := CreateSurveyInput{
		OrgID: testOrg, UserID: adminPlusID, Question: "¿Día del paseo?",
		Options: []string{"Viernes", "Sábado"}, Deadline: fixedTime.Add(48 * time.Hour),
	}
	surveyDeps := SurveyDeps{Tree: f.store, Now: fixedNow}

	if _, _, err := ExecuteCreateSurvey(f.ctx, survey, surveyDeps); !errors.Is(err, feature.ErrPermissionDenied) {
		t.Fatalf("before flag err = %v", err)
	}
	if err := ExecuteSetAdminPlusCanManage(f.ctx, SetAdminPlusCanManageInput{OrgID: testOrg, UserID: ownerID, Feature: feature.Surveys, Enabled: true}, deps); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if _, _, err := ExecuteCreateSurvey(f.ctx, survey, surveyDeps); err != nil {
		t.Errorf("after flag: %v", err)
	}
	if err := ExecuteSetAdminPlusCanManage(f.ctx, SetAdminPlusCanManageInput{OrgID: testOrg, UserID: adminPlusID, Feature: feature.Surveys}, deps); !errors.Is(err, feature.ErrPermissionDenied) {
		t.Errorf("admin-plus toggling err = %v", err)
	}
	if err := ExecuteSetAdminPlusCanManage(f.ctx, SetAdminPlusCanManageInput{OrgID: testOrg, UserID: ownerID, Feature: "x"}, deps); !errors.Is(err, feature.ErrUnknownFeature) {
		t.Errorf("unknown feature err = %v", err)
	}
}
