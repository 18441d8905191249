package orchestrators

import (
	"errors"
	"strings"
	"testing"

	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/chat"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/notification"
)

func openTestThread(t *testing.T, f *fixture) chat.Thread {
	t.Helper()
	th, _, err := ExecuteOpenThread(f.ctx, OpenThreadInput{
		OrgID: testOrg, UserID: studentID, Subject: "Problema con un profesor", Text: "Quisiera contarles algo.",
	}, ChatDeps{Tree: f.store, Now: fixedNow})
	if err != nil {
		t.Fatalf("open thread: %v", err)
	}
	return th
}

func TestExecuteOpenThread_KeepsAuthorPrivate(t *testing.T) {
	f := newFixture(t)
	if err := ExecuteSetFeatureManagers(f.ctx, SetFeatureManagersInput{
		OrgID: testOrg, UserID: ownerID, Feature: feature.AnonymousChat, Managers: []string{adminID},
	}, PermissionDeps{Tree: f.store, Now: fixedNow}); err != nil {
		t.Fatalf("set managers: %v", err)
	}

	th, res, err := ExecuteOpenThread(f.ctx, OpenThreadInput{
		OrgID: testOrg, UserID: studentID, Subject: "Ayuda", Text: "Hola",
	}, ChatDeps{Tree: f.store, Now: fixedNow})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if want := []string{adminID, ownerID}; len(res.Delivered) != 2 || res.Delivered[0] != want[0] || res.Delivered[1] != want[1] {
		t.Errorf("delivered = %v, want %v", res.Delivered, want)
	}
	if len(f.notifications(adminPlusID)) != 0 || len(f.notifications(student2ID)) != 0 {
		t.Error("notification reached someone outside owner and managers")
	}

	if raw := f.rawJSON(paths.Records(testOrg, feature.AnonymousChat, "threads")); strings.Contains(raw, studentID) {
		t.Errorf("thread data names the author: %s", raw)
	}
	for _, uid := range []string{ownerID, adminID} {
		for _, n := range f.notifications(uid) {
			if n.Type != notification.TypeNewAnonymousChat || n.Payload["threadId"] != th.ID {
				t.Errorf("%s notification = %+v", uid, n)
			}
			for _, v := range n.Payload {
				if strings.Contains(v, studentID) {
					t.Errorf("notification payload names the author: %v", n.Payload)
				}
			}
		}
	}

	author, err := LoadThreadAuthor(f.ctx, f.store, testOrg, th.ID)
	if err != nil || author != studentID {
		t.Errorf("author = %q, %v", author, err)
	}
}

func TestAuthorizeThread_DelegatedAdminActsAsStaff(t *testing.T) {
	f := newFixture(t)
	if err := ExecuteSetFeatureManagers(f.ctx, SetFeatureManagersInput{
		OrgID: testOrg, UserID: ownerID, Feature: feature.AnonymousChat, Managers: []string{adminID},
	}, PermissionDeps{Tree: f.store, Now: fixedNow}); err != nil {
		t.Fatalf("set managers: %v", err)
	}
	th := openTestThread(t, f)
	if f.notificationsOfType(adminID, notification.TypeNewAnonymousChat) != 1 {
		t.Fatal("delegated admin was not notified")
	}

	staff, err := AuthorizeThread(f.ctx, f.store, testOrg, th.ID, adminID)
	if err != nil || !staff {
		t.Fatalf("AuthorizeThread = %v, %v; want true, nil", staff, err)
	}
	m, err := ExecuteReply(f.ctx, ReplyInput{OrgID: testOrg, UserID: adminID, ThreadID: th.ID, Text: "Te leemos"}, ChatDeps{Tree: f.store, Now: fixedNow})
	if err != nil || !m.FromStaff {
		t.Errorf("delegated admin reply = %+v, %v", m, err)
	}
	if _, err := AuthorizeThread(f.ctx, f.store, testOrg, th.ID, adminPlusID); !errors.Is(err, chat.ErrNotAuthor) {
		t.Errorf("undelegated admin-plus err = %v, want ErrNotAuthor", err)
	}
}

func TestExecuteReply(t *testing.T) {
	f := newFixture(t)
	th := openTestThread(t, f)
	deps := ChatDeps{Tree: f.store, Now: fixedNow}

	m, err := ExecuteReply(f.ctx, ReplyInput{OrgID: testOrg, UserID: studentID, ThreadID: th.ID, Text: "Más detalles"}, deps)
	if err != nil || m.FromStaff || m.StaffID != "" {
		t.Errorf("author reply = %+v, %v", m, err)
	}
	m, err = ExecuteReply(f.ctx, ReplyInput{OrgID: testOrg, UserID: ownerID, ThreadID: th.ID, Text: "Gracias, lo vemos"}, deps)
	if err != nil || !m.FromStaff || m.StaffID != ownerID {
		t.Errorf("staff reply = %+v, %v", m, err)
	}

	for _, uid := range []string{student2ID, adminPlusID, adminID} {
		if _, err := ExecuteReply(f.ctx, ReplyInput{OrgID: testOrg, UserID: uid, ThreadID: th.ID, Text: "hola"}, deps); !errors.Is(err, chat.ErrNotAuthor) {
			t.Errorf("%s reply err = %v, want ErrNotAuthor", uid, err)
		}
	}
	if _, err := ExecuteReply(f.ctx, ReplyInput{OrgID: testOrg, UserID: outsiderID, ThreadID: th.ID, Text: "hola"}, deps); !errors.Is(err, feature.ErrPermissionDenied) {
		t.Errorf("outsider reply err = %v", err)
	}

	var msgs map[string]chat.Message
	f.get(paths.Record(testOrg, feature.AnonymousChat, "threads", th.ID)+"/messages", &msgs)
	if len(msgs) != 3 {
		t.Errorf("messages = %d, want 3", len(msgs))
	}
}

func TestExecuteCloseThread(t *testing.T) {
	f := newFixture(t)
	th := openTestThread(t, f)
	deps := ChatDeps{Tree: f.store, Now: fixedNow}

	if _, err := ExecuteCloseThread(f.ctx, CloseThreadInput{OrgID: testOrg, UserID: student2ID, ThreadID: th.ID}, deps); !errors.Is(err, chat.ErrNotAuthor) {
		t.Errorf("stranger close err = %v", err)
	}
	closed, err := ExecuteCloseThread(f.ctx, CloseThreadInput{OrgID: testOrg, UserID: studentID, ThreadID: th.ID}, deps)
	if err != nil || !closed.IsClosed() {
		t.Fatalf("close = %+v, %v", closed, err)
	}
	if _, err := ExecuteReply(f.ctx, ReplyInput{OrgID: testOrg, UserID: ownerID, ThreadID: th.ID, Text: "?"}, deps); !errors.Is(err, chat.ErrThreadClosed) {
		t.Errorf("reply after close err = %v", err)
	}
	if again, err := ExecuteCloseThread(f.ctx, CloseThreadInput{OrgID: testOrg, UserID: ownerID, ThreadID: th.ID}, deps); err != nil || !again.ClosedAt.Equal(closed.ClosedAt) {
		t.Errorf("second close = %+v, %v", again, err)
	}
}
