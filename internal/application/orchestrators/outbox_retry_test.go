package orchestrators

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"studentcenter/internal/adapters/email"
	"studentcenter/internal/adapters/storage/outbox"
	outboxDomain "studentcenter/internal/domain/outbox"
)

// recordingSender captures requests and fails while err is set.
type recordingSender struct {
	mu   sync.Mutex
	err  error
	sent []email.SendRequest
}

func (s *recordingSender) Send(_ context.Context, req email.SendRequest) (email.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return email.SendResult{}, s.err
	}
	s.sent = append(s.sent, req)
	return email.SendResult{MessageID: "msg-" + req.To[0]}, nil
}

func queueTestEmail(t *testing.T, box outbox.Store, id, to string) {
	t.Helper()
	e, err := outboxDomain.NewEmail(id, outboxDomain.EmailPayload{To: to, Subject: "Aviso", Body: "Hola **" + to + "**"}, fixedTime)
	if err != nil {
		t.Fatalf("NewEmail: %v", err)
	}
	if err := box.Save(context.Background(), e); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func TestExecuteOutboxRetry_Delivers(t *testing.T) {
	box := newOutbox(t)
	queueTestEmail(t, box, "e1", "a@example.com")
	queueTestEmail(t, box, "e2", "b@example.com")
	sender := email.NewNoopSender()

	res, err := ExecuteOutboxRetry(context.Background(), OutboxRetryDeps{OutboxStore: box, Sender: sender, Now: fixedNow})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.Processed != 2 || res.Succeeded != 2 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
	if sender.Sent() != 2 {
		t.Errorf("sent = %d", sender.Sent())
	}
	e, _ := box.GetByID(context.Background(), "e1")
	if e.Status != outboxDomain.StatusDone || e.ExternalID == "" || e.Attempts != 1 {
		t.Errorf("entry = %+v", e)
	}

	res, _ = ExecuteOutboxRetry(context.Background(), OutboxRetryDeps{OutboxStore: box, Sender: sender, Now: fixedNow})
	if res.Processed != 0 || sender.Sent() != 2 {
		t.Errorf("delivered entries were sent again: %+v", res)
	}
}

func TestExecuteOutboxRetry_RendersMarkdown(t *testing.T) {
	box := newOutbox(t)
	queueTestEmail(t, box, "e1", "a@example.com")
	sender := &recordingSender{}

	if _, err := ExecuteOutboxRetry(context.Background(), OutboxRetryDeps{OutboxStore: box, Sender: sender, Now: fixedNow}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0].HTML, "<strong>a@example.com</strong>") {
		t.Fatalf("sent = %+v", sender.sent)
	}
	if got := sender.sent[0].Tags["outbox_id"]; got != "e1" {
		t.Errorf("outbox_id tag = %q", got)
	}
}

func TestExecuteOutboxRetry_BackoffAndGiveUp(t *testing.T) {
	box := newOutbox(t)
	e, _ := outboxDomain.NewEmail("e1", outboxDomain.EmailPayload{To: "a@example.com", Subject: "s", Body: "b"}, fixedTime)
	e.MaxAttempts = 2
	if err := box.Save(context.Background(), e); err != nil {
		t.Fatalf("save: %v", err)
	}
	sender := &recordingSender{err: errors.New("smtp down")}
	now := fixedTime
	deps := OutboxRetryDeps{OutboxStore: box, Sender: sender, Now: func() time.Time { return now }, BaseDelay: time.Minute, MaxDelay: time.Hour}

	res, _ := ExecuteOutboxRetry(context.Background(), deps)
	if res.Failed != 1 {
		t.Fatalf("first pass = %+v", res)
	}
	got, _ := box.GetByID(context.Background(), "e1")
	if got.Status != outboxDomain.StatusRetrying || got.ErrorMessage != "smtp down" {
		t.Errorf("after first failure = %+v", got)
	}

	now = fixedTime.Add(30 * time.Second)
	res, _ = ExecuteOutboxRetry(context.Background(), deps)
	if res.Skipped != 1 || res.Processed != 0 {
		t.Errorf("inside backoff = %+v", res)
	}

	now = fixedTime.Add(time.Minute)
	res, _ = ExecuteOutboxRetry(context.Background(), deps)
	if res.Failed != 1 {
		t.Errorf("second attempt = %+v", res)
	}
	got, _ = box.GetByID(context.Background(), "e1")
	if got.Status != outboxDomain.StatusFailed || got.Attempts != 2 {
		t.Errorf("after giving up = %+v", got)
	}

	failed, _ := box.ListFailed(context.Background(), 10)
	if len(failed) != 1 {
		t.Errorf("failed list = %+v", failed)
	}
}

func TestStartOutboxRetryScheduler_DisabledInterval(t *testing.T) {
	stop := StartOutboxRetryScheduler(context.Background(), OutboxRetryDeps{}, 0)
	stop()
}
