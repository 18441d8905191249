package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"studentcenter/internal/adapters/email"
	"studentcenter/internal/adapters/markdown"
	"studentcenter/internal/adapters/storage/outbox"
	domainOutbox "studentcenter/internal/domain/outbox"
)

// OutboxRetryDeps provides the dependencies for delivering outbox entries.
type OutboxRetryDeps struct {
	OutboxStore outbox.Store
	Sender      email.Sender
	Now         func() time.Time
	BaseDelay   time.Duration // first retry delay; defaults to 30s
	MaxDelay    time.Duration // backoff cap; defaults to 1h
	BatchSize   int           // defaults to 50
}

// OutboxRetryResult summarizes one pass.
type OutboxRetryResult struct {
	Processed int
	Succeeded int
	Failed    int
	Skipped   int // still inside their backoff window
}

// ExecuteOutboxRetry delivers pending entries whose backoff has elapsed.
// Each attempt is saved, so a crash mid-pass never repeats a delivered email.
// PRE: Deps are valid and store is connected
// POST: every due entry attempted once; entries out of attempts are marked failed
func ExecuteOutboxRetry(ctx context.Context, deps OutboxRetryDeps) (OutboxRetryResult, error) {
	base, maxDelay, batch := deps.BaseDelay, deps.MaxDelay, deps.BatchSize
	if base <= 0 {
		base = 30 * time.Second
	}
	if maxDelay <= 0 {
		maxDelay = time.Hour
	}
	if batch <= 0 {
		batch = 50
	}

	entries, err := deps.OutboxStore.ListPending(ctx, batch)
	if err != nil {
		return OutboxRetryResult{}, fmt.Errorf("list pending outbox entries: %w", err)
	}

	var res OutboxRetryResult
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		now := deps.Now()
		if !entry.Due(now, base, maxDelay) {
			res.Skipped++
			continue
		}
		res.Processed++
		entry.MarkAttempt(now)

		externalID, err := deliver(ctx, deps.Sender, entry)
		if err != nil {
			entry.MarkFailed(err)
			res.Failed++
			slog.Warn("outbox_event", "event", "delivery_failed", "entry_id", entry.ID, "action", entry.ActionType,
				"attempt", entry.Attempts, "terminal", entry.IsTerminal(), "error", err)
		} else {
			entry.MarkSuccess(externalID)
			res.Succeeded++
			slog.Info("outbox_event", "event", "delivered", "entry_id", entry.ID, "action", entry.ActionType, "attempt", entry.Attempts)
		}

		if saveErr := deps.OutboxStore.Save(ctx, entry); saveErr != nil {
			slog.Error("outbox_event", "event", "save_failed", "entry_id", entry.ID, "error", saveErr)
		}
	}

	if res.Processed > 0 {
		slog.Info("outbox_event", "event", "pass_complete", "processed", res.Processed,
			"succeeded", res.Succeeded, "failed", res.Failed, "skipped", res.Skipped)
	}
	return res, nil
}

// deliver performs one entry's external action and returns the provider id.
func deliver(ctx context.Context, sender email.Sender, entry domainOutbox.Entry) (string, error) {
	switch entry.ActionType {
	case domainOutbox.ActionTypeEmail:
		p, err := entry.Email()
		if err != nil {
			return "", fmt.Errorf("decode email payload: %w", err)
		}
		res, err := sender.Send(ctx, email.SendRequest{
			To:      []string{p.To},
			Subject: p.Subject,
			HTML:    markdown.Render(p.Body),
			Tags:    map[string]string{"outbox_id": entry.ID},
		})
		if err != nil {
			return "", err
		}
		return res.MessageID, nil
	default:
		return "", fmt.Errorf("unknown action type: %s", entry.ActionType)
	}
}

// StartOutboxRetryScheduler runs ExecuteOutboxRetry every interval until ctx ends.
// PRE: Context is valid, deps are initialized
// POST: Goroutine started, returns cancel function
func StartOutboxRetryScheduler(ctx context.Context, deps OutboxRetryDeps, interval time.Duration) func() {
	if interval <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := ExecuteOutboxRetry(ctx, deps); err != nil {
					slog.Error("outbox_event", "event", "scheduler_error", "error", err)
				}
			}
		}
	}()

	return cancel
}
