package orchestrators

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/notification"
)

// DefaultFanoutLimit bounds concurrent notification writes.
const DefaultFanoutLimit = 8

// FanoutInput carries input for the notification fanout.
type FanoutInput struct {
	OrgID    string
	OrgName  string
	Type     notification.Type
	Payload  map[string]string
	Audience notification.Audience
}

// FanoutDeps holds dependencies for Fanout.
type FanoutDeps struct {
	Tree  tree.Store
	Now   func() time.Time
	Limit int
}

// FanoutResult reports the outcome per recipient.
type FanoutResult struct {
	Recipients []string         `json:"recipients"`
	Delivered  []string         `json:"delivered"`
	Failed     map[string]error `json:"-"`
}

// OK reports whether every recipient received the notification.
func (r FanoutResult) OK() bool { return len(r.Failed) == 0 }

// ExecuteFanout writes one notification per recipient of the audience.
// Writes are independent: a failed recipient neither blocks nor rolls back the others.
// PRE: input.Type is a known type, OrgID set
// POST: returns after every write finished; Delivered and Failed partition Recipients
func ExecuteFanout(ctx context.Context, input FanoutInput, deps FanoutDeps) (FanoutResult, error) {
	n := notification.Notification{
		Type:      input.Type,
		OrgID:     input.OrgID,
		OrgName:   input.OrgName,
		Payload:   input.Payload,
		CreatedAt: deps.Now(),
	}
	if err := n.Validate(); err != nil {
		return FanoutResult{}, err
	}

	res := FanoutResult{Failed: map[string]error{}}
	if input.Audience != nil {
		res.Recipients = input.Audience.Recipients()
	}
	if len(res.Recipients) == 0 {
		slog.Info("notification_event", "event", "fanout_empty", "org_id", input.OrgID, "type", input.Type)
		return res, nil
	}

	limit := deps.Limit
	if limit <= 0 {
		limit = DefaultFanoutLimit
	}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(limit)
	for _, uid := range res.Recipients {
		g.Go(func() error {
			_, err := deps.Tree.Push(ctx, paths.UserNotifications(uid), n)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[uid] = err
				slog.Error("notification_event", "event", "fanout_write_failed", "org_id", input.OrgID,
					"type", input.Type, "recipient", uid, "error", err)
				return nil
			}
			res.Delivered = append(res.Delivered, uid)
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(res.Delivered)

	slog.Info("notification_event", "event", "fanout_complete", "org_id", input.OrgID, "type", input.Type,
		"recipients", len(res.Recipients), "delivered", len(res.Delivered), "failed", len(res.Failed))
	return res, nil
}
