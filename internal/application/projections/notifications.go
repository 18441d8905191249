package projections

import (
	"context"
	"log/slog"

	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/notification"
)

// NotificationsQuery carries query parameters.
type NotificationsQuery struct {
	UserID     string
	UnreadOnly bool
	Limit      int // 0 returns all
}

// NotificationsResult carries the query result.
type NotificationsResult struct {
	Items  []notification.Notification `json:"items"`
	Unread int                         `json:"unread"`
}

// NotificationsDeps holds dependencies for QueryNotifications.
type NotificationsDeps struct {
	Tree gate.Reader
}

// QueryNotifications returns the caller's inbox newest first.
// POST: Unread counts the whole inbox, independent of Limit and UnreadOnly
func QueryNotifications(ctx context.Context, query NotificationsQuery, deps NotificationsDeps) (NotificationsResult, error) {
	if err := paths.CheckIDs(query.UserID); err != nil {
		return NotificationsResult{}, err
	}
	snap, err := deps.Tree.Get(ctx, paths.UserNotifications(query.UserID))
	if err != nil {
		return NotificationsResult{}, err
	}
	res := NotificationsResult{Items: []notification.Notification{}}
	for _, child := range snap.Children() {
		var n notification.Notification
		if err := child.Decode(&n); err != nil {
			slog.Warn("notification_event", "event", "skip_undecodable", "path", child.Path(), "error", err)
			continue
		}
		n.ID = child.Key()
		if !n.Read {
			res.Unread++
		} else if query.UnreadOnly {
			continue
		}
		res.Items = append(res.Items, n)
	}
	notification.NewestFirst(res.Items)
	if query.Limit > 0 && len(res.Items) > query.Limit {
		res.Items = res.Items[:query.Limit]
	}
	return res, nil
}
