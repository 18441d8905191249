package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/notification"
)

// NotificationDeps holds dependencies for the recipient-side notification actions.
type NotificationDeps struct {
	Tree tree.Store
	Now  func() time.Time
}

// MarkNotificationReadInput carries input for marking one notification read.
type MarkNotificationReadInput struct {
	UserID         string
	NotificationID string
}

// ExecuteMarkNotificationRead moves one of the caller's notifications to read.
// Marking an already read notification is a no-op.
// PRE: the notification belongs to UserID
// POST: the stored record has read=true and readAt set
func ExecuteMarkNotificationRead(ctx context.Context, input MarkNotificationReadInput, deps NotificationDeps) (notification.Notification, error) {
	if err := paths.CheckIDs(input.UserID, input.NotificationID); err != nil {
		return notification.Notification{}, err
	}
	var n notification.Notification
	_, err := deps.Tree.Transact(ctx, paths.Notification(input.UserID, input.NotificationID), func(cur tree.Snapshot) (any, error) {
		if !cur.Exists() {
			return nil, notification.ErrNotFound
		}
		if err := cur.Decode(&n); err != nil {
			return nil, err
		}
		if err := n.MarkRead(deps.Now()); err != nil {
			return nil, err
		}
		return n, nil
	})
	n.ID = input.NotificationID
	if errors.Is(err, notification.ErrAlreadyRead) {
		return n, nil
	}
	if err != nil {
		return notification.Notification{}, err
	}
	slog.Info("notification_event", "event", "notification_read", "user_id", input.UserID, "notification_id", input.NotificationID)
	return n, nil
}

// MarkAllNotificationsReadInput carries input for the bulk action.
type MarkAllNotificationsReadInput struct {
	UserID string
}

// ExecuteMarkAllNotificationsRead marks every unread notification of the caller read
// in one atomic update and returns how many changed.
func ExecuteMarkAllNotificationsRead(ctx context.Context, input MarkAllNotificationsReadInput, deps NotificationDeps) (int, error) {
	if err := paths.CheckIDs(input.UserID); err != nil {
		return 0, err
	}
	snap, err := deps.Tree.Get(ctx, paths.UserNotifications(input.UserID))
	if err != nil {
		return 0, err
	}
	now := deps.Now()
	updates := map[string]any{}
	for _, child := range snap.Children() {
		var n notification.Notification
		if err := child.Decode(&n); err != nil {
			slog.Warn("notification_event", "event", "skip_undecodable", "path", child.Path(), "error", err)
			continue
		}
		if n.Read {
			continue
		}
		updates[child.Key()+"/read"] = true
		updates[child.Key()+"/readAt"] = now
	}
	if len(updates) == 0 {
		return 0, nil
	}
	if err := deps.Tree.Update(ctx, paths.UserNotifications(input.UserID), updates); err != nil {
		return 0, err
	}
	count := len(updates) / 2
	slog.Info("notification_event", "event", "notifications_all_read", "user_id", input.UserID, "count", count)
	return count, nil
}
