package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/chat"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/notification"
)

// chatStaffRule selects who answers anonymous chats.
const chatStaffRule = feature.RuleOwnerOrManager

// ChatDeps holds dependencies for the anonymous chat orchestrators.
type ChatDeps struct {
	Tree tree.Store
	Now  func() time.Time
}

func threadPath(orgID, threadID string) string {
	return paths.Record(orgID, feature.AnonymousChat, "threads", threadID)
}

// LoadThread reads one thread without its messages.
func LoadThread(ctx context.Context, r gate.Reader, orgID, threadID string) (chat.Thread, error) {
	if err := paths.CheckIDs(threadID); err != nil {
		return chat.Thread{}, err
	}
	snap, err := r.Get(ctx, threadPath(orgID, threadID))
	if err != nil {
		return chat.Thread{}, err
	}
	if !snap.Exists() {
		return chat.Thread{}, chat.ErrNotFound
	}
	var t chat.Thread
	if err := snap.Decode(&t); err != nil {
		return chat.Thread{}, err
	}
	t.ID = threadID
	return t, nil
}

// LoadThreadAuthor returns the member who opened a thread.
func LoadThreadAuthor(ctx context.Context, r gate.Reader, orgID, threadID string) (string, error) {
	snap, err := r.Get(ctx, tree.Join(paths.ChatAuthors(orgID), threadID))
	if err != nil {
		return "", err
	}
	var a chat.Author
	if !snap.Exists() {
		return "", chat.ErrNotFound
	}
	if err := snap.Decode(&a); err != nil {
		return "", err
	}
	return a.UserID, nil
}

// AuthorizeThread checks that the caller is chat staff or the thread's author.
// It returns whether the caller acts as staff.
func AuthorizeThread(ctx context.Context, r gate.Reader, orgID, threadID, userID string) (bool, error) {
	if err := paths.CheckIDs(threadID); err != nil {
		return false, err
	}
	g, err := gate.Authorize(ctx, r, orgID, feature.AnonymousChat, userID, feature.RuleMember)
	if err != nil {
		return false, err
	}
	if g.Allows(chatStaffRule) {
		return true, nil
	}
	author, err := LoadThreadAuthor(ctx, r, orgID, threadID)
	if err != nil && !errors.Is(err, chat.ErrNotFound) {
		return false, err
	}
	if author != userID {
		slog.Info("auth_event", "event", "auth_denied", "org_id", orgID, "feature", feature.AnonymousChat,
			"user_id", userID, "thread_id", threadID)
		return false, chat.ErrNotAuthor
	}
	return false, nil
}

// --- Open Thread ---

// OpenThreadInput carries input for starting an anonymous conversation.
type OpenThreadInput struct {
	OrgID   string
	UserID  string
	Subject string
	Text    string
}

// ExecuteOpenThread creates an anonymous thread with its first message and
// notifies the owner and chat managers. The author is stored only under the
// server-side authors subtree; neither the thread nor the notification names them.
// PRE: caller is a member
// POST: thread, first message and author mapping written; NEW_ANONYMOUS_CHAT fanned out
func ExecuteOpenThread(ctx context.Context, input OpenThreadInput, deps ChatDeps) (chat.Thread, FanoutResult, error) {
	g, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.AnonymousChat, input.UserID, feature.RuleMember)
	if err != nil {
		return chat.Thread{}, FanoutResult{}, err
	}
	now := deps.Now()
	t := chat.Thread{Subject: strings.TrimSpace(input.Subject), CreatedAt: now, LastMessageAt: now}
	if err := t.Validate(); err != nil {
		return chat.Thread{}, FanoutResult{}, err
	}
	first := chat.Message{Text: strings.TrimSpace(input.Text), CreatedAt: now}
	if err := first.Validate(); err != nil {
		return chat.Thread{}, FanoutResult{}, err
	}

	key, err := deps.Tree.Push(ctx, paths.Records(input.OrgID, feature.AnonymousChat, "threads"), t)
	if err != nil {
		return chat.Thread{}, FanoutResult{}, err
	}
	t.ID = key
	if err := deps.Tree.Set(ctx, tree.Join(paths.ChatAuthors(input.OrgID), key), chat.Author{UserID: input.UserID}); err != nil {
		return chat.Thread{}, FanoutResult{}, err
	}
	if _, err := deps.Tree.Push(ctx, tree.Join(threadPath(input.OrgID, key), "messages"), first); err != nil {
		return chat.Thread{}, FanoutResult{}, err
	}
	slog.Info("chat_event", "event", "thread_opened", "org_id", input.OrgID, "thread_id", key)

	res, err := ExecuteFanout(ctx, FanoutInput{
		OrgID:    input.OrgID,
		OrgName:  g.Center.Name,
		Type:     notification.TypeNewAnonymousChat,
		Payload:  map[string]string{"threadId": key, "subject": t.Subject},
		Audience: notification.OwnerAndManagers{OwnerID: g.Center.OwnerID, Managers: g.Permissions.Managers},
	}, FanoutDeps{Tree: deps.Tree, Now: deps.Now})
	return t, res, err
}

// --- Reply ---

// ReplyInput carries input for a message in an existing thread.
type ReplyInput struct {
	OrgID    string
	UserID   string
	ThreadID string
	Text     string
}

// ExecuteReply appends a message from the author or from chat staff.
// Staff replies carry the staff id; author messages stay anonymous.
// PRE: thread open; caller is its author or chat staff
func ExecuteReply(ctx context.Context, input ReplyInput, deps ChatDeps) (chat.Message, error) {
	staff, err := AuthorizeThread(ctx, deps.Tree, input.OrgID, input.ThreadID, input.UserID)
	if err != nil {
		return chat.Message{}, err
	}
	t, err := LoadThread(ctx, deps.Tree, input.OrgID, input.ThreadID)
	if err != nil {
		return chat.Message{}, err
	}
	if t.IsClosed() {
		return chat.Message{}, chat.ErrThreadClosed
	}
	m := chat.Message{Text: strings.TrimSpace(input.Text), FromStaff: staff, CreatedAt: deps.Now()}
	if staff {
		m.StaffID = input.UserID
	}
	if err := m.Validate(); err != nil {
		return chat.Message{}, err
	}
	key, err := deps.Tree.Push(ctx, tree.Join(threadPath(input.OrgID, input.ThreadID), "messages"), m)
	if err != nil {
		return chat.Message{}, err
	}
	m.ID = key
	if err := deps.Tree.Set(ctx, tree.Join(threadPath(input.OrgID, input.ThreadID), "lastMessageAt"), m.CreatedAt); err != nil {
		slog.Warn("chat_event", "event", "last_message_update_failed", "org_id", input.OrgID, "thread_id", input.ThreadID, "error", err)
	}
	slog.Info("chat_event", "event", "message_sent", "org_id", input.OrgID, "thread_id", input.ThreadID, "from_staff", staff)
	return m, nil
}

// --- Close Thread ---

// CloseThreadInput carries input for closing a conversation.
type CloseThreadInput struct {
	OrgID    string
	UserID   string
	ThreadID string
}

// ExecuteCloseThread marks a thread closed. Either side may close it.
func ExecuteCloseThread(ctx context.Context, input CloseThreadInput, deps ChatDeps) (chat.Thread, error) {
	if _, err := AuthorizeThread(ctx, deps.Tree, input.OrgID, input.ThreadID, input.UserID); err != nil {
		return chat.Thread{}, err
	}
	t, err := LoadThread(ctx, deps.Tree, input.OrgID, input.ThreadID)
	if err != nil {
		return chat.Thread{}, err
	}
	if t.IsClosed() {
		return t, nil
	}
	t.ClosedAt = deps.Now()
	if err := deps.Tree.Set(ctx, tree.Join(threadPath(input.OrgID, input.ThreadID), "closedAt"), t.ClosedAt); err != nil {
		return chat.Thread{}, err
	}
	slog.Info("chat_event", "event", "thread_closed", "org_id", input.OrgID, "thread_id", input.ThreadID)
	return t, nil
}
