package orchestrators

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/forum"
)

// ForumDeps holds dependencies for the forum orchestrators.
type ForumDeps struct {
	Tree tree.Store
	Now  func() time.Time
}

func loadForumMessage(ctx context.Context, r gate.Reader, orgID, id string) (forum.Message, error) {
	if err := paths.CheckIDs(id); err != nil {
		return forum.Message{}, err
	}
	snap, err := r.Get(ctx, paths.Record(orgID, feature.Forums, "messages", id))
	if err != nil {
		return forum.Message{}, err
	}
	if !snap.Exists() {
		return forum.Message{}, forum.ErrNotFound
	}
	var m forum.Message
	if err := snap.Decode(&m); err != nil {
		return forum.Message{}, err
	}
	m.ID = id
	return m, nil
}

// --- Post Forum Message ---

// PostForumMessageInput carries input for a new forum message.
type PostForumMessageInput struct {
	OrgID  string
	UserID string
	Text   string
}

// ExecutePostForumMessage appends a message to the center's forum.
// PRE: caller is a member
func ExecutePostForumMessage(ctx context.Context, input PostForumMessageInput, deps ForumDeps) (forum.Message, error) {
	if _, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Forums, input.UserID, feature.RuleMember); err != nil {
		return forum.Message{}, err
	}
	m := forum.Message{
		Text:       strings.TrimSpace(input.Text),
		AuthorID:   input.UserID,
		AuthorName: memberName(ctx, deps.Tree, input.UserID),
		CreatedAt:  deps.Now(),
	}
	if err := m.Validate(); err != nil {
		return forum.Message{}, err
	}
	key, err := deps.Tree.Push(ctx, paths.Records(input.OrgID, feature.Forums, "messages"), m)
	if err != nil {
		return forum.Message{}, err
	}
	m.ID = key
	slog.Info("forum_event", "event", "message_posted", "org_id", input.OrgID, "message_id", key, "author", input.UserID)
	return m, nil
}

// --- React To Message ---

// ReactInput carries input for a like or dislike.
type ReactInput struct {
	OrgID     string
	UserID    string
	MessageID string
	Kind      string
}

// ExecuteReactToMessage toggles the caller's reaction with an atomic
// read-modify-write on the message's reactions.
// POST: the caller is in at most one of likes and dislikes
func ExecuteReactToMessage(ctx context.Context, input ReactInput, deps ForumDeps) (forum.Reactions, error) {
	if input.Kind != forum.ReactionLike && input.Kind != forum.ReactionDislike {
		return forum.Reactions{}, forum.ErrInvalidReaction
	}
	if _, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Forums, input.UserID, feature.RuleMember); err != nil {
		return forum.Reactions{}, err
	}
	if _, err := loadForumMessage(ctx, deps.Tree, input.OrgID, input.MessageID); err != nil {
		return forum.Reactions{}, err
	}
	var r forum.Reactions
	record := paths.Record(input.OrgID, feature.Forums, "messages", input.MessageID)
	err := transactField(ctx, deps.Tree, record, "reactions", forum.ErrNotFound, func(cur tree.Snapshot) (any, error) {
		r = forum.Reactions{}
		if cur.Exists() {
			if err := cur.Decode(&r); err != nil {
				return nil, err
			}
		}
		if err := r.Toggle(input.UserID, input.Kind); err != nil {
			return nil, err
		}
		return r, nil
	})
	if err != nil {
		return forum.Reactions{}, err
	}
	slog.Info("forum_event", "event", "reaction_toggled", "org_id", input.OrgID, "message_id", input.MessageID,
		"user_id", input.UserID, "kind", input.Kind)
	return r, nil
}

// --- Delete Forum Message ---

// DeleteForumMessageInput carries input for removing a forum message.
type DeleteForumMessageInput struct {
	OrgID     string
	UserID    string
	MessageID string
}

// ExecuteDeleteForumMessage removes a message. Authors may delete their own; staff any.
func ExecuteDeleteForumMessage(ctx context.Context, input DeleteForumMessageInput, deps ForumDeps) error {
	g, err := gate.Load(ctx, deps.Tree, input.OrgID, feature.Forums, input.UserID)
	if err != nil {
		return err
	}
	m, err := loadForumMessage(ctx, deps.Tree, input.OrgID, input.MessageID)
	if err != nil {
		return err
	}
	if err := staffOrAuthor(g, m.AuthorID); err != nil {
		return err
	}
	if err := deps.Tree.Delete(ctx, paths.Record(input.OrgID, feature.Forums, "messages", input.MessageID)); err != nil {
		return err
	}
	slog.Info("forum_event", "event", "message_deleted", "org_id", input.OrgID, "message_id", input.MessageID, "by", input.UserID)
	return nil
}
