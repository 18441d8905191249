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
	"studentcenter/internal/domain/post"
)

// PostDeps holds dependencies for the feed orchestrators.
type PostDeps struct {
	Tree tree.Store
	Now  func() time.Time
}

func loadPost(ctx context.Context, r gate.Reader, orgID, id string) (post.Post, error) {
	if err := paths.CheckIDs(id); err != nil {
		return post.Post{}, err
	}
	snap, err := r.Get(ctx, paths.Record(orgID, feature.Posts, "items", id))
	if err != nil {
		return post.Post{}, err
	}
	if !snap.Exists() {
		return post.Post{}, post.ErrNotFound
	}
	var p post.Post
	if err := snap.Decode(&p); err != nil {
		return post.Post{}, err
	}
	p.ID = id
	return p, nil
}

// CreatePostInput carries input for a feed post.
type CreatePostInput struct {
	OrgID  string
	UserID string
	Title  string
	Body   string
}

// ExecuteCreatePost publishes a post to the center's feed.
// PRE: caller is staff (owner, admin-plus, admin or posts manager)
func ExecuteCreatePost(ctx context.Context, input CreatePostInput, deps PostDeps) (post.Post, error) {
	if _, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Posts, input.UserID, feature.RuleStaff); err != nil {
		return post.Post{}, err
	}
	p := post.Post{
		Title:      strings.TrimSpace(input.Title),
		Body:       strings.TrimSpace(input.Body),
		AuthorID:   input.UserID,
		AuthorName: memberName(ctx, deps.Tree, input.UserID),
		CreatedAt:  deps.Now(),
	}
	if err := p.Validate(); err != nil {
		return post.Post{}, err
	}
	key, err := deps.Tree.Push(ctx, paths.Records(input.OrgID, feature.Posts, "items"), p)
	if err != nil {
		return post.Post{}, err
	}
	p.ID = key
	slog.Info("post_event", "event", "post_created", "org_id", input.OrgID, "post_id", key, "author", input.UserID)
	return p, nil
}

// ToggleLikeInput carries input for liking or unliking a post.
type ToggleLikeInput struct {
	OrgID  string
	UserID string
	PostID string
}

// ExecuteTogglePostLike flips the caller's like with an atomic update of the likes map.
// POST: returns whether the post is now liked and the like count
func ExecuteTogglePostLike(ctx context.Context, input ToggleLikeInput, deps PostDeps) (bool, int, error) {
	if _, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Posts, input.UserID, feature.RuleMember); err != nil {
		return false, 0, err
	}
	if _, err := loadPost(ctx, deps.Tree, input.OrgID, input.PostID); err != nil {
		return false, 0, err
	}
	var liked bool
	var count int
	record := paths.Record(input.OrgID, feature.Posts, "items", input.PostID)
	err := transactField(ctx, deps.Tree, record, "likes", post.ErrNotFound, func(cur tree.Snapshot) (any, error) {
		likes := map[string]bool{}
		if cur.Exists() {
			if err := cur.Decode(&likes); err != nil {
				return nil, err
			}
		}
		likes, liked = post.ToggleLike(likes, input.UserID)
		count = len(likes)
		return likes, nil
	})
	if err != nil {
		return false, 0, err
	}
	slog.Info("post_event", "event", "like_toggled", "org_id", input.OrgID, "post_id", input.PostID, "user_id", input.UserID, "liked", liked)
	return liked, count, nil
}

// DeletePostInput carries input for removing a post.
type DeletePostInput struct {
	OrgID  string
	UserID string
	PostID string
}

// ExecuteDeletePost removes a post. Authors may delete their own; staff any.
func ExecuteDeletePost(ctx context.Context, input DeletePostInput, deps PostDeps) error {
	g, err := gate.Load(ctx, deps.Tree, input.OrgID, feature.Posts, input.UserID)
	if err != nil {
		return err
	}
	p, err := loadPost(ctx, deps.Tree, input.OrgID, input.PostID)
	if err != nil {
		return err
	}
	if err := staffOrAuthor(g, p.AuthorID); err != nil {
		return err
	}
	if err := deps.Tree.Delete(ctx, paths.Record(input.OrgID, feature.Posts, "items", input.PostID)); err != nil {
		return err
	}
	slog.Info("post_event", "event", "post_deleted", "org_id", input.OrgID, "post_id", input.PostID, "by", input.UserID)
	return nil
}
