package projections

import (
	"context"
	"sort"
	"time"

	"studentcenter/internal/adapters/markdown"
	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/forum"
	"studentcenter/internal/domain/post"
	"studentcenter/internal/domain/workshop"
)

// FeedQuery carries query parameters shared by the workshop, forum and post feeds.
type FeedQuery struct {
	OrgID  string
	UserID string
	Limit  int // 0 returns all
}

// FeedDeps holds dependencies for the feed queries.
type FeedDeps struct {
	Tree gate.Reader
	Now  func() time.Time
}

func clip[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// --- Workshops ---

// WorkshopView hides the attendee list from students.
type WorkshopView struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Location      string    `json:"location,omitempty"`
	Date          time.Time `json:"date"`
	Capacity      int       `json:"capacity"`
	SeatsLeft     int       `json:"seatsLeft"`
	AttendeeCount int       `json:"attendeeCount"`
	Enrolled      bool      `json:"enrolled"`
	Upcoming      bool      `json:"upcoming"`
	Attendees     []string  `json:"attendees,omitempty"`
}

// WorkshopsResult carries the query result.
type WorkshopsResult struct {
	Workshops []WorkshopView `json:"workshops"`
	CanManage bool           `json:"canManage"`
}

// QueryWorkshops lists upcoming workshops soonest first, then past ones most recent first.
// PRE: caller is a member
// POST: Attendees is set only for callers who manage workshops
func QueryWorkshops(ctx context.Context, query FeedQuery, deps FeedDeps) (WorkshopsResult, error) {
	g, err := gate.Authorize(ctx, deps.Tree, query.OrgID, feature.Workshops, query.UserID, feature.RuleMember)
	if err != nil {
		return WorkshopsResult{}, err
	}
	res := WorkshopsResult{Workshops: []WorkshopView{}, CanManage: g.Allows(feature.ManageRule(feature.Workshops))}
	snap, err := deps.Tree.Get(ctx, paths.Records(query.OrgID, feature.Workshops, "items"))
	if err != nil {
		return WorkshopsResult{}, err
	}
	now := deps.Now()
	for _, child := range snap.Children() {
		var w workshop.Workshop
		if err := child.Decode(&w); err != nil {
			return WorkshopsResult{}, err
		}
		v := WorkshopView{
			ID:            child.Key(),
			Title:         w.Title,
			Description:   w.Description,
			Location:      w.Location,
			Date:          w.Date,
			Capacity:      w.Capacity,
			SeatsLeft:     w.SeatsLeft(),
			AttendeeCount: len(w.Attendees),
			Enrolled:      w.Attendees[query.UserID],
			Upcoming:      now.Before(w.Date),
		}
		if res.CanManage {
			v.Attendees = sortedSet(w.Attendees)
		}
		res.Workshops = append(res.Workshops, v)
	}
	sort.SliceStable(res.Workshops, func(i, j int) bool {
		a, b := res.Workshops[i], res.Workshops[j]
		if a.Upcoming != b.Upcoming {
			return a.Upcoming
		}
		if a.Upcoming {
			return a.Date.Before(b.Date)
		}
		return a.Date.After(b.Date)
	})
	res.Workshops = clip(res.Workshops, query.Limit)
	return res, nil
}

// --- Forum ---

// ForumMessageView reports reaction counts and the caller's own reaction.
type ForumMessageView struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	ContentHTML string    `json:"contentHtml"`
	AuthorID    string    `json:"authorId"`
	AuthorName  string    `json:"authorName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Likes       int       `json:"likes"`
	Dislikes    int       `json:"dislikes"`
	MyReaction  string    `json:"myReaction,omitempty"`
	CanDelete   bool      `json:"canDelete"`
}

// ForumResult carries the query result.
type ForumResult struct {
	Messages []ForumMessageView `json:"messages"`
}

// QueryForum returns the most recent messages in chronological order.
// PRE: caller is a member
func QueryForum(ctx context.Context, query FeedQuery, deps FeedDeps) (ForumResult, error) {
	g, err := gate.Authorize(ctx, deps.Tree, query.OrgID, feature.Forums, query.UserID, feature.RuleMember)
	if err != nil {
		return ForumResult{}, err
	}
	moderator := g.Allows(feature.ManageRule(feature.Forums))
	snap, err := deps.Tree.Get(ctx, paths.Records(query.OrgID, feature.Forums, "messages"))
	if err != nil {
		return ForumResult{}, err
	}
	msgs := make([]ForumMessageView, 0, len(snap.Keys()))
	for _, child := range snap.Children() {
		var m forum.Message
		if err := child.Decode(&m); err != nil {
			return ForumResult{}, err
		}
		likes, dislikes := m.Reactions.Counts()
		v := ForumMessageView{
			ID:          child.Key(),
			Text:        m.Text,
			ContentHTML: markdown.Render(m.Text),
			AuthorID:    m.AuthorID,
			AuthorName:  m.AuthorName,
			CreatedAt:   m.CreatedAt,
			Likes:       likes,
			Dislikes:    dislikes,
			CanDelete:   moderator || m.AuthorID == query.UserID,
		}
		switch {
		case m.Reactions.Likes[query.UserID]:
			v.MyReaction = forum.ReactionLike
		case m.Reactions.Dislikes[query.UserID]:
			v.MyReaction = forum.ReactionDislike
		}
		msgs = append(msgs, v)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
	if query.Limit > 0 && len(msgs) > query.Limit {
		msgs = msgs[len(msgs)-query.Limit:]
	}
	return ForumResult{Messages: msgs}, nil
}

// --- Posts ---

// PostView reports the like count and whether the caller liked the post.
type PostView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	ContentHTML string    `json:"contentHtml"`
	AuthorID    string    `json:"authorId"`
	AuthorName  string    `json:"authorName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	LikeCount   int       `json:"likeCount"`
	LikedByMe   bool      `json:"likedByMe"`
}

// PostsResult carries the query result.
type PostsResult struct {
	Posts     []PostView `json:"posts"`
	CanCreate bool       `json:"canCreate"`
}

// QueryPosts returns the feed newest first.
// PRE: caller is a member
func QueryPosts(ctx context.Context, query FeedQuery, deps FeedDeps) (PostsResult, error) {
	g, err := gate.Authorize(ctx, deps.Tree, query.OrgID, feature.Posts, query.UserID, feature.RuleMember)
	if err != nil {
		return PostsResult{}, err
	}
	snap, err := deps.Tree.Get(ctx, paths.Records(query.OrgID, feature.Posts, "items"))
	if err != nil {
		return PostsResult{}, err
	}
	res := PostsResult{Posts: make([]PostView, 0, len(snap.Keys())), CanCreate: g.Allows(feature.ManageRule(feature.Posts))}
	for _, child := range snap.Children() {
		var p post.Post
		if err := child.Decode(&p); err != nil {
			return PostsResult{}, err
		}
		res.Posts = append(res.Posts, PostView{
			ID:          child.Key(),
			Title:       p.Title,
			Body:        p.Body,
			ContentHTML: markdown.Render(p.Body),
			AuthorID:    p.AuthorID,
			AuthorName:  p.AuthorName,
			CreatedAt:   p.CreatedAt,
			LikeCount:   len(p.Likes),
			LikedByMe:   p.Likes[query.UserID],
		})
	}
	sort.SliceStable(res.Posts, func(i, j int) bool {
		if !res.Posts[i].CreatedAt.Equal(res.Posts[j].CreatedAt) {
			return res.Posts[i].CreatedAt.After(res.Posts[j].CreatedAt)
		}
		return res.Posts[i].ID > res.Posts[j].ID
	})
	res.Posts = clip(res.Posts, query.Limit)
	return res, nil
}
