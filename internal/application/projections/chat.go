package projections

import (
	"context"
	"sort"

	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/orchestrators"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/chat"
	"studentcenter/internal/domain/feature"
)

// ThreadSummary is one row of the thread list. It never names the author.
type ThreadSummary struct {
	chat.Thread
	MessageCount int `json:"messageCount"`
}

// ChatThreadsQuery carries query parameters.
type ChatThreadsQuery struct {
	OrgID  string
	UserID string
}

// ChatThreadsResult carries the query result.
type ChatThreadsResult struct {
	Threads []ThreadSummary `json:"threads"`
	IsStaff bool            `json:"isStaff"`
}

// ChatDeps holds dependencies for the chat queries.
type ChatDeps struct {
	Tree gate.Reader
}

// QueryChatThreads lists the threads the caller may open, most recent activity first.
// Chat staff see every thread; other members see only the ones they started.
// PRE: caller is a member
func QueryChatThreads(ctx context.Context, query ChatThreadsQuery, deps ChatDeps) (ChatThreadsResult, error) {
	g, err := gate.Authorize(ctx, deps.Tree, query.OrgID, feature.AnonymousChat, query.UserID, feature.RuleMember)
	if err != nil {
		return ChatThreadsResult{}, err
	}
	res := ChatThreadsResult{
		Threads: []ThreadSummary{},
		IsStaff: g.Allows(feature.ManageRule(feature.AnonymousChat)),
	}

	var mine map[string]bool
	if !res.IsStaff {
		authors, err := deps.Tree.Get(ctx, paths.ChatAuthors(query.OrgID))
		if err != nil {
			return ChatThreadsResult{}, err
		}
		mine = map[string]bool{}
		for _, child := range authors.Children() {
			var a chat.Author
			if err := child.Decode(&a); err == nil && a.UserID == query.UserID {
				mine[child.Key()] = true
			}
		}
	}

	snap, err := deps.Tree.Get(ctx, paths.Records(query.OrgID, feature.AnonymousChat, "threads"))
	if err != nil {
		return ChatThreadsResult{}, err
	}
	for _, child := range snap.Children() {
		if mine != nil && !mine[child.Key()] {
			continue
		}
		var t chat.Thread
		if err := child.Decode(&t); err != nil {
			return ChatThreadsResult{}, err
		}
		t.ID = child.Key()
		res.Threads = append(res.Threads, ThreadSummary{Thread: t, MessageCount: len(child.Child("messages").Keys())})
	}
	sort.SliceStable(res.Threads, func(i, j int) bool {
		return res.Threads[i].LastMessageAt.After(res.Threads[j].LastMessageAt)
	})
	return res, nil
}

// ThreadQuery carries query parameters.
type ThreadQuery struct {
	OrgID    string
	UserID   string
	ThreadID string
}

// ThreadResult carries the query result.
type ThreadResult struct {
	Thread   chat.Thread    `json:"thread"`
	Messages []chat.Message `json:"messages"`
	IsStaff  bool           `json:"isStaff"`
}

// QueryThread returns one thread with its messages in order.
// PRE: caller is chat staff or the thread's author
// POST: returns chat.ErrNotAuthor for any other member
func QueryThread(ctx context.Context, query ThreadQuery, deps ChatDeps) (ThreadResult, error) {
	staff, err := orchestrators.AuthorizeThread(ctx, deps.Tree, query.OrgID, query.ThreadID, query.UserID)
	if err != nil {
		return ThreadResult{}, err
	}
	t, err := orchestrators.LoadThread(ctx, deps.Tree, query.OrgID, query.ThreadID)
	if err != nil {
		return ThreadResult{}, err
	}
	snap, err := deps.Tree.Get(ctx, tree.Join(paths.Record(query.OrgID, feature.AnonymousChat, "threads", query.ThreadID), "messages"))
	if err != nil {
		return ThreadResult{}, err
	}
	res := ThreadResult{Thread: t, Messages: make([]chat.Message, 0, len(snap.Keys())), IsStaff: staff}
	for _, child := range snap.Children() {
		var m chat.Message
		if err := child.Decode(&m); err != nil {
			return ThreadResult{}, err
		}
		m.ID = child.Key()
		res.Messages = append(res.Messages, m)
	}
	sort.SliceStable(res.Messages, func(i, j int) bool {
		if !res.Messages[i].CreatedAt.Equal(res.Messages[j].CreatedAt) {
			return res.Messages[i].CreatedAt.Before(res.Messages[j].CreatedAt)
		}
		return res.Messages[i].ID < res.Messages[j].ID
	})
	return res, nil
}
