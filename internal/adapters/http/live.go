package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"studentcenter/internal/application/livesync"
	"studentcenter/internal/application/orchestrators"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/application/projections"
	"studentcenter/internal/domain/feature"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
)

// Origin must match Host (the upgrader default).
var liveUpgrader = websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096}

// liveFrame is one message pushed to a live client.
type liveFrame struct {
	Stream string `json:"stream"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// liveStream describes what a connection watches and how it renders.
// Each change under a watched path re-runs query with the caller's identity,
// so the client only ever sees what the matching GET endpoint would return.
type liveStream struct {
	name        string
	collections []string // watched as ordered child lists
	records     []string // watched as single values
	query       func(ctx context.Context) (any, error)
}

// resolveLiveStream maps ?stream=notifications or ?org=&feature=[&thread=] to a stream.
func resolveLiveStream(r *http.Request, uid string) (liveStream, error) {
	q := r.URL.Query()
	if q.Get("stream") == "notifications" {
		return liveStream{
			name:        "notifications",
			collections: []string{paths.UserNotifications(uid)},
			query: func(ctx context.Context) (any, error) {
				return projections.QueryNotifications(ctx, projections.NotificationsQuery{UserID: uid, Limit: 50},
					projections.NotificationsDeps{Tree: stores.Tree})
			},
		}, nil
	}

	org := q.Get("org")
	k, err := feature.Parse(q.Get("feature"))
	if err != nil {
		return liveStream{}, err
	}
	if err := paths.CheckIDs(org); err != nil {
		return liveStream{}, err
	}
	if err := ensureFeature(r, org, uid, k); err != nil {
		return liveStream{}, err
	}

	feed := projections.FeedQuery{OrgID: org, UserID: uid, Limit: queryInt(r, "limit", 0, 500)}
	s := liveStream{
		name: string(k),
		// Membership and grants change what the caller may see.
		records: []string{paths.Center(org), paths.Permissions(org, k)},
	}
	switch k {
	case feature.Finances:
		s.collections = []string{paths.Records(org, k, "transactions")}
		s.query = func(ctx context.Context) (any, error) {
			return projections.QueryFinanceSummary(ctx, projections.FinanceSummaryQuery{OrgID: org, UserID: uid, Limit: feed.Limit},
				projections.FinanceSummaryDeps{Tree: stores.Tree})
		}
	case feature.Competition:
		s.collections = []string{paths.Records(org, k, "scores"), paths.Records(org, k, "log")}
		s.query = func(ctx context.Context) (any, error) {
			return projections.QueryScoreboard(ctx, projections.ScoreboardQuery{OrgID: org, UserID: uid, LogLimit: projections.DefaultLogLimit},
				projections.ScoreboardDeps{Tree: stores.Tree})
		}
	case feature.Workshops:
		s.collections = []string{paths.Records(org, k, "items")}
		s.query = func(ctx context.Context) (any, error) { return projections.QueryWorkshops(ctx, feed, feedDeps()) }
	case feature.Surveys:
		s.collections = []string{paths.Records(org, k, "items")}
		s.query = func(ctx context.Context) (any, error) {
			return projections.QuerySurveys(ctx, projections.SurveysQuery{OrgID: org, UserID: uid}, surveysDeps())
		}
	case feature.Forums:
		s.collections = []string{paths.Records(org, k, "messages")}
		s.query = func(ctx context.Context) (any, error) { return projections.QueryForum(ctx, feed, feedDeps()) }
	case feature.Posts:
		s.collections = []string{paths.Records(org, k, "items")}
		s.query = func(ctx context.Context) (any, error) { return projections.QueryPosts(ctx, feed, feedDeps()) }
	case feature.AnonymousChat:
		// The author index is never watched; thread records carry no author.
		if thread := q.Get("thread"); thread != "" {
			if _, err := orchestrators.AuthorizeThread(r.Context(), stores.Tree, org, thread, uid); err != nil {
				return liveStream{}, err
			}
			s.name = "chatThread"
			s.records = append(s.records, paths.Record(org, k, "threads", thread))
			s.query = func(ctx context.Context) (any, error) {
				return projections.QueryThread(ctx, projections.ThreadQuery{OrgID: org, UserID: uid, ThreadID: thread},
					projections.ChatDeps{Tree: stores.Tree})
			}
		} else {
			s.collections = []string{paths.Records(org, k, "threads")}
			s.query = func(ctx context.Context) (any, error) {
				return projections.QueryChatThreads(ctx, projections.ChatThreadsQuery{OrgID: org, UserID: uid},
					projections.ChatDeps{Tree: stores.Tree})
			}
		}
	}
	return s, nil
}

// watch subscribes to every path of s. changed receives a coalesced signal per delivery.
func (s liveStream) watch(ctx context.Context, changed chan<- struct{}) (func(), error) {
	notify := func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	for _, p := range s.collections {
		l, err := livesync.NewList(ctx, stores.Tree, p, livesync.ByKey[json.RawMessage](),
			func([]livesync.Item[json.RawMessage]) { notify() })
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, l.Close)
	}
	for _, p := range s.records {
		v, err := livesync.NewValue(ctx, stores.Tree, p, func(json.RawMessage, bool) { notify() })
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, v.Close)
	}
	return closeAll, nil
}

// handleLive upgrades to a websocket and pushes a fresh projection after every change.
// A query error (for example after expulsion) is sent as a final frame.
func handleLive(w http.ResponseWriter, r *http.Request) {
	uid := currentUserID(r)
	stream, err := resolveLiveStream(r, uid)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("live_event", "event", "upgrade_failed", "error", err)
		return
	}
	defer conn.Close()

	// Hijacked connections never cancel the request context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 1)
	stop, err := stream.watch(ctx, changed)
	if err != nil {
		_ = conn.WriteJSON(liveFrame{Stream: stream.name, Error: "subscription failed"})
		return
	}
	defer stop()

	slog.Info("live_event", "event", "opened", "stream", stream.name, "user_id", uid)
	defer slog.Info("live_event", "event", "closed", "stream", stream.name, "user_id", uid)

	// Reads only serve pongs and detect disconnect.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("live_event", "event", "read_failed", "stream", stream.name, "error", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(livePingPeriod)
	defer ping.Stop()

	// The first frame is sent without waiting for a change.
	push := func() bool {
		data, err := stream.query(ctx)
		frame := liveFrame{Stream: stream.name, Data: data}
		if err != nil {
			frame = liveFrame{Stream: stream.name, Error: err.Error()}
			if statusFor(err) == http.StatusInternalServerError {
				slog.Error("live_event", "event", "query_failed", "stream", stream.name, "error", err)
				frame.Error = "internal error"
			}
		}
		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		if werr := conn.WriteJSON(frame); werr != nil {
			return false
		}
		return err == nil
	}
	if !push() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			if !push() {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""), time.Now().Add(liveWriteWait))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}
