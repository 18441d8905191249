package projections

import (
	"context"
	"sort"

	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/competition"
	"studentcenter/internal/domain/feature"
)

// DefaultLogLimit bounds the recent score changes returned with the scoreboard.
const DefaultLogLimit = 20

// ScoreboardQuery carries query parameters.
type ScoreboardQuery struct {
	OrgID    string
	UserID   string
	LogLimit int
}

// ScoreboardResult carries the query result.
type ScoreboardResult struct {
	Standings []competition.Standing `json:"standings"`
	Log       []competition.LogEntry `json:"log"`
	Fixtures  *competition.Fixtures  `json:"fixtures,omitempty"`
	CanManage bool                   `json:"canManage"`
}

// ScoreboardDeps holds dependencies for QueryScoreboard.
type ScoreboardDeps struct {
	Tree gate.Reader
}

// QueryScoreboard ranks every course of the center, including those with no points.
// PRE: caller is a member
// POST: Log is newest first and at most LogLimit long
func QueryScoreboard(ctx context.Context, query ScoreboardQuery, deps ScoreboardDeps) (ScoreboardResult, error) {
	g, err := gate.Authorize(ctx, deps.Tree, query.OrgID, feature.Competition, query.UserID, feature.RuleMember)
	if err != nil {
		return ScoreboardResult{}, err
	}
	snap, err := deps.Tree.Get(ctx, paths.Feature(query.OrgID, feature.Competition))
	if err != nil {
		return ScoreboardResult{}, err
	}

	scores := make(map[string]int, len(g.Center.Courses))
	for _, c := range g.Center.Courses {
		scores[c] = 0
	}
	if s := snap.Child("scores"); s.Exists() {
		var stored map[string]int
		if err := s.Decode(&stored); err != nil {
			return ScoreboardResult{}, err
		}
		for c, v := range stored {
			if _, ok := scores[c]; ok {
				scores[c] = v
			}
		}
	}

	entries := []competition.LogEntry{}
	for _, child := range snap.Child("log").Children() {
		var e competition.LogEntry
		if err := child.Decode(&e); err != nil {
			return ScoreboardResult{}, err
		}
		e.ID = child.Key()
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	limit := query.LogLimit
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}

	res := ScoreboardResult{
		Standings: competition.Standings(scores),
		Log:       entries,
		CanManage: g.Allows(feature.ManageRule(feature.Competition)),
	}
	if f := snap.Child("fixtures"); f.Exists() {
		var fx competition.Fixtures
		if err := f.Decode(&fx); err != nil {
			return ScoreboardResult{}, err
		}
		res.Fixtures = &fx
	}
	return res, nil
}
