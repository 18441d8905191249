package projections

import (
	"context"
	"sort"
	"time"

	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/orchestrators"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/survey"
)

// SurveyView is a survey with its tally. Individual votes are not exposed;
// the caller only learns their own choice.
type SurveyView struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Options    []string  `json:"options"`
	Deadline   time.Time `json:"deadline"`
	ClosedAt   time.Time `json:"closedAt,omitzero"`
	CreatedAt  time.Time `json:"createdAt"`
	Open       bool      `json:"open"`
	Counts     []int     `json:"counts"`
	TotalVotes int       `json:"totalVotes"`
	MyVote     *int      `json:"myVote,omitempty"`
}

func newSurveyView(s survey.Survey, userID string, now time.Time) SurveyView {
	v := SurveyView{
		ID:        s.ID,
		Question:  s.Question,
		Options:   s.Options,
		Deadline:  s.Deadline,
		ClosedAt:  s.ClosedAt,
		CreatedAt: s.CreatedAt,
		Open:      s.IsOpen(now),
		Counts:    survey.Tally(s.Votes, len(s.Options)),
	}
	for _, c := range v.Counts {
		v.TotalVotes += c
	}
	if idx, ok := s.Votes[userID]; ok {
		v.MyVote = &idx
	}
	return v
}

// SurveysQuery carries query parameters. An empty SurveyID lists every survey.
type SurveysQuery struct {
	OrgID    string
	UserID   string
	SurveyID string
}

// SurveysResult carries the query result.
type SurveysResult struct {
	Surveys   []SurveyView `json:"surveys"`
	CanManage bool         `json:"canManage"`
}

// SurveysDeps holds dependencies for QuerySurveys.
type SurveysDeps struct {
	Tree gate.Reader
	Now  func() time.Time
}

// QuerySurveys returns tallies, open first and then newest first.
// Open is computed against the server clock, never the client's.
// PRE: caller is a member
// POST: with SurveyID set, exactly one survey or survey.ErrNotFound
func QuerySurveys(ctx context.Context, query SurveysQuery, deps SurveysDeps) (SurveysResult, error) {
	g, err := gate.Authorize(ctx, deps.Tree, query.OrgID, feature.Surveys, query.UserID, feature.RuleMember)
	if err != nil {
		return SurveysResult{}, err
	}
	now := deps.Now()
	res := SurveysResult{CanManage: g.Allows(feature.ManageRule(feature.Surveys))}

	if query.SurveyID != "" {
		s, err := orchestrators.LoadSurvey(ctx, deps.Tree, query.OrgID, query.SurveyID)
		if err != nil {
			return SurveysResult{}, err
		}
		res.Surveys = []SurveyView{newSurveyView(s, query.UserID, now)}
		return res, nil
	}

	snap, err := deps.Tree.Get(ctx, paths.Records(query.OrgID, feature.Surveys, "items"))
	if err != nil {
		return SurveysResult{}, err
	}
	res.Surveys = make([]SurveyView, 0, len(snap.Keys()))
	for _, child := range snap.Children() {
		var s survey.Survey
		if err := child.Decode(&s); err != nil {
			return SurveysResult{}, err
		}
		s.ID = child.Key()
		res.Surveys = append(res.Surveys, newSurveyView(s, query.UserID, now))
	}
	sort.SliceStable(res.Surveys, func(i, j int) bool {
		a, b := res.Surveys[i], res.Surveys[j]
		if a.Open != b.Open {
			return a.Open
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return res, nil
}
