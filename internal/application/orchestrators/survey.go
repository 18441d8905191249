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
	"studentcenter/internal/domain/notification"
	"studentcenter/internal/domain/survey"
)

const surveyManageRule = feature.RuleOwnerOrAdminPlusIfEnabled

// SurveyDeps holds dependencies for the survey orchestrators.
type SurveyDeps struct {
	Tree tree.Store
	Now  func() time.Time
}

// LoadSurvey reads one survey.
// POST: returns survey.ErrNotFound when it does not exist
func LoadSurvey(ctx context.Context, r gate.Reader, orgID, surveyID string) (survey.Survey, error) {
	if err := paths.CheckIDs(surveyID); err != nil {
		return survey.Survey{}, err
	}
	snap, err := r.Get(ctx, paths.Record(orgID, feature.Surveys, "items", surveyID))
	if err != nil {
		return survey.Survey{}, err
	}
	if !snap.Exists() {
		return survey.Survey{}, survey.ErrNotFound
	}
	var s survey.Survey
	if err := snap.Decode(&s); err != nil {
		return survey.Survey{}, err
	}
	s.ID = surveyID
	return s, nil
}

// --- Create Survey ---

// CreateSurveyInput carries input for publishing a survey.
type CreateSurveyInput struct {
	OrgID    string
	UserID   string
	Question string
	Options  []string
	Deadline time.Time
}

// ExecuteCreateSurvey stores a survey and notifies every member.
// PRE: caller may manage surveys; deadline in the future
// POST: survey stored with no votes; NEW_SURVEY written per member
func ExecuteCreateSurvey(ctx context.Context, input CreateSurveyInput, deps SurveyDeps) (survey.Survey, FanoutResult, error) {
	g, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Surveys, input.UserID, surveyManageRule)
	if err != nil {
		return survey.Survey{}, FanoutResult{}, err
	}
	opts := make([]string, len(input.Options))
	for i, o := range input.Options {
		opts[i] = strings.TrimSpace(o)
	}
	s := survey.Survey{
		Question:  strings.TrimSpace(input.Question),
		Options:   opts,
		Deadline:  input.Deadline,
		AuthorID:  input.UserID,
		CreatedAt: deps.Now(),
	}
	if err := s.Validate(); err != nil {
		return survey.Survey{}, FanoutResult{}, err
	}
	key, err := deps.Tree.Push(ctx, paths.Records(input.OrgID, feature.Surveys, "items"), s)
	if err != nil {
		return survey.Survey{}, FanoutResult{}, err
	}
	s.ID = key
	slog.Info("survey_event", "event", "survey_created", "org_id", input.OrgID, "survey_id", key, "by", input.UserID)

	res, err := ExecuteFanout(ctx, FanoutInput{
		OrgID:    input.OrgID,
		OrgName:  g.Center.Name,
		Type:     notification.TypeNewSurvey,
		Payload:  map[string]string{"surveyId": key, "question": s.Question},
		Audience: notification.AllMembers{Membership: g.Center.Membership},
	}, FanoutDeps{Tree: deps.Tree, Now: deps.Now})
	return s, res, err
}

// --- Vote ---

// VoteInput carries input for casting or changing a vote.
type VoteInput struct {
	OrgID    string
	UserID   string
	SurveyID string
	Option   int
}

// ExecuteVote records the caller's vote. A later vote replaces an earlier one.
// The votes map is updated by an atomic read-modify-write, so concurrent
// voters never overwrite each other.
// PRE: caller is a member; survey open (before its deadline and not closed)
// POST: votes[caller] == Option; returns the tally per option
// INVARIANT: at most one vote per user
func ExecuteVote(ctx context.Context, input VoteInput, deps SurveyDeps) ([]int, error) {
	if _, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Surveys, input.UserID, feature.RuleMember); err != nil {
		return nil, err
	}
	s, err := LoadSurvey(ctx, deps.Tree, input.OrgID, input.SurveyID)
	if err != nil {
		return nil, err
	}
	if err := s.CheckVote(input.Option, deps.Now()); err != nil {
		slog.Info("survey_event", "event", "vote_rejected", "org_id", input.OrgID, "survey_id", input.SurveyID,
			"user_id", input.UserID, "reason", err.Error())
		return nil, err
	}

	var votes map[string]int
	record := paths.Record(input.OrgID, feature.Surveys, "items", input.SurveyID)
	err = transactField(ctx, deps.Tree, record, "votes", survey.ErrNotFound, func(cur tree.Snapshot) (any, error) {
		votes = map[string]int{}
		if cur.Exists() {
			if err := cur.Decode(&votes); err != nil {
				return nil, err
			}
		}
		votes[input.UserID] = input.Option
		return votes, nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("survey_event", "event", "vote_recorded", "org_id", input.OrgID, "survey_id", input.SurveyID, "user_id", input.UserID)
	return survey.Tally(votes, len(s.Options)), nil
}

// --- Close Survey ---

// CloseSurveyInput carries input for ending a survey early.
type CloseSurveyInput struct {
	OrgID    string
	UserID   string
	SurveyID string
}

// ExecuteCloseSurvey stops a survey from accepting votes.
// PRE: caller may manage surveys; survey not already closed
// POST: closedAt set
func ExecuteCloseSurvey(ctx context.Context, input CloseSurveyInput, deps SurveyDeps) (survey.Survey, error) {
	if _, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Surveys, input.UserID, surveyManageRule); err != nil {
		return survey.Survey{}, err
	}
	s, err := LoadSurvey(ctx, deps.Tree, input.OrgID, input.SurveyID)
	if err != nil {
		return survey.Survey{}, err
	}
	now := deps.Now()
	record := paths.Record(input.OrgID, feature.Surveys, "items", input.SurveyID)
	err = transactField(ctx, deps.Tree, record, "closedAt", survey.ErrNotFound, func(cur tree.Snapshot) (any, error) {
		if cur.Exists() {
			return nil, survey.ErrAlreadyClosed
		}
		return now, nil
	})
	if err != nil {
		return survey.Survey{}, err
	}
	s.ClosedAt = now
	slog.Info("survey_event", "event", "survey_closed", "org_id", input.OrgID, "survey_id", input.SurveyID, "by", input.UserID)
	return s, nil
}

// --- Delete Survey ---

// DeleteSurveyInput carries input for removing a survey.
type DeleteSurveyInput struct {
	OrgID    string
	UserID   string
	SurveyID string
}

// ExecuteDeleteSurvey removes a survey and its votes.
func ExecuteDeleteSurvey(ctx context.Context, input DeleteSurveyInput, deps SurveyDeps) error {
	if _, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Surveys, input.UserID, surveyManageRule); err != nil {
		return err
	}
	if _, err := LoadSurvey(ctx, deps.Tree, input.OrgID, input.SurveyID); err != nil {
		return err
	}
	if err := deps.Tree.Delete(ctx, paths.Record(input.OrgID, feature.Surveys, "items", input.SurveyID)); err != nil {
		return err
	}
	slog.Info("survey_event", "event", "survey_deleted", "org_id", input.OrgID, "survey_id", input.SurveyID, "by", input.UserID)
	return nil
}
