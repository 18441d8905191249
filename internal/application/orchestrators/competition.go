package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"studentcenter/internal/adapters/ai"
	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/competition"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/organization"
)

const competitionManageRule = feature.RuleOwnerOrAdminPlusIfEnabled

// CompetitionDeps holds dependencies for the competition orchestrators.
type CompetitionDeps struct {
	Tree tree.Store
	AI   ai.Generator
	Now  func() time.Time
}

// --- Adjust Score ---

// AdjustScoreInput carries input for a score change.
type AdjustScoreInput struct {
	OrgID  string
	UserID string
	Course string
	Delta  int
	Reason string
}

// ExecuteAdjustScore adds Delta to a course's score and appends a log entry.
// The score is updated by an atomic read-modify-write on scores/{course}, so
// concurrent adjustments never lose an update. The log entry is a separate
// additive write carrying the resulting total.
// PRE: caller may manage competition; course belongs to the center
// POST: scores[course] increased by Delta; log entry with the new total
func ExecuteAdjustScore(ctx context.Context, input AdjustScoreInput, deps CompetitionDeps) (competition.LogEntry, error) {
	g, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Competition, input.UserID, competitionManageRule)
	if err != nil {
		return competition.LogEntry{}, err
	}
	entry := competition.LogEntry{
		Course:    input.Course,
		Delta:     input.Delta,
		Reason:    strings.TrimSpace(input.Reason),
		AuthorID:  input.UserID,
		CreatedAt: deps.Now(),
	}
	if err := entry.Validate(); err != nil {
		return competition.LogEntry{}, err
	}
	if !g.Center.HasCourse(input.Course) {
		return competition.LogEntry{}, organization.ErrUnknownCourse
	}

	scorePath := paths.Record(input.OrgID, feature.Competition, "scores", input.Course)
	_, err = deps.Tree.Transact(ctx, scorePath, func(cur tree.Snapshot) (any, error) {
		var score int
		if cur.Exists() {
			if err := cur.Decode(&score); err != nil {
				return nil, err
			}
		}
		entry.Total = score + input.Delta
		return entry.Total, nil
	})
	if err != nil {
		return competition.LogEntry{}, err
	}

	key, err := deps.Tree.Push(ctx, paths.Records(input.OrgID, feature.Competition, "log"), entry)
	if err != nil {
		slog.Error("competition_event", "event", "log_write_failed", "org_id", input.OrgID, "course", input.Course, "error", err)
		return competition.LogEntry{}, fmt.Errorf("score updated but log entry failed: %w", err)
	}
	entry.ID = key

	slog.Info("competition_event", "event", "score_adjusted", "org_id", input.OrgID, "course", input.Course,
		"delta", input.Delta, "total", entry.Total, "by", input.UserID)
	return entry, nil
}

// --- Reset Scores ---

// ResetScoresInput carries input for restarting the competition.
type ResetScoresInput struct {
	OrgID  string
	UserID string
}

// ExecuteResetScores sets every course's score to zero and clears the log in one write.
// PRE: caller is the owner
func ExecuteResetScores(ctx context.Context, input ResetScoresInput, deps CompetitionDeps) error {
	g, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Competition, input.UserID, feature.RuleOwnerOnly)
	if err != nil {
		return err
	}
	scores := make(map[string]int, len(g.Center.Courses))
	for _, c := range g.Center.Courses {
		scores[c] = 0
	}
	err = deps.Tree.Update(ctx, paths.Feature(input.OrgID, feature.Competition), map[string]any{
		"scores": scores,
		"log":    nil,
	})
	if err != nil {
		return err
	}
	slog.Info("competition_event", "event", "scores_reset", "org_id", input.OrgID, "by", input.UserID)
	return nil
}

// --- Generate Fixtures ---

// GenerateFixturesInput carries input for drafting a tournament.
type GenerateFixturesInput struct {
	OrgID  string
	UserID string
	Sport  string
	Format string // e.g. "liga", "grupos y eliminación"; free text for the generator
}

// ExecuteGenerateFixtures drafts a schedule between the center's courses and stores it.
// There is no fallback: a failed or invalid draft returns ErrGenerationFailed and
// leaves any previous fixtures untouched.
// PRE: caller may manage competition; the center has at least two courses
// POST: competition/fixtures holds the validated draft
func ExecuteGenerateFixtures(ctx context.Context, input GenerateFixturesInput, deps CompetitionDeps) (competition.Fixtures, error) {
	g, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Competition, input.UserID, competitionManageRule)
	if err != nil {
		return competition.Fixtures{}, err
	}
	sport := strings.TrimSpace(input.Sport)
	if sport == "" {
		return competition.Fixtures{}, competition.ErrEmptySportName
	}
	courses := g.Center.Courses
	if len(courses) < 2 {
		return competition.Fixtures{}, competition.ErrTooFewTeams
	}
	format := strings.TrimSpace(input.Format)
	if format == "" {
		format = "todos contra todos"
	}

	prompt := fmt.Sprintf("Genera el fixture de un campeonato de %s (%s) entre estos equipos: %s. "+
		"Usa exactamente esos nombres de equipo.", sport, format, strings.Join(courses, ", "))
	match := objectSchema(map[string]any{"home": stringSchema(), "away": stringSchema()}, "home", "away")
	schema := objectSchema(map[string]any{
		"groups": arraySchema(objectSchema(map[string]any{
			"name":  stringSchema(),
			"teams": arraySchema(stringSchema()),
		}, "name", "teams")),
		"rounds": arraySchema(objectSchema(map[string]any{
			"name":    stringSchema(),
			"matches": arraySchema(match),
		}, "name", "matches")),
	}, "rounds")

	f, err := generateStructured(ctx, deps.AI, "generate_fixtures", prompt, schema, func(f *competition.Fixtures) error {
		return f.Validate(courses)
	})
	if err != nil {
		return competition.Fixtures{}, err
	}
	f.Sport = sport
	f.GeneratedAt = deps.Now()

	if err := deps.Tree.Set(ctx, paths.Records(input.OrgID, feature.Competition, "fixtures"), f); err != nil {
		return competition.Fixtures{}, err
	}
	slog.Info("competition_event", "event", "fixtures_generated", "org_id", input.OrgID, "sport", sport, "rounds", len(f.Rounds))
	return f, nil
}
