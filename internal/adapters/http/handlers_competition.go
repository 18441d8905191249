package web

import (
	"net/http"

	"studentcenter/internal/application/orchestrators"
	"studentcenter/internal/application/projections"
)

func competitionDeps() orchestrators.CompetitionDeps {
	return orchestrators.CompetitionDeps{Tree: stores.Tree, AI: stores.AI, Now: timeNow}
}

type adjustScoreRequest struct {
	Course string `json:"course" validate:"required"`
	Delta  int    `json:"delta" validate:"required,min=-1000,max=1000"`
	Reason string `json:"reason" validate:"max=200"`
}

type fixturesRequest struct {
	Sport  string `json:"sport" validate:"required,max=60"`
	Format string `json:"format" validate:"max=120"`
}

// handleScoreboard returns standings and the newest log entries (?log= caps them).
func handleScoreboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	res, err := projections.QueryScoreboard(r.Context(), projections.ScoreboardQuery{
		OrgID:    r.PathValue("org"),
		UserID:   currentUserID(r),
		LogLimit: queryInt(r, "log", projections.DefaultLogLimit, 200),
	}, projections.ScoreboardDeps{Tree: stores.Tree})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleScores adjusts one course (POST) or resets every score (DELETE, owner only).
func handleScores(w http.ResponseWriter, r *http.Request) {
	org, uid := r.PathValue("org"), currentUserID(r)
	switch r.Method {
	case http.MethodPost:
		var req adjustScoreRequest
		if err := decodeValid(r, &req); err != nil {
			writeError(w, err)
			return
		}
		entry, err := orchestrators.ExecuteAdjustScore(r.Context(), orchestrators.AdjustScoreInput{
			OrgID:  org,
			UserID: uid,
			Course: req.Course,
			Delta:  req.Delta,
			Reason: req.Reason,
		}, competitionDeps())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)

	case http.MethodDelete:
		if err := orchestrators.ExecuteResetScores(r.Context(), orchestrators.ResetScoresInput{OrgID: org, UserID: uid}, competitionDeps()); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w)
	}
}

// handleFixtures drafts and stores a tournament between the courses.
func handleFixtures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req fixturesRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	fx, err := orchestrators.ExecuteGenerateFixtures(r.Context(), orchestrators.GenerateFixturesInput{
		OrgID:  r.PathValue("org"),
		UserID: currentUserID(r),
		Sport:  req.Sport,
		Format: req.Format,
	}, competitionDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fx)
}
