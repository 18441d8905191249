package web

import (
	"net/http"
	"time"

	"studentcenter/internal/application/orchestrators"
	"studentcenter/internal/application/projections"
	"studentcenter/internal/domain/survey"
)

func surveyDeps() orchestrators.SurveyDeps {
	return orchestrators.SurveyDeps{Tree: stores.Tree, Now: timeNow}
}

func surveysDeps() projections.SurveysDeps {
	return projections.SurveysDeps{Tree: stores.Tree, Now: timeNow}
}

type createSurveyRequest struct {
	Question string    `json:"question" validate:"required,max=300"`
	Options  []string  `json:"options" validate:"min=2,max=10,dive,required,max=120"`
	Deadline time.Time `json:"deadline" validate:"required"`
}

type voteRequest struct {
	Option *int `json:"option" validate:"required,min=0"`
}

type voteResponse struct {
	Counts []int `json:"counts"`
}

// handleSurveys lists surveys (GET) or creates one (POST).
func handleSurveys(w http.ResponseWriter, r *http.Request) {
	org, uid := r.PathValue("org"), currentUserID(r)
	switch r.Method {
	case http.MethodGet:
		res, err := projections.QuerySurveys(r.Context(), projections.SurveysQuery{OrgID: org, UserID: uid}, surveysDeps())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)

	case http.MethodPost:
		var req createSurveyRequest
		if err := decodeValid(r, &req); err != nil {
			writeError(w, err)
			return
		}
		s, res, err := orchestrators.ExecuteCreateSurvey(r.Context(), orchestrators.CreateSurveyInput{
			OrgID:    org,
			UserID:   uid,
			Question: req.Question,
			Options:  req.Options,
			Deadline: req.Deadline,
		}, surveyDeps())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": s.ID, "fanout": newFanoutResponse(res)})

	default:
		methodNotAllowed(w)
	}
}

// handleSurvey returns one survey's tally (GET) or deletes it (DELETE).
func handleSurvey(w http.ResponseWriter, r *http.Request) {
	org, uid, id := r.PathValue("org"), currentUserID(r), r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		res, err := projections.QuerySurveys(r.Context(), projections.SurveysQuery{OrgID: org, UserID: uid, SurveyID: id}, surveysDeps())
		if err != nil {
			writeError(w, err)
			return
		}
		if len(res.Surveys) == 0 {
			writeError(w, survey.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, res.Surveys[0])

	case http.MethodDelete:
		err := orchestrators.ExecuteDeleteSurvey(r.Context(), orchestrators.DeleteSurveyInput{OrgID: org, UserID: uid, SurveyID: id}, surveyDeps())
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w)
	}
}

// handleVote records the caller's vote; the deadline is checked against the server clock.
func handleVote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req voteRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	counts, err := orchestrators.ExecuteVote(r.Context(), orchestrators.VoteInput{
		OrgID:    r.PathValue("org"),
		UserID:   currentUserID(r),
		SurveyID: r.PathValue("id"),
		Option:   *req.Option,
	}, surveyDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voteResponse{Counts: counts})
}

// handleCloseSurvey closes a survey before its deadline.
func handleCloseSurvey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s, err := orchestrators.ExecuteCloseSurvey(r.Context(), orchestrators.CloseSurveyInput{
		OrgID:    r.PathValue("org"),
		UserID:   currentUserID(r),
		SurveyID: r.PathValue("id"),
	}, surveyDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": s.ID, "closed": true})
}
