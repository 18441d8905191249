package web

import (
	"net/http"
	"time"

	"studentcenter/internal/application/orchestrators"
	"studentcenter/internal/application/projections"
)

func workshopDeps() orchestrators.WorkshopDeps {
	return orchestrators.WorkshopDeps{Tree: stores.Tree, Now: timeNow}
}

func feedDeps() projections.FeedDeps {
	return projections.FeedDeps{Tree: stores.Tree, Now: timeNow}
}

func feedQuery(r *http.Request) projections.FeedQuery {
	return projections.FeedQuery{
		OrgID:  r.PathValue("org"),
		UserID: currentUserID(r),
		Limit:  queryInt(r, "limit", 0, 500),
	}
}

type createWorkshopRequest struct {
	Title       string    `json:"title" validate:"required,max=120"`
	Description string    `json:"description" validate:"max=2000"`
	Location    string    `json:"location" validate:"max=120"`
	Date        time.Time `json:"date" validate:"required"`
	Capacity    int       `json:"capacity" validate:"min=0,max=1000"`
}

type seatsResponse struct {
	SeatsLeft int `json:"seatsLeft"`
}

// handleWorkshops lists workshops (GET) or creates one (POST).
func handleWorkshops(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		res, err := projections.QueryWorkshops(r.Context(), feedQuery(r), feedDeps())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)

	case http.MethodPost:
		var req createWorkshopRequest
		if err := decodeValid(r, &req); err != nil {
			writeError(w, err)
			return
		}
		ws, res, err := orchestrators.ExecuteCreateWorkshop(r.Context(), orchestrators.CreateWorkshopInput{
			OrgID:       r.PathValue("org"),
			UserID:      currentUserID(r),
			Title:       req.Title,
			Description: req.Description,
			Location:    req.Location,
			Date:        req.Date,
			Capacity:    req.Capacity,
		}, workshopDeps())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"workshop": ws, "fanout": newFanoutResponse(res)})

	default:
		methodNotAllowed(w)
	}
}

// handleWorkshop deletes a workshop (DELETE).
func handleWorkshop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	err := orchestrators.ExecuteDeleteWorkshop(r.Context(), orchestrators.DeleteWorkshopInput{
		OrgID:      r.PathValue("org"),
		UserID:     currentUserID(r),
		WorkshopID: r.PathValue("id"),
	}, workshopDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEnrollment enrolls (POST) or unenrolls (DELETE) the caller.
func handleEnrollment(w http.ResponseWriter, r *http.Request) {
	in := orchestrators.EnrollmentInput{
		OrgID:      r.PathValue("org"),
		UserID:     currentUserID(r),
		WorkshopID: r.PathValue("id"),
	}
	var (
		seats int
		err   error
	)
	switch r.Method {
	case http.MethodPost:
		seats, err = orchestrators.ExecuteEnroll(r.Context(), in, workshopDeps())
	case http.MethodDelete:
		seats, err = orchestrators.ExecuteUnenroll(r.Context(), in, workshopDeps())
	default:
		methodNotAllowed(w)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seatsResponse{SeatsLeft: seats})
}
