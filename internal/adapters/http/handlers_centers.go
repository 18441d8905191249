package web

import (
	"net/http"

	"studentcenter/internal/application/orchestrators"
	"studentcenter/internal/application/projections"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/role"
)

func centerDeps() orchestrators.CenterDeps {
	return orchestrators.CenterDeps{Tree: stores.Tree, Outbox: stores.Outbox, GenerateID: generateID, Now: timeNow}
}

func permissionDeps() orchestrators.PermissionDeps {
	return orchestrators.PermissionDeps{Tree: stores.Tree, Now: timeNow}
}

type createCenterRequest struct {
	Name       string   `json:"name" validate:"required,max=80"`
	Color      string   `json:"color" validate:"omitempty,oneof=indigo emerald rose amber sky slate"`
	Courses    []string `json:"courses" validate:"required,min=1,dive,required,max=40"`
	AccessCode string   `json:"accessCode" validate:"required,min=6"`
}

type joinCenterRequest struct {
	AccessCode     string `json:"accessCode" validate:"required"`
	Course         string `json:"course" validate:"required"`
	DocumentNumber string `json:"documentNumber" validate:"max=40"`
}

type changeTierRequest struct {
	Tier string `json:"tier" validate:"required,oneof=admin-plus admin student"`
}

type expelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type managersRequest struct {
	Managers []string `json:"managers" validate:"max=100,dive,required"`
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

type fanoutResponse struct {
	Notified int `json:"notified"`
	Failed   int `json:"failed"`
}

func newFanoutResponse(res orchestrators.FanoutResult) fanoutResponse {
	return fanoutResponse{Notified: len(res.Delivered), Failed: len(res.Failed)}
}

// handleCenters lists the caller's centers (GET) or creates one (POST).
func handleCenters(w http.ResponseWriter, r *http.Request) {
	uid := currentUserID(r)
	switch r.Method {
	case http.MethodGet:
		res, err := projections.QueryMyCenters(r.Context(), projections.MyCentersQuery{UserID: uid},
			projections.MyCentersDeps{Tree: stores.Tree})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)

	case http.MethodPost:
		var req createCenterRequest
		if err := decodeValid(r, &req); err != nil {
			writeError(w, err)
			return
		}
		c, err := orchestrators.ExecuteCreateCenter(r.Context(), orchestrators.CreateCenterInput{
			UserID:     uid,
			Name:       req.Name,
			Color:      req.Color,
			Courses:    req.Courses,
			AccessCode: req.AccessCode,
		}, centerDeps())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, projections.NewCenterView(c))

	default:
		methodNotAllowed(w)
	}
}

// handleCenter returns the caller's standing in a center (GET) or deletes it (DELETE, owner only).
func handleCenter(w http.ResponseWriter, r *http.Request) {
	org, uid := r.PathValue("org"), currentUserID(r)
	switch r.Method {
	case http.MethodGet:
		res, err := projections.QueryAccess(r.Context(), projections.AccessQuery{OrgID: org, UserID: uid},
			projections.AccessDeps{Tree: stores.Tree})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)

	case http.MethodDelete:
		res, err := orchestrators.ExecuteDeleteCenter(r.Context(), orchestrators.DeleteCenterInput{OrgID: org, ActorID: uid}, centerDeps())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newFanoutResponse(res))

	default:
		methodNotAllowed(w)
	}
}

// handleJoinCenter joins a center with its access code.
func handleJoinCenter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req joinCenterRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	op, err := orchestrators.ExecuteJoinCenter(r.Context(), orchestrators.JoinCenterInput{
		OrgID:          r.PathValue("org"),
		UserID:         currentUserID(r),
		AccessCode:     req.AccessCode,
		Course:         req.Course,
		DocumentNumber: req.DocumentNumber,
	}, centerDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, op)
}

// handleMembers lists a center's members, optionally filtered by ?course=.
func handleMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	res, err := projections.QueryMembers(r.Context(), projections.MembersQuery{
		OrgID:  r.PathValue("org"),
		UserID: currentUserID(r),
		Course: r.URL.Query().Get("course"),
	}, projections.MembersDeps{Tree: stores.Tree})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleMember expels a member (DELETE).
func handleMember(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	var req expelRequest
	if r.ContentLength != 0 {
		if err := decodeValid(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	res, err := orchestrators.ExecuteExpelMember(r.Context(), orchestrators.ExpelMemberInput{
		OrgID:    r.PathValue("org"),
		ActorID:  currentUserID(r),
		MemberID: r.PathValue("uid"),
		Reason:   req.Reason,
	}, centerDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newFanoutResponse(res))
}

// handleMemberTier moves a member between tiers (PUT).
func handleMemberTier(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req changeTierRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := orchestrators.ExecuteChangeMemberTier(r.Context(), orchestrators.ChangeMemberTierInput{
		OrgID:    r.PathValue("org"),
		ActorID:  currentUserID(r),
		MemberID: r.PathValue("uid"),
		Tier:     role.Role(req.Tier),
	}, centerDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newFanoutResponse(res))
}

func pathFeature(r *http.Request) (feature.Key, error) {
	return feature.Parse(r.PathValue("feature"))
}

// handleFeatureAccess returns the caller's role in one feature, initializing it on first access.
func handleFeatureAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	k, err := pathFeature(r)
	if err != nil {
		writeError(w, err)
		return
	}
	org, uid := r.PathValue("org"), currentUserID(r)
	if err := ensureFeature(r, org, uid, k); err != nil {
		writeError(w, err)
		return
	}
	res, err := projections.QueryAccess(r.Context(), projections.AccessQuery{OrgID: org, UserID: uid, Feature: k},
		projections.AccessDeps{Tree: stores.Tree})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleFeatureManagers replaces a feature's delegated managers (PUT, owner only).
func handleFeatureManagers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	k, err := pathFeature(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req managersRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := ensureFeature(r, r.PathValue("org"), currentUserID(r), k); err != nil {
		writeError(w, err)
		return
	}
	err = orchestrators.ExecuteSetFeatureManagers(r.Context(), orchestrators.SetFeatureManagersInput{
		OrgID:    r.PathValue("org"),
		UserID:   currentUserID(r),
		Feature:  k,
		Managers: req.Managers,
	}, permissionDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFeatureAdminPlus toggles whether admin-plus members may manage a feature (PUT, owner only).
func handleFeatureAdminPlus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	k, err := pathFeature(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req toggleRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := ensureFeature(r, r.PathValue("org"), currentUserID(r), k); err != nil {
		writeError(w, err)
		return
	}
	err = orchestrators.ExecuteSetAdminPlusCanManage(r.Context(), orchestrators.SetAdminPlusCanManageInput{
		OrgID:   r.PathValue("org"),
		UserID:  currentUserID(r),
		Feature: k,
		Enabled: req.Enabled,
	}, permissionDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
