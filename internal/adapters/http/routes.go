package web

import (
	"net/http"

	"studentcenter/internal/adapters/http/middleware"
	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/orchestrators"
	"studentcenter/internal/domain/feature"
)

// ensureFeature checks that the caller belongs to org, then lazily initializes feature k.
// Outsiders never trigger initialization.
func ensureFeature(r *http.Request, org, uid string, k feature.Key) error {
	if _, err := gate.Authorize(r.Context(), stores.Tree, org, "", uid, feature.RuleMember); err != nil {
		return err
	}
	_, err := orchestrators.ExecuteEnsureFeature(r.Context(), orchestrators.EnsureFeatureInput{OrgID: org, Feature: k},
		orchestrators.EnsureFeatureDeps{Tree: stores.Tree})
	return err
}

// inFeature wraps a handler for /api/orgs/{org}/<feature>/... routes.
func inFeature(k feature.Key, h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := ensureFeature(r, r.PathValue("org"), currentUserID(r), k); err != nil {
			writeError(w, err)
			return
		}
		h(w, r)
	}))
}

func authed(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(h)
}

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", handleHealth)

	// Accounts
	mux.HandleFunc("/api/register", handleRegister)
	mux.HandleFunc("/api/login", handleLogin)
	mux.HandleFunc("/api/logout", handleLogout)
	mux.Handle("/api/me", authed(handleMe))
	mux.Handle("/api/me/password", authed(handleChangePassword))

	// Centers and membership
	mux.Handle("/api/centers", authed(handleCenters))
	mux.Handle("/api/orgs/{org}", authed(handleCenter))
	mux.Handle("/api/orgs/{org}/join", authed(handleJoinCenter))
	mux.Handle("/api/orgs/{org}/members", authed(handleMembers))
	mux.Handle("/api/orgs/{org}/members/{uid}", authed(handleMember))
	mux.Handle("/api/orgs/{org}/members/{uid}/tier", authed(handleMemberTier))
	mux.Handle("/api/orgs/{org}/features/{feature}", authed(handleFeatureAccess))
	mux.Handle("/api/orgs/{org}/features/{feature}/managers", authed(handleFeatureManagers))
	mux.Handle("/api/orgs/{org}/features/{feature}/admin-plus", authed(handleFeatureAdminPlus))

	// Finances
	mux.Handle("/api/orgs/{org}/finances", inFeature(feature.Finances, handleFinances))
	mux.Handle("/api/orgs/{org}/finances/visibility", inFeature(feature.Finances, handleFinanceVisibility))
	mux.Handle("/api/orgs/{org}/finances/transactions", inFeature(feature.Finances, handleTransactions))
	mux.Handle("/api/orgs/{org}/finances/transactions/{id}", inFeature(feature.Finances, handleTransaction))
	mux.Handle("/api/orgs/{org}/finances/categorize", inFeature(feature.Finances, handleCategorize))
	mux.Handle("/api/orgs/{org}/finances/projection", inFeature(feature.Finances, handleFinanceProjection))

	// Competition
	mux.Handle("/api/orgs/{org}/competition", inFeature(feature.Competition, handleScoreboard))
	mux.Handle("/api/orgs/{org}/competition/scores", inFeature(feature.Competition, handleScores))
	mux.Handle("/api/orgs/{org}/competition/fixtures", inFeature(feature.Competition, handleFixtures))

	// Workshops
	mux.Handle("/api/orgs/{org}/workshops", inFeature(feature.Workshops, handleWorkshops))
	mux.Handle("/api/orgs/{org}/workshops/{id}", inFeature(feature.Workshops, handleWorkshop))
	mux.Handle("/api/orgs/{org}/workshops/{id}/enrollment", inFeature(feature.Workshops, handleEnrollment))

	// Surveys
	mux.Handle("/api/orgs/{org}/surveys", inFeature(feature.Surveys, handleSurveys))
	mux.Handle("/api/orgs/{org}/surveys/{id}", inFeature(feature.Surveys, handleSurvey))
	mux.Handle("/api/orgs/{org}/surveys/{id}/vote", inFeature(feature.Surveys, handleVote))
	mux.Handle("/api/orgs/{org}/surveys/{id}/close", inFeature(feature.Surveys, handleCloseSurvey))

	// Forum
	mux.Handle("/api/orgs/{org}/forum", inFeature(feature.Forums, handleForum))
	mux.Handle("/api/orgs/{org}/forum/{id}", inFeature(feature.Forums, handleForumMessage))
	mux.Handle("/api/orgs/{org}/forum/{id}/reaction", inFeature(feature.Forums, handleReaction))

	// Posts
	mux.Handle("/api/orgs/{org}/posts", inFeature(feature.Posts, handlePosts))
	mux.Handle("/api/orgs/{org}/posts/{id}", inFeature(feature.Posts, handlePost))
	mux.Handle("/api/orgs/{org}/posts/{id}/like", inFeature(feature.Posts, handlePostLike))

	// Anonymous chat
	mux.Handle("/api/orgs/{org}/chat", inFeature(feature.AnonymousChat, handleChatThreads))
	mux.Handle("/api/orgs/{org}/chat/{id}", inFeature(feature.AnonymousChat, handleChatThread))
	mux.Handle("/api/orgs/{org}/chat/{id}/messages", inFeature(feature.AnonymousChat, handleChatReply))
	mux.Handle("/api/orgs/{org}/chat/{id}/close", inFeature(feature.AnonymousChat, handleCloseChat))

	// Notifications
	mux.Handle("/api/notifications", authed(handleNotifications))
	mux.Handle("/api/notifications/read-all", authed(handleReadAllNotifications))
	mux.Handle("/api/notifications/{id}/read", authed(handleReadNotification))

	// Generation helpers
	mux.Handle("/api/districts", authed(handleDistricts))

	// Live feeds
	mux.Handle("/api/live", authed(handleLive))

	// Operator
	mux.Handle("/api/admin/perf", authed(handleAdminPerf))
	mux.Handle("/api/admin/outbox", authed(handleAdminOutbox))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
