package web

import (
	"net/http"

	"studentcenter/internal/application/orchestrators"
	"studentcenter/internal/application/projections"
)

func notificationDeps() orchestrators.NotificationDeps {
	return orchestrators.NotificationDeps{Tree: stores.Tree, Now: timeNow}
}

// handleNotifications lists the caller's inbox. ?unread=1 filters, ?limit= caps.
func handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	unread := r.URL.Query().Get("unread")
	res, err := projections.QueryNotifications(r.Context(), projections.NotificationsQuery{
		UserID:     currentUserID(r),
		UnreadOnly: unread == "1" || unread == "true",
		Limit:      queryInt(r, "limit", 50, 200),
	}, projections.NotificationsDeps{Tree: stores.Tree})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleReadNotification marks one notification read.
func handleReadNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	n, err := orchestrators.ExecuteMarkNotificationRead(r.Context(), orchestrators.MarkNotificationReadInput{
		UserID:         currentUserID(r),
		NotificationID: r.PathValue("id"),
	}, notificationDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// handleReadAllNotifications marks the whole inbox read.
func handleReadAllNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	count, err := orchestrators.ExecuteMarkAllNotificationsRead(r.Context(), orchestrators.MarkAllNotificationsReadInput{
		UserID: currentUserID(r),
	}, notificationDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": count})
}

// handleDistricts lists the districts of ?region= (and optional ?country=).
// A failed generation answers an empty list.
func handleDistricts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	districts, err := orchestrators.ExecuteListDistricts(r.Context(), orchestrators.ListDistrictsInput{
		Country: q.Get("country"),
		Region:  q.Get("region"),
	}, orchestrators.ListDistrictsDeps{AI: stores.AI})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"districts": districts})
}
