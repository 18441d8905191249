package web

import (
	"net/http"

	"studentcenter/internal/application/orchestrators"
	"studentcenter/internal/application/projections"
)

func chatDeps() orchestrators.ChatDeps {
	return orchestrators.ChatDeps{Tree: stores.Tree, Now: timeNow}
}

type openThreadRequest struct {
	Subject string `json:"subject" validate:"required,max=120"`
	Text    string `json:"text" validate:"required,max=2000"`
}

type replyRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// handleChatThreads lists visible threads (GET) or opens an anonymous one (POST).
// Responses never name a thread's author.
func handleChatThreads(w http.ResponseWriter, r *http.Request) {
	org, uid := r.PathValue("org"), currentUserID(r)
	switch r.Method {
	case http.MethodGet:
		res, err := projections.QueryChatThreads(r.Context(), projections.ChatThreadsQuery{OrgID: org, UserID: uid},
			projections.ChatDeps{Tree: stores.Tree})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)

	case http.MethodPost:
		var req openThreadRequest
		if err := decodeValid(r, &req); err != nil {
			writeError(w, err)
			return
		}
		th, res, err := orchestrators.ExecuteOpenThread(r.Context(), orchestrators.OpenThreadInput{
			OrgID:   org,
			UserID:  uid,
			Subject: req.Subject,
			Text:    req.Text,
		}, chatDeps())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"thread": th, "fanout": newFanoutResponse(res)})

	default:
		methodNotAllowed(w)
	}
}

// handleChatThread returns one thread with its messages (author or chat staff only).
func handleChatThread(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	res, err := projections.QueryThread(r.Context(), projections.ThreadQuery{
		OrgID:    r.PathValue("org"),
		UserID:   currentUserID(r),
		ThreadID: r.PathValue("id"),
	}, projections.ChatDeps{Tree: stores.Tree})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleChatReply appends a message to an open thread.
func handleChatReply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req replyRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	m, err := orchestrators.ExecuteReply(r.Context(), orchestrators.ReplyInput{
		OrgID:    r.PathValue("org"),
		UserID:   currentUserID(r),
		ThreadID: r.PathValue("id"),
		Text:     req.Text,
	}, chatDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// handleCloseChat closes a thread; either side may close it.
func handleCloseChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	th, err := orchestrators.ExecuteCloseThread(r.Context(), orchestrators.CloseThreadInput{
		OrgID:    r.PathValue("org"),
		UserID:   currentUserID(r),
		ThreadID: r.PathValue("id"),
	}, chatDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, th)
}
