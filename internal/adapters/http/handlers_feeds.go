package web

import (
	"net/http"

	"studentcenter/internal/adapters/markdown"
	"studentcenter/internal/application/orchestrators"
	"studentcenter/internal/application/projections"
)

func forumDeps() orchestrators.ForumDeps {
	return orchestrators.ForumDeps{Tree: stores.Tree, Now: timeNow}
}

func postDeps() orchestrators.PostDeps {
	return orchestrators.PostDeps{Tree: stores.Tree, Now: timeNow}
}

type forumMessageRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type reactionRequest struct {
	Kind string `json:"kind" validate:"required,oneof=like dislike"`
}

type createPostRequest struct {
	Title string `json:"title" validate:"required,max=120"`
	Body  string `json:"body" validate:"required,max=10000"`
}

type likeResponse struct {
	Liked bool `json:"liked"`
	Count int  `json:"count"`
}

// handleForum lists messages chronologically (GET; ?limit= keeps the last N) or posts one (POST).
func handleForum(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		res, err := projections.QueryForum(r.Context(), feedQuery(r), feedDeps())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)

	case http.MethodPost:
		var req forumMessageRequest
		if err := decodeValid(r, &req); err != nil {
			writeError(w, err)
			return
		}
		m, err := orchestrators.ExecutePostForumMessage(r.Context(), orchestrators.PostForumMessageInput{
			OrgID:  r.PathValue("org"),
			UserID: currentUserID(r),
			Text:   req.Text,
		}, forumDeps())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, projections.ForumMessageView{
			ID:          m.ID,
			Text:        m.Text,
			ContentHTML: markdown.Render(m.Text),
			AuthorID:    m.AuthorID,
			AuthorName:  m.AuthorName,
			CreatedAt:   m.CreatedAt,
			CanDelete:   true,
		})

	default:
		methodNotAllowed(w)
	}
}

// handleForumMessage deletes a message (DELETE, its author or forum staff).
func handleForumMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	err := orchestrators.ExecuteDeleteForumMessage(r.Context(), orchestrators.DeleteForumMessageInput{
		OrgID:     r.PathValue("org"),
		UserID:    currentUserID(r),
		MessageID: r.PathValue("id"),
	}, forumDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReaction toggles the caller's like or dislike on a message.
func handleReaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req reactionRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	reactions, err := orchestrators.ExecuteReactToMessage(r.Context(), orchestrators.ReactInput{
		OrgID:     r.PathValue("org"),
		UserID:    currentUserID(r),
		MessageID: r.PathValue("id"),
		Kind:      req.Kind,
	}, forumDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"likes": len(reactions.Likes), "dislikes": len(reactions.Dislikes)})
}

// handlePosts lists posts newest first (GET) or creates one (POST, staff).
func handlePosts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		res, err := projections.QueryPosts(r.Context(), feedQuery(r), feedDeps())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)

	case http.MethodPost:
		var req createPostRequest
		if err := decodeValid(r, &req); err != nil {
			writeError(w, err)
			return
		}
		p, err := orchestrators.ExecuteCreatePost(r.Context(), orchestrators.CreatePostInput{
			OrgID:  r.PathValue("org"),
			UserID: currentUserID(r),
			Title:  req.Title,
			Body:   req.Body,
		}, postDeps())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, projections.PostView{
			ID:          p.ID,
			Title:       p.Title,
			Body:        p.Body,
			ContentHTML: markdown.Render(p.Body),
			AuthorID:    p.AuthorID,
			AuthorName:  p.AuthorName,
			CreatedAt:   p.CreatedAt,
		})

	default:
		methodNotAllowed(w)
	}
}

// handlePost deletes a post (DELETE).
func handlePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	err := orchestrators.ExecuteDeletePost(r.Context(), orchestrators.DeletePostInput{
		OrgID:  r.PathValue("org"),
		UserID: currentUserID(r),
		PostID: r.PathValue("id"),
	}, postDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePostLike toggles the caller's like.
func handlePostLike(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	liked, count, err := orchestrators.ExecuteTogglePostLike(r.Context(), orchestrators.ToggleLikeInput{
		OrgID:  r.PathValue("org"),
		UserID: currentUserID(r),
		PostID: r.PathValue("id"),
	}, postDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{Liked: liked, Count: count})
}
