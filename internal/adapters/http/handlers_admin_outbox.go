package web

import (
	"net/http"
	"time"

	"studentcenter/internal/adapters/email"
	"studentcenter/internal/adapters/http/middleware"
	"studentcenter/internal/application/orchestrators"
	"studentcenter/internal/domain/outbox"
)

// requireOperator answers 403 unless the session email is a configured operator.
func requireOperator(w http.ResponseWriter, r *http.Request) bool {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok || !appConfig.IsOperator(sess.Email) {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "operator access required"})
		return false
	}
	return true
}

type outboxEntryView struct {
	ID              string    `json:"id"`
	ActionType      string    `json:"actionType"`
	Status          string    `json:"status"`
	Attempts        int       `json:"attempts"`
	MaxAttempts     int       `json:"maxAttempts"`
	LastAttemptedAt time.Time `json:"lastAttemptedAt,omitzero"`
	CreatedAt       time.Time `json:"createdAt"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
}

// handleAdminOutbox lets operators inspect queued emails and trigger a delivery pass.
// GET lists entries (?status=failed|pending, ?limit=) with counts per status.
// POST runs one retry pass immediately.
func handleAdminOutbox(w http.ResponseWriter, r *http.Request) {
	if !requireOperator(w, r) {
		return
	}
	if stores.Outbox == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "outbox is not configured"})
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		limit := queryInt(r, "limit", 50, 100)
		var (
			entries []outbox.Entry
			err     error
		)
		if r.URL.Query().Get("status") == outbox.StatusPending {
			entries, err = stores.Outbox.ListPending(ctx, limit)
		} else {
			entries, err = stores.Outbox.ListFailed(ctx, limit)
		}
		if err != nil {
			internalError(w, err)
			return
		}
		counts, err := stores.Outbox.CountByStatus(ctx)
		if err != nil {
			internalError(w, err)
			return
		}
		// Payloads carry recipient addresses and bodies; they stay server-side.
		views := make([]outboxEntryView, 0, len(entries))
		for _, e := range entries {
			views = append(views, outboxEntryView{
				ID:              e.ID,
				ActionType:      e.ActionType,
				Status:          e.Status,
				Attempts:        e.Attempts,
				MaxAttempts:     e.MaxAttempts,
				LastAttemptedAt: e.LastAttemptedAt,
				CreatedAt:       e.CreatedAt,
				ErrorMessage:    e.ErrorMessage,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": views, "counts": counts})

	case http.MethodPost:
		sender := stores.Sender
		if sender == nil {
			sender = email.NewNoopSender()
		}
		res, err := orchestrators.ExecuteOutboxRetry(ctx, orchestrators.OutboxRetryDeps{
			OutboxStore: stores.Outbox,
			Sender:      sender,
			Now:         timeNow,
		})
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{
			"processed": res.Processed,
			"succeeded": res.Succeeded,
			"failed":    res.Failed,
			"skipped":   res.Skipped,
		})

	default:
		methodNotAllowed(w)
	}
}

// handleAdminPerf returns request and query timings. ?minutes= sets the window, default 15.
func handleAdminPerf(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !requireOperator(w, r) {
		return
	}
	if perfCollector == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "perf collection is disabled"})
		return
	}
	minutes := queryInt(r, "minutes", 15, 24*60)
	since := timeNow().Add(-time.Duration(minutes) * time.Minute)
	writeJSON(w, http.StatusOK, perfCollector.Snapshot(since, queryInt(r, "top", 10, 50)))
}
