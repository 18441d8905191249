package web

import (
	"net/http"
	"time"

	"studentcenter/internal/application/orchestrators"
	"studentcenter/internal/application/projections"
)

func financeDeps() orchestrators.FinanceDeps {
	return orchestrators.FinanceDeps{Tree: stores.Tree, AI: stores.AI, Now: timeNow}
}

type transactionRequest struct {
	Type           string    `json:"type" validate:"required,oneof=income expense"`
	Amount         float64   `json:"amount" validate:"gt=0"`
	Description    string    `json:"description" validate:"required,max=200"`
	Category       string    `json:"category" validate:"max=60"`
	Date           time.Time `json:"date"`
	AutoCategorize bool      `json:"autoCategorize"`
}

type categorizeRequest struct {
	Type        string `json:"type" validate:"required,oneof=income expense"`
	Description string `json:"description" validate:"required,max=200"`
}

type visibilityRequest struct {
	Public bool `json:"public"`
}

// handleFinances returns the ledger summary; ?limit= trims the transaction list.
func handleFinances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	res, err := projections.QueryFinanceSummary(r.Context(), projections.FinanceSummaryQuery{
		OrgID:  r.PathValue("org"),
		UserID: currentUserID(r),
		Limit:  queryInt(r, "limit", 0, 500),
	}, projections.FinanceSummaryDeps{Tree: stores.Tree})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleFinanceVisibility lets the owner open or close the ledger to every member.
func handleFinanceVisibility(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req visibilityRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := orchestrators.ExecuteSetFinanceVisibility(r.Context(), orchestrators.SetFinanceVisibilityInput{
		OrgID:  r.PathValue("org"),
		UserID: currentUserID(r),
		Public: req.Public,
	}, permissionDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newFanoutResponse(res))
}

// handleTransactions records a transaction (POST).
func handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req transactionRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	t, err := orchestrators.ExecuteAddTransaction(r.Context(), orchestrators.AddTransactionInput{
		OrgID:          r.PathValue("org"),
		UserID:         currentUserID(r),
		Type:           req.Type,
		Amount:         req.Amount,
		Description:    req.Description,
		Category:       req.Category,
		Date:           req.Date,
		AutoCategorize: req.AutoCategorize,
	}, financeDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// handleTransaction deletes a transaction (DELETE).
func handleTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	err := orchestrators.ExecuteDeleteTransaction(r.Context(), orchestrators.DeleteTransactionInput{
		OrgID:         r.PathValue("org"),
		UserID:        currentUserID(r),
		TransactionID: r.PathValue("id"),
	}, financeDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCategorize suggests a category without recording anything.
func handleCategorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req categorizeRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	category, err := orchestrators.ExecuteCategorizeTransaction(r.Context(), orchestrators.CategorizeTransactionInput{
		OrgID:       r.PathValue("org"),
		UserID:      currentUserID(r),
		Type:        req.Type,
		Description: req.Description,
	}, financeDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"category": category})
}

// handleFinanceProjection returns a generated analysis. Generation failures answer 502.
func handleFinanceProjection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	p, err := orchestrators.ExecuteFinanceProjection(r.Context(), orchestrators.FinanceProjectionInput{
		OrgID:  r.PathValue("org"),
		UserID: currentUserID(r),
	}, financeDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
