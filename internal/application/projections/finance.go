package projections

import (
	"context"

	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/orchestrators"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/finance"
)

// FinanceSummaryQuery carries query parameters.
type FinanceSummaryQuery struct {
	OrgID  string
	UserID string
	Limit  int // transactions returned; 0 returns all
}

// FinanceSummaryResult carries the query result.
type FinanceSummaryResult struct {
	Summary          finance.Summary       `json:"summary"`
	Transactions     []finance.Transaction `json:"transactions"`
	Categories       []string              `json:"categories"`
	PublicVisibility bool                  `json:"publicVisibility"`
	CanManage        bool                  `json:"canManage"`
}

// FinanceSummaryDeps holds dependencies for QueryFinanceSummary.
type FinanceSummaryDeps struct {
	Tree gate.Reader
}

// QueryFinanceSummary totals the ledger and returns the newest transactions.
// PRE: caller may read finances (public, or staff that can see them)
// POST: Summary covers every transaction regardless of Limit
func QueryFinanceSummary(ctx context.Context, query FinanceSummaryQuery, deps FinanceSummaryDeps) (FinanceSummaryResult, error) {
	g, err := gate.Load(ctx, deps.Tree, query.OrgID, feature.Finances, query.UserID)
	if err != nil {
		return FinanceSummaryResult{}, err
	}
	if err := g.CheckRead(); err != nil {
		return FinanceSummaryResult{}, err
	}
	txs, err := orchestrators.LoadTransactions(ctx, deps.Tree, query.OrgID)
	if err != nil {
		return FinanceSummaryResult{}, err
	}
	cats, err := orchestrators.LoadCategories(ctx, deps.Tree, query.OrgID)
	if err != nil {
		return FinanceSummaryResult{}, err
	}
	res := FinanceSummaryResult{
		Summary:          finance.Summarize(txs),
		Transactions:     txs,
		Categories:       cats,
		PublicVisibility: g.Permissions.PublicVisibility,
		CanManage:        g.Allows(feature.ManageRule(feature.Finances)),
	}
	if query.Limit > 0 && len(res.Transactions) > query.Limit {
		res.Transactions = res.Transactions[:query.Limit]
	}
	return res, nil
}
