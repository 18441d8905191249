package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"studentcenter/internal/adapters/ai"
	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/finance"
)

// financeManageRule gates every write to the finances feature.
const financeManageRule = feature.RuleOwnerOrAdminPlusIfEnabled

// FinanceDeps holds dependencies for the finance orchestrators.
type FinanceDeps struct {
	Tree tree.Store
	AI   ai.Generator
	Now  func() time.Time
}

// LoadCategories returns the stored categories, or the defaults before initialization.
func LoadCategories(ctx context.Context, r gate.Reader, orgID string) ([]string, error) {
	snap, err := r.Get(ctx, paths.Records(orgID, feature.Finances, "categories"))
	if err != nil {
		return nil, err
	}
	var cats []string
	if snap.Exists() {
		if err := snap.Decode(&cats); err != nil {
			return nil, err
		}
	}
	if len(cats) == 0 {
		cats = finance.DefaultCategories
	}
	return cats, nil
}

// LoadTransactions reads every transaction of an organization, newest first.
func LoadTransactions(ctx context.Context, r gate.Reader, orgID string) ([]finance.Transaction, error) {
	snap, err := r.Get(ctx, paths.Records(orgID, feature.Finances, "transactions"))
	if err != nil {
		return nil, err
	}
	txs := make([]finance.Transaction, 0, len(snap.Keys()))
	for _, child := range snap.Children() {
		var t finance.Transaction
		if err := child.Decode(&t); err != nil {
			return nil, err
		}
		t.ID = child.Key()
		txs = append(txs, t)
	}
	finance.ByDateDesc(txs)
	return txs, nil
}

// --- Add Transaction ---

// AddTransactionInput carries input for recording an income or expense.
type AddTransactionInput struct {
	OrgID          string
	UserID         string
	Type           string
	Amount         float64
	Description    string
	Category       string
	Date           time.Time
	AutoCategorize bool // ask the generator when Category is empty
}

// ExecuteAddTransaction records a transaction under a fresh key.
// PRE: caller is owner, finance manager, or admin-plus with adminPlusCanManage
// POST: transaction stored with a category from the center's list
func ExecuteAddTransaction(ctx context.Context, input AddTransactionInput, deps FinanceDeps) (finance.Transaction, error) {
	if _, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Finances, input.UserID, financeManageRule); err != nil {
		return finance.Transaction{}, err
	}

	now := deps.Now()
	t := finance.Transaction{
		Type:        input.Type,
		Amount:      input.Amount,
		Description: strings.TrimSpace(input.Description),
		Date:        input.Date,
		AuthorID:    input.UserID,
		CreatedAt:   now,
	}
	if t.Date.IsZero() {
		t.Date = now
	}
	if err := t.Validate(); err != nil {
		return finance.Transaction{}, err
	}

	categories, err := LoadCategories(ctx, deps.Tree, input.OrgID)
	if err != nil {
		return finance.Transaction{}, err
	}
	switch {
	case input.Category != "":
		t.Category = finance.MatchCategory(input.Category, categories)
	case input.AutoCategorize:
		t.Category = categorize(ctx, deps.AI, t.Type, t.Description, categories)
	default:
		t.Category = finance.FallbackCategory
	}

	key, err := deps.Tree.Push(ctx, paths.Records(input.OrgID, feature.Finances, "transactions"), t)
	if err != nil {
		return finance.Transaction{}, err
	}
	t.ID = key

	slog.Info("finance_event", "event", "transaction_added", "org_id", input.OrgID, "transaction_id", key,
		"type", t.Type, "category", t.Category, "author", input.UserID)
	return t, nil
}

// --- Delete Transaction ---

// DeleteTransactionInput carries input for removing a transaction.
type DeleteTransactionInput struct {
	OrgID         string
	UserID        string
	TransactionID string
}

// ExecuteDeleteTransaction removes one transaction.
// POST: returns finance.ErrNotFound when the transaction does not exist
func ExecuteDeleteTransaction(ctx context.Context, input DeleteTransactionInput, deps FinanceDeps) error {
	if err := paths.CheckIDs(input.TransactionID); err != nil {
		return err
	}
	if _, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Finances, input.UserID, financeManageRule); err != nil {
		return err
	}
	p := paths.Record(input.OrgID, feature.Finances, "transactions", input.TransactionID)
	ok, err := deps.Tree.Exists(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return finance.ErrNotFound
	}
	if err := deps.Tree.Delete(ctx, p); err != nil {
		return err
	}
	slog.Info("finance_event", "event", "transaction_deleted", "org_id", input.OrgID, "transaction_id", input.TransactionID, "by", input.UserID)
	return nil
}

// --- Categorize Transaction ---

// CategorizeTransactionInput carries input for suggesting a category.
type CategorizeTransactionInput struct {
	OrgID       string
	UserID      string
	Type        string
	Description string
}

// ExecuteCategorizeTransaction suggests one of the center's categories for a description.
// POST: always returns a category from the list; FallbackCategory when generation fails
func ExecuteCategorizeTransaction(ctx context.Context, input CategorizeTransactionInput, deps FinanceDeps) (string, error) {
	if _, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Finances, input.UserID, financeManageRule); err != nil {
		return "", err
	}
	if strings.TrimSpace(input.Description) == "" {
		return "", finance.ErrEmptyDescription
	}
	categories, err := LoadCategories(ctx, deps.Tree, input.OrgID)
	if err != nil {
		return "", err
	}
	return categorize(ctx, deps.AI, input.Type, input.Description, categories), nil
}

type categoryChoice struct {
	Category string `json:"category"`
}

func categorize(ctx context.Context, gen ai.Generator, txType, description string, categories []string) string {
	prompt := fmt.Sprintf("Clasifica este movimiento (%s) de la tesorería de un centro de estudiantes en una de estas categorías: %s.\nDescripción: %s",
		txType, strings.Join(categories, ", "), description)
	schema := objectSchema(map[string]any{
		"category": map[string]any{"type": "string", "enum": categories},
	}, "category")
	choice, err := generateStructured(ctx, gen, "categorize_transaction", prompt, schema, func(c *categoryChoice) error {
		if strings.TrimSpace(c.Category) == "" {
			return finance.ErrEmptyDescription
		}
		return nil
	})
	if err != nil {
		return finance.FallbackCategory
	}
	return finance.MatchCategory(choice.Category, categories)
}

// --- Finance Projection ---

// FinanceProjectionInput carries input for the generated finance narrative.
type FinanceProjectionInput struct {
	OrgID  string
	UserID string
}

// maxProjectionTransactions caps how much history goes into the prompt.
const maxProjectionTransactions = 50

// ExecuteFinanceProjection asks the generator for an analysis of the center's finances.
// There is no fallback: a failed generation returns ErrGenerationFailed.
// PRE: caller may read finances
func ExecuteFinanceProjection(ctx context.Context, input FinanceProjectionInput, deps FinanceDeps) (finance.Projection, error) {
	g, err := gate.Load(ctx, deps.Tree, input.OrgID, feature.Finances, input.UserID)
	if err != nil {
		return finance.Projection{}, err
	}
	if err := g.CheckRead(); err != nil {
		return finance.Projection{}, err
	}

	txs, err := LoadTransactions(ctx, deps.Tree, input.OrgID)
	if err != nil {
		return finance.Projection{}, err
	}
	summary := finance.Summarize(txs)
	recent := txs
	if len(recent) > maxProjectionTransactions {
		recent = recent[:maxProjectionTransactions]
	}
	data, err := json.Marshal(map[string]any{"summary": summary, "recent": recent})
	if err != nil {
		return finance.Projection{}, err
	}

	prompt := "Analiza las finanzas de este centro de estudiantes y proyecta su evolución. " +
		"Incluye recomendaciones y alertas concretas.\nDatos: " + string(data)
	schema := objectSchema(map[string]any{
		"analysis":        stringSchema(),
		"recommendations": arraySchema(stringSchema()),
		"alerts":          arraySchema(stringSchema()),
	}, "analysis", "recommendations", "alerts")
	return generateStructured(ctx, deps.AI, "finance_projection", prompt, schema, (*finance.Projection).Validate)
}
