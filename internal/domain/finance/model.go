package finance

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"
)

// Transaction types
const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

// FallbackCategory is used when no category is given or categorization fails.
const FallbackCategory = "Varios"

// MaxDescriptionLength bounds transaction descriptions.
const MaxDescriptionLength = 200

// DefaultCategories is written by the lazy initializer.
var DefaultCategories = []string{"Cuotas", "Eventos", "Donaciones", "Materiales", "Servicios", FallbackCategory}

// Domain errors
var (
	ErrInvalidType      = errors.New("transaction type must be one of: income, expense")
	ErrInvalidAmount    = errors.New("amount must be a positive finite number")
	ErrEmptyDescription = errors.New("description cannot be empty")
	ErrDescriptionLong  = errors.New("description cannot exceed 200 characters")
	ErrEmptyAnalysis    = errors.New("projection analysis cannot be empty")
	ErrNotFound         = errors.New("transaction not found")
)

// Transaction is one record under organizations/{orgId}/finances/transactions.
type Transaction struct {
	ID          string    `json:"id,omitempty"`
	Type        string    `json:"type"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	AuthorID    string    `json:"authorId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Validate checks if the Transaction has valid data.
// PRE: Transaction struct is populated
// POST: Returns nil if valid, error otherwise
func (t *Transaction) Validate() error {
	if t.Type != TypeIncome && t.Type != TypeExpense {
		return ErrInvalidType
	}
	if t.Amount <= 0 || math.IsInf(t.Amount, 0) || math.IsNaN(t.Amount) {
		return ErrInvalidAmount
	}
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		return ErrEmptyDescription
	}
	if len(desc) > MaxDescriptionLength {
		return ErrDescriptionLong
	}
	return nil
}

// Signed returns the amount with expenses negative.
func (t *Transaction) Signed() float64 {
	if t.Type == TypeExpense {
		return -t.Amount
	}
	return t.Amount
}

// MatchCategory maps a free-form candidate onto one of categories,
// case-insensitively, and falls back to FallbackCategory.
func MatchCategory(candidate string, categories []string) string {
	candidate = strings.TrimSpace(candidate)
	for _, c := range categories {
		if strings.EqualFold(c, candidate) {
			return c
		}
	}
	return FallbackCategory
}

// Summary aggregates a set of transactions.
type Summary struct {
	Income     float64            `json:"income"`
	Expense    float64            `json:"expense"`
	Balance    float64            `json:"balance"`
	Count      int                `json:"count"`
	ByCategory map[string]float64 `json:"byCategory"`
}

// Summarize totals income, expense and per-category signed amounts.
func Summarize(txs []Transaction) Summary {
	s := Summary{ByCategory: map[string]float64{}}
	for _, t := range txs {
		switch t.Type {
		case TypeIncome:
			s.Income += t.Amount
		case TypeExpense:
			s.Expense += t.Amount
		default:
			continue
		}
		cat := t.Category
		if cat == "" {
			cat = FallbackCategory
		}
		s.ByCategory[cat] += t.Signed()
		s.Count++
	}
	s.Balance = s.Income - s.Expense
	return s
}

// ByDateDesc sorts transactions newest first, ties broken by ID descending.
func ByDateDesc(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].ID > txs[j].ID
	})
}

// Projection is the generated finance narrative.
type Projection struct {
	Analysis        string   `json:"analysis"`
	Recommendations []string `json:"recommendations"`
	Alerts          []string `json:"alerts"`
}

// Validate checks the generated shape.
func (p *Projection) Validate() error {
	if strings.TrimSpace(p.Analysis) == "" {
		return ErrEmptyAnalysis
	}
	if p.Recommendations == nil {
		p.Recommendations = []string{}
	}
	if p.Alerts == nil {
		p.Alerts = []string{}
	}
	return nil
}
