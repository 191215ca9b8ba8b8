package core

import "strings"

// Category is one of the fixed financial topics a detected intent maps to.
type Category string

const (
	CashFlowConcern       Category = "cash_flow_concern"
	ExpenseReduction      Category = "expense_reduction"
	InvestmentOpportunity Category = "investment_opportunity"
	RevenueGrowth         Category = "revenue_growth"
	BudgetPlanning        Category = "budget_planning"
	TaxConsideration      Category = "tax_consideration"
	DebtManagement        Category = "debt_management"
)

// Categories lists every category in chart order.
var Categories = []Category{
	CashFlowConcern,
	ExpenseReduction,
	InvestmentOpportunity,
	RevenueGrowth,
	BudgetPlanning,
	TaxConsideration,
	DebtManagement,
}

var categoryLabels = map[Category]string{
	CashFlowConcern:       "Cash Flow",
	ExpenseReduction:      "Expenses",
	InvestmentOpportunity: "Investment",
	RevenueGrowth:         "Revenue",
	BudgetPlanning:        "Budget",
	TaxConsideration:      "Tax",
	DebtManagement:        "Debt",
}

// Keyword rules are evaluated in order; the first match wins.
var categoryRules = []struct {
	keyword  string
	category Category
}{
	{"cash flow", CashFlowConcern},
	{"expense", ExpenseReduction},
	{"investment", InvestmentOpportunity},
	{"revenue", RevenueGrowth},
	{"budget", BudgetPlanning},
	{"tax", TaxConsideration},
	{"debt", DebtManagement},
}

// Label is the short chart label.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// ParseCategory accepts a closed category value in any case.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	_, ok := categoryLabels[c]
	return c, ok
}

// Classify maps a free-text intent description to a category by keyword.
func Classify(description string) (Category, bool) {
	d := strings.ToLower(description)
	if d == "" {
		return "", false
	}
	for _, r := range categoryRules {
		if strings.Contains(d, r.keyword) {
			return r.category, true
		}
	}
	return "", false
}

// ResolveCategory prefers the category supplied by the service and falls back
// to keyword classification of the description.
func (d DetectedIntent) ResolveCategory() (Category, bool) {
	if c, ok := ParseCategory(d.Category); ok {
		return c, true
	}
	return Classify(d.Description)
}
