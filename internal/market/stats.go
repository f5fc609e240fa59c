package market

import "fmt"

// Stats are the aggregate figures shown for a run.
type Stats struct {
	TotalItems     int     `json:"total_items"`
	CompletedItems int     `json:"completed_items"`
	Progress       float64 `json:"progress"`
	TotalEstimated float64 `json:"total_estimated"`
	TotalSpent     float64 `json:"total_spent"`
	SavedAmount    float64 `json:"saved_amount"`

	// Budget figures are only set when the run has a budget
	Budget          *float64 `json:"budget,omitempty"`
	BudgetRemaining *float64 `json:"budget_remaining,omitempty"`
	BudgetExceeded  bool     `json:"budget_exceeded,omitempty"`
	BudgetUsage     *float64 `json:"budget_usage,omitempty"`
}

// ComputeStats derives Stats from a run's items. A nil run yields zero stats.
// Spent uses the actual price when known, otherwise the estimate.
func ComputeStats(r *Run) Stats {
	var s Stats
	if r == nil {
		return s
	}

	for _, it := range r.Items {
		s.TotalItems++
		if it.Completed {
			s.CompletedItems++
		}
		if it.EstimatedPrice != nil {
			s.TotalEstimated += *it.EstimatedPrice
		}
		switch {
		case it.ActualPrice != nil:
			s.TotalSpent += *it.ActualPrice
		case it.EstimatedPrice != nil:
			s.TotalSpent += *it.EstimatedPrice
		}
	}
	if s.TotalItems > 0 {
		s.Progress = float64(s.CompletedItems) / float64(s.TotalItems) * 100
	}
	s.SavedAmount = s.TotalEstimated - s.TotalSpent

	if r.Budget != nil {
		budget := *r.Budget
		remaining := budget - s.TotalEstimated
		usage := 0.0
		if budget > 0 {
			usage = s.TotalEstimated / budget * 100
		}
		s.Budget = &budget
		s.BudgetRemaining = &remaining
		s.BudgetExceeded = s.TotalEstimated > budget
		s.BudgetUsage = &usage
	}
	return s
}

// Totals are the lifetime figures across every run.
type Totals struct {
	TotalRuns      int     `json:"total_runs"`
	CompletedRuns  int     `json:"completed_runs"`
	TotalSpent     float64 `json:"total_spent"`
	TotalSaved     float64 `json:"total_saved"`
	CompletedItems int     `json:"completed_items"`
}

// ComputeTotals sums per-run stats over runs.
func ComputeTotals(runs []Run) Totals {
	var t Totals
	for i := range runs {
		s := ComputeStats(&runs[i])
		t.TotalRuns++
		if runs[i].Status == StatusCompleted {
			t.CompletedRuns++
		}
		t.TotalSpent += s.TotalSpent
		t.TotalSaved += s.SavedAmount
		t.CompletedItems += s.CompletedItems
	}
	return t
}

// FormatMoney renders amount with the currency symbol and two decimals.
// An empty symbol defaults to "$".
func FormatMoney(currency string, amount float64) string {
	if currency == "" {
		currency = "$"
	}
	return fmt.Sprintf("%s%.2f", currency, amount)
}
