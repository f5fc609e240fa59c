package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(v float64) *float64 { return &v }

func TestStatus_Active(t *testing.T) {
	assert.True(t, StatusPlanning.Active())
	assert.True(t, StatusShopping.Active())
	assert.False(t, StatusCompleted.Active())
}

func TestDefaultTitle(t *testing.T) {
	now := time.Date(2026, time.March, 7, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "Market Run - 3/7/2026", DefaultTitle(now))
}

func TestComputeStats(t *testing.T) {
	run := &Run{
		Budget: price(100),
		Items: []Item{
			{Name: "milk", EstimatedPrice: price(40), Completed: true, ActualPrice: price(35)},
			{Name: "bread", EstimatedPrice: price(25)},
			{Name: "salt"},
		},
	}

	s := ComputeStats(run)
	assert.Equal(t, 3, s.TotalItems)
	assert.Equal(t, 1, s.CompletedItems)
	assert.InDelta(t, 33.333, s.Progress, 0.01)
	assert.InDelta(t, 65, s.TotalEstimated, 1e-9)
	assert.InDelta(t, 60, s.TotalSpent, 1e-9)
	assert.InDelta(t, 5, s.SavedAmount, 1e-9)
	require.NotNil(t, s.BudgetRemaining)
	assert.InDelta(t, 35, *s.BudgetRemaining, 1e-9)
	assert.False(t, s.BudgetExceeded)
	require.NotNil(t, s.BudgetUsage)
	assert.InDelta(t, 65, *s.BudgetUsage, 1e-9)
}

func TestComputeStats_NoBudget(t *testing.T) {
	s := ComputeStats(&Run{Items: []Item{{Name: "eggs", EstimatedPrice: price(3)}}})
	assert.Nil(t, s.Budget)
	assert.Nil(t, s.BudgetRemaining)
	assert.False(t, s.BudgetExceeded)
}

func TestComputeStats_NilRun(t *testing.T) {
	assert.Equal(t, Stats{}, ComputeStats(nil))
}

func TestComputeStats_OverBudget(t *testing.T) {
	s := ComputeStats(&Run{Budget: price(10), Items: []Item{{Name: "steak", EstimatedPrice: price(25)}}})
	assert.True(t, s.BudgetExceeded)
	assert.InDelta(t, -15, *s.BudgetRemaining, 1e-9)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$35.00", FormatMoney("$", 35))
	assert.Equal(t, "€3.50", FormatMoney("€", 3.5))
	assert.Equal(t, "$1.00", FormatMoney("", 1))
}

func TestRun_IncompleteAndItemByID(t *testing.T) {
	run := &Run{Items: []Item{
		{ID: "1", Name: "a", Completed: true},
		{ID: "2", Name: "b"},
	}}

	inc := run.Incomplete()
	require.Len(t, inc, 1)
	assert.Equal(t, "b", inc[0].Name)

	it, ok := run.ItemByID("1")
	require.True(t, ok)
	assert.Equal(t, "a", it.Name)

	_, ok = run.ItemByID("9")
	assert.False(t, ok)
}

func TestItemPatch_Apply(t *testing.T) {
	est := 2.5
	it := Item{Name: "Milk", Category: DefaultCategory, EstimatedPrice: &est}
	actual := 3.25
	done := true
	note := "organic"
	ItemPatch{ActualPrice: &actual, Completed: &done, Note: &note}.Apply(&it)

	assert.Equal(t, "Milk", it.Name)
	assert.Equal(t, 2.5, *it.EstimatedPrice)
	require.NotNil(t, it.ActualPrice)
	assert.Equal(t, 3.25, *it.ActualPrice)
	assert.True(t, it.Completed)
	assert.Equal(t, "organic", it.Note)

	actual = 9
	assert.Equal(t, 3.25, *it.ActualPrice, "patch values are copied")
}

func TestRunPatch_Apply(t *testing.T) {
	r := Run{Title: "Weekly", Status: StatusPlanning}
	budget := 80.0
	status := StatusShopping
	RunPatch{Budget: &budget, Status: &status}.Apply(&r)

	assert.Equal(t, "Weekly", r.Title)
	assert.Equal(t, StatusShopping, r.Status)
	require.NotNil(t, r.Budget)
	assert.Equal(t, 80.0, *r.Budget)
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusCompleted.Valid())
	assert.False(t, Status("archived").Valid())
}

func TestComputeTotals(t *testing.T) {
	runs := []Run{
		{Status: StatusCompleted, Items: []Item{
			{EstimatedPrice: price(10), ActualPrice: price(8), Completed: true},
			{EstimatedPrice: price(5), Completed: true},
		}},
		{Status: StatusPlanning, Items: []Item{{EstimatedPrice: price(3)}}},
	}

	got := ComputeTotals(runs)
	assert.Equal(t, Totals{
		TotalRuns:      2,
		CompletedRuns:  1,
		TotalSpent:     16,
		TotalSaved:     2,
		CompletedItems: 2,
	}, got)
}
