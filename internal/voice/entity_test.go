package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martruns/martruns/internal/market"
)

func TestCleanItemName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"some milk", "milk"},
		{"the bread", "bread"},
		{"an apple", "apple"},
		{"2 pounds of rice", "rice"},
		{"3 lbs apples", "apples"},
		{"1 gallon whole milk", "whole milk"},
		{"12 oz cheddar", "cheddar"},
		{"  lots   of   space ", "lots of space"},
		{"", ""},
		{"cream of wheat", "cream of wheat"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanItemName(tt.in), "CleanItemName(%q)", tt.in)
	}
}

// Digit runs are dropped wherever they appear, including inside names.
func TestCleanItemName_DigitsAreLossy(t *testing.T) {
	assert.Equal(t, "kg tomatoes", CleanItemName("2kg tomatoes"))
	assert.Equal(t, "rice (kg)", CleanItemName("rice (5kg)"))
	assert.Equal(t, "up", CleanItemName("7up"))
}

func TestExtractQuantity(t *testing.T) {
	q := ExtractQuantity("2 pounds of rice")
	require.NotNil(t, q)
	assert.Equal(t, 2.0, *q)

	q = ExtractQuantity("1.5gal milk")
	require.NotNil(t, q)
	assert.Equal(t, 1.5, *q)

	q = ExtractQuantity("6 eggs")
	require.NotNil(t, q)
	assert.Equal(t, 6.0, *q)

	assert.Nil(t, ExtractQuantity("milk"))
	assert.Nil(t, ExtractQuantity(""))
}

func TestResolveItemName(t *testing.T) {
	run := runWith("Fresh Tomatoes", "Milk", "Chicken Breast", "Chicken Stock")

	tests := []struct {
		entity string
		want   string
	}{
		{"milk", "Milk"},
		{"MILK", "Milk"},
		{"tomatoes", "Fresh Tomatoes"},
		{"fresh tomatoes please", "Fresh Tomatoes"},
		{"kale", "kale"},
		{"", ""},
		// Ties go to the first item in list order.
		{"chicken", "Chicken Breast"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveItemName(tt.entity, run), "ResolveItemName(%q)", tt.entity)
	}
}

func TestResolveItemName_NoRun(t *testing.T) {
	assert.Equal(t, "kale", ResolveItemName("kale", nil))
	assert.Equal(t, "kale", ResolveItemName("kale", &market.Run{}))
}

func TestFindItem_ExactBeatsSubstring(t *testing.T) {
	items := []market.Item{{ID: "1", Name: "Oat Milk"}, {ID: "2", Name: "milk"}}
	it, ok := FindItem(items, "Milk")
	require.True(t, ok)
	assert.Equal(t, "2", it.ID)

	// The returned pointer refers into the slice.
	it.Note = "x"
	assert.Equal(t, "x", items[1].Note)

	_, ok = FindItem(items, "")
	assert.False(t, ok)
}

func TestScore(t *testing.T) {
	cctx := Context{CurrentRun: runWith("Milk", "Eggs")}

	tests := []struct {
		name string
		cmd  Command
		want float64
	}{
		{"base", Command{Intent: IntentCompleteRun}, 0.8},
		{"known item", Command{Intent: IntentCompleteItem, Entity: "milk"}, 0.95},
		{"short entity", Command{Intent: IntentRemoveItem, Entity: "ox"}, 0.6},
		{"amount", Command{Intent: IntentSetBudget, Amount: f(20)}, 0.9},
		{"zero amount", Command{Intent: IntentSetBudget, Amount: f(0)}, 0.8},
		{"clamped high", Command{Intent: IntentSetPrice, Entity: "eggs", Amount: f(3)}, 1.0},
		{"unknown", Command{Intent: IntentUnknown, Entity: "milk"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.cmd, cctx), 1e-9)
		})
	}
}

func TestScore_ShortKnownEntity(t *testing.T) {
	// "eg" is inside "Eggs" (+0.15) but short (-0.2).
	got := Score(Command{Intent: IntentCompleteItem, Entity: "eg"}, Context{CurrentRun: runWith("Eggs")})
	assert.InDelta(t, 0.75, got, 1e-9)
}

func TestSuggestions(t *testing.T) {
	run := runWith("Milk", "Eggs", "Bread", "Jam")
	run.Items[0].Completed = true
	cctx := Context{CurrentRun: run}

	assert.Equal(t, []string{"add milk to my list", "add bread", "add 2 pounds of rice"}, Suggestions("Add", cctx))
	assert.Equal(t, []string{"complete Eggs", "complete Bread", "complete Jam"}, Suggestions("complete", cctx))
	assert.Empty(t, Suggestions("complete", Context{}))
	assert.Empty(t, Suggestions("hello", cctx))
}
