package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/martruns/martruns/internal/market"
)

func TestRespond_Success(t *testing.T) {
	ok := Response{Success: true}
	cctx := Context{Currency: "$"}

	tests := []struct {
		name string
		cmd  Command
		res  Response
		want string
	}{
		{
			"create with budget",
			Command{Intent: IntentCreateRun, Entity: "Weekly", Amount: f(50)},
			ok,
			`Created "Weekly". Budget set to $50.00. Ready to add items!`,
		},
		{
			"create without budget",
			Command{Intent: IntentCreateRun, Entity: "Weekly"},
			ok,
			`Created "Weekly". Ready to add items!`,
		},
		{
			"add with quantity",
			Command{Intent: IntentAddItem, Entity: "milk", Amount: f(2), Context: "add 2 gallons of milk"},
			ok,
			"Added milk (2 gallons) to your shopping list. What else do you need?",
		},
		{
			"add with unitless quantity",
			Command{Intent: IntentAddItem, Entity: "eggs", Amount: f(6), Context: "add 6 eggs"},
			ok,
			"Added eggs (6 units) to your shopping list. What else do you need?",
		},
		{
			"add plain",
			Command{Intent: IntentAddItem, Entity: "milk", Context: "i need milk"},
			ok,
			"Added milk to your shopping list. What else do you need?",
		},
		{
			"complete",
			Command{Intent: IntentCompleteItem, Entity: "Free-range Chicken"},
			ok,
			"Great! Marked Free-range Chicken as complete. Keep up the good work!",
		},
		{
			"uncomplete",
			Command{Intent: IntentCompleteItem, Entity: "milk"},
			Response{Success: true, Data: &market.Item{Name: "Milk", Completed: false}},
			"Marked Milk as not complete.",
		},
		{
			"remove",
			Command{Intent: IntentRemoveItem, Entity: "kale"},
			ok,
			"Removed kale from your list.",
		},
		{
			"note",
			Command{Intent: IntentAddNote, Entity: "Milk", Note: "get organic"},
			ok,
			`Added note "get organic" to Milk.`,
		},
		{
			"price",
			Command{Intent: IntentSetPrice, Entity: "Milk", Amount: f(3.5)},
			ok,
			"Updated Milk price to $3.50.",
		},
		{
			"budget",
			Command{Intent: IntentSetBudget, Amount: f(50)},
			ok,
			"Budget set to $50.00. Start adding items to your list!",
		},
		{
			"complete run",
			Command{Intent: IntentCompleteRun},
			Response{Success: true, Message: "Completed Weekly"},
			"Shopping run completed! Completed Weekly",
		},
		{
			"list",
			Command{Intent: IntentListItems},
			Response{Success: true, Message: "2 items left: milk, eggs. 0 completed."},
			"2 items left: milk, eggs. 0 completed.",
		},
		{
			"budget status",
			Command{Intent: IntentBudgetStatus},
			Response{Success: true, Message: "Spent: $65.00 of $100.00. Remaining: $35.00"},
			"Spent: $65.00 of $100.00. Remaining: $35.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Respond(tt.cmd, tt.res, cctx))
		})
	}
}

func TestRespond_Currency(t *testing.T) {
	cmd := Command{Intent: IntentSetPrice, Entity: "Brot", Amount: f(2)}
	assert.Equal(t, "Updated Brot price to €2.00.", Respond(cmd, Response{Success: true}, Context{Currency: "€"}))
	assert.Equal(t, "Updated Brot price to $2.00.", Respond(cmd, Response{Success: true}, Context{}))
}

func TestRespond_Failure(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		msg  string
		want string
	}{
		{
			"add",
			Command{Intent: IntentAddItem, Entity: "milk"},
			"database offline",
			`I couldn't add "milk" to your list. database offline`,
		},
		{
			"complete",
			Command{Intent: IntentCompleteItem, Entity: "chicken"},
			`"chicken" not found in your list`,
			`I couldn't find "chicken" in your list. Could you try a different name?`,
		},
		{
			"unknown",
			Command{Intent: IntentUnknown},
			"Unknown command",
			`I didn't understand that command. Try saying something like "add milk to my list" or "create new shopping run".`,
		},
		{
			"generic",
			Command{Intent: IntentRemoveItem, Entity: "kale"},
			`"kale" not found in your list`,
			`Sorry, I couldn't complete that action. "kale" not found in your list`,
		},
		{
			"generic without reason",
			Command{Intent: IntentSetBudget},
			"",
			"Sorry, I couldn't complete that action.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Respond(tt.cmd, Response{Message: tt.msg}, Context{}))
		})
	}
}

func TestQuantityUnit(t *testing.T) {
	assert.Equal(t, "lbs", QuantityUnit("add 2 pounds of rice"))
	assert.Equal(t, "lbs", QuantityUnit("3 lb beef"))
	assert.Equal(t, "gallons", QuantityUnit("a gallon of milk"))
	assert.Equal(t, "oz", QuantityUnit("8 oz cheese"))
	assert.Equal(t, "units", QuantityUnit("6 eggs"))
}
