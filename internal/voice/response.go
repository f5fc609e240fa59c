package voice

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/martruns/martruns/internal/market"
)

// Respond renders the spoken reply for cmd after it was dispatched with
// result res. It never fails.
func Respond(cmd Command, res Response, cctx Context) string {
	if !res.Success {
		return respondFailure(cmd, res.Message)
	}

	cur := cctx.currency()
	switch cmd.Intent {
	case IntentCreateRun:
		budget := ""
		if cmd.Amount != nil && *cmd.Amount > 0 {
			budget = fmt.Sprintf("Budget set to %s. ", market.FormatMoney(cur, *cmd.Amount))
		}
		return fmt.Sprintf("Created %q. %sReady to add items!", cmd.Entity, budget)

	case IntentAddItem:
		qty := ""
		if cmd.Amount != nil && *cmd.Amount > 0 {
			qty = fmt.Sprintf(" (%s %s)", strconv.FormatFloat(*cmd.Amount, 'f', -1, 64), QuantityUnit(cmd.Context))
		}
		return fmt.Sprintf("Added %s%s to your shopping list. What else do you need?", cmd.Entity, qty)

	case IntentCompleteItem:
		if it, ok := res.Data.(*market.Item); ok && it != nil && !it.Completed {
			return fmt.Sprintf("Marked %s as not complete.", it.Name)
		}
		return fmt.Sprintf("Great! Marked %s as complete. Keep up the good work!", cmd.Entity)

	case IntentRemoveItem:
		return fmt.Sprintf("Removed %s from your list.", cmd.Entity)

	case IntentAddNote:
		return fmt.Sprintf("Added note %q to %s.", cmd.Note, cmd.Entity)

	case IntentSetPrice:
		return fmt.Sprintf("Updated %s price to %s.", cmd.Entity, market.FormatMoney(cur, amountOf(cmd)))

	case IntentSetBudget:
		return fmt.Sprintf("Budget set to %s. Start adding items to your list!", market.FormatMoney(cur, amountOf(cmd)))

	case IntentCompleteRun:
		return strings.TrimSpace("Shopping run completed! " + res.Message)

	case IntentListItems, IntentBudgetStatus:
		return res.Message
	}

	if res.Message != "" {
		return res.Message
	}
	return "Command completed successfully."
}

func respondFailure(cmd Command, reason string) string {
	switch cmd.Intent {
	case IntentAddItem:
		return strings.TrimSpace(fmt.Sprintf("I couldn't add %q to your list. %s", cmd.Entity, reason))
	case IntentCompleteItem:
		return fmt.Sprintf("I couldn't find %q in your list. Could you try a different name?", cmd.Entity)
	case IntentUnknown:
		return `I didn't understand that command. Try saying something like "add milk to my list" or "create new shopping run".`
	}
	return strings.TrimSpace("Sorry, I couldn't complete that action. " + reason)
}

// QuantityUnit guesses the unit label for a quantity from the utterance text.
func QuantityUnit(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "pound"), strings.Contains(t, "lb"):
		return "lbs"
	case strings.Contains(t, "gallon"), strings.Contains(t, "gal"):
		return "gallons"
	case strings.Contains(t, "ounce"), strings.Contains(t, "oz"):
		return "oz"
	}
	return "units"
}

func amountOf(cmd Command) float64 {
	if cmd.Amount == nil {
		return 0
	}
	return *cmd.Amount
}
