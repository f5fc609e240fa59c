// Package voice turns free-form shopping utterances into structured commands
// and turns dispatch outcomes back into spoken confirmations.
//
// Parsing is pure: a Parser holds only an immutable pattern Library and a
// clock, so it is safe to call Parse from many goroutines at once.
package voice

import "github.com/martruns/martruns/internal/market"

// Intent classifies what an utterance asks for.
type Intent string

const (
	IntentCreateRun    Intent = "create_run"
	IntentAddItem      Intent = "add_item"
	IntentCompleteItem Intent = "complete_item"
	IntentRemoveItem   Intent = "remove_item"
	IntentAddNote      Intent = "add_note"
	IntentSetPrice     Intent = "set_price"
	IntentSetBudget    Intent = "set_budget"
	IntentCompleteRun  Intent = "complete_run"
	IntentListItems    Intent = "list_items"
	IntentBudgetStatus Intent = "budget_status"
	IntentUnknown      Intent = "unknown"
)

// Intents is the order in which intents are tried. Earlier intents win when
// several could match the same text.
var Intents = []Intent{
	IntentCreateRun,
	IntentAddItem,
	IntentCompleteItem,
	IntentRemoveItem,
	IntentAddNote,
	IntentSetPrice,
	IntentSetBudget,
	IntentCompleteRun,
	IntentListItems,
	IntentBudgetStatus,
}

// Valid reports whether i is one of the declared intents or unknown.
func (i Intent) Valid() bool {
	if i == IntentUnknown {
		return true
	}
	for _, known := range Intents {
		if i == known {
			return true
		}
	}
	return false
}

// Command is the structured form of one utterance.
type Command struct {
	Intent Intent `json:"intent"`

	// Entity is an item name or run title
	Entity string `json:"entity,omitempty"`

	// Amount is a price, budget or quantity
	Amount *float64 `json:"amount,omitempty"`

	Note string `json:"note,omitempty"`

	// Context is the normalized input text
	Context string `json:"context"`

	// Confidence is 0 for unknown commands and within [0.1, 1.0] otherwise
	Confidence float64 `json:"confidence"`
}

// Page is the UI location the utterance was spoken from.
type Page string

const (
	PageHome      Page = "home"
	PageAnalytics Page = "analytics"
	PageProfile   Page = "profile"
)

// Context is a read-only snapshot of application state taken for a single
// parse or dispatch call.
type Context struct {
	// CurrentRun is nil when there is no active run
	CurrentRun *market.Run

	CurrentPage Page

	// RecentCommands are the session's prior commands, oldest first
	RecentCommands []Command

	// Currency is the symbol used verbatim in generated text
	Currency string
}

// Response is the normalized outcome of dispatching a command.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (c Context) items() []market.Item {
	if c.CurrentRun == nil {
		return nil
	}
	return c.CurrentRun.Items
}

func (c Context) currency() string {
	if c.Currency == "" {
		return "$"
	}
	return c.Currency
}
