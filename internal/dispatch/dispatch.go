// Package dispatch applies parsed voice commands to the shopping list.
//
// The Dispatcher owns no state. It reads the current run from a Store at
// dispatch time, re-resolves the command's entity against it, and issues at
// most one mutation per command. Every outcome, including store failures, is
// returned as a voice.Response.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	mrerrors "github.com/martruns/martruns/internal/errors"
	"github.com/martruns/martruns/internal/logging"
	"github.com/martruns/martruns/internal/market"
	"github.com/martruns/martruns/internal/voice"
)

// Store is the persistence port the dispatcher mutates through.
type Store interface {
	// CurrentRun returns the active run, or nil when there is none.
	CurrentRun(ctx context.Context) (*market.Run, error)
	CreateRun(ctx context.Context, in market.NewRun) (string, error)
	// AddItem adds to the active run and returns the new item's ID.
	AddItem(ctx context.Context, in market.NewItem) (string, error)
	UpdateItem(ctx context.Context, runID, itemID string, patch market.ItemPatch) error
	RemoveItem(ctx context.Context, runID, itemID string) error
	UpdateRun(ctx context.Context, runID string, patch market.RunPatch) error
	CompleteRun(ctx context.Context, runID string) error
}

const (
	msgNoActiveRun = "No active shopping list found"
	msgUnknown     = "Unknown command"
	msgEmptyList   = "Your list is empty"
	msgNoBudget    = "No budget set for this shopping run"
	msgStoreFailed = "Something went wrong. Please try again."

	listPreview = 3
)

// Dispatcher maps commands onto Store operations.
type Dispatcher struct {
	store  Store
	logger *zap.Logger
}

// New returns a Dispatcher. A nil logger disables logging.
func New(store Store, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, logger: logging.OrNop(logger)}
}

// Dispatch executes cmd. cctx supplies the currency for generated messages;
// the run itself is always read fresh from the Store.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd voice.Command, cctx voice.Context) voice.Response {
	start := time.Now()
	res := d.dispatch(ctx, cmd, cctx)
	d.logger.Info("voice command dispatched",
		zap.String("intent", string(cmd.Intent)),
		zap.String("entity", cmd.Entity),
		zap.Float64("confidence", cmd.Confidence),
		zap.Bool("success", res.Success),
		zap.Duration("duration", time.Since(start)),
	)
	if !res.Success {
		d.logger.Debug("voice command failed", zap.String("intent", string(cmd.Intent)), zap.String("message", res.Message))
	}
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, cmd voice.Command, cctx voice.Context) voice.Response {
	switch cmd.Intent {
	case voice.IntentCreateRun:
		return d.createRun(ctx, cmd)
	case voice.IntentAddItem:
		return d.addItem(ctx, cmd)
	case voice.IntentCompleteItem:
		return d.completeItem(ctx, cmd)
	case voice.IntentRemoveItem:
		return d.removeItem(ctx, cmd)
	case voice.IntentAddNote:
		return d.addNote(ctx, cmd)
	case voice.IntentSetPrice:
		return d.setPrice(ctx, cmd, cctx)
	case voice.IntentSetBudget:
		return d.setBudget(ctx, cmd, cctx)
	case voice.IntentCompleteRun:
		return d.completeRun(ctx)
	case voice.IntentListItems:
		return d.listItems(ctx)
	case voice.IntentBudgetStatus:
		return d.budgetStatus(ctx, cctx)
	}
	return fail(msgUnknown)
}

func (d *Dispatcher) createRun(ctx context.Context, cmd voice.Command) voice.Response {
	if cmd.Entity == "" {
		return fail("Please specify a name for the shopping run")
	}
	id, err := d.store.CreateRun(ctx, market.NewRun{Title: cmd.Entity, Budget: cmd.Amount})
	if err != nil {
		return d.storeFailed("create run", err)
	}
	return voice.Response{Success: true, Message: fmt.Sprintf("Created %q", cmd.Entity), Data: id}
}

func (d *Dispatcher) addItem(ctx context.Context, cmd voice.Command) voice.Response {
	if cmd.Entity == "" {
		return fail("Please specify an item to add")
	}
	id, err := d.store.AddItem(ctx, market.NewItem{
		Name:           cmd.Entity,
		Category:       market.DefaultCategory,
		EstimatedPrice: cmd.Amount,
	})
	if err != nil {
		return d.storeFailed("add item", err)
	}
	return voice.Response{Success: true, Message: fmt.Sprintf("Added %s", cmd.Entity), Data: id}
}

func (d *Dispatcher) completeItem(ctx context.Context, cmd voice.Command) voice.Response {
	if cmd.Entity == "" {
		return fail("Please specify which item you got")
	}
	run, it, res, ok := d.lookup(ctx, cmd.Entity)
	if !ok {
		return res
	}

	done := !it.Completed
	patch := market.ItemPatch{Completed: &done}
	if cmd.Note != "" {
		note := cmd.Note
		patch.Note = &note
	}
	if err := d.store.UpdateItem(ctx, run.ID, it.ID, patch); err != nil {
		return d.storeFailed("update item", err)
	}

	updated := *it
	updated.Completed = done
	if patch.Note != nil {
		updated.Note = *patch.Note
	}
	verb := "Completed"
	if !done {
		verb = "Unchecked"
	}
	return voice.Response{Success: true, Message: fmt.Sprintf("%s %s", verb, it.Name), Data: &updated}
}

func (d *Dispatcher) removeItem(ctx context.Context, cmd voice.Command) voice.Response {
	if cmd.Entity == "" {
		return fail("Please specify an item to remove")
	}
	run, it, res, ok := d.lookup(ctx, cmd.Entity)
	if !ok {
		return res
	}
	if err := d.store.RemoveItem(ctx, run.ID, it.ID); err != nil {
		return d.storeFailed("remove item", err)
	}
	removed := *it
	return voice.Response{Success: true, Message: fmt.Sprintf("Removed %s", it.Name), Data: &removed}
}

func (d *Dispatcher) addNote(ctx context.Context, cmd voice.Command) voice.Response {
	if cmd.Entity == "" || cmd.Note == "" {
		return fail("Please specify an item and the note to add")
	}
	run, it, res, ok := d.lookup(ctx, cmd.Entity)
	if !ok {
		return res
	}
	note := cmd.Note
	if err := d.store.UpdateItem(ctx, run.ID, it.ID, market.ItemPatch{Note: &note}); err != nil {
		return d.storeFailed("update item", err)
	}
	updated := *it
	updated.Note = note
	return voice.Response{Success: true, Message: fmt.Sprintf("Added note to %s", it.Name), Data: &updated}
}

func (d *Dispatcher) setPrice(ctx context.Context, cmd voice.Command, cctx voice.Context) voice.Response {
	if cmd.Entity == "" || cmd.Amount == nil {
		return fail("Please specify an item and its price")
	}
	run, it, res, ok := d.lookup(ctx, cmd.Entity)
	if !ok {
		return res
	}
	price := *cmd.Amount
	if err := d.store.UpdateItem(ctx, run.ID, it.ID, market.ItemPatch{EstimatedPrice: &price}); err != nil {
		return d.storeFailed("update item", err)
	}
	updated := *it
	updated.EstimatedPrice = &price
	return voice.Response{
		Success: true,
		Message: fmt.Sprintf("Set %s to %s", it.Name, market.FormatMoney(cctx.Currency, price)),
		Data:    &updated,
	}
}

func (d *Dispatcher) setBudget(ctx context.Context, cmd voice.Command, cctx voice.Context) voice.Response {
	if cmd.Amount == nil {
		return fail("Please specify a budget amount")
	}
	run, res, ok := d.activeRun(ctx)
	if !ok {
		return res
	}
	budget := *cmd.Amount
	if err := d.store.UpdateRun(ctx, run.ID, market.RunPatch{Budget: &budget}); err != nil {
		return d.storeFailed("update run", err)
	}
	return voice.Response{Success: true, Message: fmt.Sprintf("Budget set to %s", market.FormatMoney(cctx.Currency, budget))}
}

func (d *Dispatcher) completeRun(ctx context.Context) voice.Response {
	run, res, ok := d.activeRun(ctx)
	if !ok {
		return res
	}
	if err := d.store.CompleteRun(ctx, run.ID); err != nil {
		return d.storeFailed("complete run", err)
	}
	s := market.ComputeStats(run)
	return voice.Response{
		Success: true,
		Message: fmt.Sprintf("You got %d of %d items.", s.CompletedItems, s.TotalItems),
		Data:    run.ID,
	}
}

func (d *Dispatcher) listItems(ctx context.Context) voice.Response {
	run, res, ok := d.activeRun(ctx)
	if !ok {
		return res
	}
	if len(run.Items) == 0 {
		return voice.Response{Success: true, Message: msgEmptyList}
	}
	return voice.Response{Success: true, Message: ListSummary(run), Data: run.Incomplete()}
}

func (d *Dispatcher) budgetStatus(ctx context.Context, cctx voice.Context) voice.Response {
	run, res, ok := d.activeRun(ctx)
	if !ok {
		return res
	}
	if run.Budget == nil {
		return voice.Response{Success: true, Message: msgNoBudget}
	}
	s := market.ComputeStats(run)
	return voice.Response{Success: true, Message: BudgetSummary(s, cctx.Currency), Data: s}
}

// ListSummary describes the incomplete items of run, naming the first few.
func ListSummary(run *market.Run) string {
	left := run.Incomplete()
	completed := len(run.Items) - len(left)

	names := make([]string, 0, listPreview)
	for i, it := range left {
		if i == listPreview {
			break
		}
		names = append(names, it.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d %s left", len(left), plural(len(left), "item", "items"))
	if len(names) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(names, ", "))
		if extra := len(left) - len(names); extra > 0 {
			fmt.Fprintf(&b, ", +%d more", extra)
		}
	}
	fmt.Fprintf(&b, ". %d completed.", completed)
	return b.String()
}

// BudgetSummary reports spending against the budget in s. Spending is the
// sum of estimated prices.
func BudgetSummary(s market.Stats, currency string) string {
	if s.Budget == nil {
		return msgNoBudget
	}
	budget := *s.Budget
	remaining := budget - s.TotalEstimated
	spent := market.FormatMoney(currency, s.TotalEstimated)
	total := market.FormatMoney(currency, budget)
	if remaining < 0 {
		return fmt.Sprintf("Over budget by %s. Spent: %s of %s", market.FormatMoney(currency, -remaining), spent, total)
	}
	return fmt.Sprintf("Spent: %s of %s. Remaining: %s", spent, total, market.FormatMoney(currency, remaining))
}

// activeRun reads the current run. ok is false when there is none or the
// read failed, in which case res is the response to return.
func (d *Dispatcher) activeRun(ctx context.Context) (*market.Run, voice.Response, bool) {
	run, err := d.store.CurrentRun(ctx)
	if err != nil {
		if mrerrors.Is(err, mrerrors.ErrNoActiveRun) {
			return nil, fail(msgNoActiveRun), false
		}
		return nil, d.storeFailed("current run", err), false
	}
	if run == nil {
		return nil, fail(msgNoActiveRun), false
	}
	return run, voice.Response{}, true
}

// lookup finds entity in the active run.
func (d *Dispatcher) lookup(ctx context.Context, entity string) (*market.Run, *market.Item, voice.Response, bool) {
	run, res, ok := d.activeRun(ctx)
	if !ok {
		return nil, nil, res, false
	}
	it, found := voice.FindItem(run.Items, entity)
	if !found {
		return nil, nil, fail(fmt.Sprintf("%q not found in your list", entity)), false
	}
	return run, it, voice.Response{}, true
}

func (d *Dispatcher) storeFailed(op string, err error) voice.Response {
	d.logger.Warn("store operation failed", zap.String("op", op), zap.Error(err))
	msg := mrerrors.Message(err)
	if msg == "" {
		msg = msgStoreFailed
	}
	return fail(msg)
}

func fail(msg string) voice.Response {
	return voice.Response{Success: false, Message: msg}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
