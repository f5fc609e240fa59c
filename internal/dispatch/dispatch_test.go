package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	mrerrors "github.com/martruns/martruns/internal/errors"
	"github.com/martruns/martruns/internal/market"
	"github.com/martruns/martruns/internal/voice"
)

// fakeStore is an in-memory Store holding at most one run.
type fakeStore struct {
	run    *market.Run
	nextID int
	err    error
	calls  []string
}

func (s *fakeStore) id() string {
	s.nextID++
	return fmt.Sprintf("id%d", s.nextID)
}

func (s *fakeStore) CurrentRun(ctx context.Context) (*market.Run, error) {
	s.calls = append(s.calls, "CurrentRun")
	if s.run == nil || !s.run.Status.Active() {
		return nil, nil
	}
	cp := *s.run
	cp.Items = append([]market.Item(nil), s.run.Items...)
	return &cp, nil
}

func (s *fakeStore) CreateRun(ctx context.Context, in market.NewRun) (string, error) {
	s.calls = append(s.calls, "CreateRun")
	if s.err != nil {
		return "", s.err
	}
	s.run = &market.Run{ID: s.id(), Title: in.Title, Budget: in.Budget, Status: market.StatusPlanning}
	return s.run.ID, nil
}

func (s *fakeStore) AddItem(ctx context.Context, in market.NewItem) (string, error) {
	s.calls = append(s.calls, "AddItem")
	if s.err != nil {
		return "", s.err
	}
	if s.run == nil {
		s.run = &market.Run{ID: s.id(), Title: "auto", Status: market.StatusPlanning}
	}
	it := market.Item{ID: s.id(), Name: in.Name, Category: in.Category, Completed: in.Completed, EstimatedPrice: in.EstimatedPrice}
	s.run.Items = append(s.run.Items, it)
	return it.ID, nil
}

func (s *fakeStore) item(itemID string) *market.Item {
	it, _ := s.run.ItemByID(itemID)
	return it
}

func (s *fakeStore) UpdateItem(ctx context.Context, runID, itemID string, p market.ItemPatch) error {
	s.calls = append(s.calls, "UpdateItem")
	if s.err != nil {
		return s.err
	}
	it := s.item(itemID)
	if it == nil {
		return mrerrors.NewNotFound("item", itemID)
	}
	if p.Completed != nil {
		it.Completed = *p.Completed
	}
	if p.Note != nil {
		it.Note = *p.Note
	}
	if p.EstimatedPrice != nil {
		it.EstimatedPrice = p.EstimatedPrice
	}
	return nil
}

func (s *fakeStore) RemoveItem(ctx context.Context, runID, itemID string) error {
	s.calls = append(s.calls, "RemoveItem")
	if s.err != nil {
		return s.err
	}
	for i, it := range s.run.Items {
		if it.ID == itemID {
			s.run.Items = append(s.run.Items[:i], s.run.Items[i+1:]...)
			return nil
		}
	}
	return mrerrors.NewNotFound("item", itemID)
}

func (s *fakeStore) UpdateRun(ctx context.Context, runID string, p market.RunPatch) error {
	s.calls = append(s.calls, "UpdateRun")
	if s.err != nil {
		return s.err
	}
	if p.Budget != nil {
		s.run.Budget = p.Budget
	}
	return nil
}

func (s *fakeStore) CompleteRun(ctx context.Context, runID string) error {
	s.calls = append(s.calls, "CompleteRun")
	if s.err != nil {
		return s.err
	}
	s.run.Status = market.StatusCompleted
	return nil
}

func f(v float64) *float64 { return &v }

func storeWith(names ...string) *fakeStore {
	s := &fakeStore{run: &market.Run{ID: "run1", Title: "Weekly", Status: market.StatusShopping}}
	for _, n := range names {
		s.run.Items = append(s.run.Items, market.Item{ID: s.id(), Name: n, Category: market.DefaultCategory})
	}
	return s
}

var usd = voice.Context{Currency: "$"}

func TestDispatch_AddItemScenario(t *testing.T) {
	store := &fakeStore{}
	parser := voice.NewParser()

	cmd := parser.Parse("I need milk", voice.Context{CurrentRun: &market.Run{}})
	require.Equal(t, voice.IntentAddItem, cmd.Intent)
	require.Equal(t, "milk", cmd.Entity)

	res := New(store, nil).Dispatch(context.Background(), cmd, usd)
	require.True(t, res.Success, res.Message)
	require.Len(t, store.run.Items, 1)
	assert.Equal(t, "milk", store.run.Items[0].Name)
	assert.Equal(t, market.DefaultCategory, store.run.Items[0].Category)
	assert.False(t, store.run.Items[0].Completed)

	assert.Contains(t, voice.Respond(cmd, res, usd), "milk")
}

func TestDispatch_AddItemQuantityBecomesEstimate(t *testing.T) {
	store := storeWith()
	cmd := voice.Command{Intent: voice.IntentAddItem, Entity: "rice", Amount: f(2)}
	res := New(store, nil).Dispatch(context.Background(), cmd, usd)
	require.True(t, res.Success)
	require.NotNil(t, store.run.Items[0].EstimatedPrice)
	assert.Equal(t, 2.0, *store.run.Items[0].EstimatedPrice)
}

func TestDispatch_CompleteItemFuzzy(t *testing.T) {
	store := storeWith("Milk", "Free-range Chicken")

	// Parsed without a run, so the entity is unresolved at parse time.
	cmd := voice.NewParser().Parse("I got the chicken", voice.Context{})
	require.Equal(t, "chicken", cmd.Entity)

	res := New(store, nil).Dispatch(context.Background(), cmd, usd)
	require.True(t, res.Success, res.Message)
	assert.True(t, store.run.Items[1].Completed)
	assert.False(t, store.run.Items[0].Completed)

	it, ok := res.Data.(*market.Item)
	require.True(t, ok)
	assert.Equal(t, "Free-range Chicken", it.Name)
	assert.True(t, it.Completed)
}

func TestDispatch_CompleteItemToggles(t *testing.T) {
	store := storeWith("Milk")
	store.run.Items[0].Completed = true
	d := New(store, nil)

	res := d.Dispatch(context.Background(), voice.Command{Intent: voice.IntentCompleteItem, Entity: "milk"}, usd)
	require.True(t, res.Success)
	assert.False(t, store.run.Items[0].Completed)
	assert.Equal(t, "Marked Milk as not complete.", voice.Respond(voice.Command{Intent: voice.IntentCompleteItem, Entity: "milk"}, res, usd))
}

func TestDispatch_CompleteItemWithNote(t *testing.T) {
	store := storeWith("Milk")
	res := New(store, nil).Dispatch(context.Background(),
		voice.Command{Intent: voice.IntentCompleteItem, Entity: "milk", Note: "last one"}, usd)
	require.True(t, res.Success)
	assert.Equal(t, "last one", store.run.Items[0].Note)
}

func TestDispatch_SetBudgetNoActiveRun(t *testing.T) {
	cmd := voice.NewParser().Parse("my budget is $50", voice.Context{})
	require.Equal(t, voice.IntentSetBudget, cmd.Intent)

	res := New(&fakeStore{}, nil).Dispatch(context.Background(), cmd, usd)
	assert.Equal(t, voice.Response{Success: false, Message: "No active shopping list found"}, res)
}

func TestDispatch_SetBudget(t *testing.T) {
	store := storeWith()
	res := New(store, nil).Dispatch(context.Background(), voice.Command{Intent: voice.IntentSetBudget, Amount: f(50)}, usd)
	require.True(t, res.Success)
	require.NotNil(t, store.run.Budget)
	assert.Equal(t, 50.0, *store.run.Budget)
}

func TestDispatch_BudgetStatus(t *testing.T) {
	store := storeWith()
	store.run.Budget = f(100)
	store.run.Items = []market.Item{
		{ID: "a", Name: "steak", EstimatedPrice: f(40)},
		{ID: "b", Name: "wine", EstimatedPrice: f(25)},
	}
	res := New(store, nil).Dispatch(context.Background(), voice.Command{Intent: voice.IntentBudgetStatus}, usd)
	require.True(t, res.Success)
	assert.Contains(t, res.Message, "Remaining: $35.00")
	assert.Equal(t, "Spent: $65.00 of $100.00. Remaining: $35.00", res.Message)
}

func TestDispatch_BudgetStatusOver(t *testing.T) {
	store := storeWith()
	store.run.Budget = f(50)
	store.run.Items = []market.Item{{ID: "a", Name: "steak", EstimatedPrice: f(62.5)}}
	res := New(store, nil).Dispatch(context.Background(), voice.Command{Intent: voice.IntentBudgetStatus}, voice.Context{Currency: "€"})
	require.True(t, res.Success)
	assert.Equal(t, "Over budget by €12.50. Spent: €62.50 of €50.00", res.Message)
}

func TestDispatch_BudgetStatusNoBudget(t *testing.T) {
	res := New(storeWith("milk"), nil).Dispatch(context.Background(), voice.Command{Intent: voice.IntentBudgetStatus}, usd)
	assert.Equal(t, voice.Response{Success: true, Message: "No budget set for this shopping run"}, res)
}

func TestDispatch_RemoveNotFound(t *testing.T) {
	store := storeWith("Milk", "Eggs")
	cmd := voice.NewParser().Parse("remove kale", voice.Context{})

	res := New(store, nil).Dispatch(context.Background(), cmd, usd)
	assert.Equal(t, voice.Response{Success: false, Message: `"kale" not found in your list`}, res)
	assert.Len(t, store.run.Items, 2)
	assert.NotContains(t, store.calls, "RemoveItem")
}

func TestDispatch_Remove(t *testing.T) {
	store := storeWith("Milk", "Kale")
	res := New(store, nil).Dispatch(context.Background(), voice.Command{Intent: voice.IntentRemoveItem, Entity: "kale"}, usd)
	require.True(t, res.Success)
	require.Len(t, store.run.Items, 1)
	assert.Equal(t, "Milk", store.run.Items[0].Name)
}

func TestDispatch_AddNote(t *testing.T) {
	store := storeWith("Milk")
	d := New(store, nil)

	res := d.Dispatch(context.Background(), voice.Command{Intent: voice.IntentAddNote, Entity: "milk", Note: "organic"}, usd)
	require.True(t, res.Success)
	assert.Equal(t, "organic", store.run.Items[0].Note)

	res = d.Dispatch(context.Background(), voice.Command{Intent: voice.IntentAddNote, Entity: "milk"}, usd)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Please specify")
}

func TestDispatch_SetPrice(t *testing.T) {
	store := storeWith("Milk")
	res := New(store, nil).Dispatch(context.Background(), voice.Command{Intent: voice.IntentSetPrice, Entity: "milk", Amount: f(3.5)}, usd)
	require.True(t, res.Success)
	require.NotNil(t, store.run.Items[0].EstimatedPrice)
	assert.Equal(t, 3.5, *store.run.Items[0].EstimatedPrice)
}

func TestDispatch_CreateRun(t *testing.T) {
	store := &fakeStore{}
	res := New(store, nil).Dispatch(context.Background(), voice.Command{Intent: voice.IntentCreateRun, Entity: "BBQ", Amount: f(75)}, usd)
	require.True(t, res.Success)
	assert.Equal(t, "BBQ", store.run.Title)
	require.NotNil(t, store.run.Budget)
	assert.Equal(t, 75.0, *store.run.Budget)
	assert.Equal(t, store.run.ID, res.Data)
}

func TestDispatch_CompleteRun(t *testing.T) {
	store := storeWith("Milk", "Eggs")
	store.run.Items[0].Completed = true
	d := New(store, nil)

	res := d.Dispatch(context.Background(), voice.Command{Intent: voice.IntentCompleteRun}, usd)
	require.True(t, res.Success)
	assert.Equal(t, market.StatusCompleted, store.run.Status)
	assert.Equal(t, "Shopping run completed! You got 1 of 2 items.", voice.Respond(voice.Command{Intent: voice.IntentCompleteRun}, res, usd))

	// The completed run is no longer current.
	res = d.Dispatch(context.Background(), voice.Command{Intent: voice.IntentListItems}, usd)
	assert.Equal(t, "No active shopping list found", res.Message)
}

func TestDispatch_ListItems(t *testing.T) {
	store := storeWith("milk", "eggs", "bread", "jam", "tea")
	store.run.Items[4].Completed = true

	res := New(store, nil).Dispatch(context.Background(), voice.Command{Intent: voice.IntentListItems}, usd)
	require.True(t, res.Success)
	assert.Equal(t, "4 items left: milk, eggs, bread, +1 more. 1 completed.", res.Message)

	res = New(storeWith(), nil).Dispatch(context.Background(), voice.Command{Intent: voice.IntentListItems}, usd)
	assert.Equal(t, voice.Response{Success: true, Message: "Your list is empty"}, res)
}

func TestListSummary(t *testing.T) {
	run := &market.Run{Items: []market.Item{{Name: "milk"}}}
	assert.Equal(t, "1 item left: milk. 0 completed.", ListSummary(run))

	run.Items[0].Completed = true
	assert.Equal(t, "0 items left. 1 completed.", ListSummary(run))
}

func TestDispatch_Unknown(t *testing.T) {
	res := New(storeWith(), nil).Dispatch(context.Background(), voice.Command{Intent: voice.IntentUnknown}, usd)
	assert.Equal(t, voice.Response{Success: false, Message: "Unknown command"}, res)
}

func TestDispatch_MissingFields(t *testing.T) {
	d := New(storeWith("Milk"), nil)
	for _, cmd := range []voice.Command{
		{Intent: voice.IntentCreateRun},
		{Intent: voice.IntentAddItem},
		{Intent: voice.IntentCompleteItem},
		{Intent: voice.IntentRemoveItem},
		{Intent: voice.IntentAddNote, Note: "x"},
		{Intent: voice.IntentSetPrice, Entity: "milk"},
		{Intent: voice.IntentSetBudget},
	} {
		res := d.Dispatch(context.Background(), cmd, usd)
		assert.False(t, res.Success, cmd.Intent)
		assert.Contains(t, res.Message, "Please specify", cmd.Intent)
	}
}

func TestDispatch_NoActiveRun(t *testing.T) {
	d := New(&fakeStore{}, nil)
	for _, cmd := range []voice.Command{
		{Intent: voice.IntentCompleteItem, Entity: "milk"},
		{Intent: voice.IntentRemoveItem, Entity: "milk"},
		{Intent: voice.IntentAddNote, Entity: "milk", Note: "x"},
		{Intent: voice.IntentSetPrice, Entity: "milk", Amount: f(1)},
		{Intent: voice.IntentSetBudget, Amount: f(1)},
		{Intent: voice.IntentCompleteRun},
		{Intent: voice.IntentListItems},
		{Intent: voice.IntentBudgetStatus},
	} {
		res := d.Dispatch(context.Background(), cmd, usd)
		assert.Equal(t, voice.Response{Success: false, Message: "No active shopping list found"}, res, cmd.Intent)
	}
}

func TestDispatch_StoreErrors(t *testing.T) {
	store := storeWith("Milk")
	store.err = errors.New("disk full")
	res := New(store, nil).Dispatch(context.Background(), voice.Command{Intent: voice.IntentRemoveItem, Entity: "milk"}, usd)
	assert.Equal(t, voice.Response{Success: false, Message: "disk full"}, res)

	store.err = mrerrors.NewRunCompleted("run1")
	res = New(store, nil).Dispatch(context.Background(), voice.Command{Intent: voice.IntentAddItem, Entity: "eggs"}, usd)
	assert.Equal(t, "shopping run run1 is already completed", res.Message)

	store.err = errors.New("")
	res = New(store, nil).Dispatch(context.Background(), voice.Command{Intent: voice.IntentSetBudget, Amount: f(1)}, usd)
	assert.Equal(t, "Something went wrong. Please try again.", res.Message)
}

// errStore fails every read.
type errStore struct{ fakeStore }

func (errStore) CurrentRun(context.Context) (*market.Run, error) {
	return nil, mrerrors.NewNoActiveRun()
}

func TestDispatch_CurrentRunNoActiveError(t *testing.T) {
	res := New(&errStore{}, nil).Dispatch(context.Background(), voice.Command{Intent: voice.IntentListItems}, usd)
	assert.Equal(t, "No active shopping list found", res.Message)
}

func TestDispatch_Logs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	d := New(storeWith("Milk"), zap.New(core))

	d.Dispatch(context.Background(), voice.Command{Intent: voice.IntentRemoveItem, Entity: "kale", Confidence: 0.8}, usd)

	entries := logs.FilterMessage("voice command dispatched").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "remove_item", fields["intent"])
	assert.Equal(t, false, fields["success"])
	assert.IsType(t, time.Duration(0), fields["duration"])
	assert.Equal(t, 1, logs.FilterMessage("voice command failed").Len())
}
