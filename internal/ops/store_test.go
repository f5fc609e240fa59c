package ops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martruns/martruns/internal/config"
	"github.com/martruns/martruns/internal/db"
	"github.com/martruns/martruns/internal/errors"
	"github.com/martruns/martruns/internal/market"
)

// testClock advances one second per call so updated_at ordering is strict.
type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	clock := &testClock{t: time.Date(2026, time.March, 7, 9, 0, 0, 0, time.Local)}
	return NewStore(database, config.DefaultConfig(), WithClock(clock.Now))
}

func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }
func boolPtr(b bool) *bool        { return &b }

func TestStore_CreateRun(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateRun(ctx, market.NewRun{Title: "  Costco  ", Budget: floatPtr(120)})
	require.NoError(t, err)

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Costco", run.Title)
	assert.Equal(t, market.StatusPlanning, run.Status)
	assert.Equal(t, "3/7/2026", run.Date)
	require.NotNil(t, run.Budget)
	assert.Equal(t, 120.0, *run.Budget)
	assert.Empty(t, run.Items)
}

func TestStore_CreateRun_DefaultTitle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateRun(ctx, market.NewRun{})
	require.NoError(t, err)
	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Market Run - 3/7/2026", run.Title)
}

func TestStore_CreateRun_Invalid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateRun(ctx, market.NewRun{Budget: floatPtr(-1)})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = s.CreateRun(ctx, market.NewRun{ScheduledDate: strPtr("next tuesday")})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = s.CreateRun(ctx, market.NewRun{ScheduledDate: strPtr("2026-03-10")})
	assert.NoError(t, err)
}

func TestStore_CurrentRun(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	run, err := s.CurrentRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, run)

	first, err := s.CreateRun(ctx, market.NewRun{Title: "First"})
	require.NoError(t, err)
	second, err := s.CreateRun(ctx, market.NewRun{Title: "Second"})
	require.NoError(t, err)

	run, err = s.CurrentRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, run.ID)

	// Completing the newest run falls back to the older active one.
	require.NoError(t, s.CompleteRun(ctx, second))
	run, err = s.CurrentRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, run.ID)
}

func TestStore_AddItem_CreatesDefaultRun(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	itemID, err := s.AddItem(ctx, market.NewItem{Name: " Milk ", EstimatedPrice: floatPtr(2)})
	require.NoError(t, err)

	run, err := s.CurrentRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "Market Run - 3/7/2026", run.Title)
	require.Len(t, run.Items, 1)
	assert.Equal(t, itemID, run.Items[0].ID)
	assert.Equal(t, "Milk", run.Items[0].Name)
	assert.Equal(t, market.DefaultCategory, run.Items[0].Category)
	assert.False(t, run.Items[0].Completed)
}

func TestStore_AddItem_AppendsToCurrentRun(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	older, err := s.CreateRun(ctx, market.NewRun{Title: "Older"})
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, market.NewRun{Title: "Newer"})
	require.NoError(t, err)

	// An edit makes the older run current again.
	require.NoError(t, s.UpdateRun(ctx, older, market.RunPatch{Budget: floatPtr(30)}))

	_, err = s.AddItem(ctx, market.NewItem{Name: "Eggs"})
	require.NoError(t, err)
	_, err = s.AddItem(ctx, market.NewItem{Name: "Bread", Category: "bakery"})
	require.NoError(t, err)

	run, err := s.GetRun(ctx, older)
	require.NoError(t, err)
	require.Len(t, run.Items, 2)
	assert.Equal(t, "Eggs", run.Items[0].Name)
	assert.Equal(t, "Bread", run.Items[1].Name)
	assert.Equal(t, "bakery", run.Items[1].Category)
}

func TestStore_AddItem_Invalid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AddItem(ctx, market.NewItem{Name: "   "})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = s.AddItem(ctx, market.NewItem{Name: "milk", EstimatedPrice: floatPtr(-2)})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	run, err := s.CurrentRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, run, "failed adds must not create a run")
}

func TestStore_UpdateItem(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	itemID, err := s.AddItem(ctx, market.NewItem{Name: "Apples"})
	require.NoError(t, err)
	run, err := s.CurrentRun(ctx)
	require.NoError(t, err)

	err = s.UpdateItem(ctx, run.ID, itemID, market.ItemPatch{
		Completed:   boolPtr(true),
		ActualPrice: floatPtr(3.4),
		Note:        strPtr("honeycrisp"),
	})
	require.NoError(t, err)

	run, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	it := run.Items[0]
	assert.True(t, it.Completed)
	assert.Equal(t, 3.4, *it.ActualPrice)
	assert.Equal(t, "honeycrisp", it.Note)
	assert.Equal(t, run.UpdatedAt, it.UpdatedAt)

	err = s.UpdateItem(ctx, run.ID, "missing", market.ItemPatch{Completed: boolPtr(true)})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	err = s.UpdateItem(ctx, run.ID, itemID, market.ItemPatch{Name: strPtr(" ")})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestStore_RemoveItem(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	itemID, err := s.AddItem(ctx, market.NewItem{Name: "Salt"})
	require.NoError(t, err)
	run, err := s.CurrentRun(ctx)
	require.NoError(t, err)

	require.NoError(t, s.RemoveItem(ctx, run.ID, itemID))
	run, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, run.Items)

	err = s.RemoveItem(ctx, run.ID, itemID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestStore_UpdateRun(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateRun(ctx, market.NewRun{Title: "Weekly"})
	require.NoError(t, err)

	shopping := market.StatusShopping
	require.NoError(t, s.UpdateRun(ctx, id, market.RunPatch{Status: &shopping, Budget: floatPtr(75)}))

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, market.StatusShopping, run.Status)
	assert.Equal(t, 75.0, *run.Budget)
	assert.Equal(t, "Weekly", run.Title)

	bogus := market.Status("archived")
	err = s.UpdateRun(ctx, id, market.RunPatch{Status: &bogus})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	err = s.UpdateRun(ctx, "missing", market.RunPatch{Budget: floatPtr(1)})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestStore_CompleteRun(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateRun(ctx, market.NewRun{})
	require.NoError(t, err)

	require.NoError(t, s.CompleteRun(ctx, id))
	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, market.StatusCompleted, run.Status)

	err = s.CompleteRun(ctx, id)
	assert.True(t, errors.Is(err, errors.ErrRunCompleted))
}
