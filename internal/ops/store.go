package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/martruns/martruns/internal/db"
	"github.com/martruns/martruns/internal/dispatch"
	"github.com/martruns/martruns/internal/errors"
	"github.com/martruns/martruns/internal/market"
)

var _ dispatch.Store = (*Store)(nil)

// CurrentRun returns the most recently updated planning or shopping run, or
// nil when there is none.
func (s *Store) CurrentRun(ctx context.Context) (*market.Run, error) {
	return db.LatestActiveRun(ctx, s.db)
}

// CreateRun creates a planning run and returns its ID. An empty title becomes
// "Market Run - M/D/YYYY".
func (s *Store) CreateRun(ctx context.Context, in market.NewRun) (string, error) {
	if in.Budget != nil && *in.Budget < 0 {
		return "", errors.NewInvalidRequest("budget must not be negative")
	}
	if in.ScheduledDate != nil {
		if err := validateScheduledDate(*in.ScheduledDate); err != nil {
			return "", err
		}
	}

	r, err := s.newRun(strings.TrimSpace(in.Title))
	if err != nil {
		return "", err
	}
	r.Budget = in.Budget
	r.ScheduledDate = in.ScheduledDate

	if err := db.InsertRun(ctx, s.db, r); err != nil {
		return "", err
	}
	return r.ID, nil
}

// AddItem appends an item to the current run, creating a default run first
// when none is active. Returns the new item's ID.
func (s *Store) AddItem(ctx context.Context, in market.NewItem) (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", errors.NewInvalidRequest("item name is required")
	}
	if in.EstimatedPrice != nil && *in.EstimatedPrice < 0 {
		return "", errors.NewInvalidRequest("estimated price must not be negative")
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = market.DefaultCategory
	}

	itemID, err := s.newID()
	if err != nil {
		return "", err
	}
	now := s.now().Unix()

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		run, err := db.LatestActiveRun(ctx, tx)
		if err != nil {
			return err
		}
		if run == nil {
			if run, err = s.newRun(""); err != nil {
				return err
			}
			if err := db.InsertRun(ctx, tx, run); err != nil {
				return err
			}
		}

		it := &market.Item{
			ID:             itemID,
			Name:           name,
			EstimatedPrice: in.EstimatedPrice,
			Completed:      in.Completed,
			Category:       category,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := db.InsertItem(ctx, tx, run.ID, it); err != nil {
			return err
		}
		return db.TouchRun(ctx, tx, run.ID, now)
	})
	if err != nil {
		return "", err
	}
	return itemID, nil
}

// UpdateItem applies patch to one item of a run.
func (s *Store) UpdateItem(ctx context.Context, runID, itemID string, patch market.ItemPatch) error {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return errors.NewInvalidRequest("item name must not be empty")
	}
	if negative(patch.EstimatedPrice) || negative(patch.ActualPrice) {
		return errors.NewInvalidRequest("prices must not be negative")
	}

	now := s.now().Unix()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		run, err := db.GetRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		it, ok := run.ItemByID(itemID)
		if !ok {
			return errors.NewNotFound("item", itemID)
		}

		patch.Apply(it)
		it.Name = strings.TrimSpace(it.Name)
		it.UpdatedAt = now
		if err := db.UpdateItem(ctx, tx, runID, it); err != nil {
			return err
		}
		return db.TouchRun(ctx, tx, runID, now)
	})
}

// RemoveItem deletes one item from a run.
func (s *Store) RemoveItem(ctx context.Context, runID, itemID string) error {
	now := s.now().Unix()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := db.DeleteItem(ctx, tx, runID, itemID); err != nil {
			return err
		}
		return db.TouchRun(ctx, tx, runID, now)
	})
}

// UpdateRun applies patch to a run.
func (s *Store) UpdateRun(ctx context.Context, runID string, patch market.RunPatch) error {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return errors.NewInvalidRequest("title must not be empty")
	}
	if negative(patch.Budget) {
		return errors.NewInvalidRequest("budget must not be negative")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return errors.NewInvalidRequest("status must be one of: planning, shopping, completed")
	}
	if patch.ScheduledDate != nil {
		if err := validateScheduledDate(*patch.ScheduledDate); err != nil {
			return err
		}
	}

	now := s.now().Unix()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		run, err := db.GetRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		patch.Apply(run)
		run.Title = strings.TrimSpace(run.Title)
		run.UpdatedAt = now
		return db.UpdateRun(ctx, tx, run)
	})
}

// CompleteRun marks a run completed. Completing a completed run is an error.
func (s *Store) CompleteRun(ctx context.Context, runID string) error {
	now := s.now().Unix()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		run, err := db.GetRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		if run.Status == market.StatusCompleted {
			return errors.NewRunCompleted(runID)
		}
		run.Status = market.StatusCompleted
		run.UpdatedAt = now
		return db.UpdateRun(ctx, tx, run)
	})
}

// newRun builds an empty planning run stamped with the store clock.
func (s *Store) newRun(title string) (*market.Run, error) {
	id, err := s.newID()
	if err != nil {
		return nil, err
	}
	now := s.now()
	if title == "" {
		title = market.DefaultTitle(now)
	}
	return &market.Run{
		ID:        id,
		Title:     title,
		Date:      market.FormatDate(now),
		Items:     []market.Item{},
		Status:    market.StatusPlanning,
		CreatedAt: now.Unix(),
		UpdatedAt: now.Unix(),
	}, nil
}

// validateScheduledDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func validateScheduledDate(v string) error {
	if _, err := time.Parse(time.RFC3339, v); err == nil {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, v); err == nil {
		return nil
	}
	return errors.NewInvalidRequest("scheduled_date must be RFC 3339 or YYYY-MM-DD")
}

func negative(f *float64) bool {
	return f != nil && *f < 0
}
