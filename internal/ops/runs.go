package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/martruns/martruns/internal/db"
	"github.com/martruns/martruns/internal/errors"
	"github.com/martruns/martruns/internal/market"
)

// ListRunsInput contains parameters for ListRuns.
type ListRunsInput struct {
	Status market.Status // optional filter
	Limit  int           // default: 20, max: 100
	Offset int           // default: 0
}

// RunSummary is a run together with its computed stats.
type RunSummary struct {
	market.Run
	Stats market.Stats `json:"stats"`
}

// ListRunsOutput contains the result of ListRuns.
type ListRunsOutput struct {
	Runs       []RunSummary `json:"runs"`
	Pagination Pagination   `json:"pagination"`
	Sort       string       `json:"sort"`
}

// ListRuns returns runs, most recently updated first.
func (s *Store) ListRuns(ctx context.Context, input ListRunsInput) (*ListRunsOutput, error) {
	if input.Status != "" && !input.Status.Valid() {
		return nil, errors.NewInvalidRequest("status must be one of: planning, shopping, completed")
	}
	limit, offset := clampPage(input.Limit, input.Offset)

	runs, total, err := db.ListRuns(ctx, s.db, db.RunFilter{Status: input.Status, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}

	out := make([]RunSummary, len(runs))
	for i := range runs {
		out[i] = RunSummary{Run: runs[i], Stats: market.ComputeStats(&runs[i])}
	}

	return &ListRunsOutput{
		Runs: out,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(out) < total,
			Total:   total,
		},
		Sort: "updated_at_desc",
	}, nil
}

// GetRun returns one run with its items.
func (s *Store) GetRun(ctx context.Context, id string) (*market.Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("run id is required")
	}
	return db.GetRun(ctx, s.db, id)
}

// DuplicateRun copies a run's items into a new planning run. Copied items are
// incomplete, lose their actual price and get new IDs; notes and estimates
// are kept. An empty title reuses the source title.
func (s *Store) DuplicateRun(ctx context.Context, id, title string) (string, error) {
	src, err := s.GetRun(ctx, id)
	if err != nil {
		return "", err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = src.Title
	}

	run, err := s.newRun(title)
	if err != nil {
		return "", err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := db.InsertRun(ctx, tx, run); err != nil {
			return err
		}
		for _, it := range src.Items {
			itemID, err := s.newID()
			if err != nil {
				return err
			}
			it.ID = itemID
			it.Completed = false
			it.ActualPrice = nil
			it.CreatedAt = run.CreatedAt
			it.UpdatedAt = run.CreatedAt
			if err := db.InsertItem(ctx, tx, run.ID, &it); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// DeleteRun removes a run and its items.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.NewInvalidRequest("run id is required")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return db.DeleteRun(ctx, tx, id)
	})
}

// Totals sums stats across every stored run.
func (s *Store) Totals(ctx context.Context) (market.Totals, error) {
	runs, _, err := db.ListRuns(ctx, s.db, db.RunFilter{})
	if err != nil {
		return market.Totals{}, err
	}
	return market.ComputeTotals(runs), nil
}
