package db

import (
	"context"
	"database/sql"

	"github.com/martruns/martruns/internal/errors"
	"github.com/martruns/martruns/internal/market"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const runColumns = `id, title, date, status, budget, scheduled_date, created_at, updated_at`

const itemColumns = `id, name, estimated_price, actual_price, completed, category, note, created_at, updated_at`

// InsertRun stores a new run. Items on r are ignored; use InsertItem.
func InsertRun(ctx context.Context, q Querier, r *market.Run) error {
	query := `
		INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		r.ID, r.Title, r.Date, string(r.Status),
		toNullFloat(r.Budget), toNullString(r.ScheduledDate),
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetRun retrieves a run and its items.
func GetRun(ctx context.Context, q Querier, id string) (*market.Run, error) {
	row := q.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("run", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if r.Items, err = ListItems(ctx, q, r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

// LatestActiveRun returns the most recently updated run that is planning or
// shopping, with its items. Returns nil, nil when there is none.
func LatestActiveRun(ctx context.Context, q Querier) (*market.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE status IN (?, ?)
		ORDER BY updated_at DESC, created_at DESC, id DESC
		LIMIT 1
	`
	row := q.QueryRowContext(ctx, query, string(market.StatusPlanning), string(market.StatusShopping))
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if r.Items, err = ListItems(ctx, q, r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

// RunFilter narrows ListRuns. A zero Status lists every run and a zero
// Limit returns all rows.
type RunFilter struct {
	Status market.Status
	Limit  int
	Offset int
}

// ListRuns returns runs newest first, with items, and the total number of
// runs matching the filter.
func ListRuns(ctx context.Context, q Querier, f RunFilter) ([]market.Run, int, error) {
	where := ""
	var args []any
	if f.Status != "" {
		where = " WHERE status = ?"
		args = append(args, string(f.Status))
	}

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + runColumns + ` FROM runs` + where +
		` ORDER BY updated_at DESC, created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := q.QueryContext(ctx, query, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	runs := []market.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, 0, errors.NewInternal(err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, errors.NewInternal(err)
	}
	rows.Close()

	// Items are loaded after the cursor closes so a single-connection pool
	// does not deadlock.
	for i := range runs {
		if runs[i].Items, err = ListItems(ctx, q, runs[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return runs, total, nil
}

// UpdateRun writes the mutable fields of r. Does NOT change: id, date, created_at.
func UpdateRun(ctx context.Context, q Querier, r *market.Run) error {
	query := `
		UPDATE runs
		SET title = ?, status = ?, budget = ?, scheduled_date = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := q.ExecContext(ctx, query,
		r.Title, string(r.Status), toNullFloat(r.Budget), toNullString(r.ScheduledDate),
		r.UpdatedAt, r.ID,
	)
	return checkAffected(result, err, "run", r.ID)
}

// TouchRun bumps a run's updated_at, making it the most recent run.
func TouchRun(ctx context.Context, q Querier, id string, updatedAt int64) error {
	result, err := q.ExecContext(ctx, `UPDATE runs SET updated_at = ? WHERE id = ?`, updatedAt, id)
	return checkAffected(result, err, "run", id)
}

// DeleteRun removes a run and its items.
func DeleteRun(ctx context.Context, q Querier, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM items WHERE run_id = ?`, id); err != nil {
		return errors.NewInternal(err)
	}
	result, err := q.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	return checkAffected(result, err, "run", id)
}

// InsertItem appends an item to the end of a run's list.
func InsertItem(ctx context.Context, q Querier, runID string, it *market.Item) error {
	query := `
		INSERT INTO items (
			id, run_id, position, name, estimated_price, actual_price,
			completed, category, note, created_at, updated_at
		) VALUES (
			?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM items WHERE run_id = ?),
			?, ?, ?, ?, ?, ?, ?, ?
		)
	`
	_, err := q.ExecContext(ctx, query,
		it.ID, runID, runID,
		it.Name, toNullFloat(it.EstimatedPrice), toNullFloat(it.ActualPrice),
		it.Completed, it.Category, it.Note, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListItems returns a run's items in insertion order.
func ListItems(ctx context.Context, q Querier, runID string) ([]market.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE run_id = ? ORDER BY position`
	rows, err := q.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	items := []market.Item{}
	for rows.Next() {
		var (
			it        market.Item
			estimated sql.NullFloat64
			actual    sql.NullFloat64
		)
		if err := rows.Scan(
			&it.ID, &it.Name, &estimated, &actual, &it.Completed,
			&it.Category, &it.Note, &it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return nil, errors.NewInternal(err)
		}
		it.EstimatedPrice = fromNullFloat(estimated)
		it.ActualPrice = fromNullFloat(actual)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return items, nil
}

// UpdateItem writes the mutable fields of it. The item must belong to runID.
func UpdateItem(ctx context.Context, q Querier, runID string, it *market.Item) error {
	query := `
		UPDATE items
		SET name = ?, estimated_price = ?, actual_price = ?, completed = ?,
			category = ?, note = ?, updated_at = ?
		WHERE id = ? AND run_id = ?
	`
	result, err := q.ExecContext(ctx, query,
		it.Name, toNullFloat(it.EstimatedPrice), toNullFloat(it.ActualPrice), it.Completed,
		it.Category, it.Note, it.UpdatedAt,
		it.ID, runID,
	)
	return checkAffected(result, err, "item", it.ID)
}

// DeleteItem removes an item from a run.
func DeleteItem(ctx context.Context, q Querier, runID, itemID string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM items WHERE id = ? AND run_id = ?`, itemID, runID)
	return checkAffected(result, err, "item", itemID)
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row into a Run without items.
func scanRun(row scanner) (*market.Run, error) {
	var (
		r         market.Run
		status    string
		budget    sql.NullFloat64
		scheduled sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.Title, &r.Date, &status, &budget, &scheduled,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = market.Status(status)
	r.Budget = fromNullFloat(budget)
	r.ScheduledDate = fromNullString(scheduled)
	r.Items = []market.Item{}
	return &r, nil
}

func checkAffected(result sql.Result, err error, kind, id string) error {
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(kind, id)
	}
	return nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func toNullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func fromNullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	return &nf.Float64
}
