package ops

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/martruns/martruns/internal/db"
	"github.com/martruns/martruns/internal/errors"
	"github.com/martruns/martruns/internal/market"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on any collision, import nothing
	ImportModeReplace ImportMode = "replace" // overwrite the existing run
	ImportModeRename  ImportMode = "rename"  // import under fresh IDs
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes one line that could not be imported.
type ImportError struct {
	Line    int    `json:"line,omitempty"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type importRecord struct {
	line int
	run  market.Run
}

// Import loads runs from a file written by Export.
func (s *Store) Import(ctx context.Context, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace && input.Mode != ImportModeRename {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace, rename")
	}
	if err := ValidatePath(input.Path, PathCheckRead, s.cfg); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := err.(*errors.MarketError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	records, parseErrors := parseExport(file)
	out := &ImportOutput{Errors: []ImportError{}}

	if input.Mode == ImportModeError {
		if len(parseErrors) > 0 {
			out.Errors = parseErrors
			return out, nil
		}
		return s.importAtomic(ctx, records)
	}

	out.Errors = append(out.Errors, parseErrors...)
	out.Skipped = len(parseErrors)
	for _, rec := range records {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("import")
		}
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			return s.importOne(ctx, tx, rec, input.Mode)
		})
		if err != nil {
			out.Errors = append(out.Errors, ImportError{
				Line:    rec.line,
				ID:      rec.run.ID,
				Code:    "INSERT_FAILED",
				Message: errors.Message(err),
			})
			out.Skipped++
			continue
		}
		out.Imported++
	}
	return out, nil
}

// importAtomic imports every record in one transaction and stops at the
// first ID collision.
func (s *Store) importAtomic(ctx context.Context, records []importRecord) (*ImportOutput, error) {
	out := &ImportOutput{Errors: []ImportError{}}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, rec := range records {
			exists, err := runExists(ctx, tx, rec.run.ID)
			if err != nil {
				return err
			}
			if exists {
				out.Errors = append(out.Errors, ImportError{
					Line:    rec.line,
					ID:      rec.run.ID,
					Code:    "ID_COLLISION",
					Message: fmt.Sprintf("run with id %q already exists", rec.run.ID),
				})
				return errCollision
			}
			if err := insertRunWithItems(ctx, tx, &rec.run); err != nil {
				return err
			}
		}
		return nil
	})
	if err == errCollision {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	out.Imported = len(records)
	return out, nil
}

var errCollision = errors.NewInvalidRequest("import collision")

func (s *Store) importOne(ctx context.Context, tx *sql.Tx, rec importRecord, mode ImportMode) error {
	run := rec.run
	exists, err := runExists(ctx, tx, run.ID)
	if err != nil {
		return err
	}
	switch {
	case exists && mode == ImportModeReplace:
		if err := db.DeleteRun(ctx, tx, run.ID); err != nil {
			return err
		}
	case exists && mode == ImportModeRename:
		// Item IDs are global, so a renamed run gets fresh item IDs as well.
		if run.ID, err = s.newID(); err != nil {
			return err
		}
		items := make([]market.Item, len(run.Items))
		for i, it := range run.Items {
			if it.ID, err = s.newID(); err != nil {
				return err
			}
			items[i] = it
		}
		run.Items = items
	}
	return insertRunWithItems(ctx, tx, &run)
}

func insertRunWithItems(ctx context.Context, q db.Querier, r *market.Run) error {
	if err := db.InsertRun(ctx, q, r); err != nil {
		return err
	}
	for i := range r.Items {
		if err := db.InsertItem(ctx, q, r.ID, &r.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

func runExists(ctx context.Context, q db.Querier, id string) (bool, error) {
	_, err := db.GetRun(ctx, q, id)
	if errors.Is(err, errors.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// parseExport reads export lines, skipping the header. Records missing
// required fields are reported rather than returned.
func parseExport(r io.Reader) ([]importRecord, []ImportError) {
	var (
		records []importRecord
		errs    []ImportError
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec struct {
			Export bool `json:"_martruns_export"`
			market.Run
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			errs = append(errs, ImportError{Line: lineNum, Code: "PARSE_ERROR", Message: fmt.Sprintf("invalid JSON: %v", err)})
			continue
		}
		if rec.Export {
			continue
		}
		if msg := validateRecord(&rec.Run); msg != "" {
			errs = append(errs, ImportError{Line: lineNum, ID: rec.ID, Code: "INVALID_RECORD", Message: msg})
			continue
		}
		records = append(records, importRecord{line: lineNum, run: rec.Run})
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, ImportError{Line: lineNum, Code: "READ_ERROR", Message: fmt.Sprintf("failed to read file: %v", err)})
	}
	return records, errs
}

func validateRecord(r *market.Run) string {
	switch {
	case r.ID == "":
		return "missing id field"
	case strings.TrimSpace(r.Title) == "":
		return "missing title field"
	case !r.Status.Valid():
		return fmt.Sprintf("invalid status %q", r.Status)
	}
	for i := range r.Items {
		it := &r.Items[i]
		if it.ID == "" || strings.TrimSpace(it.Name) == "" {
			return fmt.Sprintf("item %d is missing id or name", i+1)
		}
		if it.Category == "" {
			it.Category = market.DefaultCategory
		}
	}
	return ""
}
