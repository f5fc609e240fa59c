package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/martruns/martruns/internal/db"
	"github.com/martruns/martruns/internal/errors"
	"github.com/martruns/martruns/internal/market"
)

// ExportSchemaVersion is written to the header line of every export.
const ExportSchemaVersion = "1.0"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path   string        // optional, default: ~/.martruns/exports/<status|all>-<timestamp>.jsonl
	Status market.Status // optional filter
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a JSONL export file.
type ExportHeader struct {
	Export        bool   `json:"_martruns_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// Export writes runs, one JSON object per line, after a header line. The
// file is written to a temporary name and renamed into place, so a failed
// export leaves any existing file untouched.
func (s *Store) Export(ctx context.Context, input ExportInput) (*ExportOutput, error) {
	if input.Status != "" && !input.Status.Valid() {
		return nil, errors.NewInvalidRequest("status must be one of: planning, shopping, completed")
	}
	now := s.now()
	exportedAt := now.Unix()

	exportPath := input.Path
	if exportPath == "" {
		dir, err := DefaultExportsDir()
		if err != nil {
			return nil, err
		}
		name := "all"
		if input.Status != "" {
			name = SanitizeForFilename(string(input.Status))
		}
		exportPath = filepath.Join(dir, fmt.Sprintf("%s-%s.jsonl", name, now.Format("2006-01-02T150405")))
	}
	if err := ValidatePath(exportPath, PathCheckWrite, s.cfg); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	runs, _, err := db.ListRuns(ctx, s.db, db.RunFilter{Status: input.Status})
	if err != nil {
		return nil, err
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	enc := json.NewEncoder(file)
	if err := enc.Encode(ExportHeader{Export: true, SchemaVersion: ExportSchemaVersion, ExportedAt: exportedAt}); err != nil {
		return nil, errors.NewInternal(err)
	}
	for i := range runs {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("export")
		}
		if err := enc.Encode(&runs[i]); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	// Close before rename (required on Windows)
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	if isSymlink(exportPath) {
		return nil, errors.NewInvalidRequest("export path is a symlink")
	}
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Count:      len(runs),
		ExportedAt: exportedAt,
	}, nil
}
