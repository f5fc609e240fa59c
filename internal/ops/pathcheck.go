package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/martruns/martruns/internal/config"
	"github.com/martruns/martruns/internal/errors"
)

// PathCheckMode indicates whether the path check is for reading or writing.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // import
	PathCheckWrite                      // export
)

// ValidatePath checks an export or import path. The path must:
//   - contain no ".." component
//   - end in .jsonl
//   - sit directly in ~/.martruns/exports or one of cfg.AllowedPaths
//     (no subdirectories), unless cfg.AllowUnsafePaths is set
//   - not be a symlink, and not have a symlinked parent
//
// Files must live directly in an allowed directory so no intermediate
// component can be swapped for a symlink between this check and the
// O_NOFOLLOW open.
func ValidatePath(path string, mode PathCheckMode, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != ".jsonl" {
		return errors.NewInvalidRequest("path must have .jsonl extension")
	}
	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		allowed, err := allowedDirs(cfg)
		if err != nil {
			return err
		}
		parent := filepath.Dir(absPath)
		if !isDirectlyIn(parent, allowed) {
			return errors.NewInvalidRequest(fmt.Sprintf(
				"file must be directly in an allowed directory (no subdirectories); allowed: %v", allowed))
		}
		if isSymlink(parent) {
			return errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	if mode == PathCheckRead {
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
	}
	if isSymlink(absPath) {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// DefaultExportsDir returns ~/.martruns/exports.
func DefaultExportsDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(homeDir, ".martruns", "exports"), nil
}

// allowedDirs returns the absolute allowed directories, with symlinked
// entries resolved to their targets. Relative AllowedPaths are ignored.
func allowedDirs(cfg *config.Config) ([]string, error) {
	def, err := DefaultExportsDir()
	if err != nil {
		return nil, err
	}
	dirs := []string{def}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				dirs = append(dirs, p)
			}
		}
	}

	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if isSymlink(abs) {
			if abs, err = filepath.EvalSymlinks(abs); err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
		}
		out = append(out, abs)
	}
	return out, nil
}

func isDirectlyIn(dir string, allowed []string) bool {
	dir = filepath.Clean(dir)
	for _, a := range allowed {
		if dir == filepath.Clean(a) {
			return true
		}
	}
	return false
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// containsTraversal reports whether any path component is "..", splitting on
// both the OS separator and "/".
func containsTraversal(path string) bool {
	split := func(r rune) bool { return r == '/' || r == filepath.Separator }
	for _, part := range strings.FieldsFunc(path, split) {
		if part == ".." {
			return true
		}
	}
	return false
}

// SanitizeForFilename makes s safe to embed in a file name: path separators
// and ".." become dashes, control characters are dropped, and runs of dashes
// collapse. An empty result becomes "unnamed".
func SanitizeForFilename(s string) string {
	s = strings.NewReplacer("/", "-", "\\", "-", "..", "-").Replace(s)

	var b strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			b.WriteRune(r)
		}
	}
	s = b.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")
	if s == "" {
		return "unnamed"
	}
	return s
}
