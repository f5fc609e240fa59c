package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/martruns/martruns/internal/config"
	"github.com/martruns/martruns/internal/errors"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
}

func TestValidatePath_Rejected(t *testing.T) {
	unsafe := config.DefaultConfig()
	unsafe.AllowUnsafePaths = true

	tests := []struct {
		name string
		path string
		cfg  *config.Config
	}{
		{"parent traversal", "../backup.jsonl", config.DefaultConfig()},
		{"mid-path traversal", "/tmp/../etc/backup.jsonl", config.DefaultConfig()},
		{"no extension", "/tmp/backup", unsafe},
		{"wrong extension", "/tmp/backup.json", unsafe},
		{"outside allowed dirs", "/tmp/backup.jsonl", config.DefaultConfig()},
		{"empty", "", unsafe},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePath(tc.path, PathCheckWrite, tc.cfg)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("ValidatePath(%q) = %v, want INVALID_REQUEST", tc.path, err)
			}
		})
	}
}

func TestValidatePath_AllowUnsafePaths(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	existing := filepath.Join(tmpDir, "runs.jsonl")
	writeFile(t, existing)

	if err := ValidatePath(existing, PathCheckRead, cfg); err != nil {
		t.Errorf("read with AllowUnsafePaths: %v", err)
	}
	if err := ValidatePath(filepath.Join(tmpDir, "out.jsonl"), PathCheckWrite, cfg); err != nil {
		t.Errorf("write with AllowUnsafePaths: %v", err)
	}
}

func TestValidatePath_AllowedPaths(t *testing.T) {
	allowed := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{allowed}

	inside := filepath.Join(allowed, "runs.jsonl")
	writeFile(t, inside)
	if err := ValidatePath(inside, PathCheckRead, cfg); err != nil {
		t.Errorf("path in AllowedPaths: %v", err)
	}

	outside := filepath.Join(t.TempDir(), "runs.jsonl")
	writeFile(t, outside)
	if err := ValidatePath(outside, PathCheckRead, cfg); err == nil {
		t.Error("expected error for path outside AllowedPaths")
	}

	sub := filepath.Join(allowed, "nested")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := ValidatePath(filepath.Join(sub, "out.jsonl"), PathCheckWrite, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("nested path error = %v, want INVALID_REQUEST", err)
	}
}

func TestValidatePath_FileNotFound_ReadMode(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	err := ValidatePath(filepath.Join(t.TempDir(), "missing.jsonl"), PathCheckRead, cfg)
	if !errors.Is(err, errors.ErrFileNotFound) {
		t.Errorf("error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestValidatePath_SymlinkRejected(t *testing.T) {
	allowed := t.TempDir()
	target := filepath.Join(t.TempDir(), "secret.jsonl")
	writeFile(t, target)

	link := filepath.Join(allowed, "link.jsonl")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	restricted := config.DefaultConfig()
	restricted.AllowedPaths = []string{allowed}
	unsafe := config.DefaultConfig()
	unsafe.AllowUnsafePaths = true

	for _, cfg := range []*config.Config{restricted, unsafe} {
		for _, mode := range []PathCheckMode{PathCheckRead, PathCheckWrite} {
			if err := ValidatePath(link, mode, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("symlink (unsafe=%v, mode=%d) error = %v, want INVALID_REQUEST",
					cfg.AllowUnsafePaths, mode, err)
			}
		}
	}
}

func TestContainsTraversal(t *testing.T) {
	tests := []struct {
		path     string
		contains bool
	}{
		{"/home/user/runs.jsonl", false},
		{"../runs.jsonl", true},
		{"/home/../etc/passwd", true},
		{"./runs.jsonl", false},
		{"weekly..run.jsonl", false},
		{"/tmp/a/b/../c.jsonl", true},
	}

	for _, tc := range tests {
		if got := containsTraversal(tc.path); got != tc.contains {
			t.Errorf("containsTraversal(%q) = %v, want %v", tc.path, got, tc.contains)
		}
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"weekly", "weekly"},
		{"Market Run - 3/7/2026", "Market Run - 3-7-2026"},
		{"path\\to\\file", "path-to-file"},
		{"../../../etc/passwd", "etc-passwd"},
		{"foo\x00bar", "foobar"},
		{"../../..", "unnamed"},
		{"épicerie", "épicerie"},
		{"a---b", "a-b"},
	}

	for _, tc := range tests {
		if got := SanitizeForFilename(tc.input); got != tc.expected {
			t.Errorf("SanitizeForFilename(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}
