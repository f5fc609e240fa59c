package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Currency is the symbol used verbatim in generated responses.
	Currency string `json:"currency,omitempty"`

	// WakeWords replaces the built-in wake phrase list when non-empty.
	WakeWords []string `json:"wake_words,omitempty"`

	// PhoneticWake enables sound-alike wake word detection in addition to
	// substring matching.
	PhoneticWake bool `json:"phonetic_wake,omitempty"`

	// RequireWakeWord makes the voice session ignore final transcripts that do
	// not contain a wake word.
	RequireWakeWord bool `json:"require_wake_word,omitempty"`

	// FinalDelayMS is how long a final transcript waits for a newer final
	// before it is processed. Negative disables the delay.
	FinalDelayMS int `json:"final_delay_ms,omitempty"`

	// MinTranscriptChars drops final transcripts shorter than this.
	MinTranscriptChars int `json:"min_transcript_chars,omitempty"`

	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// AllowedPaths lists extra absolute directories that run exports and
	// imports may read from or write to, besides ~/.martruns/exports.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths lifts the directory restriction on export/import paths.
	// Symlinks are still rejected.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes disables every MCP tool of a type ("voice" or "run").
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Currency:           "$",
		FinalDelayMS:       800,
		MinTranscriptChars: 3,
		LogLevel:           "info",
	}
}

// FinalDelay returns FinalDelayMS as a duration; disabled delays are 0.
func (c *Config) FinalDelay() time.Duration {
	if c.FinalDelayMS <= 0 {
		return 0
	}
	return time.Duration(c.FinalDelayMS) * time.Millisecond
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.martruns) and repo (.martruns) directories.
// Repo config is found by walking upward from startDir to find the nearest .martruns/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .martruns/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".martruns", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw returns a zero-valued config (not defaults) if the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated,
// except WakeWords where a non-empty overlay replaces the base list.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Currency = strings.TrimSpace(overlay.Currency)
	if result.Currency == "" {
		result.Currency = base.Currency
	}

	result.LogLevel = strings.TrimSpace(overlay.LogLevel)
	if result.LogLevel == "" {
		result.LogLevel = base.LogLevel
	}

	result.FinalDelayMS = overlay.FinalDelayMS
	if result.FinalDelayMS == 0 {
		result.FinalDelayMS = base.FinalDelayMS
	}

	result.MinTranscriptChars = overlay.MinTranscriptChars
	if result.MinTranscriptChars == 0 {
		result.MinTranscriptChars = base.MinTranscriptChars
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Booleans: overlay wins if true, else base
	result.PhoneticWake = base.PhoneticWake || overlay.PhoneticWake
	result.RequireWakeWord = base.RequireWakeWord || overlay.RequireWakeWord
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	result.WakeWords = mergeStringSlice(nil, overlay.WakeWords)
	if result.WakeWords == nil {
		result.WakeWords = mergeStringSlice(nil, base.WakeWords)
	}
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s != "" && !seen[s] {
				seen[s] = true
				result = append(result, s)
			}
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
