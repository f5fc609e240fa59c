// Package mcp exposes the voice pipeline and run operations as MCP tools
// over stdio.
package mcp

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/martruns/martruns/internal/config"
	"github.com/martruns/martruns/internal/logging"
	"github.com/martruns/martruns/internal/ops"
)

// KnownTypes lists all valid tool type names.
var KnownTypes = []string{"voice", "run"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"voice_command": {
		def:     voiceCommandToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVoiceCommand },
	},
	"voice_parse": {
		def:     voiceParseToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVoiceParse },
	},
	"voice_suggest": {
		def:     voiceSuggestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVoiceSuggest },
	},
	"voice_wake": {
		def:     voiceWakeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVoiceWake },
	},
	"run_current": {
		def:     runCurrentToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunCurrent },
	},
	"run_list": {
		def:     runListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunList },
	},
	"run_get": {
		def:     runGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunGet },
	},
	"run_create": {
		def:     runCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunCreate },
	},
	"run_update": {
		def:     runUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunUpdate },
	},
	"run_complete": {
		def:     runCompleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunComplete },
	},
	"run_duplicate": {
		def:     runDuplicateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunDuplicate },
	},
	"run_delete": {
		def:     runDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunDelete },
	},
	"run_stats": {
		def:     runStatsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunStats },
	},
	"run_export": {
		def:     runExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunExport },
	},
	"run_import": {
		def:     runImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRunImport },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "run_list" → "run").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with martruns tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(store *ops.Store, cfg *config.Config, logger *zap.Logger, version string) *server.MCPServer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger = logging.OrNop(logger)

	s := server.NewMCPServer(
		"martruns",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(store, cfg, logger)

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			logger.Debug("tool disabled", zap.String("tool", name))
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(store *ops.Store, cfg *config.Config, logger *zap.Logger, version string) error {
	s := NewServer(store, cfg, logger, version)
	return server.ServeStdio(s)
}
