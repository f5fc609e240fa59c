package mcp

import "github.com/mark3labs/mcp-go/mcp"

var statusEnum = mcp.Enum("planning", "shopping", "completed")

var voiceCommandToolDef = mcp.NewTool("voice_command",
	mcp.WithDescription("Parse a spoken shopping command, apply it to the current market run and return the spoken reply. A leading wake phrase such as \"hey market\" is stripped."),
	mcp.WithString("text", mcp.Required(), mcp.Description("Transcript of the utterance, e.g. \"add 2 pounds of rice\"")),
	mcp.WithBoolean("require_wake", mcp.Description("Ignore the command unless it contains a wake phrase")),
)

var voiceParseToolDef = mcp.NewTool("voice_parse",
	mcp.WithDescription("Parse an utterance into an intent, entity, amount and confidence without changing any run."),
	mcp.WithString("text", mcp.Required(), mcp.Description("Transcript of the utterance")),
)

var voiceSuggestToolDef = mcp.NewTool("voice_suggest",
	mcp.WithDescription("Suggest example phrasings for a partially spoken command."),
	mcp.WithString("partial", mcp.Required(), mcp.Description("Partial command text, e.g. \"add\" or \"complete\"")),
)

var voiceWakeToolDef = mcp.NewTool("voice_wake",
	mcp.WithDescription("Check whether a transcript contains a wake phrase and return the text after it."),
	mcp.WithString("transcript", mcp.Required(), mcp.Description("Transcript to check")),
)

var runCurrentToolDef = mcp.NewTool("run_current",
	mcp.WithDescription("Return the active market run with its items and stats, or null when no run is in planning or shopping."),
)

var runListToolDef = mcp.NewTool("run_list",
	mcp.WithDescription("List market runs, most recently updated first, with per-run stats."),
	mcp.WithString("status", statusEnum, mcp.Description("Only list runs with this status")),
	mcp.WithNumber("limit", mcp.Description("Max runs to return (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Runs to skip")),
)

var runGetToolDef = mcp.NewTool("run_get",
	mcp.WithDescription("Fetch one market run with its items and stats."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Run ID")),
)

var runCreateToolDef = mcp.NewTool("run_create",
	mcp.WithDescription("Create a market run in planning status. An empty title becomes \"Market Run - <date>\"."),
	mcp.WithString("title", mcp.Description("Run title")),
	mcp.WithNumber("budget", mcp.Description("Budget for the run")),
	mcp.WithString("scheduled_date", mcp.Description("Planned date, RFC 3339 or YYYY-MM-DD")),
)

var runUpdateToolDef = mcp.NewTool("run_update",
	mcp.WithDescription("Update a market run's title, budget, status or scheduled date. Omitted fields are unchanged."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Run ID")),
	mcp.WithString("title", mcp.Description("New title")),
	mcp.WithNumber("budget", mcp.Description("New budget")),
	mcp.WithString("status", statusEnum, mcp.Description("New status")),
	mcp.WithString("scheduled_date", mcp.Description("New planned date, RFC 3339 or YYYY-MM-DD")),
)

var runCompleteToolDef = mcp.NewTool("run_complete",
	mcp.WithDescription("Mark a market run completed."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Run ID")),
)

var runDuplicateToolDef = mcp.NewTool("run_duplicate",
	mcp.WithDescription("Copy a run's items into a new planning run. Copied items are unchecked and lose their actual prices."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Run ID to copy")),
	mcp.WithString("title", mcp.Description("Title for the copy (default: source title)")),
)

var runDeleteToolDef = mcp.NewTool("run_delete",
	mcp.WithDescription("Delete a market run and its items."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Run ID")),
)

var runStatsToolDef = mcp.NewTool("run_stats",
	mcp.WithDescription("Totals across all runs: run counts, amount spent, amount saved and items bought."),
)

var runExportToolDef = mcp.NewTool("run_export",
	mcp.WithDescription("Export runs to a JSONL file."),
	mcp.WithString("path", mcp.Description("Output .jsonl path (default: ~/.martruns/exports/<status|all>-<timestamp>.jsonl)")),
	mcp.WithString("status", statusEnum, mcp.Description("Only export runs with this status")),
)

var runImportToolDef = mcp.NewTool("run_import",
	mcp.WithDescription("Import runs from a JSONL file written by run_export."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path of the .jsonl file")),
	mcp.WithString("mode", mcp.Enum("error", "replace", "rename"), mcp.Description("Collision handling (default: error)")),
)
