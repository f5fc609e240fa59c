package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/martruns/martruns/internal/config"
	"github.com/martruns/martruns/internal/dispatch"
	"github.com/martruns/martruns/internal/errors"
	"github.com/martruns/martruns/internal/market"
	"github.com/martruns/martruns/internal/ops"
	"github.com/martruns/martruns/internal/session"
	"github.com/martruns/martruns/internal/voice"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store   *ops.Store
	cfg     *config.Config
	logger  *zap.Logger
	parser  *voice.Parser
	wake    *voice.WakeDetector
	session *session.Session
}

// NewHandlers creates a new Handlers instance. Voice commands share one
// session, so recent commands carry over between calls.
func NewHandlers(store *ops.Store, cfg *config.Config, logger *zap.Logger) *Handlers {
	parser := voice.NewParser()
	wake := voice.NewWakeDetector(cfg.WakeWords, voice.WithPhonetic(cfg.PhoneticWake))
	sess := session.New(session.Deps{
		Parser:     parser,
		Dispatcher: dispatch.New(store, logger),
		Wake:       wake,
		Runs:       store,
		Logger:     logger,
	}, session.Config{
		Currency: cfg.Currency,
	})
	return &Handlers{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		parser:  parser,
		wake:    wake,
		session: sess,
	}
}

// Request types for each tool

// VoiceCommandRequest represents the arguments for voice_command.
type VoiceCommandRequest struct {
	Text        string `json:"text"`
	RequireWake bool   `json:"require_wake,omitempty"`
}

// VoiceParseRequest represents the arguments for voice_parse.
type VoiceParseRequest struct {
	Text string `json:"text"`
}

// VoiceSuggestRequest represents the arguments for voice_suggest.
type VoiceSuggestRequest struct {
	Partial string `json:"partial"`
}

// VoiceWakeRequest represents the arguments for voice_wake.
type VoiceWakeRequest struct {
	Transcript string `json:"transcript"`
}

// RunIDRequest represents the arguments for tools addressing one run.
type RunIDRequest struct {
	ID string `json:"id"`
}

// RunListRequest represents the arguments for run_list.
type RunListRequest struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// RunCreateRequest represents the arguments for run_create.
type RunCreateRequest struct {
	Title         string   `json:"title,omitempty"`
	Budget        *float64 `json:"budget,omitempty"`
	ScheduledDate *string  `json:"scheduled_date,omitempty"`
}

// RunUpdateRequest represents the arguments for run_update.
type RunUpdateRequest struct {
	ID            string   `json:"id"`
	Title         *string  `json:"title,omitempty"`
	Budget        *float64 `json:"budget,omitempty"`
	Status        *string  `json:"status,omitempty"`
	ScheduledDate *string  `json:"scheduled_date,omitempty"`
}

// RunDuplicateRequest represents the arguments for run_duplicate.
type RunDuplicateRequest struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// RunExportRequest represents the arguments for run_export.
type RunExportRequest struct {
	Path   string `json:"path,omitempty"`
	Status string `json:"status,omitempty"`
}

// RunImportRequest represents the arguments for run_import.
type RunImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// Output types

// VoiceCommandOutput is the result of voice_command. Ignored is set when a
// wake phrase was required but not heard; nothing was parsed then.
type VoiceCommandOutput struct {
	session.Outcome
	Ignored bool `json:"ignored,omitempty"`
}

// VoiceWakeOutput is the result of voice_wake.
type VoiceWakeOutput struct {
	Detected bool   `json:"detected"`
	Command  string `json:"command"`
}

// RunOutput is a run with its stats.
type RunOutput struct {
	Run *ops.RunSummary `json:"run"`
}

// Handlers

// HandleVoiceCommand parses and applies one utterance.
func (h *Handlers) HandleVoiceCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[VoiceCommandRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	text, heard := h.wake.Strip(r.Text)
	if !heard {
		if r.RequireWake || h.cfg.RequireWakeWord {
			return successResult(VoiceCommandOutput{Outcome: session.Outcome{Transcript: r.Text}, Ignored: true})
		}
		text = r.Text
	}

	out := h.session.Process(ctx, text)
	h.logger.Info("voice command",
		zap.String("intent", string(out.Command.Intent)),
		zap.Bool("success", out.Response.Success),
	)
	return successResult(VoiceCommandOutput{Outcome: out})
}

// HandleVoiceParse parses an utterance against the current run without
// dispatching it.
func (h *Handlers) HandleVoiceParse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[VoiceParseRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	cctx, err := h.voiceContext(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(h.parser.Parse(r.Text, cctx))
}

// HandleVoiceSuggest returns example phrasings for a partial command.
func (h *Handlers) HandleVoiceSuggest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[VoiceSuggestRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	cctx, err := h.voiceContext(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	suggestions := voice.Suggestions(r.Partial, cctx)
	if suggestions == nil {
		suggestions = []string{}
	}
	return successResult(map[string]any{"suggestions": suggestions})
}

// HandleVoiceWake checks a transcript for a wake phrase.
func (h *Handlers) HandleVoiceWake(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[VoiceWakeRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	rest, ok := h.wake.Strip(r.Transcript)
	return successResult(VoiceWakeOutput{Detected: ok, Command: rest})
}

// HandleRunCurrent returns the active run, or a null run when there is none.
func (h *Handlers) HandleRunCurrent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	run, err := h.store.CurrentRun(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(RunOutput{Run: summarize(run)})
}

// HandleRunList lists runs.
func (h *Handlers) HandleRunList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[RunListRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.store.ListRuns(ctx, ops.ListRunsInput{
		Status: market.Status(r.Status),
		Limit:  r.Limit,
		Offset: r.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRunGet fetches one run.
func (h *Handlers) HandleRunGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[RunIDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	run, err := h.store.GetRun(ctx, r.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(RunOutput{Run: summarize(run)})
}

// HandleRunCreate creates a run.
func (h *Handlers) HandleRunCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[RunCreateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	id, err := h.store.CreateRun(ctx, market.NewRun{
		Title:         r.Title,
		Budget:        r.Budget,
		ScheduledDate: r.ScheduledDate,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return h.runResult(ctx, id)
}

// HandleRunUpdate patches a run.
func (h *Handlers) HandleRunUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[RunUpdateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	patch := market.RunPatch{
		Title:         r.Title,
		Budget:        r.Budget,
		ScheduledDate: r.ScheduledDate,
	}
	if r.Status != nil {
		status := market.Status(*r.Status)
		patch.Status = &status
	}
	if err := h.store.UpdateRun(ctx, r.ID, patch); err != nil {
		return errorResult(err), nil
	}
	return h.runResult(ctx, r.ID)
}

// HandleRunComplete marks a run completed.
func (h *Handlers) HandleRunComplete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[RunIDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	if err := h.store.CompleteRun(ctx, r.ID); err != nil {
		return errorResult(err), nil
	}
	return h.runResult(ctx, r.ID)
}

// HandleRunDuplicate copies a run.
func (h *Handlers) HandleRunDuplicate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[RunDuplicateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	id, err := h.store.DuplicateRun(ctx, r.ID, r.Title)
	if err != nil {
		return errorResult(err), nil
	}
	return h.runResult(ctx, id)
}

// HandleRunDelete deletes a run.
func (h *Handlers) HandleRunDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[RunIDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	if err := h.store.DeleteRun(ctx, r.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"id": r.ID, "deleted": true})
}

// HandleRunStats returns totals across all runs.
func (h *Handlers) HandleRunStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	totals, err := h.store.Totals(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(totals)
}

// HandleRunExport exports runs to JSONL.
func (h *Handlers) HandleRunExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[RunExportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.store.Export(ctx, ops.ExportInput{
		Path:   r.Path,
		Status: market.Status(r.Status),
	})
	if err != nil {
		return errorResult(err), nil
	}
	h.logger.Info("runs exported", zap.String("path", result.Path), zap.Int("count", result.Count))
	return successResult(result)
}

// HandleRunImport imports runs from JSONL.
func (h *Handlers) HandleRunImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[RunImportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.store.Import(ctx, ops.ImportInput{
		Path: r.Path,
		Mode: ops.ImportMode(r.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}
	h.logger.Info("runs imported", zap.Int("imported", result.Imported), zap.Int("skipped", result.Skipped))
	return successResult(result)
}

// Helper functions

func (h *Handlers) voiceContext(ctx context.Context) (voice.Context, error) {
	run, err := h.store.CurrentRun(ctx)
	if err != nil {
		return voice.Context{}, err
	}
	return voice.Context{
		CurrentRun:     run,
		CurrentPage:    voice.PageHome,
		RecentCommands: h.session.Recent(),
		Currency:       h.cfg.Currency,
	}, nil
}

func (h *Handlers) runResult(ctx context.Context, id string) (*mcp.CallToolResult, error) {
	run, err := h.store.GetRun(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(RunOutput{Run: summarize(run)})
}

func summarize(run *market.Run) *ops.RunSummary {
	if run == nil {
		return nil
	}
	return &ops.RunSummary{Run: *run, Stats: market.ComputeStats(run)}
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var mErr *errors.MarketError
	if errors.As(err, &mErr) {
		errorObj := map[string]any{
			"code":    mErr.Code,
			"message": err.Error(),
			"status":  mErr.Status,
		}
		if err == error(mErr) {
			errorObj["message"] = mErr.Message
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if mErr.Code != errors.ErrInternal && mErr.Details != nil {
			errorObj["details"] = mErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
