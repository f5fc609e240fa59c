package web

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/martruns/martruns/internal/config"
	"github.com/martruns/martruns/internal/errors"
	"github.com/martruns/martruns/internal/market"
	"github.com/martruns/martruns/internal/ops"
	"github.com/martruns/martruns/internal/session"
	"github.com/martruns/martruns/internal/voice"
)

const maxCommandBytes = 16 << 10

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	store    *ops.Store
	cfg      *config.Config
	renderer *Renderer
	session  *session.Session
	wake     *voice.WakeDetector
	logger   *zap.Logger
}

// CommandRequest is the body of POST /api/command.
type CommandRequest struct {
	Text string `json:"text"`
}

// CommandResponse is the result of POST /api/command.
type CommandResponse struct {
	session.Outcome
	Ignored bool `json:"ignored,omitempty"`
}

// HandleList handles GET /runs, listing runs most recently updated first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	result, err := h.store.ListRuns(r.Context(), ops.ListRunsInput{
		Status: market.Status(status),
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Market Runs",
			Version: h.renderer.version,
			Nav:     "runs",
		},
		Runs:       result.Runs,
		Pagination: result.Pagination,
		Status:     status,
	})
}

// HandleCurrent handles GET /runs/current. It shows the active run, or the run
// list when there is none.
func (h *Handlers) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.CurrentRun(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if run == nil {
		if wantsJSON(r) {
			renderJSON(w, http.StatusOK, map[string]any{"run": nil})
			return
		}
		http.Redirect(w, r, "/runs", http.StatusFound)
		return
	}
	h.renderRun(w, r, run, "current")
}

// HandleDetail handles GET /runs/{id} and renders a single run.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderRun(w, r, run, "runs")
}

func (h *Handlers) renderRun(w http.ResponseWriter, r *http.Request, run *market.Run, nav string) {
	stats := market.ComputeStats(run)
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"run": ops.RunSummary{Run: *run, Stats: stats}})
		return
	}

	items := make([]ItemView, len(run.Items))
	for i, it := range run.Items {
		items[i] = ItemView{Item: it, NoteHTML: renderMarkdown(it.Note)}
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   run.Title,
			Version: h.renderer.version,
			Nav:     nav,
		},
		Run:   run,
		Stats: stats,
		Items: items,
	})
}

// HandleComplete handles POST /runs/{id}/complete.
func (h *Handlers) HandleComplete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.CompleteRun(r.Context(), id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.logger.Info("run completed", zap.String("run_id", id))
	h.afterMutation(w, r, "/runs/"+id, map[string]any{"id": id, "status": market.StatusCompleted})
}

// HandleDuplicate handles POST /runs/{id}/duplicate. The optional form value
// "title" names the copy.
func (h *Handlers) HandleDuplicate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	newID, err := h.store.DuplicateRun(r.Context(), r.PathValue("id"), r.FormValue("title"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.afterMutation(w, r, "/runs/"+newID, map[string]any{"id": newID})
}

// HandleDelete handles DELETE /runs/{id}.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.DeleteRun(r.Context(), id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.logger.Info("run deleted", zap.String("run_id", id))
	h.afterMutation(w, r, "/runs", map[string]any{"id": id, "deleted": true})
}

// afterMutation answers a successful POST or DELETE: partial requests get an
// HX-Redirect header, JSON clients get body and everyone else a redirect.
func (h *Handlers) afterMutation(w http.ResponseWriter, r *http.Request, location string, body map[string]any) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", location)
		w.WriteHeader(http.StatusOK)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, body)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// HandleStats handles GET /stats with totals across every run.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	totals, err := h.store.Totals(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, totals)
		return
	}
	h.renderer.renderPage(w, r, "stats", StatsPageData{
		PageData: PageData{
			Title:   "Totals",
			Version: h.renderer.version,
			Nav:     "stats",
		},
		Totals: totals,
	})
}

// HandleCommand handles POST /api/command. It parses and applies one utterance.
// The text comes from a JSON body or the "text" form value. A wake phrase is
// stripped; when RequireWakeWord is set, text without one is ignored.
func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCommandBytes)

	var req CommandRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid JSON body"))
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
			return
		}
		req.Text = r.FormValue("text")
	}
	if strings.TrimSpace(req.Text) == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("text is required"))
		return
	}

	resp := CommandResponse{Outcome: session.Outcome{Transcript: req.Text}}
	text, heard := h.wake.Strip(req.Text)
	switch {
	case heard:
		resp.Outcome = h.session.Process(r.Context(), text)
	case h.cfg.RequireWakeWord:
		resp.Ignored = true
	default:
		resp.Outcome = h.session.Process(r.Context(), req.Text)
	}

	if !resp.Ignored {
		h.logger.Info("voice command",
			zap.String("intent", string(resp.Command.Intent)),
			zap.Float64("confidence", resp.Command.Confidence),
			zap.Bool("success", resp.Response.Success),
		)
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		class := "reply"
		if !resp.Ignored && !resp.Response.Success {
			class = "reply reply-failed"
		}
		_, _ = w.Write([]byte(`<div class="` + class + `">` + template.HTMLEscapeString(resp.Reply) + `</div>`))
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, resp)
		return
	}
	http.Redirect(w, r, "/runs/current", http.StatusSeeOther)
}

// HandleSuggest handles GET /api/suggest?partial=... with example phrasings.
func (h *Handlers) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.CurrentRun(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	suggestions := voice.Suggestions(r.URL.Query().Get("partial"), voice.Context{
		CurrentRun: run,
		Currency:   h.cfg.Currency,
	})
	if suggestions == nil {
		suggestions = []string{}
	}
	renderJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
