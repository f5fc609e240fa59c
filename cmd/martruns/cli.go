package main

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/martruns/martruns/internal/config"
	"github.com/martruns/martruns/internal/dispatch"
	"github.com/martruns/martruns/internal/errors"
	"github.com/martruns/martruns/internal/market"
	mcpserver "github.com/martruns/martruns/internal/mcp"
	"github.com/martruns/martruns/internal/ops"
	"github.com/martruns/martruns/internal/session"
	"github.com/martruns/martruns/internal/voice"
	"github.com/martruns/martruns/internal/web"
)

// deps are the collaborators shared by every command.
type deps struct {
	store  *ops.Store
	cfg    *config.Config
	logger *zap.Logger
}

// newCLIApp creates the CLI application with all commands. d may be nil when
// only help or version output is needed.
func newCLIApp(d *deps) *cli.App {
	app := &cli.App{
		Name:    "martruns",
		Usage:   "Voice-driven shopping lists for market runs",
		Version: Version,
		Commands: []*cli.Command{
			sayCmd(d),
			parseCmd(d),
			suggestCmd(d),
			listenCmd(d),
			runsCmd(d),
			showCmd(d),
			createCmd(d),
			updateCmd(d),
			completeCmd(d),
			duplicateCmd(d),
			deleteCmd(d),
			statsCmd(d),
			exportCmd(d),
			importCmd(d),
			serveCmd(d),
			mcpCmd(d),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// newSession builds a voice session over the store. speaker may be nil.
func (d *deps) newSession(speaker session.Speaker, cfg session.Config) *session.Session {
	cfg.Currency = d.cfg.Currency
	if cfg.MinTranscriptChars == 0 {
		cfg.MinTranscriptChars = d.cfg.MinTranscriptChars
	}
	return session.New(session.Deps{
		Parser:     voice.NewParser(),
		Dispatcher: dispatch.New(d.store, d.logger),
		Wake:       d.wakeDetector(),
		Runs:       d.store,
		Speaker:    speaker,
		Events:     logSink{logger: d.logger},
		Logger:     d.logger,
	}, cfg)
}

func (d *deps) wakeDetector() *voice.WakeDetector {
	return voice.NewWakeDetector(d.cfg.WakeWords, voice.WithPhonetic(d.cfg.PhoneticWake))
}

// sayCmd creates the say command.
func sayCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "say",
		Usage:     "Run one voice command, e.g. martruns say add 2 pounds of rice",
		ArgsUsage: "<utterance>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "reply", Aliases: []string{"r"}, Usage: "Print only the spoken reply"},
		},
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return outputError(errors.NewInvalidRequest("utterance is required"))
			}
			if rest, ok := d.wakeDetector().Strip(text); ok {
				text = rest
			}

			out := d.newSession(nil, session.Config{}).Process(c.Context, text)
			if c.Bool("reply") {
				_, err := fmt.Fprintln(c.App.Writer, out.Reply)
				return err
			}
			return outputJSON(c, out)
		},
	}
}

// parseCmd creates the parse command.
func parseCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Parse an utterance without changing any run",
		ArgsUsage: "<utterance>",
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return outputError(errors.NewInvalidRequest("utterance is required"))
			}
			cctx, err := d.voiceContext(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, voice.NewParser().Parse(text, cctx))
		},
	}
}

// suggestCmd creates the suggest command.
func suggestCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "suggest",
		Usage:     "Show example phrasings for a partial command",
		ArgsUsage: "<partial>",
		Action: func(c *cli.Context) error {
			cctx, err := d.voiceContext(c.Context)
			if err != nil {
				return outputError(err)
			}
			suggestions := voice.Suggestions(strings.Join(c.Args().Slice(), " "), cctx)
			if suggestions == nil {
				suggestions = []string{}
			}
			return outputJSON(c, map[string]any{"suggestions": suggestions})
		},
	}
}

// listenCmd creates the listen command.
func listenCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "Feed recognizer transcripts from stdin through a voice session",
		Description: "Each plain line is a final transcript. JSON lines are read as\n" +
			`{"text":..., "final":..., "alternatives":[...]} or {"error":"<recognizer code>"}.` + "\n" +
			"Replies are printed to stdout as they would be spoken.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debounce", Usage: "Wait final_delay_ms for a newer final before handling one"},
			&cli.BoolFlag{Name: "require-wake", Usage: "Ignore transcripts without a wake phrase"},
		},
		Action: func(c *cli.Context) error {
			cfg := session.Config{
				RequireWakeWord: c.Bool("require-wake") || d.cfg.RequireWakeWord,
			}
			if c.Bool("debounce") {
				cfg.FinalDelay = d.cfg.FinalDelay()
			}
			sess := d.newSession(consoleSpeaker{w: c.App.Writer}, cfg)
			return listen(c.Context, sess, c.App.Reader, c.Bool("debounce"))
		},
	}
}

// listen drives sess from transcript lines in r until EOF.
func listen(ctx context.Context, sess *session.Session, r io.Reader, debounce bool) error {
	if err := sess.Start(ctx); err != nil {
		return outputError(err)
	}
	defer sess.Stop() //nolint:errcheck

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		t := session.Transcript{Text: line, Final: true, Confidence: 1}
		if strings.HasPrefix(line, "{") {
			var msg struct {
				session.Transcript
				Error string `json:"error"`
			}
			if err := json.Unmarshal([]byte(line), &msg); err != nil {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid transcript line: %v", err)))
			}
			if msg.Error != "" {
				if ve := sess.HandleError(msg.Error); !ve.Recoverable {
					return outputError(ve)
				}
				// Recoverable errors leave the session idle; resume listening.
				if err := sess.Start(ctx); err != nil {
					return outputError(err)
				}
				continue
			}
			t = msg.Transcript
		}

		sess.HandleTranscript(ctx, t)
		if !debounce {
			sess.Wait()
		}
	}
	sess.Wait()
	return scanner.Err()
}

// runsCmd creates the runs command.
func runsCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List market runs, most recently updated first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Filter by status: planning|shopping|completed"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			output, err := d.store.ListRuns(c.Context, ops.ListRunsInput{
				Status: market.Status(c.String("status")),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// showCmd creates the show command.
func showCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a run with its items and stats (default: the current run)",
		ArgsUsage: "[id]",
		Action: func(c *cli.Context) error {
			var (
				run *market.Run
				err error
			)
			if c.NArg() > 0 {
				run, err = d.store.GetRun(c.Context, c.Args().First())
			} else {
				run, err = d.store.CurrentRun(c.Context)
				if err == nil && run == nil {
					err = errors.NewNoActiveRun()
				}
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, ops.RunSummary{Run: *run, Stats: market.ComputeStats(run)})
		},
	}
}

// createCmd creates the create command.
func createCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a market run in planning status",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Run title (default: Market Run - <date>)"},
			&cli.Float64Flag{Name: "budget", Aliases: []string{"b"}, Usage: "Budget"},
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Scheduled date, RFC 3339 or YYYY-MM-DD"},
		},
		Action: func(c *cli.Context) error {
			in := market.NewRun{Title: c.String("title")}
			if c.IsSet("budget") {
				budget := c.Float64("budget")
				in.Budget = &budget
			}
			if date := c.String("date"); date != "" {
				in.ScheduledDate = &date
			}

			id, err := d.store.CreateRun(c.Context, in)
			if err != nil {
				return outputError(err)
			}
			return d.outputRun(c, id)
		},
	}
}

// updateCmd creates the update command.
func updateCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update a run's title, budget, status or scheduled date",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
			&cli.Float64Flag{Name: "budget", Aliases: []string{"b"}, Usage: "New budget"},
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "New status: planning|shopping|completed"},
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "New scheduled date"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}

			var patch market.RunPatch
			if c.IsSet("title") {
				title := c.String("title")
				patch.Title = &title
			}
			if c.IsSet("budget") {
				budget := c.Float64("budget")
				patch.Budget = &budget
			}
			if c.IsSet("status") {
				status := market.Status(c.String("status"))
				patch.Status = &status
			}
			if c.IsSet("date") {
				date := c.String("date")
				patch.ScheduledDate = &date
			}

			if err := d.store.UpdateRun(c.Context, id, patch); err != nil {
				return outputError(err)
			}
			return d.outputRun(c, id)
		},
	}
}

// completeCmd creates the complete command.
func completeCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "complete",
		Usage:     "Mark a run completed (default: the current run)",
		ArgsUsage: "[id]",
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if id == "" {
				run, err := d.store.CurrentRun(c.Context)
				if err != nil {
					return outputError(err)
				}
				if run == nil {
					return outputError(errors.NewNoActiveRun())
				}
				id = run.ID
			}

			if err := d.store.CompleteRun(c.Context, id); err != nil {
				return outputError(err)
			}
			return d.outputRun(c, id)
		},
	}
}

// duplicateCmd creates the duplicate command.
func duplicateCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "duplicate",
		Usage:     "Copy a run's items into a new planning run",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title for the copy (default: source title)"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}
			newID, err := d.store.DuplicateRun(c.Context, id, c.String("title"))
			if err != nil {
				return outputError(err)
			}
			return d.outputRun(c, newID)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a run and its items",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}
			if err := d.store.DeleteRun(c.Context, id); err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]any{"id": id, "deleted": true})
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Totals across all runs",
		Action: func(c *cli.Context) error {
			totals, err := d.store.Totals(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, totals)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export runs to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output file path (default: ~/.martruns/exports/<status|all>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Only export runs with this status"},
		},
		Action: func(c *cli.Context) error {
			output, err := d.store.Export(c.Context, ops.ExportInput{
				Path:   c.String("path"),
				Status: market.Status(c.String("status")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import runs from a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Input file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace|rename"},
		},
		Action: func(c *cli.Context) error {
			output, err := d.store.Import(c.Context, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8420, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			h, err := web.NewHandlers(d.store, d.cfg, d.logger, Version)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			srv, err := web.NewServer(h, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return web.Run(ctx, srv, d.logger)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server over stdio",
		Action: func(c *cli.Context) error {
			return runMCP(d)
		},
	}
}

func runMCP(d *deps) error {
	if unknown := mcpserver.ValidateDisabledTools(d.cfg.DisabledTools); len(unknown) > 0 {
		d.logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}
	if unknown := mcpserver.ValidateDisabledTypes(d.cfg.DisabledTypes); len(unknown) > 0 {
		d.logger.Warn("unknown types in disabled_types", zap.Strings("types", unknown))
	}
	return mcpserver.Run(d.store, d.cfg, d.logger, Version)
}

// Helper functions

func (d *deps) voiceContext(ctx context.Context) (voice.Context, error) {
	run, err := d.store.CurrentRun(ctx)
	if err != nil {
		return voice.Context{}, err
	}
	return voice.Context{CurrentRun: run, CurrentPage: voice.PageHome, Currency: d.cfg.Currency}, nil
}

func (d *deps) outputRun(c *cli.Context, id string) error {
	run, err := d.store.GetRun(c.Context, id)
	if err != nil {
		return outputError(err)
	}
	return outputJSON(c, ops.RunSummary{Run: *run, Stats: market.ComputeStats(run)})
}

func requireID(c *cli.Context) (string, error) {
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return "", outputError(errors.NewInvalidRequest("run id is required"))
	}
	// Flags after the first positional argument are not parsed.
	if c.Args().Len() > 1 {
		return "", outputError(errors.NewInvalidRequest(fmt.Sprintf(
			"unexpected arguments after id: %s (flags must come before the id)",
			strings.Join(c.Args().Tail(), " "))))
	}
	return id, nil
}

// outputJSON marshals result to the app writer as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var mErr *errors.MarketError
	if errors.As(err, &mErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", mErr.Code, mErr.Message), 1)
	}
	var ve *session.VoiceError
	if stderrors.As(err, &ve) {
		return cli.Exit(fmt.Sprintf("[%s] %s. %s", ve.Code, ve.Message, ve.Suggestion), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// consoleSpeaker "speaks" replies by printing them.
type consoleSpeaker struct {
	w io.Writer
}

func (s consoleSpeaker) Speak(_ context.Context, text string) error {
	_, err := fmt.Fprintf(s.w, "> %s\n", text)
	return err
}

// logSink reports session events through the logger.
type logSink struct {
	session.NopSink
	logger *zap.Logger
}

func (s logSink) StateChanged(from, to session.State) {
	s.logger.Debug("session state", zap.String("from", string(from)), zap.String("to", string(to)))
}

func (s logSink) Handled(o session.Outcome) {
	s.logger.Info("voice command",
		zap.String("intent", string(o.Command.Intent)),
		zap.Float64("confidence", o.Command.Confidence),
		zap.Bool("success", o.Response.Success),
	)
}

func (s logSink) Error(ve *session.VoiceError) {
	s.logger.Warn("voice error", zap.String("kind", string(ve.Kind)), zap.String("message", ve.Message))
}
