package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/martruns/martruns/internal/logging"
	"github.com/martruns/martruns/internal/market"
	"github.com/martruns/martruns/internal/voice"
)

const (
	defaultMinChars    = 3
	defaultRecentLimit = 10
)

// Config controls transcript handling.
type Config struct {
	// FinalDelay is how long a final transcript waits for a newer one.
	// Only the last final in the window is processed. 0 processes at once.
	FinalDelay time.Duration

	// MinTranscriptChars drops shorter final transcripts. Default 3.
	MinTranscriptChars int

	// RequireWakeWord ignores finals that do not contain a wake phrase.
	RequireWakeWord bool

	// Currency is used in replies. Default "$".
	Currency string

	// Language is reported in unsupported-language errors.
	Language string

	// RecentLimit caps the command history passed to the parser. Default 10.
	RecentLimit int
}

// Deps are the collaborators a Session drives. Recognizer, Speaker, Runs and
// Events are optional.
type Deps struct {
	Parser     *voice.Parser
	Dispatcher Dispatcher
	Wake       *voice.WakeDetector
	Runs       RunSource
	Recognizer Recognizer
	Speaker    Speaker
	Events     EventSink
	Logger     *zap.Logger
}

// Session is a single voice conversation.
type Session struct {
	parser     *voice.Parser
	dispatcher Dispatcher
	wake       *voice.WakeDetector
	runs       RunSource
	rec        Recognizer
	speaker    Speaker
	events     EventSink
	logger     *zap.Logger
	cfg        Config

	mu       sync.Mutex
	state    State
	recent   []voice.Command
	pending  *time.Timer
	gen      uint64
	inFlight sync.WaitGroup
}

// New returns an idle Session.
func New(deps Deps, cfg Config) *Session {
	if cfg.MinTranscriptChars <= 0 {
		cfg.MinTranscriptChars = defaultMinChars
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = defaultRecentLimit
	}
	if cfg.Currency == "" {
		cfg.Currency = "$"
	}
	s := &Session{
		parser:     deps.Parser,
		dispatcher: deps.Dispatcher,
		wake:       deps.Wake,
		runs:       deps.Runs,
		rec:        deps.Recognizer,
		speaker:    deps.Speaker,
		events:     deps.Events,
		logger:     logging.OrNop(deps.Logger),
		cfg:        cfg,
		state:      StateIdle,
	}
	if s.parser == nil {
		s.parser = voice.NewParser()
	}
	if s.wake == nil {
		s.wake = voice.NewWakeDetector(nil)
	}
	if s.events == nil {
		s.events = NopSink{}
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Recent returns the commands handled so far, oldest first.
func (s *Session) Recent() []voice.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]voice.Command(nil), s.recent...)
}

// Start begins listening.
func (s *Session) Start(ctx context.Context) error {
	if err := s.transition(StateListening); err != nil {
		return err
	}
	if s.rec != nil {
		if err := s.rec.Start(ctx); err != nil {
			ve := startError(err)
			s.fail(ve)
			return ve
		}
	}
	return nil
}

// Stop ends the session and discards any pending final transcript.
func (s *Session) Stop() error {
	s.mu.Lock()
	s.cancelPendingLocked()
	from := s.state
	s.mu.Unlock()

	if from == StateIdle {
		return nil
	}
	if err := s.transition(StateIdle); err != nil {
		return err
	}
	if s.rec != nil && from != StateSpeaking {
		return s.rec.Stop()
	}
	return nil
}

// Wait blocks until every accepted final transcript has been handled.
func (s *Session) Wait() {
	s.inFlight.Wait()
}

// HandleTranscript accepts a recognizer result. Interim results are only
// reported to the event sink. Results that arrive outside the listening
// state are dropped.
func (s *Session) HandleTranscript(ctx context.Context, t Transcript) {
	t.Text = strings.TrimSpace(t.Text)

	s.mu.Lock()
	if s.state != StateListening {
		s.mu.Unlock()
		s.logger.Debug("transcript dropped", zap.String("state", string(s.State())), zap.Bool("final", t.Final))
		return
	}
	if !t.Final {
		s.mu.Unlock()
		s.events.Interim(t)
		return
	}

	s.cancelPendingLocked()
	s.gen++
	gen := s.gen
	s.inFlight.Add(1)
	if s.cfg.FinalDelay <= 0 {
		s.mu.Unlock()
		s.handleFinal(ctx, t, gen)
		return
	}
	s.pending = time.AfterFunc(s.cfg.FinalDelay, func() {
		s.handleFinal(ctx, t, gen)
	})
	s.mu.Unlock()
}

// HandleError reports a recognizer error code. Recoverable errors return the
// session to idle; others leave it in the error state.
func (s *Session) HandleError(code string) *VoiceError {
	ve := ClassifyRecognizerError(code, s.cfg.Language)
	s.mu.Lock()
	s.cancelPendingLocked()
	s.mu.Unlock()

	if ve.Recoverable {
		s.logger.Warn("recognizer error", zap.String("code", ve.Code))
		s.events.Error(ve)
		_ = s.transition(StateIdle)
		return ve
	}
	s.fail(ve)
	return ve
}

// cancelPendingLocked stops a debounced final that has not fired yet.
func (s *Session) cancelPendingLocked() {
	if s.pending != nil && s.pending.Stop() {
		s.inFlight.Done()
	}
	s.pending = nil
}

func (s *Session) handleFinal(ctx context.Context, t Transcript, gen uint64) {
	defer s.inFlight.Done()

	s.mu.Lock()
	stale := gen != s.gen
	if s.pending != nil && !stale {
		s.pending = nil
	}
	s.mu.Unlock()
	if stale {
		return
	}

	if utf8.RuneCountInString(t.Text) < s.cfg.MinTranscriptChars {
		s.logger.Debug("transcript too short", zap.String("text", t.Text))
		return
	}

	text, alts := t.Text, t.Alternatives
	if s.cfg.RequireWakeWord {
		rest, ok := s.wake.Strip(text)
		if !ok || strings.TrimSpace(rest) == "" {
			s.logger.Debug("no wake word", zap.String("text", text))
			return
		}
		text, alts = rest, nil
	}

	if err := s.compareAndTransition(StateListening, StateProcessing); err != nil {
		s.logger.Debug("final transcript dropped", zap.Error(err))
		return
	}
	out := s.process(ctx, text, alts)
	s.reply(ctx, out)
	s.events.Handled(out)
}

// Process parses and dispatches text outside the recognizer flow and returns
// the outcome without speaking it.
func (s *Session) Process(ctx context.Context, text string) Outcome {
	return s.process(ctx, text, nil)
}

func (s *Session) process(ctx context.Context, text string, alts []string) Outcome {
	run := s.currentRun(ctx)
	cctx := voice.Context{
		CurrentRun:     run,
		CurrentPage:    voice.PageHome,
		RecentCommands: s.Recent(),
		Currency:       s.cfg.Currency,
	}

	var cmd voice.Command
	if len(alts) > 0 {
		best, err := s.parser.ParseAlternatives(ctx, append([]string{text}, alts...), cctx)
		if err != nil {
			best = s.parser.Parse(text, cctx)
		}
		cmd = best
	} else {
		cmd = s.parser.Parse(text, cctx)
	}

	res := s.dispatcher.Dispatch(ctx, cmd, cctx)
	s.remember(cmd)

	return Outcome{
		Transcript: text,
		Command:    cmd,
		Response:   res,
		Reply:      voice.Respond(cmd, res, cctx),
	}
}

// reply speaks the outcome with the recognizer paused, then resumes
// listening. A session stopped meanwhile stays stopped.
func (s *Session) reply(ctx context.Context, out Outcome) {
	if s.speaker == nil {
		_ = s.compareAndTransition(StateProcessing, StateListening)
		return
	}

	if s.rec != nil {
		if err := s.rec.Stop(); err != nil {
			s.logger.Warn("failed to pause recognizer", zap.Error(err))
		}
	}
	if err := s.compareAndTransition(StateProcessing, StateSpeaking); err != nil {
		return
	}
	if err := s.speaker.Speak(ctx, out.Reply); err != nil {
		ve := speechError(err)
		s.logger.Warn("speech failed", zap.Error(err))
		s.events.Error(ve)
	}
	if err := s.compareAndTransition(StateSpeaking, StateListening); err != nil {
		return
	}
	if s.rec != nil {
		if err := s.rec.Start(ctx); err != nil {
			s.fail(startError(err))
		}
	}
}

func (s *Session) currentRun(ctx context.Context) *market.Run {
	if s.runs == nil {
		return nil
	}
	run, err := s.runs.CurrentRun(ctx)
	if err != nil {
		s.logger.Debug("no current run for parsing", zap.Error(err))
		return nil
	}
	return run
}

func (s *Session) remember(cmd voice.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, cmd)
	if over := len(s.recent) - s.cfg.RecentLimit; over > 0 {
		s.recent = append([]voice.Command(nil), s.recent[over:]...)
	}
}

func (s *Session) fail(ve *VoiceError) {
	s.logger.Error("voice session error", zap.String("code", ve.Code), zap.String("message", ve.Message))
	s.events.Error(ve)
	_ = s.transition(StateError)
}

func (s *Session) transition(to State) error {
	s.mu.Lock()
	from := s.state
	if err := checkTransition(from, to); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = to
	s.mu.Unlock()
	s.events.StateChanged(from, to)
	return nil
}

func (s *Session) compareAndTransition(from, to State) error {
	s.mu.Lock()
	if s.state != from {
		cur := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s while %s", ErrInvalidTransition, from, to, cur)
	}
	if err := checkTransition(from, to); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = to
	s.mu.Unlock()
	s.events.StateChanged(from, to)
	return nil
}
