package session

import (
	"context"

	"github.com/martruns/martruns/internal/market"
	"github.com/martruns/martruns/internal/voice"
)

// Transcript is one recognizer result.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Final      bool    `json:"final"`

	// Alternatives are lower-ranked readings of the same audio
	Alternatives []string `json:"alternatives,omitempty"`
}

// Recognizer is the speech-to-text engine. Results arrive through
// Session.HandleTranscript and failures through Session.HandleError.
type Recognizer interface {
	Start(ctx context.Context) error
	Stop() error
}

// Speaker is the text-to-speech sink. Speak returns once the text has been
// spoken.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// RunSource supplies the current run snapshot for parsing.
type RunSource interface {
	CurrentRun(ctx context.Context) (*market.Run, error)
}

// Dispatcher applies a parsed command.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd voice.Command, cctx voice.Context) voice.Response
}

// Outcome is the result of handling one final transcript.
type Outcome struct {
	Transcript string         `json:"transcript"`
	Command    voice.Command  `json:"command"`
	Response   voice.Response `json:"response"`
	Reply      string         `json:"reply"`
}

// EventSink receives session events, typically to update a UI.
type EventSink interface {
	StateChanged(from, to State)
	Interim(t Transcript)
	Handled(o Outcome)
	Error(err *VoiceError)
}

// NopSink ignores all events.
type NopSink struct{}

func (NopSink) StateChanged(State, State) {}
func (NopSink) Interim(Transcript)        {}
func (NopSink) Handled(Outcome)           {}
func (NopSink) Error(*VoiceError)         {}
