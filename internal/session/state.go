// Package session drives a voice conversation: it accepts transcripts from a
// recognizer, turns final ones into dispatched commands and speaks the reply.
//
// The session is an explicit state machine. Transcripts are only accepted
// while listening, and the recognizer is stopped for as long as the session
// is speaking so the reply is never captured as input.
package session

import (
	"errors"
	"fmt"
)

// State is the session lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
	StateError      State = "error"
)

// ErrInvalidTransition is returned for a state change the table forbids.
var ErrInvalidTransition = errors.New("invalid session state transition")

var transitions = map[State][]State{
	StateIdle:       {StateListening, StateError},
	StateListening:  {StateProcessing, StateIdle, StateError},
	StateProcessing: {StateSpeaking, StateListening, StateIdle, StateError},
	StateSpeaking:   {StateListening, StateIdle, StateError},
	StateError:      {StateIdle, StateListening},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
