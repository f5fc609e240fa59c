package session

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind groups recognizer failures by what the user can do about them.
type ErrorKind string

const (
	KindPermission ErrorKind = "permission"
	KindNetwork    ErrorKind = "network"
	KindAudio      ErrorKind = "audio"
	KindService    ErrorKind = "service"
	KindUnknown    ErrorKind = "unknown"
)

// VoiceError is a recognizer or speech failure described for the user.
type VoiceError struct {
	Kind        ErrorKind `json:"kind"`
	Code        string    `json:"code"`
	Message     string    `json:"message"`
	Suggestion  string    `json:"suggestion"`
	Recoverable bool      `json:"recoverable"`
}

// Error implements the error interface.
func (e *VoiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ClassifyRecognizerError maps a recognizer error code such as "no-speech"
// to a VoiceError. language is only used in the unsupported-language message.
func ClassifyRecognizerError(code, language string) *VoiceError {
	switch code {
	case "network":
		return &VoiceError{KindNetwork, "NETWORK_ERROR",
			"Network connection failed",
			"Check your internet connection and try again", true}
	case "not-allowed":
		return &VoiceError{KindPermission, "PERMISSION_DENIED",
			"Microphone access was denied",
			"Allow microphone access for this app and try again", true}
	case "no-speech":
		return &VoiceError{KindAudio, "NO_SPEECH",
			"No speech was detected",
			"Make sure your microphone is working and speak clearly", true}
	case "audio-capture":
		return &VoiceError{KindAudio, "AUDIO_CAPTURE_FAILED",
			"Could not capture audio from microphone",
			"Check that your microphone is connected and not being used by another app", true}
	case "service-not-allowed":
		return &VoiceError{KindService, "SERVICE_BLOCKED",
			"Speech recognition service is blocked",
			"Check your settings and ensure speech services are enabled", false}
	case "language-not-supported":
		if language == "" {
			language = "en-US"
		}
		return &VoiceError{KindService, "LANGUAGE_NOT_SUPPORTED",
			fmt.Sprintf("Language %q is not supported", language),
			"Try switching to English (en-US)", true}
	case "aborted":
		return &VoiceError{KindService, "RECOGNITION_ABORTED",
			"Speech recognition was stopped",
			"This is usually normal. Try starting voice recognition again", true}
	}
	return &VoiceError{KindUnknown, strings.ToUpper(strings.ReplaceAll(code, "-", "_")),
		fmt.Sprintf("Speech recognition error: %s", code),
		"Try restarting voice recognition", true}
}

// speechError wraps a failure to speak a reply.
func speechError(err error) *VoiceError {
	return &VoiceError{KindAudio, "SPEECH_FAILED",
		fmt.Sprintf("Could not speak the reply: %v", err),
		"Check your audio output device", true}
}

// startError wraps a failure to (re)start the recognizer.
func startError(err error) *VoiceError {
	var ve *VoiceError
	if errors.As(err, &ve) {
		return ve
	}
	return &VoiceError{KindUnknown, "START_FAILED",
		fmt.Sprintf("Failed to start speech recognition: %v", err),
		"Check your microphone and try again", false}
}
