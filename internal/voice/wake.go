package voice

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// DefaultWakeWords are the trigger phrases and the spellings recognizers
// commonly produce for them.
var DefaultWakeWords = []string{
	"hey martruns",
	"hey matrons",
	"hey mart runs",
	"hey mat runs",
	"hey martins",
	"market assistant",
	"hey market",
	"martruns",
	"matrons",
	"mart runs",
}

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// DetectWakeWord reports whether transcript contains any of wakeWords,
// ignoring case. An empty list means DefaultWakeWords.
func DetectWakeWord(transcript string, wakeWords []string) bool {
	_, ok := StripWakeWord(transcript, wakeWords)
	return ok
}

// StripWakeWord removes everything up to and including the earliest wake
// phrase in transcript and returns the rest in lowercase. When several
// phrases start at the same position the longest wins. ok is false when no
// phrase is present.
func StripWakeWord(transcript string, wakeWords []string) (rest string, ok bool) {
	if len(wakeWords) == 0 {
		wakeWords = DefaultWakeWords
	}
	text := strings.ToLower(transcript)

	at, end := -1, -1
	for _, w := range wakeWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		i := strings.Index(text, w)
		if i < 0 {
			continue
		}
		if at < 0 || i < at || (i == at && i+len(w) > end) {
			at, end = i, i+len(w)
		}
	}
	if at < 0 {
		return transcript, false
	}
	return strings.TrimLeft(text[end:], " ,.!?"), true
}

// WakeDetector matches wake phrases literally and, optionally, by sound.
// The phonetic pass catches spellings that are not in the list, such as
// "hey mart rons". It is read-only after construction.
type WakeDetector struct {
	words             []string
	phonetic          bool
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// WakeOption configures a WakeDetector.
type WakeOption func(*WakeDetector)

// WithPhonetic enables the Double Metaphone and Jaro-Winkler fallback.
func WithPhonetic(enabled bool) WakeOption {
	return func(d *WakeDetector) { d.phonetic = enabled }
}

// WithWakeThresholds sets the Jaro-Winkler scores required with and without
// a phonetic code match. Defaults are 0.70 and 0.85.
func WithWakeThresholds(phonetic, fuzzy float64) WakeOption {
	return func(d *WakeDetector) {
		d.phoneticThreshold = phonetic
		d.fuzzyThreshold = fuzzy
	}
}

// NewWakeDetector returns a detector for words, or DefaultWakeWords when
// words is empty.
func NewWakeDetector(words []string, opts ...WakeOption) *WakeDetector {
	if len(words) == 0 {
		words = DefaultWakeWords
	}
	d := &WakeDetector{
		words:             append([]string(nil), words...),
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Words returns the configured wake phrases.
func (d *WakeDetector) Words() []string {
	return append([]string(nil), d.words...)
}

// Detect reports whether transcript starts a command.
func (d *WakeDetector) Detect(transcript string) bool {
	_, ok := d.Strip(transcript)
	return ok
}

// Strip returns transcript with the wake phrase and anything before it
// removed.
func (d *WakeDetector) Strip(transcript string) (string, bool) {
	if rest, ok := StripWakeWord(transcript, d.words); ok {
		return rest, true
	}
	if !d.phonetic {
		return transcript, false
	}

	tokens := wakeTokens(transcript)
	for start := range tokens {
		bestScore, bestEnd := 0.0, -1
		for _, w := range d.words {
			wt := wakeTokens(w)
			if len(wt) == 0 {
				continue
			}
			for n := max(1, len(wt)-1); n <= len(wt)+1 && start+n <= len(tokens); n++ {
				if score, ok := d.soundsLike(tokens[start:start+n], wt); ok && score > bestScore {
					bestScore, bestEnd = score, start+n
				}
			}
		}
		if bestEnd >= 0 {
			return strings.Join(tokens[bestEnd:], " "), true
		}
	}
	return transcript, false
}

// soundsLike compares a transcript window against a wake phrase with spaces
// removed, so "mart rons" and "martruns" line up.
func (d *WakeDetector) soundsLike(window, wake []string) (float64, bool) {
	a := strings.Join(window, "")
	b := strings.Join(wake, "")
	if len(a)*2 < len(b) {
		return 0, false
	}
	score := matchr.JaroWinkler(a, b, false)
	if score >= d.fuzzyThreshold {
		return score, true
	}
	return score, score >= d.phoneticThreshold && codesOverlap(a, b)
}

func codesOverlap(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || x == bs {
			return true
		}
	}
	return false
}

func wakeTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
