package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectWakeWord(t *testing.T) {
	assert.True(t, DetectWakeWord("hey martruns add milk", nil))
	assert.True(t, DetectWakeWord("Hey Matrons, what's on my list", nil))
	assert.True(t, DetectWakeWord("okay MARKET ASSISTANT", DefaultWakeWords))
	assert.False(t, DetectWakeWord("what time is it", nil))
	assert.False(t, DetectWakeWord("", nil))

	assert.True(t, DetectWakeWord("computer add eggs", []string{"computer"}))
	assert.False(t, DetectWakeWord("hey martruns", []string{"computer"}))
}

func TestStripWakeWord(t *testing.T) {
	tests := []struct {
		in   string
		rest string
		ok   bool
	}{
		{"hey martruns add milk", "add milk", true},
		{"Hey Martruns, add milk", "add milk", true},
		{"um hey mart runs I need eggs", "i need eggs", true},
		{"martruns", "", true},
		{"add milk", "add milk", false},
	}
	for _, tt := range tests {
		rest, ok := StripWakeWord(tt.in, nil)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.rest, rest, tt.in)
	}
}

func TestWakeDetector_Literal(t *testing.T) {
	d := NewWakeDetector(nil)
	assert.Equal(t, DefaultWakeWords, d.Words())
	assert.True(t, d.Detect("hey martruns add milk"))
	assert.False(t, d.Detect("hey mart rons add milk"))
	assert.False(t, d.Detect("what time is it"))
}

func TestWakeDetector_Phonetic(t *testing.T) {
	d := NewWakeDetector(nil, WithPhonetic(true))

	rest, ok := d.Strip("hey mart rons add milk")
	assert.True(t, ok)
	assert.Equal(t, "add milk", rest)

	assert.False(t, d.Detect("what time is it"))
	assert.False(t, d.Detect("hey there"))
}

func TestWakeDetector_CustomWords(t *testing.T) {
	d := NewWakeDetector([]string{"hello cart"}, WithPhonetic(true), WithWakeThresholds(0.9, 0.95))
	assert.True(t, d.Detect("hello cart add bread"))
	assert.False(t, d.Detect("hey martruns add bread"))
}
