package capture

import (
	"strings"

	"github.com/sjawhar/aura-calm/internal/transcribe"
)

// UtteranceBuffer collects the words of is_final messages until the
// recognizer marks the utterance complete. Callers synchronize access.
type UtteranceBuffer struct {
	words    []transcribe.Word
	fallback []string
}

func NewUtteranceBuffer() *UtteranceBuffer {
	return &UtteranceBuffer{}
}

// Add appends one finalized chunk. When the chunk carries no word timings
// its transcript is kept instead.
func (b *UtteranceBuffer) Add(transcript string, words []transcribe.Word) {
	if len(words) > 0 {
		b.words = append(b.words, words...)
		return
	}
	if text := strings.TrimSpace(transcript); text != "" {
		b.fallback = append(b.fallback, text)
	}
}

// Flush returns the buffered utterance as one sentence and empties the
// buffer. An empty buffer yields "".
func (b *UtteranceBuffer) Flush() string {
	parts := make([]string, 0, 2)
	if text := transcribe.JoinWords(b.words); text != "" {
		parts = append(parts, text)
	}
	parts = append(parts, b.fallback...)
	b.Reset()
	return strings.Join(parts, " ")
}

func (b *UtteranceBuffer) Reset() {
	b.words = nil
	b.fallback = nil
}

// Empty reports whether nothing has been buffered.
func (b *UtteranceBuffer) Empty() bool {
	return len(b.words) == 0 && len(b.fallback) == 0
}
