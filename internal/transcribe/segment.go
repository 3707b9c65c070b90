package transcribe

import (
	"strings"
	"time"
)

// Word is one recognized token as reported by a streaming recognizer.
type Word struct {
	PunctuatedWord string
	Start          float64
	End            float64
}

// Segment is one finalized unit of transcribed speech. Segments are values
// and are never modified after NewSegment returns them.
type Segment struct {
	Text       string    `json:"text"`
	CapturedAt time.Time `json:"captured_at"`
}

// NewSegment builds a segment with surrounding whitespace removed.
func NewSegment(text string, capturedAt time.Time) Segment {
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}
	return Segment{Text: strings.TrimSpace(text), CapturedAt: capturedAt}
}

// IsBlank reports whether the segment carries no speech.
func (s Segment) IsBlank() bool {
	return strings.TrimSpace(s.Text) == ""
}

// JoinWords renders recognizer words as a single sentence. Empty tokens are
// skipped so that stray punctuation frames do not produce double spaces.
func JoinWords(words []Word) string {
	if len(words) == 0 {
		return ""
	}

	parts := make([]string, 0, len(words))
	for _, w := range words {
		token := strings.TrimSpace(w.PunctuatedWord)
		if token == "" {
			continue
		}
		parts = append(parts, token)
	}
	return strings.Join(parts, " ")
}
