package transcribe

import (
	"testing"
	"time"
)

func TestJoinWords(t *testing.T) {
	words := []Word{
		{PunctuatedWord: "I", Start: 0.0, End: 0.2},
		{PunctuatedWord: "can't", Start: 0.2, End: 0.5},
		{PunctuatedWord: " ", Start: 0.5, End: 0.5},
		{PunctuatedWord: "handle", Start: 0.5, End: 0.9},
		{PunctuatedWord: "this.", Start: 0.9, End: 1.4},
	}

	if got := JoinWords(words); got != "I can't handle this." {
		t.Fatalf("unexpected joined text %q", got)
	}
}

func TestJoinWordsEmpty(t *testing.T) {
	if got := JoinWords(nil); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestNewSegmentTrims(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seg := NewSegment("  I am fine \n", at)

	if seg.Text != "I am fine" {
		t.Fatalf("expected trimmed text, got %q", seg.Text)
	}
	if !seg.CapturedAt.Equal(at) {
		t.Fatalf("expected captured time %v, got %v", at, seg.CapturedAt)
	}
	if seg.IsBlank() {
		t.Fatal("expected non-blank segment")
	}
}

func TestSegmentIsBlank(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{name: "empty", text: "", want: true},
		{name: "spaces", text: "   ", want: true},
		{name: "tabs and newlines", text: "\t\n", want: true},
		{name: "speech", text: "hello", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Segment{Text: tt.text}).IsBlank(); got != tt.want {
				t.Fatalf("IsBlank(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestNewSegmentDefaultsTimestamp(t *testing.T) {
	seg := NewSegment("hi", time.Time{})
	if seg.CapturedAt.IsZero() {
		t.Fatal("expected captured time to default to now")
	}
}
