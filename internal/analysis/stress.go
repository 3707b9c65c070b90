package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sjawhar/aura-calm/internal/llm"
)

const stressSystemPrompt = `Analyze the user's spoken text for signs of psychological stress, anxiety, or urgency. ` +
	`Focus on the tone characteristics that survive transcription, such as pace, repetition, and word choice. ` +
	`Respond in strict JSON: {"stressScore": a number between 0 (calm) and 100 (extremely stressed), ` +
	`"feedback": a one-sentence string describing what you noticed}.`

// StressAnalyzer scores transcribed speech for stress.
type StressAnalyzer struct {
	client llm.Client
	events Recorder
}

// NewStressAnalyzer returns an analyzer that reports progress to events. A nil
// recorder discards progress lines.
func NewStressAnalyzer(client llm.Client, events Recorder) *StressAnalyzer {
	if events == nil {
		events = nopRecorder{}
	}
	return &StressAnalyzer{client: client, events: events}
}

// Analyze scores text. Any failure, including a reply that fails validation,
// is returned as an ErrAnalysis.
func (a *StressAnalyzer) Analyze(ctx context.Context, text string) (Result, error) {
	a.events.Add("Analyzing tone...")

	result, err := a.analyze(ctx, text)
	if err != nil {
		a.events.Add("AI analysis failed.")
		slog.Warn("analysis: stress scoring failed", "error", err)
		return Result{}, err
	}

	a.events.Add("Analysis complete.")
	return result, nil
}

func (a *StressAnalyzer) analyze(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, fmt.Errorf("%w: empty transcript", ErrAnalysis)
	}

	raw, err := a.client.Complete(ctx, llm.Request{
		JSON: true,
		Messages: []llm.Message{
			{Role: "system", Content: stressSystemPrompt},
			{Role: "user", Content: "Text to analyze: " + text},
		},
	})
	if err != nil {
		return Result{}, classify(ctx, ErrAnalysis, err)
	}

	obj, err := extractObject(raw)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrAnalysis, err)
	}
	score, err := parseScore(obj)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrAnalysis, err)
	}
	feedback, err := parseText(obj, "feedback")
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrAnalysis, err)
	}

	return Result{StressScore: score, Feedback: feedback}, nil
}
