package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sjawhar/aura-calm/internal/llm"
)

type scriptedClient struct {
	mu       sync.Mutex
	reply    string
	err      error
	delay    time.Duration
	requests []llm.Request
}

func (c *scriptedClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	reply, err, delay := c.reply, c.err, c.delay
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return reply, err
}

func (c *scriptedClient) lastRequest(t *testing.T) llm.Request {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		t.Fatal("expected at least one request")
	}
	return c.requests[len(c.requests)-1]
}

type recorderMock struct {
	mu       sync.Mutex
	messages []string
}

func (r *recorderMock) Add(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *recorderMock) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func TestAnalyze_Success(t *testing.T) {
	client := &scriptedClient{reply: `{"stressScore": 85, "feedback": "Your words sound overwhelmed."}`}
	events := &recorderMock{}
	analyzer := NewStressAnalyzer(client, events)

	got, err := analyzer.Analyze(context.Background(), "I can't handle this anymore")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if got.StressScore != 85 {
		t.Fatalf("expected score 85, got %v", got.StressScore)
	}
	if got.Feedback != "Your words sound overwhelmed." {
		t.Fatalf("unexpected feedback %q", got.Feedback)
	}

	req := client.lastRequest(t)
	if !req.JSON {
		t.Fatal("expected JSON mode request")
	}
	if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "I can't handle this anymore") {
		t.Fatalf("expected transcript in user message, got %#v", req.Messages)
	}

	msgs := events.all()
	if len(msgs) != 2 || msgs[0] != "Analyzing tone..." || msgs[1] != "Analysis complete." {
		t.Fatalf("unexpected event log lines %v", msgs)
	}
}

func TestAnalyze_ProviderError(t *testing.T) {
	client := &scriptedClient{err: errors.New("boom")}
	events := &recorderMock{}
	analyzer := NewStressAnalyzer(client, events)

	_, err := analyzer.Analyze(context.Background(), "hello")
	if !errors.Is(err, ErrAnalysis) {
		t.Fatalf("expected ErrAnalysis, got %v", err)
	}
	if errors.Is(err, ErrAnalysisTimeout) {
		t.Fatalf("plain provider error should not be a timeout: %v", err)
	}

	msgs := events.all()
	if len(msgs) != 2 || msgs[1] != "AI analysis failed." {
		t.Fatalf("expected failure line in event log, got %v", msgs)
	}
}

func TestAnalyze_Timeout(t *testing.T) {
	client := &scriptedClient{reply: `{"stressScore": 10, "feedback": "ok"}`, delay: time.Second}
	analyzer := NewStressAnalyzer(client, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := analyzer.Analyze(ctx, "hello")
	if !errors.Is(err, ErrAnalysisTimeout) {
		t.Fatalf("expected ErrAnalysisTimeout, got %v", err)
	}
	if !errors.Is(err, ErrAnalysis) {
		t.Fatalf("expected timeout to also be ErrAnalysis, got %v", err)
	}
}

func TestAnalyze_PayloadValidation(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantScore float64
		wantErr   bool
	}{
		{name: "plain", reply: `{"stressScore": 20, "feedback": "You sound at ease."}`, wantScore: 20},
		{name: "fenced", reply: "```json\n{\"stressScore\": 42.5, \"feedback\": \"Some tension.\"}\n```", wantScore: 42.5},
		{name: "numeric string", reply: `{"stressScore": "73", "feedback": "Rushed."}`, wantScore: 73},
		{name: "percent string", reply: `{"stressScore": "64%", "feedback": "Tense."}`, wantScore: 64},
		{name: "clamped high", reply: `{"stressScore": 140, "feedback": "Very tense."}`, wantScore: 100},
		{name: "clamped low", reply: `{"stressScore": -8, "feedback": "Relaxed."}`, wantScore: 0},
		{name: "missing score", reply: `{"feedback": "Hmm."}`, wantErr: true},
		{name: "bool score", reply: `{"stressScore": true, "feedback": "Hmm."}`, wantErr: true},
		{name: "word score", reply: `{"stressScore": "high", "feedback": "Hmm."}`, wantErr: true},
		{name: "empty feedback", reply: `{"stressScore": 30, "feedback": "  "}`, wantErr: true},
		{name: "feedback not string", reply: `{"stressScore": 30, "feedback": 4}`, wantErr: true},
		{name: "not json", reply: `I think you are calm.`, wantErr: true},
		{name: "broken json", reply: `{"stressScore": 30, "feedback": "x"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := NewStressAnalyzer(&scriptedClient{reply: tt.reply}, nil)
			got, err := analyzer.Analyze(context.Background(), "some speech")
			if tt.wantErr {
				if !errors.Is(err, ErrAnalysis) {
					t.Fatalf("expected ErrAnalysis, got result=%v err=%v", got, err)
				}
				if !errors.Is(err, ErrInvalidPayload) {
					t.Fatalf("expected ErrInvalidPayload, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Analyze failed: %v", err)
			}
			if got.StressScore != tt.wantScore {
				t.Fatalf("expected score %v, got %v", tt.wantScore, got.StressScore)
			}
		})
	}
}

func TestAnalyze_EmptyTranscript(t *testing.T) {
	client := &scriptedClient{reply: `{"stressScore": 1, "feedback": "x"}`}
	analyzer := NewStressAnalyzer(client, nil)

	_, err := analyzer.Analyze(context.Background(), "   ")
	if !errors.Is(err, ErrAnalysis) {
		t.Fatalf("expected ErrAnalysis for blank transcript, got %v", err)
	}
	if len(client.requests) != 0 {
		t.Fatalf("expected no provider call for blank transcript, got %d", len(client.requests))
	}
}
