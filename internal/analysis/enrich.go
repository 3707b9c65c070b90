package analysis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sjawhar/aura-calm/internal/llm"
)

const insightSystemPrompt = `Based on the user's transcribed text and stress score, generate a personalized calming insight. ` +
	`The insight should help the user understand the likely reasons for the detected stress and offer a positive perspective. ` +
	`Use a single sentence. Respond in strict JSON: {"calmingInsight": string}.`

const guidelinesSystemPrompt = `Generate %d personalized and actionable stress management guidelines for someone with the given stress score. ` +
	`Keep each guideline concise and easy to follow. Respond in strict JSON: {"guidelines": [string, ...]}.`

// DefaultGuidelineCount is how many guidelines are requested per escalation.
const DefaultGuidelineCount = 3

// InsightGenerator writes a one-sentence calming insight for a stressed reading.
type InsightGenerator struct {
	client llm.Client
}

func NewInsightGenerator(client llm.Client) *InsightGenerator {
	return &InsightGenerator{client: client}
}

// Insight returns the insight text. Failures are ErrEnrichment.
func (g *InsightGenerator) Insight(ctx context.Context, text string, score float64) (string, error) {
	raw, err := g.client.Complete(ctx, llm.Request{
		JSON:      true,
		MaxTokens: 256,
		Messages: []llm.Message{
			{Role: "system", Content: insightSystemPrompt},
			{Role: "user", Content: "Text to analyze: " + text + "\nStress Score: " + formatScore(score)},
		},
	})
	if err != nil {
		return "", classify(ctx, ErrEnrichment, err)
	}

	obj, err := extractObject(raw)
	if err != nil {
		return "", fmt.Errorf("%w: insight: %w", ErrEnrichment, err)
	}
	insight, err := parseText(obj, "calmingInsight")
	if err != nil {
		return "", fmt.Errorf("%w: insight: %w", ErrEnrichment, err)
	}
	return insight, nil
}

// GuidelineGenerator writes short, ordered stress-management guidelines.
type GuidelineGenerator struct {
	client llm.Client
	count  int
}

// NewGuidelineGenerator requests count guidelines per call; non-positive
// counts use DefaultGuidelineCount.
func NewGuidelineGenerator(client llm.Client, count int) *GuidelineGenerator {
	if count <= 0 {
		count = DefaultGuidelineCount
	}
	return &GuidelineGenerator{client: client, count: count}
}

// Guidelines returns at most the configured number of guidelines, in the
// order the model produced them. Failures are ErrEnrichment.
func (g *GuidelineGenerator) Guidelines(ctx context.Context, score float64) ([]string, error) {
	raw, err := g.client.Complete(ctx, llm.Request{
		JSON:      true,
		MaxTokens: 512,
		Messages: []llm.Message{
			{Role: "system", Content: fmt.Sprintf(guidelinesSystemPrompt, g.count)},
			{Role: "user", Content: "Stress score: " + formatScore(score)},
		},
	})
	if err != nil {
		return nil, classify(ctx, ErrEnrichment, err)
	}

	obj, err := extractObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: guidelines: %w", ErrEnrichment, err)
	}
	list, err := parseStringList(obj, "guidelines")
	if err != nil {
		return nil, fmt.Errorf("%w: guidelines: %w", ErrEnrichment, err)
	}
	if len(list) > g.count {
		list = list[:g.count]
	}
	return list, nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
