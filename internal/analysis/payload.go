package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// extractObject returns the outermost JSON object in a model reply. Models
// sometimes wrap JSON in markdown fences or a leading sentence even in JSON
// mode.
func extractObject(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object in reply", ErrInvalidPayload)
	}

	obj := text[start : end+1]
	if !gjson.Valid(obj) {
		return "", fmt.Errorf("%w: malformed JSON object", ErrInvalidPayload)
	}
	return obj, nil
}

// parseScore reads stressScore as a number or numeric string and clamps it
// into [0, 100].
func parseScore(obj string) (float64, error) {
	field := gjson.Get(obj, "stressScore")
	if !field.Exists() {
		return 0, fmt.Errorf("%w: stressScore missing", ErrInvalidPayload)
	}

	var score float64
	switch field.Type {
	case gjson.Number:
		score = field.Float()
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(field.Str), "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: stressScore %q is not numeric", ErrInvalidPayload, field.Str)
		}
		score = parsed
	default:
		return 0, fmt.Errorf("%w: stressScore has type %s", ErrInvalidPayload, field.Type)
	}

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("%w: stressScore is not finite", ErrInvalidPayload)
	}
	return math.Min(100, math.Max(0, score)), nil
}

func parseText(obj, key string) (string, error) {
	field := gjson.Get(obj, key)
	if field.Type != gjson.String {
		return "", fmt.Errorf("%w: %s missing or not a string", ErrInvalidPayload, key)
	}
	text := strings.TrimSpace(field.Str)
	if text == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrInvalidPayload, key)
	}
	return text, nil
}

func parseStringList(obj, key string) ([]string, error) {
	field := gjson.Get(obj, key)
	if !field.IsArray() {
		return nil, fmt.Errorf("%w: %s missing or not an array", ErrInvalidPayload, key)
	}

	var out []string
	for _, item := range field.Array() {
		if item.Type != gjson.String {
			continue
		}
		if text := strings.TrimSpace(item.Str); text != "" {
			out = append(out, text)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s has no usable entries", ErrInvalidPayload, key)
	}
	return out, nil
}
