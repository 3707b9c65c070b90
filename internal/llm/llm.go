package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrMissingAPIKey is returned by a Factory when the provider named in a model
// string has no configured key.
var ErrMissingAPIKey = errors.New("missing API key")

type Message struct {
	Role    string
	Content string
}

// Request is one completion call. JSON asks the provider to constrain its
// output to a single JSON object where the provider supports it.
type Request struct {
	Messages  []Message
	JSON      bool
	MaxTokens int
}

type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Factory builds a client from a "provider/model" string.
type Factory func(model string) (Client, error)

// APIKeys holds per-provider secrets.
type APIKeys struct {
	OpenAI    string
	Anthropic string
	Gemini    string
}

func (k APIKeys) forProvider(provider string) string {
	switch provider {
	case "openai":
		return k.OpenAI
	case "anthropic":
		return k.Anthropic
	case "gemini":
		return k.Gemini
	default:
		return ""
	}
}

const defaultMaxTokens = 1024

type Option func(*clientOptions)

type clientOptions struct {
	baseURL string
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

func ParseModel(model string) (provider, modelName string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return parts[0], parts[1], nil
}

func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "openai":
		return newOpenAIClient(apiKey, model, o)
	case "anthropic":
		return newAnthropicClient(apiKey, model, o)
	case "gemini":
		return newGeminiClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are openai, anthropic, gemini", provider)
	}
}

// NewFactory returns a Factory that resolves the provider key from keys.
// Clients are cached per model string.
func NewFactory(keys APIKeys, opts ...Option) Factory {
	var mu sync.Mutex
	cache := map[string]Client{}
	return func(model string) (Client, error) {
		mu.Lock()
		defer mu.Unlock()
		if c, ok := cache[model]; ok {
			return c, nil
		}

		provider, name, err := ParseModel(model)
		if err != nil {
			return nil, err
		}
		key := keys.forProvider(provider)
		if key == "" {
			return nil, fmt.Errorf("%s: %w", provider, ErrMissingAPIKey)
		}

		c, err := NewClient(provider, key, name, opts...)
		if err != nil {
			return nil, err
		}
		cache[model] = c
		return c, nil
	}
}

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}

func hasUserMessage(messages []Message) bool {
	for _, m := range messages {
		if m.Role == "user" {
			return true
		}
	}
	return false
}
