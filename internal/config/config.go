package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sjawhar/aura-calm/internal/llm"
)

// EnvPrefix is the namespace prefix for all Aura Calm environment variables.
const EnvPrefix = "AURA_CALM_"

const (
	defaultAnalysisTimeout   = 20 * time.Second
	defaultEnrichmentTimeout = 20 * time.Second
	defaultThreshold         = 70
)

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr        string  `yaml:"listen_addr"`
	DBPath            string  `yaml:"db_path"`
	StressThreshold   float64 `yaml:"stress_threshold"`
	EventLogCapacity  int     `yaml:"event_log_capacity"`
	AnalysisTimeout   string  `yaml:"analysis_timeout"`
	EnrichmentTimeout string  `yaml:"enrichment_timeout"`
	AnalysisModel     string  `yaml:"analysis_model"`
	InsightModel      string  `yaml:"insight_model"`
	GuidelinesModel   string  `yaml:"guidelines_model"`
	VideoModel        string  `yaml:"video_model"`
	MicSampleRate     int     `yaml:"mic_sample_rate"`
	MicSampleRates    []int   `yaml:"mic_sample_rates"`
	Language          string  `yaml:"language"`
	DeepgramModel     string  `yaml:"deepgram_model"`
	HapticPattern     []int   `yaml:"haptic_pattern"`
	AmbientAudioURL   string  `yaml:"ambient_audio_url"`
	UtteranceEndMs    int     `yaml:"utterance_end_ms"`
	NoSpeechTimeout   string  `yaml:"no_speech_timeout"`

	// Secrets: env vars only, never serialized to YAML.
	DeepgramAPIKey  string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:        ":8080",
		DBPath:            "data/aura-calm.db",
		StressThreshold:   defaultThreshold,
		EventLogCapacity:  5,
		AnalysisTimeout:   "20s",
		EnrichmentTimeout: "20s",
		AnalysisModel:     "gemini/gemini-2.5-flash",
		MicSampleRate:     16000,
		MicSampleRates:    []int{48000, 44100, 32000, 24000},
		Language:          "en-US",
		DeepgramModel:     "nova-2",
		HapticPattern:     []int{500, 200, 500},
		AmbientAudioURL:   "/soothing-music.mp3",
		UtteranceEndMs:    1000,
		NoSpeechTimeout:   "8s",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedAnalysisTimeout returns AnalysisTimeout as a time.Duration. Zero
// disables the timeout; an invalid value falls back to 20s.
func (c *Config) ParsedAnalysisTimeout() time.Duration {
	return parseDuration(c.AnalysisTimeout, defaultAnalysisTimeout)
}

func (c *Config) ParsedEnrichmentTimeout() time.Duration {
	return parseDuration(c.EnrichmentTimeout, defaultEnrichmentTimeout)
}

// ParsedNoSpeechTimeout returns how long a capture run waits for speech
// before ending with a no-speech error.
func (c *Config) ParsedNoSpeechTimeout() time.Duration {
	d, err := time.ParseDuration(c.NoSpeechTimeout)
	if err != nil || d <= 0 {
		return 8 * time.Second
	}
	return d
}

// Threshold returns the stress threshold, falling back to 70 when the
// configured value is outside (0, 100).
func (c *Config) Threshold() float64 {
	if c.StressThreshold <= 0 || c.StressThreshold >= 100 {
		return defaultThreshold
	}
	return c.StressThreshold
}

// Model resolves a per-task model, falling back to AnalysisModel.
func (c *Config) Model(task string) string {
	var m string
	switch task {
	case "insight":
		m = c.InsightModel
	case "guidelines":
		m = c.GuidelinesModel
	case "video":
		m = c.VideoModel
	}
	if m == "" {
		return c.AnalysisModel
	}
	return m
}

// SampleRateCandidates returns a deduplicated ordered list of sample rates
// to try: preferred rate first, then configured alternatives, then defaults.
func (c *Config) SampleRateCandidates() []int {
	hardcoded := []int{16000, 48000, 44100, 32000, 24000}

	combined := make([]int, 0, 1+len(c.MicSampleRates)+len(hardcoded))
	combined = append(combined, c.MicSampleRate)
	combined = append(combined, c.MicSampleRates...)
	combined = append(combined, hardcoded...)
	return dedupPositive(combined)
}

// APIKeys returns the LLM provider secrets.
func (c *Config) APIKeys() llm.APIKeys {
	return llm.APIKeys{
		OpenAI:    c.OpenAIAPIKey,
		Anthropic: c.AnthropicAPIKey,
		Gemini:    c.GeminiAPIKey,
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "STRESS_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			cfg.StressThreshold = f
		}
	}
	if v := os.Getenv(EnvPrefix + "EVENT_LOG_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.EventLogCapacity = n
		}
	}
	if v := os.Getenv(EnvPrefix + "ANALYSIS_TIMEOUT"); v != "" {
		cfg.AnalysisTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "ENRICHMENT_TIMEOUT"); v != "" {
		cfg.EnrichmentTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "ANALYSIS_MODEL"); v != "" {
		cfg.AnalysisModel = v
	}
	if v := os.Getenv(EnvPrefix + "INSIGHT_MODEL"); v != "" {
		cfg.InsightModel = v
	}
	if v := os.Getenv(EnvPrefix + "GUIDELINES_MODEL"); v != "" {
		cfg.GuidelinesModel = v
	}
	if v := os.Getenv(EnvPrefix + "VIDEO_MODEL"); v != "" {
		cfg.VideoModel = v
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.MicSampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATES"); v != "" {
		cfg.MicSampleRates = parseSampleRates(v)
	}
	if v := os.Getenv(EnvPrefix + "LANGUAGE"); v != "" {
		cfg.Language = v
	}
	if v := os.Getenv(EnvPrefix + "DEEPGRAM_MODEL"); v != "" {
		cfg.DeepgramModel = v
	}
	if v := os.Getenv(EnvPrefix + "HAPTIC_PATTERN"); v != "" {
		cfg.HapticPattern = parsePattern(v)
	}
	if v := os.Getenv(EnvPrefix + "AMBIENT_AUDIO_URL"); v != "" {
		cfg.AmbientAudioURL = v
	}
	if v := os.Getenv(EnvPrefix + "UTTERANCE_END_MS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.UtteranceEndMs = n
		}
	}
	if v := os.Getenv(EnvPrefix + "NO_SPEECH_TIMEOUT"); v != "" {
		cfg.NoSpeechTimeout = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured; speech capture is unavailable. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}

	keys := cfg.APIKeys()
	for _, task := range []string{"analysis", "insight", "guidelines", "video"} {
		model := cfg.Model(task)
		provider, _, err := llm.ParseModel(model)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Invalid %s model %q; expected provider/model.", task, model))
			continue
		}
		if !hasKey(keys, provider) {
			warnings = append(warnings, fmt.Sprintf("No API key for provider %q; %s is disabled. Set %s%s_API_KEY.",
				provider, task, EnvPrefix, strings.ToUpper(provider)))
		}
	}

	for _, d := range []struct{ name, raw string }{
		{"analysis_timeout", cfg.AnalysisTimeout},
		{"enrichment_timeout", cfg.EnrichmentTimeout},
		{"no_speech_timeout", cfg.NoSpeechTimeout},
	} {
		if parsed, err := time.ParseDuration(d.raw); err != nil || parsed < 0 {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q; using default.", d.name, d.raw))
		}
	}

	if cfg.StressThreshold <= 0 || cfg.StressThreshold >= 100 {
		warnings = append(warnings, fmt.Sprintf("Invalid stress_threshold %v; using default %d.", cfg.StressThreshold, defaultThreshold))
	}
	if len(cfg.HapticPattern) == 0 {
		warnings = append(warnings, "Empty haptic_pattern; using default [500 200 500].")
	}

	return warnings
}

func hasKey(keys llm.APIKeys, provider string) bool {
	switch provider {
	case "openai":
		return keys.OpenAI != ""
	case "anthropic":
		return keys.Anthropic != ""
	case "gemini":
		return keys.Gemini != ""
	default:
		return false
	}
}

func parseSampleRates(raw string) []int {
	return dedupPositive(parsePattern(raw))
}

func dedupPositive(values []int) []int {
	seen := make(map[int]struct{}, len(values))
	result := make([]int, 0, len(values))
	for _, v := range values {
		if v <= 0 {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// parsePattern reads a comma-separated list of positive millisecond values.
func parsePattern(raw string) []int {
	parts := strings.Split(raw, ",")
	result := make([]int, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		ms, err := strconv.Atoi(trimmed)
		if err != nil || ms <= 0 {
			continue
		}
		result = append(result, ms)
	}

	return result
}
