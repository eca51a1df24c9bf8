// Package config loads service configuration from the environment, with an
// optional YAML file overlay for checked-in deployments.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string

	// Auth for the serve-mode API.
	APIKey string

	// Completion service.
	LLMBaseURL     string
	LLMAPIKey      string
	TranslateModel string
	RestructModel  string

	// Languages, as English display names used in prompts. ResolveLang
	// accepts BCP-47 tags too.
	SourceLang string
	TargetLang string

	// Segmentation.
	MaxSegmentTokens int

	// Rate control and retry.
	RateLimit        int
	RatePeriod       time.Duration
	MaxRetry         int
	InitialDelay     time.Duration
	BackoffBase      float64
	RestructMaxRetry int

	// Worker pool (serve mode).
	WorkerCount  int
	MaxQueueSize int

	// Batch mode.
	MaxConcurrentFiles int

	// Upload limits.
	MaxUploadBytes int64

	// Job state.
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		APIKey: os.Getenv("DOCTRANS_API_KEY"),

		LLMBaseURL:     envOr("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:      os.Getenv("LLM_API_KEY"),
		TranslateModel: envOr("TRANSLATE_MODEL", "gpt-4o-mini"),
		RestructModel:  envOr("RESTRUCT_MODEL", "gpt-4o-mini"),

		SourceLang: envOr("SOURCE_LANG", "English"),
		TargetLang: envOr("TARGET_LANG", "Chinese"),

		MaxSegmentTokens: envInt("MAX_SEGMENT_TOKENS", 400),

		RateLimit:        envInt("RATE_LIMIT", 5),
		RatePeriod:       envDuration("RATE_PERIOD", time.Second),
		MaxRetry:         envInt("MAX_RETRY", 10),
		InitialDelay:     envDuration("INITIAL_DELAY", time.Second),
		BackoffBase:      envFloat("BACKOFF_BASE", 2),
		RestructMaxRetry: envInt("RESTRUCT_MAX_RETRY", 10),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 32),

		MaxConcurrentFiles: envInt("MAX_CONCURRENT_FILES", 4),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.MaxSegmentTokens <= 0 {
		cfg.MaxSegmentTokens = 400
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 32
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// fileConfig mirrors the YAML layout. Only fields set in the file override
// the environment.
type fileConfig struct {
	Port string `yaml:"port"`

	APIKey string `yaml:"api_key"`

	LLMBaseURL     string `yaml:"llm_base_url"`
	LLMAPIKey      string `yaml:"llm_api_key"`
	TranslateModel string `yaml:"translate_model"`
	RestructModel  string `yaml:"restruct_model"`

	SourceLang string `yaml:"source_lang"`
	TargetLang string `yaml:"target_lang"`

	MaxSegmentTokens int `yaml:"max_segment_tokens"`

	RateLimit        int     `yaml:"rate_limit"`
	RatePeriod       string  `yaml:"rate_period"`
	MaxRetry         int     `yaml:"max_retry"`
	InitialDelay     string  `yaml:"initial_delay"`
	BackoffBase      float64 `yaml:"backoff_base"`
	RestructMaxRetry int     `yaml:"restruct_max_retry"`

	WorkerCount  int `yaml:"worker_count"`
	MaxQueueSize int `yaml:"max_queue_size"`

	MaxConcurrentFiles int `yaml:"max_concurrent_files"`

	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Durations use Go notation, e.g. "1s" or "2h".
	JobTTL string `yaml:"job_ttl"`
}

// ApplyFile overlays settings from a YAML file onto c.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setStr(&c.Port, fc.Port)
	setStr(&c.APIKey, fc.APIKey)
	setStr(&c.LLMBaseURL, fc.LLMBaseURL)
	setStr(&c.LLMAPIKey, fc.LLMAPIKey)
	setStr(&c.TranslateModel, fc.TranslateModel)
	setStr(&c.RestructModel, fc.RestructModel)
	setStr(&c.SourceLang, fc.SourceLang)
	setStr(&c.TargetLang, fc.TargetLang)
	setInt(&c.MaxSegmentTokens, fc.MaxSegmentTokens)
	setInt(&c.RateLimit, fc.RateLimit)
	if err := setDur(&c.RatePeriod, fc.RatePeriod); err != nil {
		return fmt.Errorf("rate_period: %w", err)
	}
	setInt(&c.MaxRetry, fc.MaxRetry)
	if err := setDur(&c.InitialDelay, fc.InitialDelay); err != nil {
		return fmt.Errorf("initial_delay: %w", err)
	}
	if fc.BackoffBase > 0 {
		c.BackoffBase = fc.BackoffBase
	}
	setInt(&c.RestructMaxRetry, fc.RestructMaxRetry)
	setInt(&c.WorkerCount, fc.WorkerCount)
	setInt(&c.MaxQueueSize, fc.MaxQueueSize)
	setInt(&c.MaxConcurrentFiles, fc.MaxConcurrentFiles)
	if fc.MaxUploadBytes > 0 {
		c.MaxUploadBytes = fc.MaxUploadBytes
	}
	if err := setDur(&c.JobTTL, fc.JobTTL); err != nil {
		return fmt.Errorf("job_ttl: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.SourceLang == "" || c.TargetLang == "" {
		return fmt.Errorf("source and target languages are required")
	}
	if c.SourceLang == c.TargetLang {
		return fmt.Errorf("source and target languages must differ")
	}
	return nil
}

// ResolveLang normalizes a language given as a BCP-47 tag ("de", "zh-Hans")
// into the English display name prompts use. Plain names pass through.
func ResolveLang(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty language")
	}
	tag, err := language.Parse(s)
	if err != nil {
		// Not a tag; assume it is already a language name.
		return s, nil
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return s, nil
	}
	return name, nil
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDur(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	if d > 0 {
		*dst = d
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
