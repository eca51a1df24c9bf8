package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/doctrans/internal/config"
	"github.com/dgallion1/doctrans/internal/llm"
	"github.com/dgallion1/doctrans/internal/ratelimit"
	"github.com/dgallion1/doctrans/internal/translate"
)

var (
	configFile string
	sourceLang string
	targetLang string
)

var rootCmd = &cobra.Command{
	Use:   "doctrans",
	Short: "Structure-preserving document translator",
	Long: `doctrans translates HTML, Markdown, DOCX and PDF documents with an LLM
while keeping the document's markup intact. Inline tags inside a sentence
are reassembled around the translated text, so links, emphasis and code
spans survive translation.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file overlaying the environment")
	rootCmd.PersistentFlags().StringVar(&sourceLang, "source-lang", "", "source language (name or BCP-47 tag)")
	rootCmd.PersistentFlags().StringVar(&targetLang, "target-lang", "", "target language (name or BCP-47 tag)")

	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// loadConfig layers the config sources: environment, then file, then flags.
func loadConfig() (config.Config, error) {
	cfg := config.Load()
	if configFile != "" {
		if err := cfg.ApplyFile(configFile); err != nil {
			return cfg, err
		}
	}
	if sourceLang != "" {
		resolved, err := config.ResolveLang(sourceLang)
		if err != nil {
			return cfg, err
		}
		cfg.SourceLang = resolved
	}
	if targetLang != "" {
		resolved, err := config.ResolveLang(targetLang)
		if err != nil {
			return cfg, err
		}
		cfg.TargetLang = resolved
	}
	return cfg, cfg.Validate()
}

// buildTranslator assembles the shared pipeline pieces from config.
func buildTranslator(cfg config.Config, log *slog.Logger) (*translate.Translator, *llm.Client) {
	client := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey)
	rate := ratelimit.New(ratelimit.Config{
		Limit:        cfg.RateLimit,
		Period:       cfg.RatePeriod,
		MaxRetry:     cfg.MaxRetry,
		InitialDelay: cfg.InitialDelay,
		BackoffBase:  cfg.BackoffBase,
		Retryable:    llm.IsRetryable,
		Log:          log,
	})
	tr := translate.New(client, rate, translate.Config{
		SourceLang:       cfg.SourceLang,
		TargetLang:       cfg.TargetLang,
		TranslateModel:   cfg.TranslateModel,
		RestructModel:    cfg.RestructModel,
		MaxSegmentTokens: cfg.MaxSegmentTokens,
		RestructMaxRetry: cfg.RestructMaxRetry,
	}, log)
	return tr, client
}
