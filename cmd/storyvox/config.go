package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v2"

	"storyvox/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write the default configuration to ~/.storyvox/config.yaml (or the path
given with --config). API keys are referenced as ${ENV_VAR} placeholders and
resolved from the environment at load time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			path = filepath.Join(home, ".storyvox", "config.yaml")
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}

		data, err := yaml.Marshal(configFileView(config.DefaultConfig()))
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

// configFileView shapes the default config for YAML output with the same
// keys viper reads back.
func configFileView(c *config.Config) map[string]any {
	tts := make(map[string]any, len(c.TTSProviders))
	for name, p := range c.TTSProviders {
		tts[name] = map[string]any{
			"type":       p.Type,
			"api_key":    p.APIKey,
			"model":      p.Model,
			"voice":      p.Voice,
			"format":     p.Format,
			"rate_limit": p.RateLimit,
			"enabled":    p.Enabled,
		}
	}
	llm := make(map[string]any, len(c.LLMProviders))
	for name, p := range c.LLMProviders {
		llm[name] = map[string]any{
			"type":     p.Type,
			"api_key":  p.APIKey,
			"base_url": p.BaseURL,
			"model":    p.Model,
			"enabled":  p.Enabled,
		}
	}
	return map[string]any{
		"postgres": map[string]any{"dsn": c.Postgres.DSN},
		"nats": map[string]any{
			"url":     c.NATS.URL,
			"stream":  c.NATS.Stream,
			"subject": c.NATS.Subject,
			"durable": c.NATS.Durable,
			"bucket":  c.NATS.Bucket,
		},
		"storage": map[string]any{
			"backend": c.Storage.Backend,
			"dir":     c.Storage.Dir,
		},
		"tts_providers": tts,
		"llm_providers": llm,
		"worker": map[string]any{
			"chunk_concurrency": c.Worker.ChunkConcurrency,
			"retry_attempts":    c.Worker.RetryAttempts,
			"retry_delay":       c.Worker.RetryDelay.String(),
		},
		"segmentation": map[string]any{
			"max_heading_length":  c.Segmentation.MaxHeadingLength,
			"isolation_line_max":  c.Segmentation.IsolationLineMax,
			"collapse_distance":   c.Segmentation.CollapseDistance,
			"min_chapter_chars":   c.Segmentation.MinChapterChars,
			"min_chapter_words":   c.Segmentation.MinChapterWords,
			"leading_noise_lines": c.Segmentation.LeadingNoiseLines,
			"fallback_skip_lines": c.Segmentation.FallbackSkipLines,
			"coverage_warn_ratio": c.Segmentation.CoverageWarnRatio,
			"chunk_coverage_min":  c.Segmentation.ChunkCoverageMin,
		},
	}
}

func init() {
	configCmd.AddCommand(configInitCmd)
}
