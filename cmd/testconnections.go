package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wda-labs/newswatch/internal/analyze"
	"github.com/wda-labs/newswatch/internal/notify"
	anthropicpkg "github.com/wda-labs/newswatch/pkg/anthropic"
	"github.com/wda-labs/newswatch/pkg/groq"
)

var testConnectionsCmd = &cobra.Command{
	Use:   "test-connections",
	Short: "Probe every configured external service",
	Long:  "Checks the database, AI providers, Telegram, and Slack with one small request each and prints a status line per service.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		ok := true
		check := func(name string, err error, skipped bool) {
			switch {
			case skipped:
				fmt.Printf("  - %-10s skipped (not configured)\n", name)
			case err != nil:
				fmt.Printf("  ✗ %-10s %v\n", name, err)
				ok = false
			default:
				fmt.Printf("  ✓ %-10s ok\n", name)
			}
		}

		check("store", probeStore(ctx), false)
		check("gemini", probeGemini(ctx), cfg.Gemini.Key == "")
		check("anthropic", probeAnthropic(ctx), cfg.Anthropic.Key == "")
		check("groq", probeGroq(ctx), cfg.Groq.Key == "")
		check("telegram", probeTelegram(ctx), cfg.Telegram.Token == "" || cfg.Telegram.ChatID == "")

		if notify.NewSlack(cfg.Slack.WebhookURL).Configured() {
			// Incoming webhooks have no read endpoint, so presence is all
			// that can be checked without posting.
			fmt.Printf("  - %-10s configured (webhooks cannot be probed without posting)\n", "slack")
		} else {
			fmt.Printf("  - %-10s skipped (not configured)\n", "slack")
		}

		if !ok {
			return fmt.Errorf("one or more connection checks failed")
		}
		return nil
	},
}

func probeStore(ctx context.Context) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Ping(ctx)
}

func probeGemini(ctx context.Context) error {
	if cfg.Gemini.Key == "" {
		return nil
	}
	p, err := analyze.NewGeminiProvider(ctx, cfg.Gemini.Key, cfg.Gemini.Model)
	if err != nil {
		return err
	}
	defer p.Close()
	_, err = p.Generate(ctx, "ping이라고만 답하세요.")
	return err
}

func probeAnthropic(ctx context.Context) error {
	if cfg.Anthropic.Key == "" {
		return nil
	}
	client := anthropicpkg.NewClient(cfg.Anthropic.Key)
	_, err := client.CreateMessage(ctx, anthropicpkg.MessageRequest{
		Model:     cfg.Anthropic.Model,
		MaxTokens: 8,
		Messages:  []anthropicpkg.Message{{Role: "user", Content: "ping"}},
	})
	return err
}

func probeGroq(ctx context.Context) error {
	if cfg.Groq.Key == "" {
		return nil
	}
	client := groq.NewClient(cfg.Groq.Key, groq.WithBaseURL(cfg.Groq.BaseURL))
	maxTokens := 8
	_, err := client.ChatCompletion(ctx, groq.ChatCompletionRequest{
		Model:     cfg.Groq.FastModel,
		Messages:  []groq.Message{{Role: "user", Content: "ping"}},
		MaxTokens: &maxTokens,
	})
	return err
}

func probeTelegram(ctx context.Context) error {
	tg := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if !tg.Configured() {
		return nil
	}
	return tg.Me(ctx)
}

func init() {
	rootCmd.AddCommand(testConnectionsCmd)
}
