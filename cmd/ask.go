package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/dmask/internal/llm"
	"github.com/bimmerbailey/dmask/internal/masking"
	"github.com/bimmerbailey/dmask/internal/output"
)

// maxContextBytes bounds the masked documents included in a prompt.
const maxContextBytes = 64 * 1024

var askCmd = &cobra.Command{
	Use:   "ask <question> --file <document>",
	Short: "Ask an LLM about documents after masking them",
	Long: `Mask one or more documents with the configured rules, then ask the
configured LLM a question about the masked documents. Only masked content
is ever sent; ask refuses to run when masking is disabled.

Examples:
  dmask ask "which requests failed?" --file app.ndjson
  dmask ask "summarize this payload" --file payload.json --rule secret='$..token'
  dmask ask "what changed?" --file before.yaml --file after.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	addAskFlags(askCmd)
	rootCmd.AddCommand(askCmd)
}

func addAskFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("file", "F", []string{}, "document(s) to ask about (required, repeatable)")
	addMaskingFlags(cmd)
	_ = cmd.MarkFlagRequired("file")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]
	files, _ := cmd.Flags().GetStringSlice("file")
	format := output.ParseFormat(viper.GetString("format"))

	cfg, logger, setup, err := setupFromConfig(cmd)
	if err != nil {
		return err
	}
	pipeline, err := setup.pipeline()
	if err != nil {
		return err
	}
	if pipeline == nil {
		return fmt.Errorf("masking is disabled; ask only sends masked documents")
	}

	expandedFiles, err := inputFiles(files)
	if err != nil {
		return err
	}

	docs := make([]maskedDocument, 0, len(expandedFiles))
	var total masking.Report
	for _, file := range expandedFiles {
		docFormat, err := setup.formatFor(cmd, file)
		if err != nil {
			return err
		}
		data, err := readInput(cmd, file)
		if err != nil {
			return err
		}
		masked, report, err := setup.mask(pipeline, docFormat, data)
		if err != nil {
			return fmt.Errorf("error masking %s: %w", file, err)
		}
		total.Merge(report)
		docs = append(docs, maskedDocument{Source: file, Format: string(docFormat), Content: string(masked)})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := llm.NewProvider(cfg.LLM, logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}

	if err := provider.Heartbeat(ctx); err != nil {
		return fmt.Errorf("cannot connect to Ollama at %s: %w\n\nStart Ollama with: ollama serve",
			cfg.LLM.Ollama.Host, err)
	}

	model := cfg.LLM.Ollama.Model
	available, err := provider.ModelAvailable(ctx, model)
	if err != nil {
		return err
	}
	if !available {
		return fmt.Errorf("model %s is not available\n\nPull it with: ollama pull %s", model, model)
	}

	userPrompt, truncated := buildAskUserPrompt(question, docs, maxContextBytes)
	if truncated {
		logger.Warn("documents truncated to fit the prompt", "limit_bytes", maxContextBytes)
	}
	messages := []llm.Message{
		{Role: "system", Content: buildAskSystemPrompt()},
		{Role: "user", Content: buildAskContext(expandedFiles, total) + "\n" + userPrompt},
	}

	stream, err := provider.ChatStream(ctx, messages, &llm.ChatOptions{
		Model:       model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to start LLM stream: %w", err)
	}

	if format == output.FormatText {
		fmt.Fprintln(cmd.OutOrStdout(), "=== Answer ===")
		fmt.Fprintln(cmd.OutOrStdout())
	}

	var answer strings.Builder
	for event := range stream {
		if event.Error != nil {
			if errors.Is(event.Error, llm.ErrContextCanceled) {
				return nil
			}
			return event.Error
		}
		if event.Content == "" {
			continue
		}
		if format == output.FormatText {
			fmt.Fprint(cmd.OutOrStdout(), event.Content)
		}
		answer.WriteString(event.Content)
	}

	if format == output.FormatJSON {
		return output.New(cmd.OutOrStdout(), output.FormatJSON).WriteJSON(map[string]any{
			"question":  question,
			"files":     expandedFiles,
			"answer":    answer.String(),
			"truncated": truncated,
			"masking":   total,
			"metadata": map[string]any{
				"provider": cfg.LLM.Provider,
				"model":    model,
			},
		})
	}

	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
