// Package llm provides the chat interface used by "dmask ask".
//
// Only masked documents are ever sent to a provider. The Provider interface
// keeps the command independent of the backend; Ollama is the only one.
//
//	provider, err := llm.NewProvider(cfg.LLM, logger)
//	if err != nil {
//	    return err
//	}
//	stream, err := provider.ChatStream(ctx, messages, &llm.ChatOptions{Temperature: 0})
//	for event := range stream {
//	    if event.Error != nil {
//	        return event.Error
//	    }
//	    fmt.Print(event.Content)
//	}
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bimmerbailey/dmask/internal/config"
	"github.com/bimmerbailey/dmask/internal/llm/ollama"
)

// Provider defines the interface for LLM interactions.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Chat sends messages and returns a complete response.
	Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error)

	// ChatStream sends messages and returns a channel of streaming events.
	// The channel is closed when the stream completes or fails.
	ChatStream(ctx context.Context, messages []Message, opts *ChatOptions) (<-chan StreamEvent, error)

	// Heartbeat returns nil if the provider is reachable.
	Heartbeat(ctx context.Context) error

	// ModelAvailable reports whether model is ready for use.
	ModelAvailable(ctx context.Context, model string) (bool, error)
}

// Message represents a single message in a conversation.
type Message struct {
	// Role identifies the message sender: "system", "user", or "assistant"
	Role string

	// Content is the message text
	Content string
}

// ChatOptions configures chat behavior. A nil *ChatOptions uses provider
// defaults.
type ChatOptions struct {
	// Model overrides the provider's default model
	Model string

	// Temperature controls randomness (0.0 = deterministic)
	Temperature float32

	// MaxTokens limits the response length (0 = provider default)
	MaxTokens int
}

// Response represents a complete LLM response.
type Response struct {
	Content      string
	Model        string
	TokensPrompt int
	TokensTotal  int
}

// StreamEvent represents a single event in a streaming response.
type StreamEvent struct {
	// Content is the incremental text chunk
	Content string

	// Done indicates the final event in the stream
	Done bool

	// Error terminates the stream when non-nil
	Error error
}

// Common errors returned by LLM providers.
var (
	ErrProviderUnavailable = ollama.ErrProviderUnavailable
	ErrContextCanceled     = ollama.ErrContextCanceled
	ErrUnknownProvider     = errors.New("unknown llm provider")
)

// NewProvider creates the provider selected by cfg.Provider.
func NewProvider(cfg config.LLMConfig, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	providerType := strings.ToLower(strings.TrimSpace(cfg.Provider))
	logger.Debug("creating llm provider", "type", providerType)

	switch providerType {
	case "ollama":
		keepAlive, err := config.ParseDuration(cfg.Ollama.KeepAlive)
		if err != nil {
			return nil, fmt.Errorf("llm.ollama.keep_alive: %w", err)
		}
		p, err := ollama.New(ollama.Config{
			Host:      cfg.Ollama.Host,
			Model:     cfg.Ollama.Model,
			KeepAlive: keepAlive,
			NumCtx:    cfg.Ollama.NumCtx,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &ollamaAdapter{provider: p}, nil

	case "":
		return nil, fmt.Errorf("%w: provider not specified in configuration", ErrUnknownProvider)

	default:
		return nil, fmt.Errorf("%w: %s (supported: ollama)", ErrUnknownProvider, providerType)
	}
}

// ollamaAdapter adapts ollama.Provider to Provider.
type ollamaAdapter struct {
	provider *ollama.Provider
}

func toOllama(messages []Message, opts *ChatOptions) ([]ollama.Message, *ollama.ChatOptions) {
	out := make([]ollama.Message, len(messages))
	for i, msg := range messages {
		out[i] = ollama.Message{Role: msg.Role, Content: msg.Content}
	}
	if opts == nil {
		return out, nil
	}
	return out, &ollama.ChatOptions{
		Model:       opts.Model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
}

func (a *ollamaAdapter) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	msgs, o := toOllama(messages, opts)
	resp, err := a.provider.Chat(ctx, msgs, o)
	if err != nil {
		return nil, err
	}
	return &Response{
		Content:      resp.Content,
		Model:        resp.Model,
		TokensPrompt: resp.TokensPrompt,
		TokensTotal:  resp.TokensTotal,
	}, nil
}

func (a *ollamaAdapter) ChatStream(ctx context.Context, messages []Message, opts *ChatOptions) (<-chan StreamEvent, error) {
	msgs, o := toOllama(messages, opts)
	in, err := a.provider.ChatStream(ctx, msgs, o)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamEvent, 10)
	go func() {
		defer close(out)
		for ev := range in {
			out <- StreamEvent{Content: ev.Content, Done: ev.Done, Error: ev.Error}
		}
	}()
	return out, nil
}

func (a *ollamaAdapter) Heartbeat(ctx context.Context) error {
	return a.provider.Heartbeat(ctx)
}

func (a *ollamaAdapter) ModelAvailable(ctx context.Context, model string) (bool, error) {
	return a.provider.ModelAvailable(ctx, model)
}
