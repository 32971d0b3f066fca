// Package llm talks to the language models behind the chat assistant and the
// question generator.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Provider is implemented by every model backend.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Model() string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Request is one completion call. System is sent as the provider's system
// prompt, never as a message.
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Response holds the text of the first completion and token usage.
type Response struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// ── Errors ──────────────────────────────────────────────

// ErrRateLimit means the provider answered 429.
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrProviderUnavailable means the provider failed or could not be reached.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err == nil {
		return "llm provider unavailable"
	}
	return fmt.Sprintf("llm provider unavailable: %v", e.Err)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrInvalidResponse means the provider answered but the answer is unusable.
type ErrInvalidResponse struct {
	Content string
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid llm response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ── Config ──────────────────────────────────────────────

type Config struct {
	Provider  string // openai | anthropic | gemini | mock
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	Gemini    GeminiConfig
}

// New builds the configured provider.
func New(ctx context.Context, cfg Config) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "openai", "":
		p, err = NewOpenAI(cfg.OpenAI)
	case "anthropic":
		p, err = NewAnthropic(cfg.Anthropic)
	case "gemini":
		p, err = NewGemini(ctx, cfg.Gemini)
	case "mock":
		m := NewMock()
		m.Reply = func(Request) string { return "[Mock] This is a placeholder answer." }
		p = m
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s provider: %w", cfg.Provider, err)
	}
	log.Printf("[llm] using %s (%s)", cfg.Provider, p.Model())
	return p, nil
}

// ── Retry ───────────────────────────────────────────────

// retryBackoff is the wait before the given retry (1-based).
var retryBackoff = func(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// withRetry calls fn up to attempts times, retrying rate limits and provider
// failures only.
func withRetry(ctx context.Context, name string, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := retryBackoff(attempt)
			var rl *ErrRateLimit
			if errors.As(lastErr, &rl) && rl.RetryAfter > 0 {
				wait = rl.RetryAfter
			}
			log.Printf("[llm] retrying %s call in %v (attempt %d)", name, wait, attempt+1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
		log.Printf("[llm] %s attempt %d failed: %v", name, attempt+1, err)
	}
	return lastErr
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rl *ErrRateLimit
	var unavailable *ErrProviderUnavailable
	return errors.As(err, &rl) || errors.As(err, &unavailable)
}

func statusError(status int, err error) error {
	switch {
	case status == 429:
		return &ErrRateLimit{Err: err}
	case status >= 500 || status == 0:
		return &ErrProviderUnavailable{Err: err}
	}
	return err
}
