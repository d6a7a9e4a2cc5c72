package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/MML0/Assistant-Bot/internal/config"
)

// Client talks to an OpenAI-compatible completion endpoint. Each call runs
// with a bounded per-attempt timeout and a small number of retries with
// linearly increasing backoff.
type Client struct {
	llm          llms.Model
	maxTokens    int
	timeout      time.Duration
	maxAttempts  int
	retryBackoff time.Duration
}

func NewClient(cfg config.LLMConfig) (*Client, error) {
	m, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.DefaultModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}

	// At least one attempt always runs, whatever the config says.
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &Client{
		llm:          m,
		maxTokens:    cfg.MaxTokens,
		timeout:      cfg.Timeout,
		maxAttempts:  attempts,
		retryBackoff: cfg.RetryBackoff,
	}, nil
}

// Complete sends the turn sequence and returns the generated text. After the
// final failed attempt a *ProviderError wrapping the last failure is returned.
func (c *Client) Complete(ctx context.Context, turns []Turn, model string) (string, error) {
	msgs := make([]llms.MessageContent, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, llms.TextParts(chatMessageType(t.Role), t.Text))
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt-1) * c.retryBackoff
			log.Printf("completion attempt %d/%d failed, retrying in %v: %v", attempt-1, c.maxAttempts, backoff, lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", &ProviderError{Err: ctx.Err()}
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.llm.GenerateContent(attemptCtx, msgs,
			llms.WithModel(model),
			llms.WithMaxTokens(c.maxTokens),
		)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("empty completion response")
			continue
		}
		return resp.Choices[0].Content, nil
	}

	return "", &ProviderError{Body: lastErr.Error(), Err: lastErr}
}

func chatMessageType(role Role) schema.ChatMessageType {
	switch role {
	case RoleSystem:
		return schema.ChatMessageTypeSystem
	case RoleAssistant:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}
