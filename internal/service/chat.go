package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MML0/Assistant-Bot/internal/config"
	"github.com/MML0/Assistant-Bot/internal/model"
	"github.com/MML0/Assistant-Bot/internal/repository"
)

// ExchangeStore persists a completed USER/AI exchange atomically.
type ExchangeStore interface {
	AppendExchange(ctx context.Context, userID int64, userText, aiText string, dayStart, dayEnd time.Time, maxPerDay int) error
}

// ChatService runs the per-message pipeline: entitlement check, quota gate,
// prompt assembly and compaction, completion call, exchange persistence.
// Every invocation is an independent unit of work; all state lives in the store.
type ChatService struct {
	store        ExchangeStore
	entitlements *EntitlementService
	limiter      *RateLimiter
	window       *ContextWindow
	completer    Completer

	systemPrompt  string
	fallbackReply string
	loc           *time.Location
}

func NewChatService(
	store ExchangeStore,
	entitlements *EntitlementService,
	limiter *RateLimiter,
	window *ContextWindow,
	completer Completer,
	cfg config.LLMConfig,
	loc *time.Location,
) *ChatService {
	return &ChatService{
		store:         store,
		entitlements:  entitlements,
		limiter:       limiter,
		window:        window,
		completer:     completer,
		systemPrompt:  cfg.SystemPrompt,
		fallbackReply: cfg.FallbackReply,
		loc:           loc,
	}
}

// HandleText produces the reply for one plain-text message. The user always
// receives some text: quota denial yields the upsell message and provider
// failure after retries yields the static fallback; neither is an error.
// A failed exchange persists nothing.
func (s *ChatService) HandleText(ctx context.Context, user *model.User, text string, now time.Time) (string, error) {
	entitled := s.entitlements.IsEntitled(user, now)
	if !entitled {
		s.entitlements.ObserveExpiry(ctx, user, now)

		allowed, err := s.limiter.Allow(ctx, user, now)
		if err != nil {
			return "", fmt.Errorf("failed to check quota: %w", err)
		}
		if !allowed {
			return s.limitMessage(), nil
		}
	}

	prompt, err := s.window.BuildPrompt(ctx, user.ID, s.systemPromptFor(user), text)
	if err != nil {
		return "", err
	}

	prompt, err = s.window.MaybeCompact(ctx, user.ID, prompt, text, user.Model)
	if err != nil {
		var serr *SummarizationError
		if !errors.As(err, &serr) {
			return "", err
		}
		// Delivery continues on the truncated window; compaction retries on
		// the next overflow.
		log.Printf("compaction skipped for user %d: %v", user.ID, err)
	}

	reply, err := s.completer.Complete(ctx, prompt, user.Model)
	if err != nil {
		log.Printf("completion failed for user %d: %v", user.ID, err)
		return s.fallbackReply, nil
	}

	maxPerDay := 0
	if !entitled {
		maxPerDay = s.limiter.Limit()
	}
	dayStart, dayEnd := DayBounds(now, s.loc)
	if err := s.store.AppendExchange(ctx, user.ID, text, reply, dayStart, dayEnd, maxPerDay); err != nil {
		if errors.Is(err, repository.ErrDailyQuotaExceeded) {
			// A concurrent duplicate burned the last quota slot between the
			// gate and the write.
			return s.limitMessage(), nil
		}
		return "", err
	}

	return reply, nil
}

func (s *ChatService) limitMessage() string {
	return fmt.Sprintf("You reached your daily limit of %d messages. Use /getpro to unlock unlimited access.", s.limiter.Limit())
}

func (s *ChatService) systemPromptFor(user *model.User) string {
	prompt := s.systemPrompt
	if name := user.DisplayName(); name != "" {
		prompt += " The user's name is " + name + "."
	}
	return prompt
}
