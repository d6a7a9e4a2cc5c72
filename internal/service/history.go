package service

import (
	"context"
	"fmt"

	"github.com/MML0/Assistant-Bot/internal/llm"
	"github.com/MML0/Assistant-Bot/internal/model"
)

// HistoryStore is the slice of the repository the context window needs.
type HistoryStore interface {
	FetchRecentMessages(ctx context.Context, userID int64, limit int) ([]model.Message, error)
	AppendMessage(ctx context.Context, userID int64, kind model.MessageKind, content string) (*model.Message, error)
}

// Completer is the external completion service.
type Completer interface {
	Complete(ctx context.Context, turns []llm.Turn, model string) (string, error)
}

const (
	summaryPrefix    = "Summary of the conversation so far: "
	continuingPrefix = "Continuing: "

	condenseInstruction = "Condense the following conversation into a short narrative summary. " +
		"Keep the important facts, names, preferences and open questions. Reply with the summary text only."
)

// SummarizationError reports a completion failure during compaction. It never
// blocks delivery of the current turn; the caller proceeds with the truncated
// window MaybeCompact hands back alongside it.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("failed to summarize conversation: %v", e.Err)
}

func (e *SummarizationError) Unwrap() error {
	return e.Err
}

// ContextWindow builds the role-tagged turn sequence sent to the completion
// service and compacts history behind a SUMMARY checkpoint once the window
// overflows.
type ContextWindow struct {
	store     HistoryStore
	completer Completer
	limit     int
	slack     int
}

func NewContextWindow(store HistoryStore, completer Completer, limit, slack int) *ContextWindow {
	return &ContextWindow{store: store, completer: completer, limit: limit, slack: slack}
}

// BuildPrompt assembles system turn + replayed history + the live user turn.
//
// History is fetched with slack beyond the window limit so a recent SUMMARY
// checkpoint is almost certainly inside the fetched range. Replay is oldest
// to newest; a SUMMARY row discards everything accumulated before it and
// seeds a single synthetic assistant turn carrying the summary text, making
// the most recent checkpoint authoritative. An empty SUMMARY row is a
// clear-history marker and seeds nothing.
func (w *ContextWindow) BuildPrompt(ctx context.Context, userID int64, systemPrompt, liveText string) ([]llm.Turn, error) {
	history, err := w.store.FetchRecentMessages(ctx, userID, w.limit+w.slack)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}

	conv := replay(history)
	conv = append(conv, llm.User(liveText))

	prompt := make([]llm.Turn, 0, len(conv)+1)
	prompt = append(prompt, llm.System(systemPrompt))
	return append(prompt, conv...), nil
}

func replay(history []model.Message) []llm.Turn {
	var conv []llm.Turn
	for _, m := range history {
		switch m.Kind {
		case model.KindSummary:
			conv = conv[:0]
			if m.Content != "" {
				conv = append(conv, llm.Assistant(summaryPrefix+m.Content))
			}
		case model.KindUser:
			conv = append(conv, llm.User(m.Content))
		case model.KindAI:
			conv = append(conv, llm.Assistant(m.Content))
		}
	}
	return conv
}

// MaybeCompact compacts the prompt when its content turns (everything after
// the system turn, live turn included) exceed the window limit. The
// summarization call deliberately sees the full over-limit sequence; on
// success a new SUMMARY checkpoint is persisted and the reduced three-turn
// prompt is returned, so the very next request is O(1) in history size.
//
// On summarization failure the returned prompt is the truncated-but-
// uncompacted window: the oldest content turns are dropped so exactly limit
// remain, nothing is persisted, and compaction is retried on the next
// overflow. The *SummarizationError comes back alongside the usable prompt.
func (w *ContextWindow) MaybeCompact(ctx context.Context, userID int64, prompt []llm.Turn, liveText, modelName string) ([]llm.Turn, error) {
	if len(prompt)-1 <= w.limit {
		return prompt, nil
	}

	summaryTurns := make([]llm.Turn, 0, len(prompt))
	summaryTurns = append(summaryTurns, llm.System(condenseInstruction))
	summaryTurns = append(summaryTurns, prompt[1:]...)

	summary, err := w.completer.Complete(ctx, summaryTurns, modelName)
	if err != nil {
		return truncate(prompt, w.limit), &SummarizationError{Err: err}
	}

	if _, err := w.store.AppendMessage(ctx, userID, model.KindSummary, summary); err != nil {
		return nil, fmt.Errorf("failed to persist summary: %w", err)
	}

	return []llm.Turn{
		prompt[0],
		llm.Assistant(summaryPrefix + summary),
		llm.User(continuingPrefix + liveText),
	}, nil
}

// Reset appends an empty SUMMARY checkpoint, making all prior history
// unreachable for context reconstruction. The log itself is untouched.
func (w *ContextWindow) Reset(ctx context.Context, userID int64) error {
	_, err := w.store.AppendMessage(ctx, userID, model.KindSummary, "")
	return err
}

func (w *ContextWindow) Limit() int {
	return w.limit
}

// truncate drops the oldest content turns so exactly limit remain after the
// system turn. The live turn sits at the end and is always kept.
func truncate(prompt []llm.Turn, limit int) []llm.Turn {
	content := prompt[1:]
	if len(content) > limit {
		content = content[len(content)-limit:]
	}
	out := make([]llm.Turn, 0, len(content)+1)
	out = append(out, prompt[0])
	return append(out, content...)
}
