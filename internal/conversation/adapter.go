// Package conversation translates session history into provider messages
// and provider failures back into the conversation, so the rest of the
// pipeline only ever sees decodable command JSON.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/scriptforge/internal/protocol"
	"github.com/user/scriptforge/internal/types"
	"github.com/user/scriptforge/pkg/llm"
)

const (
	defaultMaxContextTokens = 32768
	defaultOutputReserve    = 8192
)

// Adapter drives one model exchange per user turn. It owns the system
// prompt, the transcript re-encoding, and the context-window budget.
type Adapter struct {
	provider llm.Provider
	retry    *llm.RetryPolicy
	counter  TokenCounter

	maxContextTokens int
	outputReserve    int
}

// Options tunes an Adapter. Zero values select defaults.
type Options struct {
	MaxContextTokens int
	OutputReserve    int
	Counter          TokenCounter
	Retry            *llm.RetryPolicy
}

// New creates an Adapter around the given provider. provider may be nil when
// no backend is configured; Ask then degrades to a configuration-error chat
// turn instead of failing the pipeline.
func New(provider llm.Provider, opts Options) *Adapter {
	if opts.MaxContextTokens <= 0 {
		opts.MaxContextTokens = defaultMaxContextTokens
	}
	if opts.OutputReserve <= 0 {
		opts.OutputReserve = defaultOutputReserve
	}
	if opts.Counter == nil {
		opts.Counter = NewTokenCounter()
	}
	if opts.Retry == nil {
		opts.Retry = llm.DefaultRetryPolicy()
	}
	return &Adapter{
		provider:         provider,
		retry:            opts.Retry,
		counter:          opts.Counter,
		maxContextTokens: opts.MaxContextTokens,
		outputReserve:    opts.OutputReserve,
	}
}

// Ask sends the conversation to the model and returns its raw text
// response. Ask never returns an error to the caller: provider failures are
// classified and returned as a synthetic chat-command JSON array, so the
// reply is always decodable by the protocol codec.
func (a *Adapter) Ask(ctx context.Context, history []types.Entry, files []string) string {
	if a.provider == nil {
		slog.Error("model call skipped: no provider configured")
		return syntheticChat("AI Error: the model client is not configured. Set the API key and restart.")
	}

	messages := a.buildMessages(history, files)
	slog.Debug("sending conversation to model", "messages", len(messages))

	var reply string
	err := a.retry.Execute(func() error {
		var genErr error
		reply, genErr = a.provider.Generate(ctx, messages)
		return genErr
	})
	if err != nil {
		slog.Error("model call failed", "error", err)
		return syntheticChat(errorMessage(err))
	}
	return reply
}

// buildMessages renders the provider message list: system prompt, canned
// acknowledgement, then as much of the history as fits the token budget.
// The system prompt and acknowledgement are always kept; history is trimmed
// oldest-first, and the newest entry is kept even when it alone exceeds the
// budget.
func (a *Adapter) buildMessages(history []types.Entry, files []string) []llm.Message {
	prompt := renderSystemPrompt(files)
	head := []llm.Message{
		{Role: "user", Content: prompt},
		{Role: "assistant", Content: ackTurn},
	}

	budget := a.maxContextTokens - a.outputReserve - a.counter.Count(prompt) - a.counter.Count(ackTurn)

	var tail []llm.Message
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		msg := entryMessage(history[i])
		if msg.Content == "" {
			continue
		}
		cost := a.counter.Count(msg.Content)
		if len(tail) > 0 && used+cost > budget {
			slog.Info("history trimmed to fit context window", "kept", len(tail), "dropped", i+1)
			break
		}
		tail = append(tail, msg)
		used += cost
	}

	// tail was collected newest-first; restore chronological order.
	messages := head
	for i := len(tail) - 1; i >= 0; i-- {
		messages = append(messages, tail[i])
	}
	return messages
}

// entryMessage renders one history entry in the form the model must see:
// user turns verbatim, assistant turns as the canonical command JSON of
// their executed batch.
func entryMessage(entry types.Entry) llm.Message {
	if entry.Role == types.RoleAssistant {
		return llm.Message{Role: "assistant", Content: protocol.Encode(entry.Outcomes)}
	}
	return llm.Message{Role: "user", Content: entry.Text}
}

// errorMessage maps a classified provider error to the user-facing text of
// the synthetic chat turn.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		return "AI Error: the model client is not configured. Set the API key and restart."
	case errors.Is(err, llm.ErrUnauthorized):
		return "AI Error: invalid or missing API key, or the key lacks permission for the model. Please verify your key."
	case errors.Is(err, llm.ErrRateLimited):
		return "AI Error: API quota or rate limit exceeded. Please try again later."
	case errors.Is(err, llm.ErrBlocked):
		return "AI Error: the response was blocked by the provider's safety filters. Please rephrase the request."
	default:
		return fmt.Sprintf("AI Error: API call failed. Details: %v", err)
	}
}

// syntheticChat wraps a message as a single-element chat command array.
// Marshalling guarantees the result decodes cleanly whatever the message
// contains.
func syntheticChat(content string) string {
	data, _ := json.Marshal([]map[string]string{{"action": "chat", "content": content}})
	return string(data)
}
