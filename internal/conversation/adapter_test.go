package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/user/scriptforge/internal/protocol"
	"github.com/user/scriptforge/internal/types"
	"github.com/user/scriptforge/pkg/llm"
)

type fakeProvider struct {
	reply    string
	err      error
	calls    int
	messages []llm.Message
}

func (f *fakeProvider) Generate(_ context.Context, messages []llm.Message) (string, error) {
	f.calls++
	f.messages = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func fastRetry() *llm.RetryPolicy {
	return &llm.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 1.0, MaxDelay: time.Millisecond}
}

func newAdapter(p llm.Provider) *Adapter {
	return New(p, Options{Counter: approxCounter{}, Retry: fastRetry()})
}

func TestAsk_MessageShape(t *testing.T) {
	provider := &fakeProvider{reply: `[{"action": "chat", "content": "hi"}]`}
	adapter := newAdapter(provider)

	history := []types.Entry{
		{Role: types.RoleUser, Text: "make an app"},
		{Role: types.RoleAssistant, Outcomes: []types.CommandOutcome{
			{Command: types.Command{Action: types.ActionCreateUpdate, Filename: "app.py", Content: "x"}, Status: types.StatusSuccess},
		}},
	}
	reply := adapter.Ask(context.Background(), history, []string{"app.py"})
	if reply != provider.reply {
		t.Fatalf("unexpected reply %q", reply)
	}

	msgs := provider.messages
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages (prompt, ack, 2 history), got %d", len(msgs))
	}
	if msgs[0].Role != "user" || !strings.Contains(msgs[0].Content, "app.py") {
		t.Errorf("system prompt must carry the file listing: %q", msgs[0].Content[:80])
	}
	if msgs[1].Role != "assistant" || !strings.Contains(msgs[1].Content, "Understood") {
		t.Errorf("second message must be the canned acknowledgement: %+v", msgs[1])
	}
	if msgs[2].Content != "make an app" {
		t.Errorf("unexpected user turn: %+v", msgs[2])
	}
	if !strings.Contains(msgs[3].Content, `"status":"success"`) {
		t.Errorf("assistant turn must be the canonical outcome JSON: %q", msgs[3].Content)
	}
}

func TestAsk_EmptyFileListRendersNone(t *testing.T) {
	provider := &fakeProvider{reply: "[]"}
	adapter := newAdapter(provider)

	adapter.Ask(context.Background(), nil, nil)
	if !strings.Contains(provider.messages[0].Content, "Current Python files in workspace: None") {
		t.Error("expected empty workspace rendered as None")
	}
}

func TestAsk_NilProvider(t *testing.T) {
	adapter := newAdapter(nil)

	reply := adapter.Ask(context.Background(), nil, nil)
	cmds, err := protocol.Decode(reply)
	if err != nil {
		t.Fatalf("synthetic reply must decode: %v", err)
	}
	if len(cmds) != 1 || cmds[0].Action != types.ActionChat {
		t.Fatalf("expected single chat command, got %+v", cmds)
	}
	if !strings.Contains(cmds[0].Content, "not configured") {
		t.Errorf("unexpected content %q", cmds[0].Content)
	}
}

func TestAsk_ErrorClassification(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{llm.ErrUnauthorized, "API key"},
		{llm.ErrRateLimited, "quota or rate limit"},
		{llm.ErrBlocked, "safety filters"},
		{errors.New("boom"), "API call failed"},
	}
	for _, tc := range cases {
		adapter := newAdapter(&fakeProvider{err: tc.err})
		reply := adapter.Ask(context.Background(), nil, nil)

		cmds, err := protocol.Decode(reply)
		if err != nil {
			t.Fatalf("%v: synthetic reply must decode: %v", tc.err, err)
		}
		if cmds[0].Action != types.ActionChat || !strings.Contains(cmds[0].Content, tc.want) {
			t.Errorf("%v: expected chat containing %q, got %+v", tc.err, tc.want, cmds[0])
		}
	}
}

func TestAsk_RetriesTransientErrors(t *testing.T) {
	provider := &fakeProvider{err: llm.ErrUnavailable}
	adapter := newAdapter(provider)

	adapter.Ask(context.Background(), nil, nil)
	if provider.calls != 3 {
		t.Errorf("expected 3 attempts for a transient error, got %d", provider.calls)
	}
}

func TestAsk_NoRetryOnAuthError(t *testing.T) {
	provider := &fakeProvider{err: llm.ErrUnauthorized}
	adapter := newAdapter(provider)

	adapter.Ask(context.Background(), nil, nil)
	if provider.calls != 1 {
		t.Errorf("expected a single attempt for an auth error, got %d", provider.calls)
	}
}

func TestBuildMessages_TrimsOldestFirst(t *testing.T) {
	provider := &fakeProvider{reply: "[]"}
	adapter := New(provider, Options{
		Counter:          approxCounter{},
		Retry:            fastRetry(),
		MaxContextTokens: 700,
		OutputReserve:    100,
	})

	big := strings.Repeat("x", 400) // ~100 tokens under the approx counter
	history := []types.Entry{
		{Role: types.RoleUser, Text: "oldest " + big},
		{Role: types.RoleUser, Text: "middle " + big},
		{Role: types.RoleUser, Text: "newest question"},
	}
	adapter.Ask(context.Background(), history, nil)

	joined := ""
	for _, m := range provider.messages {
		joined += m.Content + "\n"
	}
	if !strings.Contains(joined, "newest question") {
		t.Error("newest turn must always survive trimming")
	}
	if strings.Contains(joined, "oldest") {
		t.Error("oldest turn should have been trimmed")
	}
	if !strings.Contains(joined, "Understood") {
		t.Error("acknowledgement must always survive trimming")
	}
}

func TestBuildMessages_NewestKeptEvenWhenOverBudget(t *testing.T) {
	provider := &fakeProvider{reply: "[]"}
	adapter := New(provider, Options{
		Counter:          approxCounter{},
		Retry:            fastRetry(),
		MaxContextTokens: 600,
		OutputReserve:    550,
	})

	history := []types.Entry{
		{Role: types.RoleUser, Text: "the only question, larger than the whole remaining budget"},
	}
	adapter.Ask(context.Background(), history, nil)

	last := provider.messages[len(provider.messages)-1]
	if !strings.Contains(last.Content, "the only question") {
		t.Error("sole newest turn must be sent regardless of budget")
	}
}
