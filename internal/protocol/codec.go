// Package protocol decodes raw model output into typed command batches and
// re-encodes executed batches into the canonical JSON form the model is
// shown on later turns.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/user/scriptforge/internal/types"
)

// ErrProtocol marks model output that cannot be decoded as a command batch.
var ErrProtocol = errors.New("protocol error")

// StripFence removes a single surrounding triple-backtick fence, optionally
// tagged (```json ... ```), from the model's raw output.
func StripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```json") && strings.HasSuffix(text, "```") {
		return strings.TrimSpace(text[7 : len(text)-3])
	}
	if strings.HasPrefix(text, "```") && strings.HasSuffix(text, "```") && len(text) >= 6 {
		return strings.TrimSpace(text[3 : len(text)-3])
	}
	return text
}

// element is the wire shape of one command object. Content is a pointer so
// that an explicit null or absent content can be told apart from an empty
// string.
type element struct {
	Action   string  `json:"action"`
	Filename string  `json:"filename"`
	Content  *string `json:"content"`
}

// Decode parses raw model output into an ordered command batch. The text
// must be a JSON array after fence stripping; anything else is an
// ErrProtocol and aborts the whole batch. Individual malformed elements do
// not abort decoding: non-object elements degrade to chat warnings, and
// objects with missing fields or unknown actions are returned with
// DecodeErr set so the executor can surface them as failures.
func Decode(raw string) ([]types.Command, error) {
	text := StripFence(raw)

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elems); err != nil {
		var v any
		if json.Unmarshal([]byte(text), &v) == nil {
			slog.Error("model output is valid JSON but not an array", "raw", raw)
			return nil, fmt.Errorf("%w: response was not a list of commands", ErrProtocol)
		}
		slog.Error("model output is not valid JSON", "raw", raw, "error", err)
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrProtocol, err)
	}
	// JSON null unmarshals into a nil slice without error.
	if elems == nil {
		slog.Error("model output is valid JSON but not an array", "raw", raw)
		return nil, fmt.Errorf("%w: response was not a list of commands", ErrProtocol)
	}

	commands := make([]types.Command, 0, len(elems))
	for _, elem := range elems {
		var obj element
		if err := json.Unmarshal(elem, &obj); err != nil {
			slog.Warn("invalid command element", "element", string(elem))
			commands = append(commands, types.Command{
				Action:  types.ActionChat,
				Content: fmt.Sprintf("AI Warning: invalid command format: %s", string(elem)),
				Raw:     elem,
			})
			continue
		}

		cmd := types.Command{
			Action:   types.Action(obj.Action),
			Filename: obj.Filename,
			Raw:      elem,
		}
		if obj.Content != nil {
			cmd.Content = *obj.Content
		}

		switch cmd.Action {
		case types.ActionCreateUpdate:
			if obj.Filename == "" || obj.Content == nil {
				cmd.DecodeErr = "missing parameters"
			}
		case types.ActionDelete:
			if obj.Filename == "" {
				cmd.DecodeErr = "missing filename"
			}
		case types.ActionChat:
			// Content is the user-facing message; filename is ignored.
		default:
			cmd.DecodeErr = fmt.Sprintf("unknown action (%s)", obj.Action)
		}

		commands = append(commands, cmd)
	}

	return commands, nil
}

// outcomeWire is the canonical transcript form of an executed command: the
// original command fields plus the status tag. Diffs and other display-only
// annotations never enter the transcript.
type outcomeWire struct {
	Action   types.Action `json:"action"`
	Filename string       `json:"filename,omitempty"`
	Content  string       `json:"content,omitempty"`
	Status   types.Status `json:"status"`
}

// Encode serializes an outcome batch to the canonical JSON array the model
// must see as its own prior output.
func Encode(outcomes []types.CommandOutcome) string {
	wire := make([]outcomeWire, len(outcomes))
	for i, o := range outcomes {
		wire[i] = outcomeWire{
			Action:   o.Action,
			Filename: o.Filename,
			Content:  o.Content,
			Status:   o.Status,
		}
	}
	data, _ := json.Marshal(wire)
	return string(data)
}
