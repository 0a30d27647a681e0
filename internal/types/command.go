package types

import "encoding/json"

// Action identifies the kind of a model-issued command.
type Action string

const (
	ActionCreateUpdate Action = "create_update"
	ActionDelete       Action = "delete"
	ActionChat         Action = "chat"
)

// Command is one structured instruction decoded from model output.
// Commands carry no identity beyond their position in the decoded batch.
// DecodeErr is set by the codec when the command is syntactically invalid
// (missing fields, unknown action); such commands are never executed and
// surface as failure outcomes instead.
type Command struct {
	Action   Action `json:"action"`
	Filename string `json:"filename,omitempty"`
	Content  string `json:"content,omitempty"`

	// Raw preserves the original JSON element for unrecognized commands.
	Raw json.RawMessage `json:"-"`

	// DecodeErr holds the reason a command failed syntactic validation.
	DecodeErr string `json:"-"`
}

// Status tags a CommandOutcome with its execution result.
type Status string

const (
	StatusSuccess Status = "success"
	StatusChat    Status = "chat message"
)

// Failed builds a failure status with the given reason, e.g.
// "failed: missing parameters".
func Failed(reason string) Status {
	return Status("failed: " + reason)
}

// IsFailure reports whether the status is a failure tag.
func (s Status) IsFailure() bool {
	return s != StatusSuccess && s != StatusChat
}

// CommandOutcome is a Command annotated with its execution result.
// Outcomes are created once per execution pass and immutable afterward.
type CommandOutcome struct {
	Command
	Status Status `json:"status"`

	// Diff is a line diff against the file's prior content for successful
	// create_update commands. Display-only; never replayed to the model.
	Diff string `json:"diff,omitempty"`
}
