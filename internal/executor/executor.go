// Package executor applies decoded command batches against the workspace,
// producing one outcome per command and keeping the session's editor and
// preview state consistent with file mutations.
package executor

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/scriptforge/internal/session"
	"github.com/user/scriptforge/internal/types"
	"github.com/user/scriptforge/internal/workspace"
)

// Executor applies commands in strict batch order. A failure of one
// command degrades that entry to a failure outcome; the batch continues.
type Executor struct {
	store   types.WorkspaceStore
	session *session.State
	preview types.Previewer
}

// New creates an Executor. preview may be nil when no preview manager is
// wired (the delete-stops-preview invariant is then the caller's problem).
func New(store types.WorkspaceStore, sess *session.State, preview types.Previewer) *Executor {
	return &Executor{store: store, session: sess, preview: preview}
}

// Execute applies the batch in array order and returns one outcome per
// command. Order matters: a delete followed by a create of the same name
// re-creates it, and vice versa.
func (e *Executor) Execute(commands []types.Command) []types.CommandOutcome {
	outcomes := make([]types.CommandOutcome, 0, len(commands))
	for _, cmd := range commands {
		outcomes = append(outcomes, e.executeOne(cmd))
	}
	return outcomes
}

func (e *Executor) executeOne(cmd types.Command) types.CommandOutcome {
	outcome := types.CommandOutcome{Command: cmd}

	if cmd.DecodeErr != "" {
		slog.Warn("command rejected at decode", "action", string(cmd.Action), "reason", cmd.DecodeErr)
		outcome.Status = types.Failed(cmd.DecodeErr)
		return outcome
	}

	switch cmd.Action {
	case types.ActionCreateUpdate:
		return e.executeCreateUpdate(cmd)
	case types.ActionDelete:
		return e.executeDelete(cmd)
	case types.ActionChat:
		slog.Info("chat command", "content", cmd.Content)
		outcome.Status = types.StatusChat
		return outcome
	default:
		// The codec marks unknown actions; this is a belt for commands
		// constructed outside it.
		outcome.Status = types.Failed(fmt.Sprintf("unknown action (%s)", cmd.Action))
		return outcome
	}
}

func (e *Executor) executeCreateUpdate(cmd types.Command) types.CommandOutcome {
	outcome := types.CommandOutcome{Command: cmd}

	// Prior content, for the outcome diff. Absent or unreadable means the
	// diff is against nothing.
	prior, err := e.store.Read(cmd.Filename)
	if err != nil && !errors.Is(err, workspace.ErrNotFound) {
		prior = ""
	}

	if err := e.store.Write(cmd.Filename, cmd.Content); err != nil {
		switch {
		case errors.Is(err, workspace.ErrInvalidName) || errors.Is(err, workspace.ErrInvalidExtension):
			slog.Error("create_update rejected", "filename", cmd.Filename, "error", err)
			outcome.Status = types.Failed("invalid filename")
		default:
			slog.Error("create_update failed", "filename", cmd.Filename, "error", err)
			outcome.Status = types.Failed("save error")
		}
		return outcome
	}

	outcome.Status = types.StatusSuccess
	outcome.Diff = lineDiff(prior, cmd.Content)

	if e.session != nil && e.session.RefreshEditor(cmd.Filename, cmd.Content) {
		slog.Debug("refreshed editor state after model write", "filename", cmd.Filename)
	}
	return outcome
}

func (e *Executor) executeDelete(cmd types.Command) types.CommandOutcome {
	outcome := types.CommandOutcome{Command: cmd}

	if err := e.store.Delete(cmd.Filename); err != nil {
		switch {
		case errors.Is(err, workspace.ErrInvalidName):
			slog.Error("delete rejected", "filename", cmd.Filename, "error", err)
			outcome.Status = types.Failed("invalid filename")
		default:
			slog.Error("delete failed", "filename", cmd.Filename, "error", err)
			outcome.Status = types.Failed("delete error")
		}
		return outcome
	}

	// No preview survives the deletion of its bound file.
	if e.preview != nil && e.preview.Filename() == cmd.Filename {
		slog.Info("stopping preview of deleted file", "filename", cmd.Filename)
		e.preview.Stop()
	}

	if e.session != nil && e.session.ClearEditor(cmd.Filename) {
		slog.Debug("cleared editor state after model delete", "filename", cmd.Filename)
	}

	outcome.Status = types.StatusSuccess
	return outcome
}

// FailBatch replaces an undecodable batch with a single synthetic chat
// outcome describing the parse failure, so the conversation renders the
// error the same way it renders any other assistant turn.
func (e *Executor) FailBatch(decodeErr error) []types.CommandOutcome {
	return []types.CommandOutcome{{
		Command: types.Command{
			Action:  types.ActionChat,
			Content: fmt.Sprintf("AI Error: could not parse the model's response: %v", decodeErr),
		},
		Status: types.StatusChat,
	}}
}
