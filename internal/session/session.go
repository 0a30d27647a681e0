// Package session holds the explicit per-session state shared by the
// pipeline components: the ordered conversation history and the editor
// bookkeeping the executor keeps in sync with file mutations.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/user/scriptforge/internal/types"
)

// State is the single mutable session record. It replaces ad-hoc globals:
// every component that needs session data receives this struct explicitly.
// History is append-only; entries are never edited or removed except by
// Reset.
type State struct {
	mu sync.RWMutex

	id      types.SessionID
	history []types.Entry

	selectedFile     string
	contentOnLoad    string
	unsavedContent   string
	lastSavedContent string

	thinking bool
}

// NewState creates an empty session.
func NewState() *State {
	return &State{id: types.NewSessionID()}
}

// ID returns the session's identifier.
func (s *State) ID() types.SessionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// AppendUser appends a user turn to the history.
func (s *State) AppendUser(text string) types.Entry {
	entry := types.Entry{
		ID:   types.NewEntryID(),
		Role: types.RoleUser,
		Text: text,
		At:   time.Now(),
	}
	s.mu.Lock()
	s.history = append(s.history, entry)
	s.mu.Unlock()
	return entry
}

// AppendOutcomes appends an assistant turn carrying an executed command
// batch.
func (s *State) AppendOutcomes(outcomes []types.CommandOutcome) types.Entry {
	entry := types.Entry{
		ID:       types.NewEntryID(),
		Role:     types.RoleAssistant,
		Outcomes: outcomes,
		At:       time.Now(),
	}
	s.mu.Lock()
	s.history = append(s.history, entry)
	s.mu.Unlock()
	return entry
}

// History returns a copy of the conversation history.
func (s *State) History() []types.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Entry, len(s.history))
	copy(out, s.history)
	return out
}

// Reset clears the history and editor state. The session keeps its ID.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.selectedFile = ""
	s.contentOnLoad = ""
	s.unsavedContent = ""
	s.lastSavedContent = ""
	slog.Info("session reset", "session_id", string(s.id))
}

// Select marks a file as open in the editor and seeds its buffers.
func (s *State) Select(filename, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedFile = filename
	s.contentOnLoad = content
	s.unsavedContent = content
	s.lastSavedContent = content
}

// SelectedFile returns the file currently open for editing, or "".
func (s *State) SelectedFile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedFile
}

// SetUnsaved records the editor's in-progress content.
func (s *State) SetUnsaved(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsavedContent = content
}

// UnsavedContent returns the editor's in-progress content.
func (s *State) UnsavedContent() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unsavedContent
}

// RefreshEditor updates all editor buffers to the given content if the
// named file is the one open for editing. Returns true if applied. This is
// the cross-cutting synchronization the executor performs after the model
// overwrites the open file.
func (s *State) RefreshEditor(filename, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedFile != filename {
		return false
	}
	s.contentOnLoad = content
	s.unsavedContent = content
	s.lastSavedContent = content
	slog.Debug("editor refreshed after model write", "filename", filename)
	return true
}

// ClearEditor unsets the selection and empties the buffers if the named
// file is the one open for editing. Returns true if applied.
func (s *State) ClearEditor(filename string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedFile != filename {
		return false
	}
	s.selectedFile = ""
	s.contentOnLoad = ""
	s.unsavedContent = ""
	s.lastSavedContent = ""
	slog.Debug("editor cleared after model delete", "filename", filename)
	return true
}

// SetThinking flags that a model call is in flight. The UI shows its
// working indicator from this.
func (s *State) SetThinking(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thinking = v
}

// Thinking reports whether a model call is in flight.
func (s *State) Thinking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thinking
}
