package types

import "time"

// Role tags a conversation entry with its author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one turn in the conversation history. User entries carry Text;
// assistant entries carry the outcome batch produced by executing the
// model's commands. History is ordered and append-only.
type Entry struct {
	ID       EntryID          `json:"id"`
	Role     Role             `json:"role"`
	Text     string           `json:"text,omitempty"`
	Outcomes []CommandOutcome `json:"outcomes,omitempty"`
	At       time.Time        `json:"at"`
}
