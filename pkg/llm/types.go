package llm

// Message represents a chat message in a conversation. Role is one of
// "system", "user", or "assistant"; providers map these onto their own
// role vocabulary.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
