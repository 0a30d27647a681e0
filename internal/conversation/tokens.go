package conversation

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many tokens a text consumes in the model's
// context window.
type TokenCounter interface {
	Count(text string) int
}

// NewTokenCounter returns a BPE-backed counter when the encoding is
// available, falling back to a character heuristic otherwise (the encoding
// data is fetched lazily and may be absent offline).
func NewTokenCounter() TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		slog.Warn("tiktoken encoding unavailable, using approximate counter", "error", err)
		return approxCounter{}
	}
	return &bpeCounter{enc: enc}
}

type bpeCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *bpeCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// approxCounter estimates roughly four characters per token.
type approxCounter struct{}

func (approxCounter) Count(text string) int {
	return len(text)/4 + 1
}
