package llm

import "errors"

// Backend failures are classified into a small set of sentinels so callers
// can produce user-facing explanations without parsing provider messages.
var (
	ErrNotConfigured = errors.New("llm: backend not configured")
	ErrUnauthorized  = errors.New("llm: invalid or missing API key")
	ErrRateLimited   = errors.New("llm: quota or rate limit exceeded")
	ErrBlocked       = errors.New("llm: response blocked by safety filter")
	ErrUnavailable   = errors.New("llm: backend unavailable")
)
