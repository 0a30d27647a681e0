package openai

import "github.com/user/scriptforge/pkg/llm"

// Compile-time interface compliance check.
var _ llm.Provider = (*Client)(nil)
