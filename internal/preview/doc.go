package preview

import "github.com/user/scriptforge/internal/types"

// Compile-time interface compliance check.
var _ types.Previewer = (*Manager)(nil)
