package workspace

import "github.com/user/scriptforge/internal/types"

// Compile-time interface compliance check.
var _ types.WorkspaceStore = (*Store)(nil)
