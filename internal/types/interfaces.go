package types

// WorkspaceStore provides validated file operations scoped to the single
// flat workspace directory.
type WorkspaceStore interface {
	// List returns the managed filenames sorted ascending. A missing or
	// unreadable workspace yields an empty list, never an error.
	List() []string
	Read(filename string) (string, error)
	Write(filename, content string) error
	// Delete is idempotent: removing an absent file is not an error.
	Delete(filename string) error
	// Path validates the filename and returns its absolute path.
	Path(filename string) (string, error)
	Exists(filename string) bool
}

// Previewer is the slice of the preview manager the executor needs to keep
// the "no preview survives deletion of its bound file" invariant.
type Previewer interface {
	Filename() string
	Stop()
}
