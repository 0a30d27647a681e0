// Package workspace provides validated file operations scoped to the single
// flat directory holding the user's script files.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extension is the fixed source-file extension for managed files.
const Extension = ".py"

var (
	ErrInvalidName      = errors.New("invalid filename")
	ErrInvalidExtension = errors.New("filename must end with " + Extension)
	ErrNotFound         = errors.New("file not found")
)

// Store performs file operations under a single root directory. It never
// creates or traverses subdirectories.
type Store struct {
	root string
}

// New creates a Store rooted at the given directory.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the workspace root directory.
func (s *Store) Root() string {
	return s.root
}

// validateName rejects empty names, parent-reference segments, absolute
// paths, and anything that is not a single path segment.
func validateName(filename string) error {
	if filename == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.Contains(filename, "..") {
		return fmt.Errorf("%w: %s", ErrInvalidName, filename)
	}
	if strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("%w: %s", ErrInvalidName, filename)
	}
	return nil
}

// List returns all managed filenames directly under the root, sorted
// ascending. A missing or unreadable root is logged and yields an empty
// list.
func (s *Store) List() []string {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		slog.Warn("workspace unreadable", "root", s.root, "error", err)
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), Extension) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Read returns the full text content of the named file.
func (s *Store) Read(filename string) (string, error) {
	if err := validateName(filename); err != nil {
		slog.Error("read rejected", "filename", filename, "error", err)
		return "", err
	}

	data, err := os.ReadFile(filepath.Join(s.root, filename))
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("read missing file", "filename", filename)
			return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return "", fmt.Errorf("read %s: %w", filename, err)
	}
	slog.Debug("file read", "filename", filename, "bytes", len(data))
	return string(data), nil
}

// Write replaces the named file's content in full. The write is atomic from
// the caller's perspective (temp file + rename). The root directory is
// created if missing.
func (s *Store) Write(filename, content string) error {
	if err := validateName(filename); err != nil {
		slog.Error("write rejected", "filename", filename, "error", err)
		return err
	}
	if !strings.HasSuffix(filename, Extension) {
		slog.Error("write rejected", "filename", filename, "error", ErrInvalidExtension)
		return fmt.Errorf("%w: %s", ErrInvalidExtension, filename)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create workspace dir: %w", err)
	}

	target := filepath.Join(s.root, filename)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filename, err)
	}

	slog.Info("file written", "filename", filename, "bytes", len(content))
	return nil
}

// Delete removes the named file. Deleting a file that is already absent is
// treated as success.
func (s *Store) Delete(filename string) error {
	if err := validateName(filename); err != nil {
		slog.Error("delete rejected", "filename", filename, "error", err)
		return err
	}

	if err := os.Remove(filepath.Join(s.root, filename)); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("delete of absent file", "filename", filename)
			return nil
		}
		return fmt.Errorf("delete %s: %w", filename, err)
	}

	slog.Info("file deleted", "filename", filename)
	return nil
}

// Path validates the filename and returns its absolute path under the root.
func (s *Store) Path(filename string) (string, error) {
	if err := validateName(filename); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(filepath.Join(s.root, filename))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", filename, err)
	}
	return abs, nil
}

// Exists reports whether the named file is present in the workspace.
func (s *Store) Exists(filename string) bool {
	if err := validateName(filename); err != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(s.root, filename))
	return err == nil && !info.IsDir()
}
