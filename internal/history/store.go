// Package history persists the conversation transcript as a flat text file.
package history

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/lectern-ai/page-reader/internal/domain"
)

// Store appends and reads conversation turns on disk. The file is created
// lazily on first append; the whole transcript is read back as one opaque
// string. A mutex serializes concurrent appenders within the process.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a history store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Append writes one (prompt, response) turn with the fixed framing.
func (s *Store) Append(prompt, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return domain.IOError("failed to create history directory", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return domain.IOError("failed to open history file", err)
	}
	defer f.Close()

	entry := fmt.Sprintf("User: %s\n\nAgent: %s\n\n", prompt, response)
	if _, err := f.WriteString(entry); err != nil {
		return domain.IOError("failed to append history entry", err)
	}

	return nil
}

// Read returns the full transcript, or "" when no history exists yet.
func (s *Store) Read() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", domain.IOError("failed to read history file", err)
	}

	return string(data), nil
}

// Clear removes the transcript. A missing file is a no-op.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.IOError("failed to delete history file", err)
	}

	return nil
}
