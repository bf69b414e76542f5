package policy

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cfarm/ccp-test/internal/errors"
)

// Store holds the current policy document and reloads it when the file on
// disk changes. The document itself is never mutated in place after load;
// readers get whatever snapshot was current when they asked.
type Store struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	doc      *Document
	loadedAt time.Time
	modTime  time.Time
}

// NewStore creates a policy store for the given file path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the policy file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads, parses and validates the policy file.
func (s *Store) Load() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return errors.ClassifyFileError(s.path, fmt.Errorf("failed to stat policy file: %w", err))
	}

	doc, err := Load(s.path)
	if err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("policy file %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.doc = doc
	s.loadedAt = time.Now()
	s.modTime = info.ModTime()
	s.mu.Unlock()

	s.logger.Info("policy document loaded",
		"path", s.path,
		"version", doc.Version,
		"ignore_entries", len(doc.Ignore),
		"patch_entries", len(doc.Patch))

	return nil
}

// Current returns the most recently loaded document. Nil before first Load.
func (s *Store) Current() *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// LoadedAt returns when the current document was loaded.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// ReloadIfChanged reloads the document when the file's mtime moved.
// Returns whether a reload happened. A reload that fails validation keeps
// the previous document active.
func (s *Store) ReloadIfChanged() (bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return false, errors.ClassifyFileError(s.path, fmt.Errorf("failed to stat policy file: %w", err))
	}

	s.mu.RLock()
	unchanged := s.doc != nil && info.ModTime().Equal(s.modTime)
	s.mu.RUnlock()

	if unchanged {
		return false, nil
	}

	if err := s.Load(); err != nil {
		s.logger.Error("policy reload failed, keeping previous document",
			"path", s.path,
			"error", err.Error())
		return false, err
	}

	return true, nil
}
