// Package dismiss tracks patterns the user never wants suggested again.
// Dismissals are a presentation-layer filter, independent of the server-side
// correction log, and are persisted per device.
package dismiss

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store is a persisted set of dismissed pattern strings. Patterns are
// normalised to lower-case on every operation, so lookups are
// case-insensitive.
type Store interface {
	// IsDismissed reports whether the exact pattern has been permanently dismissed.
	IsDismissed(pattern string) bool
	// Dismiss adds the pattern to the set and persists it.
	Dismiss(pattern string) error
	// Undismiss removes the pattern from the set and persists it.
	Undismiss(pattern string) error
	// Patterns returns the dismissed patterns, sorted.
	Patterns() []string
	// Clear empties the set.
	Clear() error
}

func normalize(pattern string) string {
	return strings.ToLower(strings.TrimSpace(pattern))
}

// MemoryStore is an in-memory Store with no persistence. Useful for tests
// and for session-scoped dismissal state.
type MemoryStore struct {
	patterns map[string]struct{}
	mu       sync.RWMutex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{patterns: make(map[string]struct{})}
}

// IsDismissed reports whether the pattern is in the set.
func (s *MemoryStore) IsDismissed(pattern string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.patterns[normalize(pattern)]
	return ok
}

// Dismiss adds the pattern to the set.
func (s *MemoryStore) Dismiss(pattern string) error {
	p := normalize(pattern)
	if p == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[p] = struct{}{}
	return nil
}

// Undismiss removes the pattern from the set.
func (s *MemoryStore) Undismiss(pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.patterns, normalize(pattern))
	return nil
}

// Patterns returns the dismissed patterns, sorted.
func (s *MemoryStore) Patterns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.patterns))
	for p := range s.patterns {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Clear empties the set.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = make(map[string]struct{})
	return nil
}

// FileStore persists the dismissed set as a JSON array of lower-cased
// strings. Writes are atomic (temp file + rename) so a crash mid-save never
// corrupts the set.
type FileStore struct {
	mem  *MemoryStore
	path string
	mu   sync.Mutex
}

// NewFileStore loads (or initialises) a FileStore at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		mem:  NewMemoryStore(),
		path: path,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read dismissed patterns: %w", err)
	}

	var patterns []string
	if err := json.Unmarshal(data, &patterns); err != nil {
		return fmt.Errorf("failed to parse dismissed patterns: %w", err)
	}
	for _, p := range patterns {
		_ = s.mem.Dismiss(p)
	}
	return nil
}

func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.mem.Patterns(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dismissed patterns: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create dismissals directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".dismissed-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write dismissed patterns: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace dismissed patterns file: %w", err)
	}
	return nil
}

// IsDismissed reports whether the pattern has been permanently dismissed.
func (s *FileStore) IsDismissed(pattern string) bool {
	return s.mem.IsDismissed(pattern)
}

// Dismiss adds the pattern and persists the set.
func (s *FileStore) Dismiss(pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.Dismiss(pattern); err != nil {
		return err
	}
	return s.save()
}

// Undismiss removes the pattern and persists the set.
func (s *FileStore) Undismiss(pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.Undismiss(pattern); err != nil {
		return err
	}
	return s.save()
}

// Patterns returns the dismissed patterns, sorted.
func (s *FileStore) Patterns() []string {
	return s.mem.Patterns()
}

// Clear empties the set and persists it.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.Clear(); err != nil {
		return err
	}
	return s.save()
}
