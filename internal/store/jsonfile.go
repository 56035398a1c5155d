// Package store persists the whole account list as a single JSON file.
// The file is the source of truth in offline mode. Writes go through a
// temp file, fsync and rename so a crash mid-write never leaves a
// truncated store behind.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coinkeep/coinkeep/internal/domain"
)

// JSONFile reads and writes the full account list at a fixed path.
type JSONFile struct {
	path string
}

// NewJSONFile creates a store over the given file path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Load reads and parses the account file. A missing file is an empty
// store; corrupt JSON is returned as an error and is fatal at startup.
// Decoding into the domain structs drops any unknown legacy keys, and
// Normalize fills in collections the legacy shape left out, so a single
// Load/Save cycle reconciles old files against the canonical shape.
func (s *JSONFile) Load() ([]domain.Account, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.Account{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var accounts []domain.Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	for i := range accounts {
		accounts[i].Normalize()
	}
	return accounts, nil
}

// Save serializes the entire account list and atomically replaces the
// store file. Every repository mutation ends here, so the file always
// reflects the full current state.
func (s *JSONFile) Save(accounts []domain.Account) error {
	if accounts == nil {
		accounts = []domain.Account{}
	}
	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal accounts: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// Path returns the backing file path.
func (s *JSONFile) Path() string {
	return s.path
}
