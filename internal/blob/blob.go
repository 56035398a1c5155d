// Package blob stores transaction attachments as flat files in one
// directory, named <id><ext> with the extension taken from the original
// filename. A background sweep deletes blobs no transaction references.
package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/coinkeep/coinkeep/internal/domain"
)

// Store manages the attachment directory.
type Store struct {
	dir string
}

// NewStore creates the blob directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the blob directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Filename returns the on-disk name for a file reference.
func Filename(ref domain.FileRef) string {
	return ref.ID + filepath.Ext(ref.Name)
}

// Put stores the reader's content under a fresh id and returns the
// reference to embed in a transaction.
func (s *Store) Put(name string, r io.Reader) (domain.FileRef, error) {
	ref := domain.FileRef{ID: uuid.NewString(), Name: filepath.Base(name)}

	f, err := os.Create(filepath.Join(s.dir, Filename(ref)))
	if err != nil {
		return domain.FileRef{}, fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return domain.FileRef{}, fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return domain.FileRef{}, fmt.Errorf("close blob: %w", err)
	}
	return ref, nil
}

// Write stores content under an existing reference, used by the archive
// importer which carries ids of its own.
func (s *Store) Write(ref domain.FileRef, data []byte) error {
	if err := os.WriteFile(filepath.Join(s.dir, Filename(ref)), data, 0o644); err != nil {
		return fmt.Errorf("write blob %s: %w", ref.ID, err)
	}
	return nil
}

// Open returns a reader over the referenced blob.
func (s *Store) Open(ref domain.FileRef) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, Filename(ref)))
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", ref.ID, err)
	}
	return f, nil
}

// Read returns the referenced blob's content.
func (s *Store) Read(ref domain.FileRef) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, Filename(ref)))
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", ref.ID, err)
	}
	return data, nil
}

// Exists reports whether the referenced blob is on disk.
func (s *Store) Exists(ref domain.FileRef) bool {
	_, err := os.Stat(filepath.Join(s.dir, Filename(ref)))
	return err == nil
}

// Sweep deletes every blob whose id is not in referenced and returns the
// number of blobs removed.
func (s *Store) Sweep(referenced map[string]struct{}) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read blob dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if _, ok := referenced[id]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return removed, fmt.Errorf("remove blob %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}
