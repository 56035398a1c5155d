// Package archive packs one account and its attachment blobs into a
// portable zip: account.json at the root plus a files/ directory using
// the live blob naming convention. Import is the reverse, with explicit
// failure kinds instead of bare result codes.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/coinkeep/coinkeep/internal/blob"
	"github.com/coinkeep/coinkeep/internal/domain"
	"github.com/coinkeep/coinkeep/internal/repo"
)

const (
	manifestName = "account.json"
	filesDir     = "files"
)

var (
	// ErrMalformedArchive marks an unreadable archive or a manifest
	// missing id, name or transactions.
	ErrMalformedArchive = errors.New("malformed archive")

	// ErrIDConflict marks an import whose account id already exists and
	// force was not set.
	ErrIDConflict = errors.New("account id conflict")

	// ErrMissingBlob marks a manifest referencing a file the archive does
	// not carry.
	ErrMissingBlob = errors.New("missing referenced blob")
)

// Repository is the subset of the account repository the service needs.
type Repository interface {
	Account(id string) (domain.Account, error)
	AdoptAccount(id string, patch domain.AccountPatch, force bool) (domain.Account, error)
}

// Blobs is the attachment store the service reads exports from and
// writes imports into.
type Blobs interface {
	Read(ref domain.FileRef) ([]byte, error)
	Exists(ref domain.FileRef) bool
	Write(ref domain.FileRef, data []byte) error
}

// Service performs export and import against the repository and blob
// store.
type Service struct {
	repo  Repository
	blobs Blobs
}

// NewService builds an archive service.
func NewService(repo Repository, blobs Blobs) *Service {
	return &Service{repo: repo, blobs: blobs}
}

// Export serializes the account and every attachment blob that exists on
// disk into a zip and returns its bytes.
func (s *Service) Export(accountID string) ([]byte, error) {
	account, err := s.repo.Account(accountID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	manifest, err := json.MarshalIndent(account, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal account: %w", err)
	}
	w, err := zw.Create(manifestName)
	if err != nil {
		return nil, fmt.Errorf("create manifest entry: %w", err)
	}
	if _, err := w.Write(manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	for _, t := range account.Transactions {
		if t.File == nil || !s.blobs.Exists(*t.File) {
			continue
		}
		data, err := s.blobs.Read(*t.File)
		if err != nil {
			return nil, err
		}
		w, err := zw.Create(path.Join(filesDir, blob.Filename(*t.File)))
		if err != nil {
			return nil, fmt.Errorf("create blob entry: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write blob entry: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Import parses the archive, validates it, writes the blobs and then
// takes the account into the repository. The repository is left
// untouched on any failure: the manifest and every referenced blob are
// verified, and the blobs stored, before the account is adopted.
func (s *Service) Import(data []byte, force bool) (domain.Account, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.Account{}, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}

	manifestEntry, ok := entries[manifestName]
	if !ok {
		return domain.Account{}, fmt.Errorf("%w: no %s", ErrMalformedArchive, manifestName)
	}
	raw, err := readEntry(manifestEntry)
	if err != nil {
		return domain.Account{}, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	// The manifest decodes through pointer-optional fields so a null or
	// missing field is distinguishable from a present zero value. id,
	// name and transactions are mandatory; everything else merges by
	// presence.
	var manifest struct {
		ID *string `json:"id"`
		domain.AccountPatch
	}
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return domain.Account{}, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}
	if manifest.ID == nil || manifest.Name == nil || manifest.Transactions == nil {
		return domain.Account{}, fmt.Errorf("%w: manifest missing id, name or transactions", ErrMalformedArchive)
	}
	txns := *manifest.Transactions

	for _, t := range txns {
		if t.File == nil {
			continue
		}
		if _, ok := entries[path.Join(filesDir, blob.Filename(*t.File))]; !ok {
			return domain.Account{}, fmt.Errorf("%w: %s", ErrMissingBlob, t.File.ID)
		}
	}

	// Blobs land on disk before the account does, so an adopted file
	// reference always has its blob. A failure past this point leaves at
	// worst orphaned blobs for the sweep, never a dangling reference.
	for _, t := range txns {
		if t.File == nil {
			continue
		}
		data, err := readEntry(entries[path.Join(filesDir, blob.Filename(*t.File))])
		if err != nil {
			return domain.Account{}, fmt.Errorf("read archived blob %s: %w", t.File.ID, err)
		}
		if err := s.blobs.Write(*t.File, data); err != nil {
			return domain.Account{}, err
		}
	}

	adopted, err := s.repo.AdoptAccount(*manifest.ID, manifest.AccountPatch, force)
	if errors.Is(err, repo.ErrConflict) {
		return domain.Account{}, fmt.Errorf("%w: %s", ErrIDConflict, *manifest.ID)
	}
	if err != nil {
		return domain.Account{}, err
	}
	return adopted, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
