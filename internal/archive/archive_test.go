package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinkeep/coinkeep/internal/blob"
	"github.com/coinkeep/coinkeep/internal/domain"
	"github.com/coinkeep/coinkeep/internal/logger"
	"github.com/coinkeep/coinkeep/internal/repo"
)

type nopStore struct{}

func (nopStore) Save(accounts []domain.Account) error { return nil }

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func newRepo(accounts []domain.Account) *repo.Repository {
	return repo.New(accounts, nopStore{}, nil, logger.NewWithWriter(nopWriter{}))
}

func newBlobStore(t *testing.T) *blob.Store {
	t.Helper()
	s, err := blob.NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

// testAccount uses fixed dates in the past so the derived fields are
// stable regardless of when the test runs.
func testAccount() domain.Account {
	return domain.Account{
		ID:      "acc-1",
		Name:    "Checking",
		Balance: 1995.5,
		Transactions: []domain.Transaction{
			{
				ID:        "t1",
				CreatedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
				Name:      "Salary",
				Amount:    2000,
				Date:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			},
			{
				ID:        "t2",
				CreatedAt: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
				Name:      "Coffee",
				Amount:    -4.5,
				Date:      time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
				Tag:       "g1",
				File:      &domain.FileRef{ID: "f1", Name: "receipt.png"},
			},
		},
		Tags:     []domain.Tag{{ID: "g1", Name: "food", Color: "#e74c3c"}},
		Charts:   []domain.Chart{},
		Settings: []domain.Setting{{Name: "currency", Value: "EUR"}},
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	orig := testAccount()

	srcBlobs := newBlobStore(t)
	require.NoError(t, srcBlobs.Write(*orig.Transactions[1].File, []byte("png bytes")))
	src := NewService(newRepo([]domain.Account{orig}), srcBlobs)

	data, err := src.Export(orig.ID)
	require.NoError(t, err)

	dstBlobs := newBlobStore(t)
	dst := NewService(newRepo(nil), dstBlobs)

	imported, err := dst.Import(data, false)
	require.NoError(t, err)

	assert.Equal(t, orig, imported)

	got, err := dstBlobs.Read(*orig.Transactions[1].File)
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), got)
}

func TestForceImportOverwritesZeroMonthly(t *testing.T) {
	orig := testAccount()
	orig.Monthly = 0
	blobs := newBlobStore(t)
	require.NoError(t, blobs.Write(*orig.Transactions[1].File, []byte("png bytes")))

	data, err := NewService(newRepo([]domain.Account{orig}), blobs).Export(orig.ID)
	require.NoError(t, err)

	existing := testAccount()
	existing.Monthly = 500
	r := newRepo([]domain.Account{existing})
	dst := NewService(r, blobs)

	// The manifest carries "monthly": 0, which is present, not absent:
	// the force merge must overwrite the existing budget with zero.
	merged, err := dst.Import(data, true)
	require.NoError(t, err)
	assert.Zero(t, merged.Monthly)

	got, err := r.Account(orig.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Monthly)
}

// opsRepo and opsBlobs record the order of import side effects.
type opsRepo struct{ ops *[]string }

func (r opsRepo) Account(id string) (domain.Account, error) {
	return domain.Account{}, repo.ErrNotFound
}

func (r opsRepo) AdoptAccount(id string, patch domain.AccountPatch, force bool) (domain.Account, error) {
	*r.ops = append(*r.ops, "adopt")
	return domain.Account{ID: id}, nil
}

type opsBlobs struct {
	ops      *[]string
	writeErr error
}

func (b opsBlobs) Read(ref domain.FileRef) ([]byte, error) { return nil, nil }
func (b opsBlobs) Exists(ref domain.FileRef) bool          { return true }
func (b opsBlobs) Write(ref domain.FileRef, data []byte) error {
	if b.writeErr != nil {
		return b.writeErr
	}
	*b.ops = append(*b.ops, "write "+ref.ID)
	return nil
}

func TestImportWritesBlobsBeforeAdopting(t *testing.T) {
	acc := testAccount()
	blobs := newBlobStore(t)
	require.NoError(t, blobs.Write(*acc.Transactions[1].File, []byte("png bytes")))
	data, err := NewService(newRepo([]domain.Account{acc}), blobs).Export(acc.ID)
	require.NoError(t, err)

	var ops []string
	svc := NewService(opsRepo{ops: &ops}, opsBlobs{ops: &ops})

	_, err = svc.Import(data, false)
	require.NoError(t, err)

	// The account must never be adopted while its blob is still missing.
	assert.Equal(t, []string{"write f1", "adopt"}, ops)
}

func TestImportBlobWriteFailureLeavesRepositoryUntouched(t *testing.T) {
	acc := testAccount()
	blobs := newBlobStore(t)
	require.NoError(t, blobs.Write(*acc.Transactions[1].File, []byte("png bytes")))
	data, err := NewService(newRepo([]domain.Account{acc}), blobs).Export(acc.ID)
	require.NoError(t, err)

	r := newRepo(nil)
	var ops []string
	svc := NewService(r, opsBlobs{ops: &ops, writeErr: errors.New("disk full")})

	_, err = svc.Import(data, false)
	assert.Error(t, err)

	_, err = r.Account(acc.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestImportMissingBlobRejected(t *testing.T) {
	acc := testAccount()

	// Build an archive by hand that references f1 but carries no blob.
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("account.json")
	require.NoError(t, err)
	writeManifest(t, w, acc)
	require.NoError(t, zw.Close())

	r := newRepo(nil)
	svc := NewService(r, newBlobStore(t))

	_, err = svc.Import(buf.Bytes(), false)
	assert.ErrorIs(t, err, ErrMissingBlob)

	// Repository left unchanged.
	_, err = r.Account(acc.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestImportIDConflict(t *testing.T) {
	orig := testAccount()
	blobs := newBlobStore(t)
	require.NoError(t, blobs.Write(*orig.Transactions[1].File, []byte("png bytes")))

	r := newRepo([]domain.Account{orig})
	svc := NewService(r, blobs)

	data, err := svc.Export(orig.ID)
	require.NoError(t, err)

	_, err = svc.Import(data, false)
	assert.ErrorIs(t, err, ErrIDConflict)

	// Force merges instead.
	_, err = svc.Import(data, true)
	assert.NoError(t, err)
}

func TestImportMalformedArchive(t *testing.T) {
	svc := NewService(newRepo(nil), newBlobStore(t))

	tests := []struct {
		name string
		data []byte
	}{
		{"not a zip", []byte("definitely not a zip")},
		{"no manifest", emptyZip(t)},
		{"null transactions", manifestZip(t, `{"id":"a1","name":"x","transactions":null}`)},
		{"missing name", manifestZip(t, `{"id":"a1","transactions":[]}`)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Import(tc.data, false)
			assert.ErrorIs(t, err, ErrMalformedArchive)
		})
	}
}

func writeManifest(t *testing.T, w io.Writer, acc domain.Account) {
	t.Helper()
	data, err := json.Marshal(acc)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
}

func emptyZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func manifestZip(t *testing.T, manifest string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("account.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(manifest))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
