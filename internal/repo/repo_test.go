package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coinkeep/coinkeep/internal/domain"
	"github.com/coinkeep/coinkeep/internal/logger"
)

// fakeStore records every saved snapshot.
type fakeStore struct {
	mu    sync.Mutex
	saves [][]domain.Account
	err   error
}

func (f *fakeStore) Save(accounts []domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saves = append(f.saves, accounts)
	return nil
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

// fakeMirror records the sequence number of every sync call.
type fakeMirror struct {
	mu   sync.Mutex
	seqs []uint64
	done chan struct{}
}

func (f *fakeMirror) Sync(ctx context.Context, seq uint64, accounts []domain.Account) {
	f.mu.Lock()
	f.seqs = append(f.seqs, seq)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
}

func newTestRepo(t *testing.T, accounts []domain.Account) (*Repository, *fakeStore) {
	t.Helper()
	st := &fakeStore{}
	r := New(accounts, st, nil, logger.NewWithWriter(nopWriter{}))
	return r, st
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestCreateAccountSeedsEmptyCollections(t *testing.T) {
	r, st := newTestRepo(t, nil)

	a, err := r.CreateAccount("Checking")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if a.ID == "" {
		t.Error("expected a generated id")
	}
	if a.Balance != 0 || a.CurrentMonthly != 0 {
		t.Errorf("expected zero derived fields, got balance=%v currentMonthly=%v", a.Balance, a.CurrentMonthly)
	}
	if a.Transactions == nil || a.Tags == nil || a.Charts == nil || a.Settings == nil {
		t.Error("expected empty, non-nil collections")
	}
	if st.saveCount() != 1 {
		t.Errorf("expected 1 save, got %d", st.saveCount())
	}
}

func TestBalanceTracksTransactionMutations(t *testing.T) {
	r, _ := newTestRepo(t, nil)
	a, _ := r.CreateAccount("Checking")

	t1, err := r.AddTransaction(a.ID, "Salary", "", 2000, time.Now(), "", nil)
	if err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}
	if _, err := r.AddTransaction(a.ID, "Coffee", "", -4.55, time.Now(), "", nil); err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}

	got, _ := r.Account(a.ID)
	if got.Balance != 1995.45 {
		t.Errorf("expected balance 1995.45, got %v", got.Balance)
	}

	newAmount := 1500.0
	if _, err := r.PatchTransaction(a.ID, t1.ID, domain.TransactionPatch{Amount: &newAmount}); err != nil {
		t.Fatalf("PatchTransaction failed: %v", err)
	}
	got, _ = r.Account(a.ID)
	if got.Balance != 1495.45 {
		t.Errorf("expected balance 1495.45 after patch, got %v", got.Balance)
	}

	if err := r.DeleteTransaction(a.ID, t1.ID); err != nil {
		t.Fatalf("DeleteTransaction failed: %v", err)
	}
	got, _ = r.Account(a.ID)
	if got.Balance != -4.55 {
		t.Errorf("expected balance -4.55 after delete, got %v", got.Balance)
	}
}

func TestCurrentMonthlyCountsOnlyThisMonthsExpenses(t *testing.T) {
	r, _ := newTestRepo(t, nil)
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	a, _ := r.CreateAccount("Checking")
	cases := []struct {
		name   string
		amount float64
		date   time.Time
	}{
		{"groceries this month", -120.50, time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)},
		{"rent this month", -800, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
		{"salary this month", 2500, time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)},
		{"groceries last month", -95, time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC)},
		{"expense same month last year", -50, time.Date(2025, 8, 3, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		if _, err := r.AddTransaction(a.ID, c.name, "", c.amount, c.date, "", nil); err != nil {
			t.Fatalf("AddTransaction(%s) failed: %v", c.name, err)
		}
	}

	got, _ := r.Account(a.ID)
	if got.CurrentMonthly != 920.50 {
		t.Errorf("expected currentMonthly 920.50, got %v", got.CurrentMonthly)
	}
}

func TestNotFoundIsSurfaced(t *testing.T) {
	r, _ := newTestRepo(t, nil)
	a, _ := r.CreateAccount("Checking")

	tests := []struct {
		name string
		err  error
	}{
		{"missing account", func() error { return r.RenameAccount("nope", "x") }()},
		{"missing transaction", func() error { return r.DeleteTransaction(a.ID, "nope") }()},
		{"missing tag", func() error { return r.DeleteTag(a.ID, "nope") }()},
		{"missing chart", func() error { return r.DeleteChart(a.ID, "nope") }()},
		{"missing tag update", func() error { return r.UpdateTag(a.ID, domain.Tag{ID: "nope"}) }()},
	}
	for _, tc := range tests {
		if !errors.Is(tc.err, ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", tc.name, tc.err)
		}
	}
}

func TestUpdateChartReplacesEntity(t *testing.T) {
	r, _ := newTestRepo(t, nil)
	a, _ := r.CreateAccount("Checking")

	c, err := r.CreateChart(a.ID, domain.Chart{Name: "Spending", Type: domain.ChartPie})
	if err != nil {
		t.Fatalf("CreateChart failed: %v", err)
	}

	c.Name = "Spending by tag"
	c.Type = domain.ChartBar
	if err := r.UpdateChart(a.ID, c); err != nil {
		t.Fatalf("UpdateChart failed: %v", err)
	}

	got, _ := r.Account(a.ID)
	if len(got.Charts) != 1 {
		t.Fatalf("expected 1 chart, got %d", len(got.Charts))
	}
	if got.Charts[0].Name != "Spending by tag" || got.Charts[0].Type != domain.ChartBar {
		t.Errorf("chart not replaced: %+v", got.Charts[0])
	}
}

func TestSetSettingUpsertsByName(t *testing.T) {
	r, _ := newTestRepo(t, nil)
	a, _ := r.CreateAccount("Checking")

	if err := r.SetSetting(a.ID, domain.Setting{Name: "currency", Value: "USD"}); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := r.SetSetting(a.ID, domain.Setting{Name: "currency", Value: "EUR"}); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := r.SetSetting(a.ID, domain.Setting{Name: "locale", Value: "de"}); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}

	settings, _ := r.Settings(a.ID)
	if len(settings) != 2 {
		t.Fatalf("expected 2 settings, got %d", len(settings))
	}
	if settings[0].Name != "currency" || settings[0].Value != "EUR" {
		t.Errorf("expected currency upserted to EUR, got %+v", settings[0])
	}
}

func TestAdoptAccountConflictAndForceMerge(t *testing.T) {
	r, _ := newTestRepo(t, nil)
	a, _ := r.CreateAccount("Checking")
	if err := r.SetMonthlyBudget(a.ID, 500); err != nil {
		t.Fatalf("SetMonthlyBudget failed: %v", err)
	}

	name := "Imported"
	patch := domain.AccountPatch{Name: &name}

	if _, err := r.AdoptAccount(a.ID, patch, false); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict without force, got %v", err)
	}
	got, _ := r.Account(a.ID)
	if got.Name != "Checking" {
		t.Errorf("conflicting import must leave the account unchanged, got name %q", got.Name)
	}

	// Force merge: present fields win, absent fields keep existing values.
	if _, err := r.AdoptAccount(a.ID, patch, true); err != nil {
		t.Fatalf("forced adopt failed: %v", err)
	}
	got, _ = r.Account(a.ID)
	if got.Name != "Imported" {
		t.Errorf("expected name overwritten, got %q", got.Name)
	}
	if got.Monthly != 500 {
		t.Errorf("expected monthly preserved, got %v", got.Monthly)
	}
}

func TestAdoptAccountPresentZeroOverwrites(t *testing.T) {
	r, _ := newTestRepo(t, nil)
	a, _ := r.CreateAccount("Checking")
	if err := r.SetMonthlyBudget(a.ID, 500); err != nil {
		t.Fatalf("SetMonthlyBudget failed: %v", err)
	}

	// A present zero is not an absent field: it must overwrite.
	zero := 0.0
	if _, err := r.AdoptAccount(a.ID, domain.AccountPatch{Monthly: &zero}, true); err != nil {
		t.Fatalf("forced adopt failed: %v", err)
	}

	got, _ := r.Account(a.ID)
	if got.Monthly != 0 {
		t.Errorf("expected monthly overwritten to 0, got %v", got.Monthly)
	}
	if got.Name != "Checking" {
		t.Errorf("expected absent name to keep existing value, got %q", got.Name)
	}
}

func TestMirrorReceivesSnapshotAfterSave(t *testing.T) {
	st := &fakeStore{}
	m := &fakeMirror{done: make(chan struct{}, 8)}
	r := New(nil, st, m, logger.NewWithWriter(nopWriter{}))

	if _, err := r.CreateAccount("Checking"); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	select {
	case <-m.done:
	case <-time.After(time.Second):
		t.Fatal("mirror sync was not triggered")
	}
}

func TestMirrorSnapshotsCarryIncreasingSequence(t *testing.T) {
	st := &fakeStore{}
	m := &fakeMirror{done: make(chan struct{}, 8)}
	r := New(nil, st, m, logger.NewWithWriter(nopWriter{}))

	a, err := r.CreateAccount("Checking")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if _, err := r.AddTransaction(a.ID, "Coffee", "", -5, time.Now(), "", nil); err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-m.done:
		case <-time.After(time.Second):
			t.Fatal("mirror sync was not triggered")
		}
	}

	// The goroutines may record in either order, but the two mutations
	// must have been numbered 1 and 2.
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uint64]bool)
	for _, s := range m.seqs {
		seen[s] = true
	}
	if len(m.seqs) != 2 || !seen[1] || !seen[2] {
		t.Errorf("expected sequence numbers 1 and 2, got %v", m.seqs)
	}
}

func TestStoreFailureFailsMutation(t *testing.T) {
	st := &fakeStore{err: errors.New("disk full")}
	r := New(nil, st, nil, logger.NewWithWriter(nopWriter{}))

	if _, err := r.CreateAccount("Checking"); err == nil {
		t.Fatal("expected store failure to propagate")
	}
}

func TestReferencedFileIDs(t *testing.T) {
	r, _ := newTestRepo(t, nil)
	a, _ := r.CreateAccount("Checking")
	if _, err := r.AddTransaction(a.ID, "Receipt", "", -10, time.Now(), "", &domain.FileRef{ID: "f1", Name: "r.png"}); err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}
	if _, err := r.AddTransaction(a.ID, "No file", "", -5, time.Now(), "", nil); err != nil {
		t.Fatalf("AddTransaction failed: %v", err)
	}

	ids := r.ReferencedFileIDs()
	if len(ids) != 1 {
		t.Fatalf("expected 1 referenced id, got %d", len(ids))
	}
	if _, ok := ids["f1"]; !ok {
		t.Error("expected f1 to be referenced")
	}
}
