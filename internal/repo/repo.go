// Package repo owns the canonical in-memory account list. All mutations go
// through a single mutex, persist to the JSON store before returning, and
// then push a best-effort snapshot to the mirror. No other component is
// allowed to mutate account state.
package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coinkeep/coinkeep/internal/domain"
)

// Store is the durable persistence path. Its error fails the mutation.
type Store interface {
	Save(accounts []domain.Account) error
}

// Mirror receives a full-state snapshot after every successful save.
// Snapshots are handed to goroutines and can arrive out of order; seq
// increases with every mutation so the mirror can drop a snapshot older
// than one it has already taken. Implementations swallow their own
// errors; mirroring never fails a user-visible operation.
type Mirror interface {
	Sync(ctx context.Context, seq uint64, accounts []domain.Account)
}

// Repository holds the account list and serializes access to it.
type Repository struct {
	mu       sync.Mutex
	accounts []domain.Account
	index    map[string]int

	store  Store
	mirror Mirror
	seq    uint64
	log    zerolog.Logger
	now    func() time.Time
}

// New builds a repository seeded with the given accounts. mirror may be
// nil in offline mode.
func New(accounts []domain.Account, store Store, mirror Mirror, log zerolog.Logger) *Repository {
	r := &Repository{
		accounts: accounts,
		index:    make(map[string]int, len(accounts)),
		store:    store,
		mirror:   mirror,
		log:      log,
		now:      time.Now,
	}
	r.reindex()
	return r
}

func (r *Repository) reindex() {
	clear(r.index)
	for i := range r.accounts {
		r.index[r.accounts[i].ID] = i
	}
}

// persist writes the full state to the store and, on success, hands a
// snapshot to the mirror in the background. Called with the lock held.
func (r *Repository) persist() error {
	snapshot := domain.CloneAccounts(r.accounts)
	if err := r.store.Save(snapshot); err != nil {
		return fmt.Errorf("persist accounts: %w", err)
	}
	if r.mirror != nil {
		r.seq++
		go r.mirror.Sync(context.Background(), r.seq, snapshot)
	}
	return nil
}

func (r *Repository) account(id string) (*domain.Account, error) {
	i, ok := r.index[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return &r.accounts[i], nil
}

// Accounts returns a deep copy of every account.
func (r *Repository) Accounts() []domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.CloneAccounts(r.accounts)
}

// Account returns a deep copy of one account.
func (r *Repository) Account(id string) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.account(id)
	if err != nil {
		return domain.Account{}, err
	}
	return a.Clone(), nil
}

// CreateAccount seeds a new account with empty collections and zero
// derived fields.
func (r *Repository) CreateAccount(name string) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := domain.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Transactions: []domain.Transaction{},
		Tags:         []domain.Tag{},
		Charts:       []domain.Chart{},
		Settings:     []domain.Setting{},
	}
	r.accounts = append(r.accounts, a)
	r.index[a.ID] = len(r.accounts) - 1

	if err := r.persist(); err != nil {
		return domain.Account{}, err
	}
	r.log.Info().Str("account_id", a.ID).Str("name", name).Msg("Account created")
	return a.Clone(), nil
}

// RenameAccount sets the account name.
func (r *Repository) RenameAccount(id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.account(id)
	if err != nil {
		return err
	}
	a.Name = name
	return r.persist()
}

// SetMonthlyBudget sets the monthly budget target.
func (r *Repository) SetMonthlyBudget(id string, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.account(id)
	if err != nil {
		return err
	}
	a.Monthly = amount
	return r.persist()
}

// DeleteAccount removes the account by id.
func (r *Repository) DeleteAccount(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[id]
	if !ok {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	r.accounts = append(r.accounts[:i], r.accounts[i+1:]...)
	r.reindex()
	if err := r.persist(); err != nil {
		return err
	}
	r.log.Info().Str("account_id", id).Msg("Account deleted")
	return nil
}

// Transactions returns deep copies of an account's transactions.
func (r *Repository) Transactions(accountID string) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.account(accountID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, len(a.Transactions))
	for i, t := range a.Transactions {
		out[i] = t.Clone()
	}
	return out, nil
}

// Transaction returns one transaction by id.
func (r *Repository) Transaction(accountID, txID string) (domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.account(accountID)
	if err != nil {
		return domain.Transaction{}, err
	}
	for _, t := range a.Transactions {
		if t.ID == txID {
			return t.Clone(), nil
		}
	}
	return domain.Transaction{}, fmt.Errorf("transaction %s: %w", txID, ErrNotFound)
}

// AddTransaction appends a new transaction and recomputes the derived
// fields. The tag reference is not validated against the account's tag
// set; a dangling tag resolves to "no tag" on the client.
func (r *Repository) AddTransaction(accountID string, name, description string, amount float64, date time.Time, tag string, file *domain.FileRef) (domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.account(accountID)
	if err != nil {
		return domain.Transaction{}, err
	}

	t := domain.Transaction{
		ID:          uuid.NewString(),
		CreatedAt:   r.now(),
		Name:        name,
		Description: description,
		Amount:      amount,
		Date:        date,
		Tag:         tag,
	}
	if file != nil {
		f := *file
		t.File = &f
	}
	a.Transactions = append(a.Transactions, t)
	a.Recompute(r.now())

	if err := r.persist(); err != nil {
		return domain.Transaction{}, err
	}
	return t.Clone(), nil
}

// PatchTransaction merges the non-nil patch fields into the transaction
// and recomputes the derived fields.
func (r *Repository) PatchTransaction(accountID, txID string, patch domain.TransactionPatch) (domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.account(accountID)
	if err != nil {
		return domain.Transaction{}, err
	}
	for i := range a.Transactions {
		if a.Transactions[i].ID != txID {
			continue
		}
		patch.ApplyTo(&a.Transactions[i])
		a.Recompute(r.now())
		if err := r.persist(); err != nil {
			return domain.Transaction{}, err
		}
		return a.Transactions[i].Clone(), nil
	}
	return domain.Transaction{}, fmt.Errorf("transaction %s: %w", txID, ErrNotFound)
}

// DeleteTransaction removes a transaction and recomputes the derived
// fields.
func (r *Repository) DeleteTransaction(accountID, txID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.account(accountID)
	if err != nil {
		return err
	}
	for i := range a.Transactions {
		if a.Transactions[i].ID != txID {
			continue
		}
		a.Transactions = append(a.Transactions[:i], a.Transactions[i+1:]...)
		a.Recompute(r.now())
		return r.persist()
	}
	return fmt.Errorf("transaction %s: %w", txID, ErrNotFound)
}

// CreateTag adds a tag to the account.
func (r *Repository) CreateTag(accountID, name, color string) (domain.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.account(accountID)
	if err != nil {
		return domain.Tag{}, err
	}
	tag := domain.Tag{ID: uuid.NewString(), Name: name, Color: color}
	a.Tags = append(a.Tags, tag)
	if err := r.persist(); err != nil {
		return domain.Tag{}, err
	}
	return tag, nil
}

// UpdateTag replaces the tag with the same id.
func (r *Repository) UpdateTag(accountID string, tag domain.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.account(accountID)
	if err != nil {
		return err
	}
	for i := range a.Tags {
		if a.Tags[i].ID == tag.ID {
			a.Tags[i] = tag
			return r.persist()
		}
	}
	return fmt.Errorf("tag %s: %w", tag.ID, ErrNotFound)
}

// DeleteTag removes a tag. Transactions referencing it keep their
// dangling reference.
func (r *Repository) DeleteTag(accountID, tagID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.account(accountID)
	if err != nil {
		return err
	}
	for i := range a.Tags {
		if a.Tags[i].ID == tagID {
			a.Tags = append(a.Tags[:i], a.Tags[i+1:]...)
			return r.persist()
		}
	}
	return fmt.Errorf("tag %s: %w", tagID, ErrNotFound)
}

// CreateChart adds a chart to the account.
func (r *Repository) CreateChart(accountID string, chart domain.Chart) (domain.Chart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.account(accountID)
	if err != nil {
		return domain.Chart{}, err
	}
	chart.ID = uuid.NewString()
	a.Charts = append(a.Charts, chart.Clone())
	if err := r.persist(); err != nil {
		return domain.Chart{}, err
	}
	return chart, nil
}

// UpdateChart replaces the chart with the same id wholesale; charts are
// view configuration, so replacement beats field merging.
func (r *Repository) UpdateChart(accountID string, chart domain.Chart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.account(accountID)
	if err != nil {
		return err
	}
	for i := range a.Charts {
		if a.Charts[i].ID == chart.ID {
			kept := a.Charts[:i:i]
			kept = append(kept, a.Charts[i+1:]...)
			a.Charts = append(kept, chart.Clone())
			return r.persist()
		}
	}
	return fmt.Errorf("chart %s: %w", chart.ID, ErrNotFound)
}

// DeleteChart removes a chart.
func (r *Repository) DeleteChart(accountID, chartID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.account(accountID)
	if err != nil {
		return err
	}
	for i := range a.Charts {
		if a.Charts[i].ID == chartID {
			a.Charts = append(a.Charts[:i], a.Charts[i+1:]...)
			return r.persist()
		}
	}
	return fmt.Errorf("chart %s: %w", chartID, ErrNotFound)
}

// SetSetting upserts a setting by name.
func (r *Repository) SetSetting(accountID string, setting domain.Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.account(accountID)
	if err != nil {
		return err
	}
	for i := range a.Settings {
		if a.Settings[i].Name == setting.Name {
			a.Settings[i] = setting
			return r.persist()
		}
	}
	a.Settings = append(a.Settings, setting)
	return r.persist()
}

// Settings returns a copy of the account's settings.
func (r *Repository) Settings(accountID string) ([]domain.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.account(accountID)
	if err != nil {
		return nil, err
	}
	return append([]domain.Setting(nil), a.Settings...), nil
}

// AdoptAccount takes an imported account into the repository. Without
// force, an existing id is a conflict. With force, fields present in
// the patch overwrite the existing account; absent fields keep the
// current values. Presence is what decides, so a present zero value
// overwrites too.
func (r *Repository) AdoptAccount(id string, patch domain.AccountPatch, force bool) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, exists := r.index[id]
	if exists && !force {
		return domain.Account{}, fmt.Errorf("account %s: %w", id, ErrConflict)
	}

	if !exists {
		a := domain.Account{ID: id}
		patch.ApplyTo(&a)
		a.Normalize()
		a.Recompute(r.now())
		r.accounts = append(r.accounts, a)
		r.index[id] = len(r.accounts) - 1
		if err := r.persist(); err != nil {
			return domain.Account{}, err
		}
		return a.Clone(), nil
	}

	a := &r.accounts[i]
	patch.ApplyTo(a)
	a.Recompute(r.now())
	if err := r.persist(); err != nil {
		return domain.Account{}, err
	}
	return a.Clone(), nil
}

// ReferencedFileIDs collects the blob ids referenced by any transaction,
// for the cleanup sweep.
func (r *Repository) ReferencedFileIDs() map[string]struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make(map[string]struct{})
	for i := range r.accounts {
		for _, t := range r.accounts[i].Transactions {
			if t.File != nil {
				ids[t.File.ID] = struct{}{}
			}
		}
	}
	return ids
}
