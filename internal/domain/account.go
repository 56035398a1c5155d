package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is one user-visible wallet: a set of transactions plus the tags,
// charts and settings attached to it. Balance and CurrentMonthly are derived
// fields; they are recomputed after every transaction mutation and never set
// directly by a client.
type Account struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Balance        float64       `json:"balance"`
	Monthly        float64       `json:"monthly"`
	CurrentMonthly float64       `json:"currentMonthly"`
	Transactions   []Transaction `json:"transactions"`
	Tags           []Tag         `json:"tags"`
	Charts         []Chart       `json:"charts"`
	Settings       []Setting     `json:"settings"`
}

// Tag labels transactions. Deleting a tag does not cascade to transactions;
// a dangling tag reference simply resolves to "no tag".
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Setting is one name/value pair in an account's settings collection.
// Names are unique within an account; SetSetting upserts by name.
type Setting struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// AccountPatch is a whole-account merge in the same style as
// TransactionPatch: nil fields are absent and leave the target alone,
// while a present field overwrites even when it holds a zero value. The
// archive importer decodes manifests into it so "monthly": 0 and a
// missing monthly stay distinguishable.
type AccountPatch struct {
	Name         *string        `json:"name"`
	Monthly      *float64       `json:"monthly"`
	Transactions *[]Transaction `json:"transactions"`
	Tags         *[]Tag         `json:"tags"`
	Charts       *[]Chart       `json:"charts"`
	Settings     *[]Setting     `json:"settings"`
}

// ApplyTo merges the non-nil patch fields into a. Collections are deep
// copied so the patch and the target never share backing storage.
func (p AccountPatch) ApplyTo(a *Account) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Monthly != nil {
		a.Monthly = *p.Monthly
	}
	if p.Transactions != nil {
		a.Transactions = make([]Transaction, len(*p.Transactions))
		for i, t := range *p.Transactions {
			a.Transactions[i] = t.Clone()
		}
	}
	if p.Tags != nil {
		a.Tags = make([]Tag, len(*p.Tags))
		copy(a.Tags, *p.Tags)
	}
	if p.Charts != nil {
		a.Charts = make([]Chart, len(*p.Charts))
		for i, c := range *p.Charts {
			a.Charts[i] = c.Clone()
		}
	}
	if p.Settings != nil {
		a.Settings = make([]Setting, len(*p.Settings))
		copy(a.Settings, *p.Settings)
	}
}

// Recompute refreshes the derived fields from the transaction set.
// Balance is the 2-decimal rounded sum of all amounts. CurrentMonthly is the
// absolute sum of negative amounts dated in the month and year of now; the
// caller supplies now so the evaluation instant is explicit and testable.
func (a *Account) Recompute(now time.Time) {
	sum := decimal.Zero
	spent := decimal.Zero
	for _, t := range a.Transactions {
		amt := decimal.NewFromFloat(t.Amount)
		sum = sum.Add(amt)
		if t.Amount < 0 && t.Date.Year() == now.Year() && t.Date.Month() == now.Month() {
			spent = spent.Sub(amt)
		}
	}
	a.Balance = sum.Round(2).InexactFloat64()
	a.CurrentMonthly = spent.Round(2).InexactFloat64()
}

// Normalize replaces nil collections with empty ones so that a freshly
// decoded account always serializes with the canonical shape. Decoding into
// the struct already drops unknown legacy keys; this pass fills the gaps the
// other way.
func (a *Account) Normalize() {
	if a.Transactions == nil {
		a.Transactions = []Transaction{}
	}
	if a.Tags == nil {
		a.Tags = []Tag{}
	}
	if a.Charts == nil {
		a.Charts = []Chart{}
	}
	if a.Settings == nil {
		a.Settings = []Setting{}
	}
}

// Clone returns a deep copy. The repository hands copies to callers and to
// the mirror so nothing outside it can reach the canonical state.
func (a Account) Clone() Account {
	cp := a
	cp.Transactions = make([]Transaction, len(a.Transactions))
	for i, t := range a.Transactions {
		cp.Transactions[i] = t.Clone()
	}
	cp.Tags = make([]Tag, len(a.Tags))
	copy(cp.Tags, a.Tags)
	cp.Charts = make([]Chart, len(a.Charts))
	for i, c := range a.Charts {
		cp.Charts[i] = c.Clone()
	}
	cp.Settings = make([]Setting, len(a.Settings))
	copy(cp.Settings, a.Settings)
	return cp
}

// CloneAccounts deep-copies a whole account list.
func CloneAccounts(accounts []Account) []Account {
	out := make([]Account, len(accounts))
	for i, a := range accounts {
		out[i] = a.Clone()
	}
	return out
}
