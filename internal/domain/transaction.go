package domain

import (
	"time"
)

// Transaction is one ledger entry. Amount is signed: negative amounts are
// expenses, positive amounts income. Date is the user-facing date of the
// transaction and is distinct from CreatedAt, the ingestion timestamp.
type Transaction struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Date        time.Time `json:"date"`
	Tag         string    `json:"tag,omitempty"`
	File        *FileRef  `json:"file,omitempty"`
}

// FileRef points at an attachment blob stored on disk as <ID><ext>, where
// ext is taken from Name. Every non-nil FileRef must correspond to an
// existing blob; orphaned blobs are removed by the cleanup sweep.
type FileRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Clone returns a deep copy of the transaction.
func (t Transaction) Clone() Transaction {
	cp := t
	if t.File != nil {
		f := *t.File
		cp.File = &f
	}
	return cp
}

// TransactionPatch is an explicit partial update: nil fields are left
// untouched. Unknown JSON fields are rejected at the decode boundary rather
// than silently ignored.
type TransactionPatch struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Amount      *float64   `json:"amount"`
	Date        *time.Time `json:"date"`
	Tag         *string    `json:"tag"`
	File        *FileRef   `json:"file"`
}

// ApplyTo merges the non-nil patch fields into t.
func (p TransactionPatch) ApplyTo(t *Transaction) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Tag != nil {
		t.Tag = *p.Tag
	}
	if p.File != nil {
		f := *p.File
		t.File = &f
	}
}
