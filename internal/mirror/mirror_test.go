package mirror

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestSyncDropsStaleSnapshot(t *testing.T) {
	// db stays nil: touching the database would panic, so returning
	// cleanly proves the stale snapshot was dropped before any database
	// work.
	m := &Mirror{lastSeq: 5, log: zerolog.Nop()}

	m.Sync(context.Background(), 3, nil)

	if m.lastSeq != 5 {
		t.Errorf("stale snapshot must not move the sequence, got %d", m.lastSeq)
	}
}

func TestSyncClaimsNewerSequence(t *testing.T) {
	m := &Mirror{lastSeq: 5, log: zerolog.Nop()}

	// Recover the nil-db panic: the pass reaching the database is the
	// point; it must first have claimed the newer sequence so a stale
	// straggler cannot undo it afterwards.
	func() {
		defer func() { recover() }()
		m.Sync(context.Background(), 6, nil)
	}()

	if m.lastSeq != 6 {
		t.Errorf("newer snapshot must claim the sequence, got %d", m.lastSeq)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "postgresql scheme rewritten",
			in:   "postgresql://user:pw@db:5432/coinkeep",
			want: "postgres://user:pw@db:5432/coinkeep?sslmode=disable",
		},
		{
			name: "sslmode preserved",
			in:   "postgres://user:pw@db:5432/coinkeep?sslmode=require",
			want: "postgres://user:pw@db:5432/coinkeep?sslmode=require",
		},
		{
			name: "existing query string extended",
			in:   "postgres://db/coinkeep?connect_timeout=5",
			want: "postgres://db/coinkeep?connect_timeout=5&sslmode=disable",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeURL(tc.in); got != tc.want {
				t.Errorf("normalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
