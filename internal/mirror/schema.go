package mirror

import "context"

// ensureSchema creates the mirror tables when they do not exist yet.
// Child tables reference their parents without cascade; the sync pass
// deletes children before parents explicitly.
func (m *Mirror) ensureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			balance DOUBLE PRECISION NOT NULL DEFAULT 0,
			monthly DOUBLE PRECISION NOT NULL DEFAULT 0,
			current_monthly DOUBLE PRECISION NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id),
			created_at TIMESTAMPTZ NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			amount DOUBLE PRECISION NOT NULL,
			date TIMESTAMPTZ NOT NULL,
			tag TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS transaction_files (
			id TEXT PRIMARY KEY,
			transaction_id TEXT NOT NULL REFERENCES transactions(id),
			name TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tags (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id),
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS charts (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id),
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			steps JSONB NOT NULL DEFAULT '[]',
			metrics JSONB NOT NULL DEFAULT '[]'
		);

		CREATE TABLE IF NOT EXISTS settings (
			account_id TEXT NOT NULL REFERENCES accounts(id),
			name TEXT NOT NULL,
			value JSONB,
			PRIMARY KEY (account_id, name)
		);
	`

	_, err := m.db.ExecContext(ctx, schema)
	return err
}
