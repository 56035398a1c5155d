package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coinkeep/coinkeep/internal/domain"
)

// Sync pushes the full snapshot: upsert everything in memory, then prune
// remote rows whose ids are no longer present, children before parents.
// A snapshot older than one already taken is dropped; seq is claimed
// before the pass runs so a failed newer pass is never undone by a stale
// straggler. Connectivity is re-verified first; when the database is
// unreachable the pass is skipped silently and the system degrades to
// offline mode.
func (m *Mirror) Sync(ctx context.Context, seq uint64, accounts []domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seq <= m.lastSeq {
		m.log.Debug().Uint64("seq", seq).Uint64("last_seq", m.lastSeq).Msg("Stale snapshot dropped")
		return
	}
	m.lastSeq = seq

	if err := m.Ping(ctx); err != nil {
		m.log.Warn().Err(err).Msg("Database unreachable, skipping mirror sync")
		return
	}

	start := time.Now()
	if err := m.sync(ctx, accounts); err != nil {
		m.log.Error().Err(err).Msg("Mirror sync failed")
		return
	}
	m.log.Debug().Int("accounts", len(accounts)).Dur("duration", time.Since(start)).Msg("Mirror sync completed")
}

func (m *Mirror) sync(ctx context.Context, accounts []domain.Account) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	keepAccounts := make(map[string]struct{}, len(accounts))
	keepTxns := make(map[string]struct{})
	keepFiles := make(map[string]struct{})
	keepTags := make(map[string]struct{})
	keepCharts := make(map[string]struct{})
	keepSettings := make(map[[2]string]struct{})

	for i := range accounts {
		a := &accounts[i]
		keepAccounts[a.ID] = struct{}{}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (id, name, balance, monthly, current_monthly)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				balance = EXCLUDED.balance,
				monthly = EXCLUDED.monthly,
				current_monthly = EXCLUDED.current_monthly
		`, a.ID, a.Name, a.Balance, a.Monthly, a.CurrentMonthly); err != nil {
			return fmt.Errorf("upsert account %s: %w", a.ID, err)
		}

		for _, t := range a.Transactions {
			keepTxns[t.ID] = struct{}{}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO transactions (id, account_id, created_at, name, description, amount, date, tag)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (id) DO UPDATE SET
					account_id = EXCLUDED.account_id,
					created_at = EXCLUDED.created_at,
					name = EXCLUDED.name,
					description = EXCLUDED.description,
					amount = EXCLUDED.amount,
					date = EXCLUDED.date,
					tag = EXCLUDED.tag
			`, t.ID, a.ID, t.CreatedAt, t.Name, t.Description, t.Amount, t.Date, t.Tag); err != nil {
				return fmt.Errorf("upsert transaction %s: %w", t.ID, err)
			}

			if t.File != nil {
				keepFiles[t.File.ID] = struct{}{}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO transaction_files (id, transaction_id, name)
					VALUES ($1, $2, $3)
					ON CONFLICT (id) DO UPDATE SET
						transaction_id = EXCLUDED.transaction_id,
						name = EXCLUDED.name
				`, t.File.ID, t.ID, t.File.Name); err != nil {
					return fmt.Errorf("upsert file %s: %w", t.File.ID, err)
				}
			}
		}

		for _, tag := range a.Tags {
			keepTags[tag.ID] = struct{}{}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO tags (id, account_id, name, color)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO UPDATE SET
					account_id = EXCLUDED.account_id,
					name = EXCLUDED.name,
					color = EXCLUDED.color
			`, tag.ID, a.ID, tag.Name, tag.Color); err != nil {
				return fmt.Errorf("upsert tag %s: %w", tag.ID, err)
			}
		}

		for _, c := range a.Charts {
			keepCharts[c.ID] = struct{}{}
			steps, err := json.Marshal(c.Steps)
			if err != nil {
				return fmt.Errorf("marshal chart steps %s: %w", c.ID, err)
			}
			metrics, err := json.Marshal(c.Metrics)
			if err != nil {
				return fmt.Errorf("marshal chart metrics %s: %w", c.ID, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO charts (id, account_id, name, type, steps, metrics)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO UPDATE SET
					account_id = EXCLUDED.account_id,
					name = EXCLUDED.name,
					type = EXCLUDED.type,
					steps = EXCLUDED.steps,
					metrics = EXCLUDED.metrics
			`, c.ID, a.ID, c.Name, string(c.Type), steps, metrics); err != nil {
				return fmt.Errorf("upsert chart %s: %w", c.ID, err)
			}
		}

		for _, s := range a.Settings {
			keepSettings[[2]string{a.ID, s.Name}] = struct{}{}
			value, err := json.Marshal(s.Value)
			if err != nil {
				return fmt.Errorf("marshal setting %s: %w", s.Name, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO settings (account_id, name, value)
				VALUES ($1, $2, $3)
				ON CONFLICT (account_id, name) DO UPDATE SET
					value = EXCLUDED.value
			`, a.ID, s.Name, value); err != nil {
				return fmt.Errorf("upsert setting %s: %w", s.Name, err)
			}
		}
	}

	// Prune children before parents so foreign keys hold throughout.
	if err := pruneByID(ctx, tx, "transaction_files", keepFiles); err != nil {
		return err
	}
	if err := pruneByID(ctx, tx, "transactions", keepTxns); err != nil {
		return err
	}
	if err := pruneByID(ctx, tx, "tags", keepTags); err != nil {
		return err
	}
	if err := pruneByID(ctx, tx, "charts", keepCharts); err != nil {
		return err
	}
	if err := pruneSettings(ctx, tx, keepSettings); err != nil {
		return err
	}
	if err := pruneByID(ctx, tx, "accounts", keepAccounts); err != nil {
		return err
	}

	return tx.Commit()
}

// pruneByID deletes every row whose id is absent from keep.
func pruneByID(ctx context.Context, tx *sql.Tx, table string, keep map[string]struct{}) error {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM "+table)
	if err != nil {
		return fmt.Errorf("list %s: %w", table, err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan %s: %w", table, err)
		}
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", table, err)
	}
	rows.Close()

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1", id); err != nil {
			return fmt.Errorf("delete %s %s: %w", table, id, err)
		}
	}
	return nil
}

func pruneSettings(ctx context.Context, tx *sql.Tx, keep map[[2]string]struct{}) error {
	rows, err := tx.QueryContext(ctx, "SELECT account_id, name FROM settings")
	if err != nil {
		return fmt.Errorf("list settings: %w", err)
	}
	var stale [][2]string
	for rows.Next() {
		var accountID, name string
		if err := rows.Scan(&accountID, &name); err != nil {
			rows.Close()
			return fmt.Errorf("scan settings: %w", err)
		}
		if _, ok := keep[[2]string{accountID, name}]; !ok {
			stale = append(stale, [2]string{accountID, name})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate settings: %w", err)
	}
	rows.Close()

	for _, key := range stale {
		if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE account_id = $1 AND name = $2", key[0], key[1]); err != nil {
			return fmt.Errorf("delete setting %s/%s: %w", key[0], key[1], err)
		}
	}
	return nil
}
