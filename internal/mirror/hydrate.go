package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coinkeep/coinkeep/internal/domain"
)

// Hydrate reads the full account state back out of the database. It runs
// once, at startup in online mode; the caller immediately snapshots the
// result to the JSON store.
func (m *Mirror) Hydrate(ctx context.Context) ([]domain.Account, error) {
	accounts := []domain.Account{}
	byID := make(map[string]*domain.Account)

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, balance, monthly, current_monthly FROM accounts ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Balance, &a.Monthly, &a.CurrentMonthly); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Normalize()
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	rows.Close()
	for i := range accounts {
		byID[accounts[i].ID] = &accounts[i]
	}

	txnAccount := make(map[string]string)
	rows, err = m.db.QueryContext(ctx, `
		SELECT id, account_id, created_at, name, description, amount, date, tag
		FROM transactions ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	for rows.Next() {
		var t domain.Transaction
		var accountID string
		if err := rows.Scan(&t.ID, &accountID, &t.CreatedAt, &t.Name, &t.Description, &t.Amount, &t.Date, &t.Tag); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if a, ok := byID[accountID]; ok {
			a.Transactions = append(a.Transactions, t)
			txnAccount[t.ID] = accountID
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	rows.Close()

	rows, err = m.db.QueryContext(ctx, `SELECT id, transaction_id, name FROM transaction_files`)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	for rows.Next() {
		var ref domain.FileRef
		var txnID string
		if err := rows.Scan(&ref.ID, &txnID, &ref.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan file: %w", err)
		}
		accountID, ok := txnAccount[txnID]
		if !ok {
			continue
		}
		a := byID[accountID]
		for i := range a.Transactions {
			if a.Transactions[i].ID == txnID {
				f := ref
				a.Transactions[i].File = &f
				break
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	rows.Close()

	rows, err = m.db.QueryContext(ctx, `SELECT id, account_id, name, color FROM tags ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	for rows.Next() {
		var tag domain.Tag
		var accountID string
		if err := rows.Scan(&tag.ID, &accountID, &tag.Name, &tag.Color); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		if a, ok := byID[accountID]; ok {
			a.Tags = append(a.Tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	rows.Close()

	rows, err = m.db.QueryContext(ctx, `SELECT id, account_id, name, type, steps, metrics FROM charts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query charts: %w", err)
	}
	for rows.Next() {
		var c domain.Chart
		var accountID, chartType string
		var steps, metrics []byte
		if err := rows.Scan(&c.ID, &accountID, &c.Name, &chartType, &steps, &metrics); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan chart: %w", err)
		}
		c.Type = domain.ChartType(chartType)
		if err := json.Unmarshal(steps, &c.Steps); err != nil {
			rows.Close()
			return nil, fmt.Errorf("unmarshal chart steps %s: %w", c.ID, err)
		}
		if err := json.Unmarshal(metrics, &c.Metrics); err != nil {
			rows.Close()
			return nil, fmt.Errorf("unmarshal chart metrics %s: %w", c.ID, err)
		}
		if a, ok := byID[accountID]; ok {
			a.Charts = append(a.Charts, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate charts: %w", err)
	}
	rows.Close()

	rows, err = m.db.QueryContext(ctx, `SELECT account_id, name, value FROM settings ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	for rows.Next() {
		var s domain.Setting
		var accountID string
		var value []byte
		if err := rows.Scan(&accountID, &s.Name, &value); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		if value != nil {
			if err := json.Unmarshal(value, &s.Value); err != nil {
				rows.Close()
				return nil, fmt.Errorf("unmarshal setting %s: %w", s.Name, err)
			}
		}
		if a, ok := byID[accountID]; ok {
			a.Settings = append(a.Settings, s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	rows.Close()

	return accounts, nil
}
