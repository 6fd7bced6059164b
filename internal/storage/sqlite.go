package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"brunance/internal/core"
	"brunance/internal/ledger"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists the log, the tombstone set and the sync state.
// SaveLedger rewrites the whole log and the tombstones in one database
// transaction, keeping the store's order in the position column.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; serializing here avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping backs the readiness check.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const selectTransactions = `
SELECT id, amount, currency, description, occurred_at, payer, beneficiary, nature,
       source_account_id, destination_account_id, synced, is_settlement, installments
FROM transactions
ORDER BY position`

func (r *SQLiteRepository) Load(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectTransactions)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx         core.Transaction
			amount     string
			occurredAt string
		)
		if err := rows.Scan(&tx.ID, &amount, &tx.Currency, &tx.Description, &occurredAt,
			&tx.Payer, &tx.Beneficiary, &tx.Nature, &tx.SourceAccountID, &tx.DestinationAccountID,
			&tx.Synced, &tx.IsSettlement, &tx.Installments); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %s: parse amount %q: %w", tx.ID, amount, err)
		}
		if tx.OccurredAt, err = time.Parse(time.RFC3339Nano, occurredAt); err != nil {
			return nil, fmt.Errorf("transaction %s: parse date %q: %w", tx.ID, occurredAt, err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

const insertTransaction = `
INSERT INTO transactions (position, id, amount, currency, description, occurred_at, payer,
    beneficiary, nature, source_account_id, destination_account_id, synced, is_settlement, installments)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SaveLedger replaces the stored log with txs and the tombstone set with t
// in one database transaction. On error nothing changes.
func (r *SQLiteRepository) SaveLedger(ctx context.Context, txs []core.Transaction, t ledger.Tombstones) error {
	return r.inTx(ctx, func(dbtx *sql.Tx) error {
		if err := writeTransactions(ctx, dbtx, txs); err != nil {
			return err
		}
		if err := writeTombstones(ctx, dbtx, t); err != nil {
			return err
		}
		slog.DebugContext(ctx, "Ledger saved to SQLite", "count", len(txs), "tombstones", len(t))
		return nil
	})
}

func writeTransactions(ctx context.Context, dbtx *sql.Tx, txs []core.Transaction) error {
	if _, err := dbtx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	stmt, err := dbtx.PrepareContext(ctx, insertTransaction)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, tx := range txs {
		if _, err := stmt.ExecContext(ctx, i, tx.ID, tx.Amount.String(), string(tx.Currency), tx.Description,
			tx.OccurredAt.Format(time.RFC3339Nano), string(tx.Payer), string(tx.Beneficiary), string(tx.Nature),
			tx.SourceAccountID, tx.DestinationAccountID, tx.Synced, tx.IsSettlement, tx.Installments); err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}
	return nil
}

// writeTombstones replaces the stored set. Ids already present keep their
// original deletion time.
func writeTombstones(ctx context.Context, dbtx *sql.Tx, t ledger.Tombstones) error {
	now := time.Now().UTC().Format(time.RFC3339)
	rows, err := dbtx.QueryContext(ctx, `SELECT id FROM tombstones`)
	if err != nil {
		return fmt.Errorf("query tombstones: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan tombstone: %w", err)
		}
		if !t.Has(id) {
			stale = append(stale, id)
		}
	}
	rows.Close()
	for _, id := range stale {
		if _, err := dbtx.ExecContext(ctx, `DELETE FROM tombstones WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete tombstone %s: %w", id, err)
		}
	}
	for _, id := range t.IDs() {
		if _, err := dbtx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tombstones (id, deleted_at) VALUES (?, ?)`, id, now); err != nil {
			return fmt.Errorf("insert tombstone %s: %w", id, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) LoadTombstones(ctx context.Context) (ledger.Tombstones, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM tombstones`)
	if err != nil {
		return nil, fmt.Errorf("query tombstones: %w", err)
	}
	defer rows.Close()

	t := ledger.NewTombstones()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tombstone: %w", err)
		}
		t.Add(id)
	}
	return t, rows.Err()
}

func (r *SQLiteRepository) LoadSyncState(ctx context.Context) (SyncState, error) {
	var (
		s    SyncState
		last string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT last_synced_at, last_error, pulled, pushed FROM sync_state WHERE id = 1`,
	).Scan(&last, &s.LastError, &s.Pulled, &s.Pushed)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncState{}, nil
	}
	if err != nil {
		return SyncState{}, fmt.Errorf("query sync state: %w", err)
	}
	if last != "" {
		if s.LastSyncedAt, err = time.Parse(time.RFC3339Nano, last); err != nil {
			return SyncState{}, fmt.Errorf("parse last sync time: %w", err)
		}
	}
	return s, nil
}

func (r *SQLiteRepository) SaveSyncState(ctx context.Context, s SyncState) error {
	last := ""
	if !s.LastSyncedAt.IsZero() {
		last = s.LastSyncedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sync_state (id, last_synced_at, last_error, pulled, pushed) VALUES (1, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    last_synced_at = excluded.last_synced_at,
    last_error = excluded.last_error,
    pulled = excluded.pulled,
    pushed = excluded.pushed`, last, s.LastError, s.Pulled, s.Pushed)
	if err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(dbtx); err != nil {
		_ = dbtx.Rollback()
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
