package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"kasirinaja/posclient/internal/domain"
	"kasirinaja/posclient/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS local_snapshots (
	store_id     TEXT PRIMARY KEY,
	refreshed_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS local_products (
	store_id TEXT  NOT NULL,
	id       TEXT  NOT NULL,
	payload  JSONB NOT NULL,
	PRIMARY KEY (store_id, id)
);
CREATE TABLE IF NOT EXISTS local_categories (
	store_id TEXT  NOT NULL,
	id       TEXT  NOT NULL,
	payload  JSONB NOT NULL,
	PRIMARY KEY (store_id, id)
);
CREATE TABLE IF NOT EXISTS local_customers (
	store_id TEXT  NOT NULL,
	id       TEXT  NOT NULL,
	payload  JSONB NOT NULL,
	PRIMARY KEY (store_id, id)
);
CREATE TABLE IF NOT EXISTS offline_transactions (
	id          BIGSERIAL PRIMARY KEY,
	store_id    TEXT        NOT NULL,
	payload     JSONB       NOT NULL,
	status      TEXT        NOT NULL DEFAULT 'pending_sync',
	enqueued_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_offline_transactions_store ON offline_transactions (store_id, id);
`

const (
	deleteProductsSQL   = `DELETE FROM local_products WHERE store_id = $1`
	deleteCategoriesSQL = `DELETE FROM local_categories WHERE store_id = $1`
	deleteCustomersSQL  = `DELETE FROM local_customers WHERE store_id = $1`
	insertProductSQL    = `INSERT INTO local_products (store_id, id, payload) VALUES ($1, $2, $3)`
	insertCategorySQL   = `INSERT INTO local_categories (store_id, id, payload) VALUES ($1, $2, $3)`
	insertCustomerSQL   = `INSERT INTO local_customers (store_id, id, payload) VALUES ($1, $2, $3)`
	upsertSnapshotSQL   = `INSERT INTO local_snapshots (store_id, refreshed_at) VALUES ($1, $2) ON CONFLICT (store_id) DO UPDATE SET refreshed_at = EXCLUDED.refreshed_at`
	selectSnapshotSQL   = `SELECT refreshed_at FROM local_snapshots WHERE store_id = $1`
	selectProductsSQL   = `SELECT payload FROM local_products WHERE store_id = $1 ORDER BY id`
	selectCategoriesSQL = `SELECT payload FROM local_categories WHERE store_id = $1 ORDER BY id`
	selectCustomersSQL  = `SELECT payload FROM local_customers WHERE store_id = $1 ORDER BY id`
	insertOfflineSQL    = `INSERT INTO offline_transactions (store_id, payload, status, enqueued_at) VALUES ($1, $2, $3, $4) RETURNING id`
	listOfflineSQL      = `SELECT id, store_id, payload, status, enqueued_at FROM offline_transactions WHERE store_id = $1 ORDER BY id`
	deleteOfflineSQL    = `DELETE FROM offline_transactions WHERE id = $1`
	offlineStoresSQL    = `SELECT DISTINCT store_id FROM offline_transactions ORDER BY store_id`
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the local tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) ReplaceSnapshot(ctx context.Context, snapshot domain.CacheSnapshot) error {
	if snapshot.StoreID == "" {
		return store.ErrInvalid
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{deleteProductsSQL, deleteCategoriesSQL, deleteCustomersSQL} {
		if _, err := tx.ExecContext(ctx, stmt, snapshot.StoreID); err != nil {
			return err
		}
	}

	for _, p := range snapshot.Products {
		if err := insertPayload(ctx, tx, insertProductSQL, snapshot.StoreID, p.ID, p); err != nil {
			return err
		}
	}
	for _, c := range snapshot.Categories {
		if err := insertPayload(ctx, tx, insertCategorySQL, snapshot.StoreID, c.ID, c); err != nil {
			return err
		}
	}
	for _, c := range snapshot.Customers {
		if err := insertPayload(ctx, tx, insertCustomerSQL, snapshot.StoreID, c.ID, c); err != nil {
			return err
		}
	}

	refreshedAt := snapshot.RefreshedAt
	if refreshedAt.IsZero() {
		refreshedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, upsertSnapshotSQL, snapshot.StoreID, refreshedAt); err != nil {
		return err
	}

	return tx.Commit()
}

func insertPayload(ctx context.Context, tx *sql.Tx, stmt string, storeID string, id string, v any) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", store.ErrInvalid)
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, stmt, storeID, id, payload); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: duplicate id %s", store.ErrInvalid, id)
		}
		return err
	}
	return nil
}

// LoadSnapshot reads the header and all three collections inside one
// read-only repeatable-read transaction so a concurrent ReplaceSnapshot is
// either fully visible or not at all.
func (s *Store) LoadSnapshot(ctx context.Context, storeID string) (*domain.CacheSnapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	snapshot := domain.CacheSnapshot{StoreID: storeID}
	if err := tx.QueryRowContext(ctx, selectSnapshotSQL, storeID).Scan(&snapshot.RefreshedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if snapshot.Products, err = queryPayloads[domain.Product](ctx, tx, selectProductsSQL, storeID); err != nil {
		return nil, err
	}
	if snapshot.Categories, err = queryPayloads[domain.Category](ctx, tx, selectCategoriesSQL, storeID); err != nil {
		return nil, err
	}
	if snapshot.Customers, err = queryPayloads[domain.Customer](ctx, tx, selectCustomersSQL, storeID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryPayloads[T any](ctx context.Context, db querier, query string, storeID string) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]T, 0, 64)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) AppendOffline(ctx context.Context, entry domain.OfflineEntry) (*domain.OfflineEntry, error) {
	if entry.StoreID == "" || entry.Payload.ClientTransactionID == "" {
		return nil, store.ErrInvalid
	}
	if entry.Status == "" {
		entry.Status = domain.TxStatusPendingSync
	}
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, insertOfflineSQL, entry.StoreID, payload, entry.Status, entry.EnqueuedAt).Scan(&entry.ID); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) ListOffline(ctx context.Context, storeID string) ([]domain.OfflineEntry, error) {
	rows, err := s.db.QueryContext(ctx, listOfflineSQL, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.OfflineEntry, 0, 16)
	for rows.Next() {
		var (
			entry domain.OfflineEntry
			raw   []byte
		)
		if err := rows.Scan(&entry.ID, &entry.StoreID, &raw, &entry.Status, &entry.EnqueuedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &entry.Payload); err != nil {
			return nil, fmt.Errorf("decode offline entry %d: %w", entry.ID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) OfflineStores(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, offlineStoresSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stores []string
	for rows.Next() {
		var storeID string
		if err := rows.Scan(&storeID); err != nil {
			return nil, err
		}
		stores = append(stores, storeID)
	}
	return stores, rows.Err()
}

func (s *Store) DeleteOffline(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, deleteOfflineSQL, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
