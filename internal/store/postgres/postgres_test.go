package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"kasirinaja/posclient/internal/domain"
	"kasirinaja/posclient/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &Store{db: db}, mock
}

func TestReplaceSnapshotRunsInOneTransaction(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deleteProductsSQL)).WithArgs("store_a").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta(deleteCategoriesSQL)).WithArgs("store_a").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(deleteCustomersSQL)).WithArgs("store_a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(insertProductSQL)).WithArgs("store_a", "p1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertCategorySQL)).WithArgs("store_a", "c1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertCustomerSQL)).WithArgs("store_a", "cu1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(upsertSnapshotSQL)).WithArgs("store_a", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.ReplaceSnapshot(context.Background(), domain.CacheSnapshot{
		StoreID:     "store_a",
		Products:    []domain.Product{{ID: "p1", Name: "Kopi"}},
		Categories:  []domain.Category{{ID: "c1", Name: "Minuman"}},
		Customers:   []domain.Customer{{ID: "cu1", Name: "Budi"}},
		RefreshedAt: at,
	})
	if err != nil {
		t.Fatalf("replace snapshot: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReplaceSnapshotRollsBackOnDuplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deleteProductsSQL)).WithArgs("store_a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(deleteCategoriesSQL)).WithArgs("store_a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(deleteCustomersSQL)).WithArgs("store_a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(insertProductSQL)).WithArgs("store_a", "p1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertProductSQL)).WithArgs("store_a", "p1", sqlmock.AnyArg()).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := s.ReplaceSnapshot(context.Background(), domain.CacheSnapshot{
		StoreID:  "store_a",
		Products: []domain.Product{{ID: "p1"}, {ID: "p1"}},
	})
	if !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoadSnapshotAbsent(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectSnapshotSQL)).WithArgs("store_x").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	if _, err := s.LoadSnapshot(context.Background(), "store_x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoadSnapshotDecodesPayloads(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	product, _ := json.Marshal(domain.Product{ID: "p1", Name: "Kopi", Stock: 7})

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectSnapshotSQL)).WithArgs("store_a").
		WillReturnRows(sqlmock.NewRows([]string{"refreshed_at"}).AddRow(at))
	mock.ExpectQuery(regexp.QuoteMeta(selectProductsSQL)).WithArgs("store_a").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(product))
	mock.ExpectQuery(regexp.QuoteMeta(selectCategoriesSQL)).WithArgs("store_a").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))
	mock.ExpectQuery(regexp.QuoteMeta(selectCustomersSQL)).WithArgs("store_a").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))
	mock.ExpectCommit()

	got, err := s.LoadSnapshot(context.Background(), "store_a")
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if len(got.Products) != 1 || got.Products[0].Stock != 7 || !got.RefreshedAt.Equal(at) {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if len(got.Categories) != 0 || len(got.Customers) != 0 {
		t.Fatalf("expected empty categories and customers")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("reads must share one transaction: %v", err)
	}
}

func TestLoadSnapshotRollsBackOnReadError(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectSnapshotSQL)).WithArgs("store_a").
		WillReturnRows(sqlmock.NewRows([]string{"refreshed_at"}).AddRow(at))
	mock.ExpectQuery(regexp.QuoteMeta(selectProductsSQL)).WithArgs("store_a").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	if _, err := s.LoadSnapshot(context.Background(), "store_a"); err == nil {
		t.Fatalf("expected read error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOfflineQueueStatements(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	payload := domain.SalePayload{ClientTransactionID: "trx_local_1", StoreID: "store_a", Total: 15000}

	mock.ExpectQuery(regexp.QuoteMeta(insertOfflineSQL)).
		WithArgs("store_a", sqlmock.AnyArg(), domain.TxStatusPendingSync, at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	entry, err := s.AppendOffline(ctx, domain.OfflineEntry{StoreID: "store_a", Payload: payload, EnqueuedAt: at})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if entry.ID != 42 || entry.Status != domain.TxStatusPendingSync {
		t.Fatalf("unexpected entry %+v", entry)
	}

	raw, _ := json.Marshal(payload)
	mock.ExpectQuery(regexp.QuoteMeta(listOfflineSQL)).WithArgs("store_a").
		WillReturnRows(sqlmock.NewRows([]string{"id", "store_id", "payload", "status", "enqueued_at"}).
			AddRow(int64(42), "store_a", raw, domain.TxStatusPendingSync, at))

	entries, err := s.ListOffline(ctx, "store_a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Payload.ClientTransactionID != "trx_local_1" {
		t.Fatalf("unexpected entries %+v", entries)
	}

	mock.ExpectExec(regexp.QuoteMeta(deleteOfflineSQL)).WithArgs(int64(42)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(deleteOfflineSQL)).WithArgs(int64(42)).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.DeleteOffline(ctx, 42); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteOffline(ctx, 42); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAppendOfflineRejectsMissingIDs(t *testing.T) {
	s, _ := newMockStore(t)
	if _, err := s.AppendOffline(context.Background(), domain.OfflineEntry{StoreID: "store_a"}); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestOfflineStoresListsDistinctStores(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(offlineStoresSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"store_id"}).AddRow("store_a").AddRow("store_c"))

	stores, err := s.OfflineStores(context.Background())
	if err != nil {
		t.Fatalf("offline stores: %v", err)
	}
	if len(stores) != 2 || stores[0] != "store_a" || stores[1] != "store_c" {
		t.Fatalf("unexpected stores %v", stores)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
