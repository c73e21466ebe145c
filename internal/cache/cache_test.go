package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirinaja/posclient/internal/domain"
	"kasirinaja/posclient/internal/store/memory"
)

func TestReadAbsentSnapshot(t *testing.T) {
	c := New(memory.New())

	snap, ok, err := c.Read(context.Background(), "store_a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, snap)
}

func TestRefreshReplacesWholeSnapshot(t *testing.T) {
	ctx := context.Background()
	c := New(memory.New())
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return at }

	require.NoError(t, c.Refresh(ctx, "store_a",
		[]domain.Product{{ID: "p1"}, {ID: "p2"}},
		[]domain.Category{{ID: "c1"}},
		[]domain.Customer{{ID: "cu1"}},
	))
	require.NoError(t, c.Refresh(ctx, "store_a", []domain.Product{{ID: "p9"}}, nil, nil))
	require.NoError(t, c.Refresh(ctx, "store_b", []domain.Product{{ID: "b1"}}, nil, nil))

	snap, ok, err := c.Read(ctx, "store_a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []domain.Product{{ID: "p9"}}, snap.Products)
	assert.Empty(t, snap.Categories)
	assert.Empty(t, snap.Customers)
	assert.Equal(t, at, snap.RefreshedAt)
}

func TestRedisSnapshotStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("POSCLIENT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set POSCLIENT_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	r := NewRedisSnapshotStore(addr, "", 0, time.Minute)
	t.Cleanup(func() { _ = r.Close() })
	require.NoError(t, r.Ping(ctx))

	storeID := "store-it-" + time.Now().Format("150405.000000000")
	c := New(r)
	require.NoError(t, c.Refresh(ctx, storeID, []domain.Product{{ID: "p1", Name: "Kopi"}}, nil, []domain.Customer{{ID: "cu1"}}))

	snap, ok, err := c.Read(ctx, storeID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Kopi", snap.Products[0].Name)
	assert.Empty(t, snap.Categories)
	assert.Len(t, snap.Customers, 1)

	_, ok, err = c.Read(ctx, storeID+"-missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeysAreStoreScoped(t *testing.T) {
	a := keysFor("store_a")
	b := keysFor("store_b")
	assert.Equal(t, "pos:snapshot:store_a:products", a.products)
	assert.NotEqual(t, a.customers, b.customers)
}
