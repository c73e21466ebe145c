package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"kasirinaja/posclient/internal/domain"
	"kasirinaja/posclient/internal/store"
)

// RedisSnapshotStore keeps offline snapshots in redis, one key per
// collection. Replacement runs inside MULTI/EXEC.
type RedisSnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSnapshotStore(addr string, password string, db int, ttl time.Duration) *RedisSnapshotStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSnapshotStore{client: client, ttl: ttl}
}

func (c *RedisSnapshotStore) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSnapshotStore) Close() error {
	return c.client.Close()
}

type snapshotKeys struct {
	products    string
	categories  string
	customers   string
	refreshedAt string
}

func keysFor(storeID string) snapshotKeys {
	prefix := fmt.Sprintf("pos:snapshot:%s:", storeID)
	return snapshotKeys{
		products:    prefix + "products",
		categories:  prefix + "categories",
		customers:   prefix + "customers",
		refreshedAt: prefix + "refreshed_at",
	}
}

func (c *RedisSnapshotStore) ReplaceSnapshot(ctx context.Context, snapshot domain.CacheSnapshot) error {
	if snapshot.StoreID == "" {
		return store.ErrInvalid
	}

	products, err := json.Marshal(nonNil(snapshot.Products))
	if err != nil {
		return err
	}
	categories, err := json.Marshal(nonNil(snapshot.Categories))
	if err != nil {
		return err
	}
	customers, err := json.Marshal(nonNil(snapshot.Customers))
	if err != nil {
		return err
	}

	keys := keysFor(snapshot.StoreID)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys.products, keys.categories, keys.customers, keys.refreshedAt)
		pipe.Set(ctx, keys.products, products, c.ttl)
		pipe.Set(ctx, keys.categories, categories, c.ttl)
		pipe.Set(ctx, keys.customers, customers, c.ttl)
		pipe.Set(ctx, keys.refreshedAt, snapshot.RefreshedAt.UTC().Format(time.RFC3339Nano), c.ttl)
		return nil
	})
	return err
}

func (c *RedisSnapshotStore) LoadSnapshot(ctx context.Context, storeID string) (*domain.CacheSnapshot, error) {
	keys := keysFor(storeID)
	vals, err := c.client.MGet(ctx, keys.products, keys.categories, keys.customers, keys.refreshedAt).Result()
	if err != nil {
		return nil, err
	}
	raw := make([]string, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			return nil, store.ErrNotFound
		}
		raw[i] = s
	}

	snapshot := domain.CacheSnapshot{StoreID: storeID}
	if err := json.Unmarshal([]byte(raw[0]), &snapshot.Products); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw[1]), &snapshot.Categories); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw[2]), &snapshot.Customers); err != nil {
		return nil, err
	}
	if snapshot.RefreshedAt, err = time.Parse(time.RFC3339Nano, raw[3]); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
