package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache membungkus Redis untuk dua keperluan koordinator: read cache detail
// order dan fast-path dedup callback pembayaran. Seluruh method aman dipanggil
// pada receiver nil: tanpa Redis, caller jatuh ke jalur store-only.
type Cache struct {
	rdb *redis.Client
}

// New membuat client Redis dan memverifikasi koneksi.
func New(addr, password string, db int) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Cache{rdb: rdb}, nil
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

func orderKey(orderID uint) string {
	return fmt.Sprintf("order:%d", orderID)
}

// GetOrder mengambil order dari cache; (false) bila miss, Redis mati, atau nil.
func (c *Cache) GetOrder(ctx context.Context, orderID uint, dest interface{}) bool {
	if c == nil {
		return false
	}
	data, err := c.rdb.Get(ctx, orderKey(orderID)).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

// SetOrder menyimpan snapshot order dengan TTL pendek.
func (c *Cache) SetOrder(ctx context.Context, orderID uint, order interface{}, ttl time.Duration) {
	if c == nil {
		return
	}
	data, err := json.Marshal(order)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, orderKey(orderID), data, ttl)
}

// InvalidateOrder membuang snapshot order; dipanggil setiap mutasi.
func (c *Cache) InvalidateOrder(ctx context.Context, orderID uint) {
	if c == nil {
		return
	}
	c.rdb.Del(ctx, orderKey(orderID))
}

// ClaimCallback mencoba mengklaim satu event callback (SETNX + TTL).
// true berarti klaim berhasil (belum pernah diproses); false berarti duplikat
// ATAU Redis tidak tersedia; guard idempoten di store tetap otoritatif,
// ini hanya fast path.
func (c *Cache) ClaimCallback(ctx context.Context, orderRef, txnID string, ttl time.Duration) (bool, error) {
	if c == nil {
		return true, nil
	}
	key := fmt.Sprintf("callback:%s:%s", orderRef, txnID)
	return c.rdb.SetNX(ctx, key, 1, ttl).Result()
}

// ReleaseCallback melepas klaim supaya retry setelah kegagalan transient
// tidak tertolak oleh fast path.
func (c *Cache) ReleaseCallback(ctx context.Context, orderRef, txnID string) {
	if c == nil {
		return
	}
	c.rdb.Del(ctx, fmt.Sprintf("callback:%s:%s", orderRef, txnID))
}
