package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
)

// RedisCache guarda os bytes codificados do Market por endereço.
// TTL limita por quanto tempo um snapshot sobrevive a uma invalidação perdida.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

func key(addr accounts.Pubkey) string { return "market:account:" + addr.String() }

func (r *RedisCache) Get(ctx context.Context, addr accounts.Pubkey) ([]byte, bool, error) {
	b, err := r.Client.Get(ctx, key(addr)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisCache) Put(ctx context.Context, addr accounts.Pubkey, data []byte) error {
	return r.Client.Set(ctx, key(addr), data, r.TTL).Err()
}

func (r *RedisCache) Invalidate(ctx context.Context, addr accounts.Pubkey) error {
	return r.Client.Del(ctx, key(addr)).Err()
}
