package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "newshub:cache:"

// RedisStore keeps entries in redis, letting redis expiry reap dead
// keys; Entry TTL metadata is still authoritative for reads.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}
	return &RedisStore{client: rdb}
}

func (s *RedisStore) Get(ctx context.Context, fingerprint string) (Entry, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+fingerprint).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrMiss
		}
		return Entry{}, &CacheError{Fingerprint: fingerprint, Err: err}
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, &CacheError{Fingerprint: fingerprint, Err: err}
	}
	return entry, nil
}

func (s *RedisStore) Put(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	// Keep the key slightly past the entry TTL so stale-if-error reads
	// can still find it.
	expire := time.Duration(entry.TTLSeconds)*time.Second*2 + time.Minute
	return s.client.Set(ctx, redisKeyPrefix+entry.Fingerprint, data, expire).Err()
}

func (s *RedisStore) Delete(ctx context.Context, fingerprint string) error {
	return s.client.Del(ctx, redisKeyPrefix+fingerprint).Err()
}
