package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bastiangx/tripserve/pkg/nlu"
)

// KeyPrefix namespaces cached matches in a shared Redis.
const KeyPrefix = "query:"

type RedisOptions struct {
	Addr     string
	Username string
	Password string
	DB       int
	TTL      time.Duration
}

// Redis shares cached matches between service instances. Values are msgpack
// encoded RuleMatch records. Redis errors are logged and read as misses.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
	errs   atomic.Int64
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func redisKey(query string) string {
	return KeyPrefix + NormalizeKey(query)
}

func encodeMatch(m *nlu.RuleMatch) ([]byte, error) {
	return msgpack.Marshal(m)
}

func decodeMatch(data []byte) (*nlu.RuleMatch, error) {
	var m nlu.RuleMatch
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Entities == nil {
		m.Entities = nlu.NewEntityBag()
	}
	return &m, nil
}

func (r *Redis) Get(ctx context.Context, query string) (*nlu.RuleMatch, bool) {
	data, err := r.client.Get(ctx, redisKey(query)).Bytes()
	if errors.Is(err, redis.Nil) {
		r.misses.Add(1)
		return nil, false
	}
	if err != nil {
		r.errs.Add(1)
		log.Warnf("redis GET error: %v", err)
		return nil, false
	}
	m, err := decodeMatch(data)
	if err != nil {
		r.errs.Add(1)
		log.Warnf("Dropping undecodable cache entry for %q: %v", query, err)
		return nil, false
	}
	r.hits.Add(1)
	return m, true
}

func (r *Redis) Set(ctx context.Context, query string, match *nlu.RuleMatch) {
	if match == nil {
		return
	}
	data, err := encodeMatch(match)
	if err != nil {
		log.Errorf("Failed to encode match: %v", err)
		return
	}
	if err := r.client.Set(ctx, redisKey(query), data, r.ttl).Err(); err != nil {
		r.errs.Add(1)
		log.Warnf("redis SET error: %v", err)
	}
}

// Clear deletes every key under KeyPrefix.
func (r *Redis) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, KeyPrefix+"*", 200).Result()
		if err != nil {
			return fmt.Errorf("redis SCAN: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis DEL: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (r *Redis) Stats() map[string]int {
	return map[string]int{
		"hits":       int(r.hits.Load()),
		"misses":     int(r.misses.Load()),
		"errors":     int(r.errs.Load()),
		"ttlSeconds": int(r.ttl / time.Second),
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
