package pricecache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	investErrors "github.com/sebuszqo/InvestLog/internal/investment/errors"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
)

const redisKeyPrefix = "price:"

// RedisStore keeps each symbol as a hash at "price:{SYMBOL}" with fields
// "price" and "ts" (Unix nanoseconds). Several server processes can share it.
type RedisStore struct {
	rdb *redis.Client
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// Client exposes the connection so other components can share it.
func (s *RedisStore) Client() *redis.Client {
	return s.rdb
}

func priceKey(symbol string) string {
	return redisKeyPrefix + symbol
}

func (s *RedisStore) Get(ctx context.Context, symbol string) (*models.PriceEntry, error) {
	vals, err := s.rdb.HGetAll(ctx, priceKey(symbol)).Result()
	if err != nil {
		return nil, investErrors.NewStorageError("redis get price "+symbol, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	entry, err := parseEntry(symbol, vals)
	if err != nil {
		return nil, investErrors.NewStorageError("redis get price "+symbol, err)
	}
	return entry, nil
}

func parseEntry(symbol string, vals map[string]string) (*models.PriceEntry, error) {
	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	ts, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse ts: %w", err)
	}
	return &models.PriceEntry{Symbol: symbol, Price: price, UpdatedAt: time.Unix(0, ts).UTC()}, nil
}

func (s *RedisStore) Put(ctx context.Context, entry models.PriceEntry) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(entry.Price, 'f', -1, 64),
		"ts":    strconv.FormatInt(entry.UpdatedAt.UnixNano(), 10),
	}
	if err := s.rdb.HSet(ctx, priceKey(entry.Symbol), fields).Err(); err != nil {
		return investErrors.NewStorageError("redis put price "+entry.Symbol, err)
	}
	return nil
}

func (s *RedisStore) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

func (s *RedisStore) List(ctx context.Context) ([]models.PriceEntry, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, investErrors.NewStorageError("redis list prices", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(keys))
	for _, key := range keys {
		cmds[key] = pipe.HGetAll(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, investErrors.NewStorageError("redis list prices", err)
	}

	entries := make([]models.PriceEntry, 0, len(keys))
	for key, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		entry, err := parseEntry(strings.TrimPrefix(key, redisKeyPrefix), vals)
		if err != nil {
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (s *RedisStore) Reset(ctx context.Context) error {
	keys, err := s.keys(ctx)
	if err != nil {
		return investErrors.NewStorageError("redis reset prices", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return investErrors.NewStorageError("redis reset prices", s.rdb.Del(ctx, keys...).Err())
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
