// Package redisstore implements kvstore.Store using redis.
// For more details, see https://redis.io/
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/brokerauth/kvstore"
)

var _ kvstore.Store = (*Store)(nil)

// Store implements the kvstore.Store interface for redis. Every key is
// namespaced with the configured prefix.
type Store struct {
	db     *redis.Client
	prefix string
}

// Options represents options for configuring the redis store.
type Options struct {
	// URL in redis://[user:password@]host:port/db form. rediss:// enables TLS.
	URL string
	// Prefix prepended to every key, joined with ':'.
	Prefix string
}

// New connects to redis and verifies the connection with PING.
func New(ctx context.Context, o Options) (*Store, error) {
	if o.URL == "" {
		return nil, fmt.Errorf("redisstore: connection url is required")
	}
	opts, err := redis.ParseURL(o.URL)
	if err != nil {
		return nil, fmt.Errorf("redisstore: invalid url: %w", err)
	}

	db := redis.NewClient(opts)
	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redisstore: error connecting to redis: %w", err)
	}
	return NewFromClient(db, o.Prefix), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(db *redis.Client, prefix string) *Store {
	return &Store{db: db, prefix: prefix}
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Get is equivalent to redis `GET key`.
func (s *Store) Get(ctx context.Context, k string) ([]byte, error) {
	v, err := s.db.Get(ctx, s.key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kvstore.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return v, nil
}

// Set is equivalent to redis `SET key value [EX seconds]`.
func (s *Store) Set(ctx context.Context, k string, v []byte, ttl time.Duration) error {
	return s.db.Set(ctx, s.key(k), v, ttl).Err()
}

func (s *Store) Delete(ctx context.Context, k string) (bool, error) {
	n, err := s.db.Del(ctx, s.key(k)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) SetAdd(ctx context.Context, k, member string) (bool, error) {
	n, err := s.db.SAdd(ctx, s.key(k), member).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) SetRemove(ctx context.Context, k, member string) (bool, error) {
	n, err := s.db.SRem(ctx, s.key(k), member).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) SetIsMember(ctx context.Context, k, member string) (bool, error) {
	return s.db.SIsMember(ctx, s.key(k), member).Result()
}

func (s *Store) SetMembers(ctx context.Context, k string) ([]string, error) {
	return s.db.SMembers(ctx, s.key(k)).Result()
}

func (s *Store) SetSize(ctx context.Context, k string) (int64, error) {
	return s.db.SCard(ctx, s.key(k)).Result()
}

// Close closes the client, releasing any open resources.
func (s *Store) Close() error {
	return s.db.Close()
}
