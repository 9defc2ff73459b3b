// Package redisstore keeps blobs in redis, single node or cluster.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"balance_engine/internal/app/port"
)

// Store implements port.BlobStore on a redis.UniversalClient.
type Store struct {
	client    redis.UniversalClient
	namespace string
}

// New connects to addrs. A cluster client is used when useCluster is set and
// more than one address is given.
func New(addrs []string, password string, useCluster bool, namespace string) (*Store, error) {
	if len(addrs) == 0 {
		return nil, errors.New("redis: no addresses configured")
	}
	var rdb redis.UniversalClient
	if useCluster && len(addrs) > 1 {
		rdb = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    addrs,
			Password: password,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addrs[0],
			Password: password,
			DB:       0,
		})
	}
	return NewWithClient(rdb, namespace), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, namespace string) *Store {
	return &Store{client: client, namespace: namespace}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) key(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + ":" + key
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
