package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const listKeyPrefix = "list:"

// Key returns the store key of the document for token.
func Key(token string) string {
	return listKeyPrefix + token
}

// RedisStore keeps one serialized document per token under "list:<token>".
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store backed by the given client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Read returns the stored blob. A missing key is reported through found and
// is not an error.
func (s *RedisStore) Read(ctx context.Context, token string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, Key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read list: %w", err)
	}
	return data, true, nil
}

// Write replaces the whole document in a single SET.
func (s *RedisStore) Write(ctx context.Context, token string, data []byte) error {
	if err := s.client.Set(ctx, Key(token), data, 0).Err(); err != nil {
		return fmt.Errorf("write list: %w", err)
	}
	return nil
}

// Delete removes the document. Deleting a missing key succeeds.
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, Key(token)).Err(); err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// ParseRedisOptions accepts either a redis:// URL or the Azure style
// "host:port,password=...,ssl=true" connection string.
func ParseRedisOptions(conn string) (*redis.Options, error) {
	conn = strings.TrimSpace(conn)
	if conn == "" {
		return nil, errors.New("empty redis connection string")
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}

	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	if opts.Addr == "" || strings.Contains(opts.Addr, "://") {
		return nil, fmt.Errorf("invalid redis address %q", parts[0])
	}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts, nil
}
