// Package kv persists small pieces of client state (session identifier,
// cart snapshot, remembered order ids) under string keys.
package kv

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("key not found")

// Store is a string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// DefaultRedisPrefix namespaces keys written by Open for redis:// DSNs.
const DefaultRedisPrefix = "storefront:"

// Open creates a Store from dsn:
//
//	memory:
//	file:/path/to/state.json
//	sqlite:/path/to/state.db
//	redis://[:password@]host:port/db
func Open(ctx context.Context, dsn string) (Store, error) {
	scheme, rest, ok := strings.Cut(dsn, ":")
	if !ok {
		return nil, errors.Errorf("invalid state dsn %q", dsn)
	}
	switch scheme {
	case "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(strings.TrimPrefix(rest, "//"))
	case "sqlite":
		return NewSQLite(ctx, strings.TrimPrefix(rest, "//"))
	case "redis", "rediss":
		opts, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, errors.Wrap(err, "ping redis")
		}
		return NewRedis(rdb, DefaultRedisPrefix), nil
	default:
		return nil, errors.Errorf("unsupported state backend %q", scheme)
	}
}
