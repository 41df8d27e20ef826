// Package rediskv implements a Redis key/value backend for the local cache,
// for deployments where several short-lived processes share one cache.
package rediskv

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

const (
	defaultPrefix      = "crudkit:"
	defaultDialTimeout = 2 * time.Second
	defaultIOTimeout   = time.Second
)

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key. The default is "crudkit:".
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithExpiration sets a TTL on every write. Zero disables expiry.
func WithExpiration(d time.Duration) Option {
	return func(s *Store) { s.expire = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements types.KVStore over a redigo connection pool.
type Store struct {
	pool   *redis.Pool
	prefix string
	expire time.Duration
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// Dial returns a Store with a connection pool for addr (host:port).
func Dial(addr string, opts ...Option) *Store {
	pool := &redis.Pool{
		MaxIdle:     4,
		IdleTimeout: 4 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr,
				redis.DialConnectTimeout(defaultDialTimeout),
				redis.DialReadTimeout(defaultIOTimeout),
				redis.DialWriteTimeout(defaultIOTimeout))
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
	return New(pool, opts...)
}

// New returns a Store over an existing pool.
func New(pool *redis.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

func (s *Store) conn() (redis.Conn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}
	return s.pool.Get(), nil
}

// Ping checks connectivity.
func (s *Store) Ping() error {
	c, err := s.conn()
	if err != nil {
		return err
	}
	defer c.Close()
	_, err = c.Do("PING")
	return err
}

// Get returns the blob stored under key. ok is false when the key is absent.
func (s *Store) Get(key string) (string, bool, error) {
	c, err := s.conn()
	if err != nil {
		return "", false, err
	}
	defer c.Close()

	v, err := redis.String(c.Do("GET", s.prefix+key))
	if errors.Is(err, redis.ErrNil) {
		return "", false, nil
	}
	if err != nil {
		s.logger.Warn("redis GET failed", zap.String("key", key), zap.Error(err))
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key, with the configured expiration if any.
func (s *Store) Set(key, value string) error {
	c, err := s.conn()
	if err != nil {
		return err
	}
	defer c.Close()

	if s.expire > 0 {
		_, err = c.Do("SET", s.prefix+key, value, "PX", int64(s.expire/time.Millisecond))
	} else {
		_, err = c.Do("SET", s.prefix+key, value)
	}
	if err != nil {
		s.logger.Warn("redis SET failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	c, err := s.conn()
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.Do("DEL", s.prefix+key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close closes the pool. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.pool.Close()
}
