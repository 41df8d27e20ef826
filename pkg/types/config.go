package types

import (
	"errors"
	"time"
)

// Config selects the local key/value backend and the remote API.
type Config struct {
	Backend    string        `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir    string        `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	RedisAddr  string        `json:"redis_addr" yaml:"redis_addr" mapstructure:"redis_addr"`
	APIBaseURL string        `json:"api_base_url" yaml:"api_base_url" mapstructure:"api_base_url"`
	APIToken   string        `json:"api_token" yaml:"api_token" mapstructure:"api_token"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	Retries    int           `json:"retries" yaml:"retries" mapstructure:"retries"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config validation errors.
var (
	ErrBackendEmpty    = errors.New("backend must not be empty")
	ErrBackendUnknown  = errors.New("unknown backend")
	ErrRedisAddrEmpty  = errors.New("redis backend requires redis_addr")
	ErrRetriesNegative = errors.New("retries must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
	BackendFile:   true,
	BackendRedis:  true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Backend == BackendRedis && c.RedisAddr == "" {
		return ErrRedisAddrEmpty
	}
	if c.Retries < 0 {
		return ErrRetriesNegative
	}
	return nil
}
