// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package counterstore

import (
	"fmt"
	"time"
)

// Backend names.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendRedis   = "redis"
)

// Config selects and configures the counter store backend.
type Config struct {
	// Backend is one of "memory", "leveldb" or "redis".
	// Default: "memory".
	Backend string `mapstructure:"backend"`

	LevelDB LevelDBConfig `mapstructure:"leveldb"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// LevelDBConfig configures the local leveldb backend.
type LevelDBConfig struct {
	// Path is the database directory. Default: "./zapmeter-data".
	Path string `mapstructure:"path"`

	// Sync fsyncs every write.
	Sync bool `mapstructure:"sync"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		LevelDB: LevelDBConfig{
			Path: "./zapmeter-data",
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}

// Validate applies defaults to unset fields and rejects unknown backends.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.Backend == "" {
		c.Backend = def.Backend
	}
	switch c.Backend {
	case BackendMemory:
	case BackendLevelDB:
		if c.LevelDB.Path == "" {
			c.LevelDB.Path = def.LevelDB.Path
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			c.Redis.Addr = def.Redis.Addr
		}
		if c.Redis.PoolSize <= 0 {
			c.Redis.PoolSize = def.Redis.PoolSize
		}
		if c.Redis.DialTimeout <= 0 {
			c.Redis.DialTimeout = def.Redis.DialTimeout
		}
		if c.Redis.ReadTimeout <= 0 {
			c.Redis.ReadTimeout = def.Redis.ReadTimeout
		}
		if c.Redis.WriteTimeout <= 0 {
			c.Redis.WriteTimeout = def.Redis.WriteTimeout
		}
	default:
		return fmt.Errorf("counterstore: unknown backend %q", c.Backend)
	}
	return nil
}

// Open validates cfg and opens the configured backend.
func Open(cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendLevelDB:
		return OpenLevelStore(cfg.LevelDB.Path, cfg.LevelDB.Sync)
	case BackendRedis:
		return NewRedisStore(cfg.Redis)
	default:
		return NewMemoryStore(), nil
	}
}
