// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package bucket holds bucket metadata used to authorize bucket-level
// metric queries.
package bucket

import (
	"context"
	"errors"
	"fmt"
	"hash/maphash"
	"sort"
	"sync"
	"time"

	"github.com/LeeDigitalWorks/zapmeter/pkg/authz"
)

// ErrBucketNotFound is returned for unknown bucket names.
var ErrBucketNotFound = errors.New("bucket not found")

// Info is bucket metadata.
type Info struct {
	Name      string    `json:"name" mapstructure:"name"`
	OwnerID   string    `json:"owner_id" mapstructure:"owner_id"` // canonical ID of the owning account
	Region    string    `json:"region,omitempty" mapstructure:"region"`
	CreatedAt time.Time `json:"created_at" mapstructure:"created_at"`
}

const ownerIndexShardCount = 64

// ownerIndexShard is a single shard of the owner index with its own lock
type ownerIndexShard struct {
	mu   sync.RWMutex
	data map[string]map[string]struct{} // owner ID -> set of bucket names
}

// Store is an in-memory bucket metadata store with an owner index. It
// implements authz.BucketLookup.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]Info

	// Owner index shards use lock striping so different owners do not
	// contend.
	ownerIndexShards []*ownerIndexShard
	ownerIndexSeed   maphash.Seed
}

var _ authz.BucketLookup = (*Store)(nil)

// NewStore creates an empty Store.
func NewStore() *Store {
	shards := make([]*ownerIndexShard, ownerIndexShardCount)
	for i := range shards {
		shards[i] = &ownerIndexShard{
			data: make(map[string]map[string]struct{}),
		}
	}
	return &Store{
		buckets:          make(map[string]Info),
		ownerIndexShards: shards,
		ownerIndexSeed:   maphash.MakeSeed(),
	}
}

// NewStoreFrom creates a Store holding buckets.
func NewStoreFrom(buckets []Info) *Store {
	s := NewStore()
	for _, b := range buckets {
		s.Put(b)
	}
	return s
}

func (s *Store) getOwnerIndexShard(ownerID string) *ownerIndexShard {
	if ownerID == "" {
		return s.ownerIndexShards[0]
	}
	var h maphash.Hash
	h.SetSeed(s.ownerIndexSeed)
	h.WriteString(ownerID)
	return s.ownerIndexShards[h.Sum64()%ownerIndexShardCount]
}

// Get returns the bucket's metadata.
func (s *Store) Get(name string) (Info, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buckets[name]
	return b, ok
}

// GetBucket implements authz.BucketLookup. Unknown buckets return an error
// wrapping both ErrBucketNotFound and authz.ErrNotFound.
func (s *Store) GetBucket(ctx context.Context, name string) (authz.Bucket, error) {
	if err := ctx.Err(); err != nil {
		return authz.Bucket{}, err
	}
	b, ok := s.Get(name)
	if !ok {
		return authz.Bucket{}, fmt.Errorf("%w: %w: %q", authz.ErrNotFound, ErrBucketNotFound, name)
	}
	return authz.Bucket{Name: b.Name, OwnerID: b.OwnerID}, nil
}

// Put adds or replaces a bucket and updates the owner index.
func (s *Store) Put(b Info) {
	s.mu.Lock()
	existing, exists := s.buckets[b.Name]
	s.buckets[b.Name] = b
	s.mu.Unlock()

	if exists && existing.OwnerID != b.OwnerID {
		s.removeFromOwnerIndex(existing.OwnerID, b.Name)
	}
	s.addToOwnerIndex(b.OwnerID, b.Name)
}

// ListByOwner returns the buckets owned by ownerID, sorted by name.
func (s *Store) ListByOwner(ownerID string) []Info {
	shard := s.getOwnerIndexShard(ownerID)
	shard.mu.RLock()
	names := make([]string, 0, len(shard.data[ownerID]))
	for name := range shard.data[ownerID] {
		names = append(names, name)
	}
	shard.mu.RUnlock()

	sort.Strings(names)
	out := make([]Info, 0, len(names))
	for _, name := range names {
		if b, ok := s.Get(name); ok {
			out = append(out, b)
		}
	}
	return out
}

func (s *Store) addToOwnerIndex(owner, bucket string) {
	if owner == "" {
		return
	}
	shard := s.getOwnerIndexShard(owner)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if shard.data[owner] == nil {
		shard.data[owner] = make(map[string]struct{})
	}
	shard.data[owner][bucket] = struct{}{}
}

func (s *Store) removeFromOwnerIndex(owner, bucket string) {
	if owner == "" {
		return
	}
	shard := s.getOwnerIndexShard(owner)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if buckets, exists := shard.data[owner]; exists {
		delete(buckets, bucket)
		if len(buckets) == 0 {
			delete(shard.data, owner)
		}
	}
}
