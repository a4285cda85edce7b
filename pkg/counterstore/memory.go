// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package counterstore

import (
	"github.com/google/btree"
)

type memoryBackend struct {
	scalars map[string]string
	sets    map[string]*btree.BTree
}

// setItem implements btree.Item. Members order by score, then by value,
// so an identical pair occupies a single slot.
type setItem struct {
	member
}

func (a *setItem) Less(b btree.Item) bool {
	other := b.(*setItem)
	if a.score != other.score {
		return a.score < other.score
	}
	return a.value < other.value
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		scalars: make(map[string]string),
		sets:    make(map[string]*btree.BTree),
	}
}

func (b *memoryBackend) get(key string) (string, bool, error) {
	if _, ok := b.sets[key]; ok {
		return "", false, ErrWrongType
	}
	v, ok := b.scalars[key]
	return v, ok, nil
}

// set replaces whatever key holds, sorted sets included.
func (b *memoryBackend) set(key, value string) error {
	delete(b.sets, key)
	b.scalars[key] = value
	return nil
}

func (b *memoryBackend) zadd(key string, m member) error {
	if _, ok := b.scalars[key]; ok {
		return ErrWrongType
	}
	if m.score == 0 {
		m.score = 0 // fold -0 into 0
	}
	zs, ok := b.sets[key]
	if !ok {
		zs = btree.New(8)
		b.sets[key] = zs
	}
	zs.ReplaceOrInsert(&setItem{member: m})
	return nil
}

func (b *memoryBackend) scan(zs *btree.BTree, lo, hi float64, fn func(*setItem)) {
	zs.AscendGreaterOrEqual(&setItem{member: member{score: lo}}, func(i btree.Item) bool {
		it := i.(*setItem)
		if it.score > hi {
			return false
		}
		fn(it)
		return true
	})
}

func (b *memoryBackend) zrange(key string, lo, hi float64) ([]member, bool, error) {
	if _, ok := b.scalars[key]; ok {
		return nil, false, ErrWrongType
	}
	zs, ok := b.sets[key]
	if !ok {
		return nil, false, nil
	}
	out := []member{}
	if lo > hi {
		return out, true, nil
	}
	b.scan(zs, lo, hi, func(it *setItem) { out = append(out, it.member) })
	return out, true, nil
}

func (b *memoryBackend) zrem(key string, lo, hi float64) (int64, error) {
	if _, ok := b.scalars[key]; ok {
		return 0, ErrWrongType
	}
	zs, ok := b.sets[key]
	if !ok || lo > hi {
		return 0, nil
	}
	var doomed []*setItem
	b.scan(zs, lo, hi, func(it *setItem) { doomed = append(doomed, it) })
	for _, it := range doomed {
		zs.Delete(it)
	}
	if zs.Len() == 0 {
		delete(b.sets, key)
	}
	return int64(len(doomed)), nil
}

func (b *memoryBackend) close() error {
	return nil
}
