// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package counterstore

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key layout:
//
//	s/<key>                              -> scalar value
//	z/<key>\x00<8-byte score><value>     -> sorted member (empty value)
//
// Scores are encoded so that byte order equals numeric order, which makes
// a range query a single forward iterator scan. <key> is escaped so it
// never contains NUL and no set prefix is a prefix of another key's.
const (
	scalarPrefix = "s/"
	setPrefix    = "z/"
)

var keyEscaper = strings.NewReplacer("\x01", "\x01\x02", "\x00", "\x01\x01")

type levelBackend struct {
	db        *leveldb.DB
	writeOpts *opt.WriteOptions
}

// OpenLevelStore opens (or creates) a goleveldb database at path and
// returns a LocalStore on top of it. A corrupted database is recovered.
func OpenLevelStore(path string, syncWrites bool) (*LocalStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil && lerrors.IsCorrupted(err) {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, err
	}
	return newLocalStore(BackendLevelDB, newLevelBackend(db, syncWrites)), nil
}

func newLevelBackend(db *leveldb.DB, syncWrites bool) *levelBackend {
	return &levelBackend{
		db:        db,
		writeOpts: &opt.WriteOptions{Sync: syncWrites},
	}
}

func scalarKey(key string) []byte {
	return []byte(scalarPrefix + keyEscaper.Replace(key))
}

func setKeyPrefix(key string) []byte {
	return []byte(setPrefix + keyEscaper.Replace(key) + "\x00")
}

// encodeScore maps a float64 onto 8 bytes whose lexicographic order matches
// numeric order.
func encodeScore(f float64) []byte {
	if f == 0 {
		f = 0 // fold -0 into 0
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) == 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], bits)
	return b[:]
}

func decodeScore(b []byte) float64 {
	bits := binary.BigEndian.Uint64(b)
	if bits&(1<<63) != 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}

func (b *levelBackend) hasSet(key string) (bool, error) {
	it := b.db.NewIterator(util.BytesPrefix(setKeyPrefix(key)), nil)
	defer it.Release()
	found := it.First()
	return found, it.Error()
}

func (b *levelBackend) get(key string) (string, bool, error) {
	v, err := b.db.Get(scalarKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		isSet, err := b.hasSet(key)
		if err != nil {
			return "", false, err
		}
		if isSet {
			return "", false, ErrWrongType
		}
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(v), true, nil
}

// set replaces whatever key holds. Members of a sorted set under key are
// deleted in the same batch as the scalar write.
func (b *levelBackend) set(key, value string) error {
	batch := new(leveldb.Batch)
	it := b.db.NewIterator(util.BytesPrefix(setKeyPrefix(key)), nil)
	for it.Next() {
		batch.Delete(append([]byte{}, it.Key()...))
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return err
	}
	batch.Put(scalarKey(key), []byte(value))
	return b.db.Write(batch, b.writeOpts)
}

func (b *levelBackend) zadd(key string, m member) error {
	isScalar, err := b.db.Has(scalarKey(key), nil)
	if err != nil {
		return err
	}
	if isScalar {
		return ErrWrongType
	}
	prefix := setKeyPrefix(key)
	k := make([]byte, 0, len(prefix)+8+len(m.value))
	k = append(k, prefix...)
	k = append(k, encodeScore(m.score)...)
	k = append(k, m.value...)
	// Identical pairs map to the same leveldb key, so re-adding is a no-op.
	return b.db.Put(k, nil, b.writeOpts)
}

func (b *levelBackend) zrange(key string, lo, hi float64) ([]member, bool, error) {
	isScalar, err := b.db.Has(scalarKey(key), nil)
	if err != nil {
		return nil, false, err
	}
	if isScalar {
		return nil, false, ErrWrongType
	}

	prefix := setKeyPrefix(key)
	it := b.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	out := []member{}
	if lo <= hi {
		start := append(append([]byte{}, prefix...), encodeScore(lo)...)
		for ok := it.Seek(start); ok; ok = it.Next() {
			rest := it.Key()[len(prefix):]
			if len(rest) < 8 {
				continue
			}
			score := decodeScore(rest[:8])
			if score > hi {
				break
			}
			out = append(out, member{score: score, value: string(rest[8:])})
		}
	}
	if err := it.Error(); err != nil {
		return nil, false, err
	}
	if len(out) > 0 {
		return out, true, nil
	}
	found := it.First()
	return out, found, it.Error()
}

func (b *levelBackend) zrem(key string, lo, hi float64) (int64, error) {
	isScalar, err := b.db.Has(scalarKey(key), nil)
	if err != nil {
		return 0, err
	}
	if isScalar {
		return 0, ErrWrongType
	}
	if lo > hi {
		return 0, nil
	}

	prefix := setKeyPrefix(key)
	it := b.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	batch := new(leveldb.Batch)
	start := append(append([]byte{}, prefix...), encodeScore(lo)...)
	for ok := it.Seek(start); ok; ok = it.Next() {
		rest := it.Key()[len(prefix):]
		if len(rest) < 8 {
			continue
		}
		if decodeScore(rest[:8]) > hi {
			break
		}
		batch.Delete(append([]byte{}, it.Key()...))
	}
	if err := it.Error(); err != nil {
		return 0, err
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	if err := b.db.Write(batch, b.writeOpts); err != nil {
		return 0, err
	}
	return int64(batch.Len()), nil
}

func (b *levelBackend) close() error {
	return b.db.Close()
}
