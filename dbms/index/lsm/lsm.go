// Package lsm wraps Pebble (CockroachDB's LSM storage engine) behind the
// common Index interface. It serves as the reference every B+ tree scan is
// checked against, and as the baseline in the benchmark.
package lsm

import (
	"encoding/binary"
	"math"

	"github.com/btree-query-bench/scancursor/dbms/index"
	"github.com/btree-query-bench/scancursor/dbms/row"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var _ index.Index = (*LSM)(nil)

type LSM struct {
	db *pebble.DB
}

func options() *pebble.Options {
	return &pebble.Options{
		MemTableSize:                16 << 20,
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       12,
	}
}

// Open opens (or creates) a Pebble database at the given directory path.
func Open(dir string) (*LSM, error) {
	return open(dir, options())
}

// OpenInMem opens a database that lives entirely in memory.
func OpenInMem() (*LSM, error) {
	opts := options()
	opts.FS = vfs.NewMem()
	return open("", opts)
}

func open(dir string, opts *pebble.Options) (*LSM, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "lsm: open %q", dir)
	}
	log.Debugf("opened pebble at %q", dir)
	return &LSM{db: db}, nil
}

// Close cleanly shuts down Pebble, flushing any in-memory state.
func (l *LSM) Close() error {
	return l.db.Close()
}

// Insert inserts or updates the row for key.
func (l *LSM) Insert(key int64, value row.Row) error {
	if err := l.db.Set(encodeKey(key), row.Encode(value), pebble.NoSync); err != nil {
		return errors.Wrapf(err, "lsm: insert %d", key)
	}
	return nil
}

func (l *LSM) Get(key int64) (row.Row, error) {
	val, closer, err := l.db.Get(encodeKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, index.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "lsm: get %d", key)
	}
	defer closer.Close()
	// Decode copies out of val, which is only valid until closer.Close().
	r, err := row.Decode(val)
	return r, errors.Wrapf(err, "lsm: get %d", key)
}

// Delete removes the key from the store.
func (l *LSM) Delete(key int64) error {
	if err := l.db.Delete(encodeKey(key), pebble.NoSync); err != nil {
		return errors.Wrapf(err, "lsm: delete %d", key)
	}
	return nil
}

// Range returns an iterator over all keys in [start, end] inclusive.
func (l *LSM) Range(start, end int64) (index.Iterator, error) {
	if end < start {
		return &rangeIterator{}, nil
	}
	iterOpts := &pebble.IterOptions{LowerBound: encodeKey(start)}
	if end < math.MaxInt64 {
		// UpperBound is exclusive
		iterOpts.UpperBound = encodeKey(end + 1)
	}
	iter, err := l.db.NewIter(iterOpts)
	if err != nil {
		return nil, errors.Wrap(err, "lsm: range")
	}
	iter.First()
	return &rangeIterator{iter: iter, first: true}, nil
}

// ─── Key encoding ─────────────────────────────────────────────────────────────

// encodeKey encodes an int64 as 8 big-endian bytes with the sign bit flipped,
// so byte order matches numeric order for negative keys too.
func encodeKey(k int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(k)^(1<<63))
	return b
}

func decodeKey(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

// ─── Range Iterator ───────────────────────────────────────────────────────────

// rangeIterator with a nil iter is empty.
type rangeIterator struct {
	iter  *pebble.Iterator
	first bool
	key   int64
	val   row.Row
	err   error
}

func (it *rangeIterator) Next() bool {
	if it.iter == nil || it.err != nil {
		return false
	}
	var valid bool
	if it.first {
		// First was already called by Range
		it.first = false
		valid = it.iter.Valid()
	} else {
		valid = it.iter.Next()
	}
	if !valid {
		it.err = it.iter.Error()
		return false
	}
	k := it.iter.Key()
	if len(k) != 8 {
		it.err = errors.Newf("lsm: unexpected key length %d", len(k))
		return false
	}
	it.key = decodeKey(k)
	if it.val, it.err = row.Decode(it.iter.Value()); it.err != nil {
		it.err = errors.Wrapf(it.err, "lsm: key %d", it.key)
		return false
	}
	return true
}

func (it *rangeIterator) Key() int64     { return it.key }
func (it *rangeIterator) Value() row.Row { return it.val }
func (it *rangeIterator) Error() error   { return it.err }

func (it *rangeIterator) Close() error {
	if it.iter == nil {
		return nil
	}
	return it.iter.Close()
}
