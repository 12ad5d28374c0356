// Package index defines the interface shared by the benchmarked structures.
package index

import (
	"github.com/btree-query-bench/scancursor/dbms/index/btree"
	"github.com/btree-query-bench/scancursor/dbms/row"
	"github.com/cockroachdb/errors"
)

// ErrNotFound is returned by Get for keys that are not stored.
var ErrNotFound = errors.New("index: key not found")

// Index is the common interface for all implementations. Deleting a key that
// is not stored is not an error.
type Index interface {
	Insert(key int64, value row.Row) error
	Get(key int64) (row.Row, error)
	Delete(key int64) error
	Range(start, end int64) (Iterator, error)
	Close() error
}

// Iterator allows scanning over a range of key-value pairs.
type Iterator interface {
	Next() bool
	Key() int64
	Value() row.Row
	Error() error
	Close() error
}

// Scanner is implemented by indexes that expose a B-tree cursor directly.
type Scanner interface {
	Scan(params btree.IterationParameters[int64]) (*btree.Cursor[int64, row.Row], error)
}
