// Package memtree exposes the in-memory copy-on-write B+ tree as an Index.
package memtree

import (
	"cmp"

	"github.com/btree-query-bench/scancursor/dbms/index"
	"github.com/btree-query-bench/scancursor/dbms/index/btree"
	"github.com/btree-query-bench/scancursor/dbms/row"
)

var (
	_ index.Index   = (*Tree)(nil)
	_ index.Scanner = (*Tree)(nil)
)

type Tree struct {
	m *btree.BTreeMap[int64, row.Row]
}

// New returns an empty tree with at most degree keys per page.
func New(degree int) *Tree {
	return &Tree{m: btree.NewMap[int64, row.Row](cmp.Compare[int64],
		btree.WithMaxKeys[row.Row](degree),
		btree.WithProjector(row.Row.Project),
	)}
}

func (t *Tree) Insert(key int64, value row.Row) error {
	t.m.Put(key, value)
	return nil
}

func (t *Tree) Get(key int64) (row.Row, error) {
	if v, ok := t.m.Get(key); ok {
		return v, nil
	}
	return nil, index.ErrNotFound
}

func (t *Tree) Delete(key int64) error {
	t.m.Delete(key)
	return nil
}

func (t *Tree) Len() int { return t.m.Len() }

// Scan opens a cursor on the current snapshot; later writes do not affect it.
func (t *Tree) Scan(params btree.IterationParameters[int64]) (*btree.Cursor[int64, row.Row], error) {
	return t.m.Cursor(params)
}

func (t *Tree) Range(start, end int64) (index.Iterator, error) {
	c, err := t.Scan(btree.IterationParameters[int64]{}.WithFrom(start))
	if err != nil {
		return nil, err
	}
	return index.NewCursorIterator(c, end), nil
}

func (t *Tree) Close() error { return nil }
