package index

import (
	"github.com/btree-query-bench/scancursor/dbms/index/btree"
	"github.com/btree-query-bench/scancursor/dbms/row"
)

type cursorIterator struct {
	c    *btree.Cursor[int64, row.Row]
	end  int64
	key  int64
	val  row.Row
	err  error
	done bool
	// pending is a lookahead error reported after the entry it came with.
	pending error
}

// NewCursorIterator wraps c as an Iterator that stops after key end.
func NewCursorIterator(c *btree.Cursor[int64, row.Row], end int64) Iterator {
	return &cursorIterator{c: c, end: end}
}

func (it *cursorIterator) Next() bool {
	if it.done {
		return false
	}
	if it.pending != nil {
		it.err, it.done = it.pending, true
		return false
	}
	if !it.c.HasNext() {
		it.done = true
		return false
	}
	k, err := it.c.Next()
	if k > it.end {
		it.done = true
		return false
	}
	it.key, it.val, it.pending = k, it.c.Value(), err
	return true
}

func (it *cursorIterator) Key() int64     { return it.key }
func (it *cursorIterator) Value() row.Row { return it.val }
func (it *cursorIterator) Error() error   { return it.err }

func (it *cursorIterator) Close() error {
	it.done = true
	it.c = nil
	return nil
}
