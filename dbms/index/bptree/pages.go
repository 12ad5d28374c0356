package bptree

import (
	"slices"

	"github.com/btree-query-bench/scancursor/dbms/index/btpage"
	"github.com/btree-query-bench/scancursor/dbms/index/btree"
	"github.com/btree-query-bench/scancursor/dbms/pager"
	"github.com/btree-query-bench/scancursor/dbms/row"
	"github.com/cockroachdb/errors"
)

// ─── Raw cells ────────────────────────────────────────────────────────────────

type leafCell struct {
	key   int64
	value []byte
}

// leafCells copies every cell out of p so p can be rewritten.
func leafCells(p *pager.Page) []leafCell {
	n := btpage.NumCells(p)
	cells := make([]leafCell, n, n+1)
	for i := range cells {
		k, v := btpage.ReadLeafCell(p, i)
		cells[i] = leafCell{k, slices.Clone(v)}
	}
	return cells
}

func writeLeaf(p *pager.Page, cells []leafCell, next uint32) {
	btpage.InitPage(p, btpage.TypeLeaf)
	btpage.SetNextLeaf(p, next)
	for _, c := range cells {
		btpage.AppendLeafCell(p, c.key, c.value)
	}
}

// internalCells returns the separators of p and its len(keys)+1 children.
func internalCells(p *pager.Page) ([]int64, []uint32) {
	n := btpage.NumCells(p)
	keys := make([]int64, n, n+1)
	children := make([]uint32, n+1, n+2)
	for i := 0; i < n; i++ {
		keys[i], children[i] = btpage.ReadInternalCell(p, i)
	}
	children[n] = btpage.Rightmost(p)
	return keys, children
}

func writeInternal(p *pager.Page, keys []int64, children []uint32) {
	btpage.InitPage(p, btpage.TypeInternal)
	for i, k := range keys {
		btpage.AppendInternalCell(p, k, children[i])
	}
	btpage.SetRightmost(p, children[len(keys)])
}

// ─── Decoded pages ────────────────────────────────────────────────────────────

type leafPage struct {
	id   uint64
	keys []int64
	rows []row.Row
}

func (p *leafPage) KeyCount() int       { return len(p.keys) }
func (p *leafPage) Key(i int) int64     { return p.keys[i] }
func (p *leafPage) Value(i int) row.Row { return p.rows[i] }
func (p *leafPage) Values() []row.Row   { return p.rows }

func (p *leafPage) BinarySearch(k int64) int {
	return btree.SearchResult(slices.BinarySearch(p.keys, k))
}

func (p *leafPage) ProjectValue(i int, columns []int) row.Row {
	return p.rows[i].Project(columns)
}

type internalPage struct {
	t        *BPTree
	id       uint64
	keys     []int64
	children []uint32
}

func (p *internalPage) KeyCount() int   { return len(p.keys) }
func (p *internalPage) Key(i int) int64 { return p.keys[i] }

func (p *internalPage) BinarySearch(k int64) int {
	return btree.SearchResult(slices.BinarySearch(p.keys, k))
}

// ChildPage reads child i through the pager.
func (p *internalPage) ChildPage(i int) (btree.Page[int64, row.Row], error) {
	if i < 0 || i >= len(p.children) {
		return nil, errors.AssertionFailedf("bptree: page %d has no child %d", p.id, i)
	}
	return p.t.loadPage(uint64(p.children[i]))
}

// ChildPageCount implements btree.Map.
func (t *BPTree) ChildPageCount(p btree.InternalPage[int64, row.Row]) int {
	if ip, ok := p.(*internalPage); ok {
		return len(ip.children)
	}
	return p.KeyCount() + 1
}

func (t *BPTree) loadPage(id uint64) (btree.Page[int64, row.Row], error) {
	p, err := t.pg.Read(id)
	if err != nil {
		return nil, errors.Wrapf(err, "bptree: load page %d", id)
	}
	if !btpage.IsLeaf(p) {
		keys, children := internalCells(p)
		return &internalPage{t: t, id: id, keys: keys, children: children}, nil
	}

	n := btpage.NumCells(p)
	lp := &leafPage{id: id, keys: make([]int64, n), rows: make([]row.Row, n)}
	for i := 0; i < n; i++ {
		k, v := btpage.ReadLeafCell(p, i)
		r, err := row.Decode(v)
		if err != nil {
			return nil, errors.Wrapf(err, "bptree: page %d cell %d", id, i)
		}
		lp.keys[i], lp.rows[i] = k, r
	}
	return lp, nil
}
