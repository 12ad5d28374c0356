// Package bptree implements a disk-paged B+ tree over the pager.
//
// Internal nodes store no values, only separator keys and child pointers. A
// key equal to a separator lives in the subtree right of it. Leaves are
// linked via nextLeaf. Page 1 of the file holds the root page ID.
//
// Scans go through the generic btree cursor: every page read for a scan is
// decoded into a leafPage or internalPage.
package bptree

import (
	"encoding/binary"
	"slices"

	"github.com/btree-query-bench/scancursor/dbms/index"
	"github.com/btree-query-bench/scancursor/dbms/index/btpage"
	"github.com/btree-query-bench/scancursor/dbms/index/btree"
	"github.com/btree-query-bench/scancursor/dbms/pager"
	"github.com/btree-query-bench/scancursor/dbms/row"
	"github.com/cockroachdb/errors"
)

const (
	headerPage  = 1
	maxCellSize = pager.PageSize / 4
	minMaxKeys  = 3
)

// ErrValueTooLarge is returned by Insert for rows whose leaf cell would take
// more than a quarter of a page.
var ErrValueTooLarge = errors.New("bptree: value too large")

var (
	_ index.Index               = (*BPTree)(nil)
	_ index.Scanner             = (*BPTree)(nil)
	_ btree.Map[int64, row.Row] = (*BPTree)(nil)
)

type BPTree struct {
	pg      *pager.Pager
	rootID  uint32
	maxKeys int
}

type Option func(*BPTree)

// WithMaxKeys caps the number of keys per page below what physically fits.
func WithMaxKeys(n int) Option {
	return func(t *BPTree) { t.maxKeys = max(n, minMaxKeys) }
}

// Open opens or creates the tree stored in <path>.bpt.
func Open(path string, cachePages int, opts ...Option) (*BPTree, error) {
	pg, err := pager.Open(path+".bpt", cachePages)
	if err != nil {
		return nil, err
	}
	t := &BPTree{pg: pg}
	for _, opt := range opts {
		opt(t)
	}
	if pg.PageCount() == 1 {
		err = t.init()
	} else {
		err = t.readHeader()
	}
	if err != nil {
		pg.Close()
		return nil, errors.Wrapf(err, "bptree: open %s", path)
	}
	log.Debugf("opened %s.bpt, root page %d", path, t.rootID)
	return t, nil
}

func (t *BPTree) init() error {
	if _, err := t.pg.Allocate(); err != nil {
		return err
	}
	rootID, err := t.pg.Allocate()
	if err != nil {
		return err
	}
	p := new(pager.Page)
	btpage.InitPage(p, btpage.TypeLeaf)
	if err := t.pg.Write(rootID, p); err != nil {
		return err
	}
	t.rootID = uint32(rootID)
	return t.writeHeader()
}

// ─── Get ──────────────────────────────────────────────────────────────────────

func (t *BPTree) Get(key int64) (row.Row, error) {
	_, p, err := t.findLeaf(key)
	if err != nil {
		return nil, err
	}
	i := btpage.FindIdx(p, key)
	if i < btpage.NumCells(p) {
		if k, v := btpage.ReadLeafCell(p, i); k == key {
			r, err := row.Decode(v)
			return r, errors.Wrapf(err, "bptree: get %d", key)
		}
	}
	return nil, index.ErrNotFound
}

// ─── Insert ───────────────────────────────────────────────────────────────────

func (t *BPTree) Insert(key int64, r row.Row) error {
	value := row.Encode(r)
	if btpage.LeafCellSize(value) > maxCellSize {
		return errors.Wrapf(ErrValueTooLarge, "bptree: insert %d: %d byte row", key, len(value))
	}
	sep, rightID, split, err := t.insertRec(uint64(t.rootID), key, value)
	if err != nil || !split {
		return err
	}

	newRoot, err := t.pg.Allocate()
	if err != nil {
		return err
	}
	p := new(pager.Page)
	writeInternal(p, []int64{sep}, []uint32{t.rootID, uint32(rightID)})
	if err := t.pg.Write(newRoot, p); err != nil {
		return err
	}
	log.Debugf("root split: page %d is the new root", newRoot)
	t.rootID = uint32(newRoot)
	return t.writeHeader()
}

// insertRec returns (separator, rightPageID, didSplit, error).
func (t *BPTree) insertRec(id uint64, key int64, value []byte) (int64, uint64, bool, error) {
	p, err := t.pg.Read(id)
	if err != nil {
		return 0, 0, false, err
	}
	if btpage.IsLeaf(p) {
		return t.insertLeaf(id, p, key, value)
	}

	ci := childIndex(p, key)
	sep, rc, split, err := t.insertRec(uint64(btpage.ChildAt(p, ci, btpage.NumCells(p))), key, value)
	if err != nil || !split {
		return 0, 0, false, err
	}

	keys, children := internalCells(p)
	keys = slices.Insert(keys, ci, sep)
	children = slices.Insert(children, ci+1, uint32(rc))
	if t.internalFits(len(keys)) {
		writeInternal(p, keys, children)
		return 0, 0, false, t.pg.Write(id, p)
	}
	return t.splitInternal(id, p, keys, children)
}

func (t *BPTree) insertLeaf(id uint64, p *pager.Page, key int64, value []byte) (int64, uint64, bool, error) {
	n := btpage.NumCells(p)
	i := btpage.FindIdx(p, key)

	if i < n {
		if k, old := btpage.ReadLeafCell(p, i); k == key {
			if len(value) <= len(old) {
				btpage.WriteLeafCell(p, int(btpage.CellPtr(p, i)), key, value)
				return 0, 0, false, t.pg.Write(id, p)
			}
			btpage.DeleteCell(p, i)
			n--
		}
	}

	size := btpage.LeafCellSize(value)
	if (t.maxKeys == 0 || n < t.maxKeys) && btpage.FreeSpace(p, n) >= size {
		off := btpage.AllocCell(p, size)
		btpage.WriteLeafCell(p, off, key, value)
		btpage.InsertCellPtr(p, i, uint16(off))
		return 0, 0, false, t.pg.Write(id, p)
	}

	cells := slices.Insert(leafCells(p), i, leafCell{key, value})
	if t.leafFits(cells) {
		// compacting reclaims the bytes of overwritten and deleted cells
		writeLeaf(p, cells, btpage.NextLeaf(p))
		return 0, 0, false, t.pg.Write(id, p)
	}
	return t.splitLeaf(id, p, cells)
}

func (t *BPTree) splitLeaf(id uint64, p *pager.Page, cells []leafCell) (int64, uint64, bool, error) {
	mid := t.leafSplitPoint(cells)
	newID, err := t.pg.Allocate()
	if err != nil {
		return 0, 0, false, err
	}

	// left -> right -> old next
	right := new(pager.Page)
	writeLeaf(right, cells[mid:], btpage.NextLeaf(p))
	writeLeaf(p, cells[:mid], uint32(newID))

	if err := t.pg.Write(id, p); err != nil {
		return 0, 0, false, err
	}
	if err := t.pg.Write(newID, right); err != nil {
		return 0, 0, false, err
	}
	log.Tracef("leaf %d split, right sibling %d starts at %d", id, newID, cells[mid].key)
	return cells[mid].key, newID, true, nil // copy-up
}

func (t *BPTree) splitInternal(id uint64, p *pager.Page, keys []int64, children []uint32) (int64, uint64, bool, error) {
	mid := len(keys) / 2
	newID, err := t.pg.Allocate()
	if err != nil {
		return 0, 0, false, err
	}

	right := new(pager.Page)
	writeInternal(right, keys[mid+1:], children[mid+1:])
	writeInternal(p, keys[:mid], children[:mid+1])

	if err := t.pg.Write(id, p); err != nil {
		return 0, 0, false, err
	}
	if err := t.pg.Write(newID, right); err != nil {
		return 0, 0, false, err
	}
	log.Tracef("internal %d split, right sibling %d, separator %d", id, newID, keys[mid])
	return keys[mid], newID, true, nil // push-up (median leaves this level)
}

// leafSplitPoint balances the halves by bytes, within the key cap.
func (t *BPTree) leafSplitPoint(cells []leafCell) int {
	total := 0
	for _, c := range cells {
		total += btpage.LeafCellSize(c.value)
	}
	mid, acc := 0, 0
	for mid < len(cells) && acc < total/2 {
		acc += btpage.LeafCellSize(cells[mid].value)
		mid++
	}
	mid = min(max(mid, 1), len(cells)-1)
	if t.maxKeys > 0 {
		mid = min(max(mid, len(cells)-t.maxKeys), t.maxKeys)
	}
	return mid
}

func (t *BPTree) leafFits(cells []leafCell) bool {
	if t.maxKeys > 0 && len(cells) > t.maxKeys {
		return false
	}
	used := btpage.OffCellPtrs
	for _, c := range cells {
		used += btpage.CellPtrSize + btpage.LeafCellSize(c.value)
	}
	return used <= pager.PageSize
}

func (t *BPTree) internalFits(n int) bool {
	if t.maxKeys > 0 && n > t.maxKeys {
		return false
	}
	return btpage.OffCellPtrs+n*(btpage.CellPtrSize+btpage.InternalCellSize) <= pager.PageSize
}

// ─── Delete ───────────────────────────────────────────────────────────────────

// Delete removes key from its leaf. Pages are never merged, so leaves may be
// left empty.
func (t *BPTree) Delete(key int64) error {
	id, p, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	i := btpage.FindIdx(p, key)
	if i >= btpage.NumCells(p) || btpage.ReadLeafKey(p, i) != key {
		return nil
	}
	btpage.DeleteCell(p, i)
	return t.pg.Write(id, p)
}

// ─── Find leaf ────────────────────────────────────────────────────────────────

func (t *BPTree) findLeaf(key int64) (uint64, *pager.Page, error) {
	curr := uint64(t.rootID)
	for {
		p, err := t.pg.Read(curr)
		if err != nil {
			return 0, nil, err
		}
		if btpage.IsLeaf(p) {
			return curr, p, nil
		}
		curr = uint64(btpage.ChildAt(p, childIndex(p, key), btpage.NumCells(p)))
	}
}

// childIndex returns the child of internal page p covering key.
func childIndex(p *pager.Page, key int64) int {
	i := btpage.FindIdx(p, key)
	if i < btpage.NumCells(p) {
		if k, _ := btpage.ReadInternalCell(p, i); k == key {
			i++
		}
	}
	return i
}

// ─── Header ───────────────────────────────────────────────────────────────────

func (t *BPTree) writeHeader() error {
	p, err := t.pg.Read(headerPage)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(p[:4], t.rootID)
	return t.pg.Write(headerPage, p)
}

func (t *BPTree) readHeader() error {
	p, err := t.pg.Read(headerPage)
	if err != nil {
		return err
	}
	t.rootID = binary.LittleEndian.Uint32(p[:4])
	return nil
}

// Stats reports the page cache counters of the underlying pager.
func (t *BPTree) Stats() pager.Stats { return t.pg.Stats() }

func (t *BPTree) Close() error {
	return errors.CombineErrors(t.writeHeader(), t.pg.Close())
}

// ─── Scans ────────────────────────────────────────────────────────────────────

// Scan opens a cursor on the tree. The tree must not be modified while the
// cursor is in use.
func (t *BPTree) Scan(params btree.IterationParameters[int64]) (*btree.Cursor[int64, row.Row], error) {
	root, err := t.loadPage(uint64(t.rootID))
	if err != nil {
		return nil, err
	}
	return btree.NewCursor[int64, row.Row](t, root, params)
}

func (t *BPTree) Range(start, end int64) (index.Iterator, error) {
	c, err := t.Scan(btree.IterationParameters[int64]{}.WithFrom(start))
	if err != nil {
		return nil, err
	}
	return index.NewCursorIterator(c, end), nil
}
