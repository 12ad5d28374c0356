// Package btpage provides the on-disk slotted page layout used by the paged
// B+ tree.
//
// Page layout:
//
//	[0]     1 byte   page type (TypeInternal / TypeLeaf)
//	[1-2]   2 bytes  numCells
//	[3-4]   2 bytes  cellContentStart (top of cell area, grows upward from bottom)
//	[5-8]   4 bytes  rightmost child page ID (internal pages only)
//	[9-12]  4 bytes  nextLeaf page ID (leaf pages only, else InvalidPage)
//	[13+]   cell pointer array, one uint16 offset per cell, grows downward
//	        ...free space...
//	        cell content area, grows upward from bottom of page
//
// Internal cell:
//
//	[0-3]   uint32  left child page ID
//	[4-11]  int64   separator key
//
// Leaf cell:
//
//	[0-7]   int64   key
//	[8-9]   uint16  value length
//	[10+]   []byte  value
package btpage

import (
	"encoding/binary"

	"github.com/btree-query-bench/scancursor/dbms/pager"
)

const (
	TypeInternal = byte(0)
	TypeLeaf     = byte(1)

	OffType        = 0
	OffNumCells    = 1
	OffCellContent = 3
	OffRightmost   = 5
	OffNextLeaf    = 9
	OffCellPtrs    = 13

	CellPtrSize = 2

	InternalCellSize = 4 + 8
	leafCellHeader   = 8 + 2

	InvalidPage = uint32(0xFFFFFFFF)
)

func InitPage(p *pager.Page, pt byte) {
	clear(p[:])
	p[OffType] = pt
	SetNumCells(p, 0)
	SetCellContent(p, uint16(pager.PageSize))
	SetNextLeaf(p, InvalidPage)
}

func IsLeaf(p *pager.Page) bool { return p[OffType] == TypeLeaf }

func NumCells(p *pager.Page) int {
	return int(binary.LittleEndian.Uint16(p[OffNumCells : OffNumCells+2]))
}

func SetNumCells(p *pager.Page, n int) {
	binary.LittleEndian.PutUint16(p[OffNumCells:OffNumCells+2], uint16(n))
}

func CellContent(p *pager.Page) uint16 {
	return binary.LittleEndian.Uint16(p[OffCellContent : OffCellContent+2])
}

func SetCellContent(p *pager.Page, v uint16) {
	binary.LittleEndian.PutUint16(p[OffCellContent:OffCellContent+2], v)
}

func Rightmost(p *pager.Page) uint32 {
	return binary.LittleEndian.Uint32(p[OffRightmost : OffRightmost+4])
}

func SetRightmost(p *pager.Page, id uint32) {
	binary.LittleEndian.PutUint32(p[OffRightmost:OffRightmost+4], id)
}

func NextLeaf(p *pager.Page) uint32 {
	return binary.LittleEndian.Uint32(p[OffNextLeaf : OffNextLeaf+4])
}

func SetNextLeaf(p *pager.Page, id uint32) {
	binary.LittleEndian.PutUint32(p[OffNextLeaf:OffNextLeaf+4], id)
}

func CellPtr(p *pager.Page, i int) uint16 {
	o := OffCellPtrs + i*CellPtrSize
	return binary.LittleEndian.Uint16(p[o : o+2])
}

func SetCellPtr(p *pager.Page, i int, off uint16) {
	o := OffCellPtrs + i*CellPtrSize
	binary.LittleEndian.PutUint16(p[o:o+2], off)
}

// FreeSpace is the gap between the cell pointer array (with n pointers plus
// room for one more) and the cell content area.
func FreeSpace(p *pager.Page, n int) int {
	return int(CellContent(p)) - (OffCellPtrs + (n+1)*CellPtrSize)
}

func AllocCell(p *pager.Page, size int) int {
	top := int(CellContent(p)) - size
	SetCellContent(p, uint16(top))
	return top
}

// InsertCellPtr opens slot idx in the pointer array and points it at off.
func InsertCellPtr(p *pager.Page, idx int, off uint16) {
	n := NumCells(p)
	for i := n; i > idx; i-- {
		SetCellPtr(p, i, CellPtr(p, i-1))
	}
	SetCellPtr(p, idx, off)
	SetNumCells(p, n+1)
}

// DeleteCell drops the pointer of cell i. The cell bytes stay behind until the
// page is rebuilt.
func DeleteCell(p *pager.Page, i int) {
	n := NumCells(p)
	for j := i; j < n-1; j++ {
		SetCellPtr(p, j, CellPtr(p, j+1))
	}
	SetNumCells(p, n-1)
}

// ─── Internal cells ───────────────────────────────────────────────────────────

func ReadInternalCell(p *pager.Page, i int) (key int64, leftChild uint32) {
	off := int(CellPtr(p, i))
	leftChild = binary.LittleEndian.Uint32(p[off : off+4])
	key = int64(binary.LittleEndian.Uint64(p[off+4 : off+12]))
	return
}

func WriteInternalCell(p *pager.Page, off int, key int64, leftChild uint32) {
	binary.LittleEndian.PutUint32(p[off:off+4], leftChild)
	binary.LittleEndian.PutUint64(p[off+4:off+12], uint64(key))
}

func SetLeftChild(p *pager.Page, i int, child uint32) {
	off := int(CellPtr(p, i))
	binary.LittleEndian.PutUint32(p[off:off+4], child)
}

func AppendInternalCell(p *pager.Page, key int64, leftChild uint32) {
	off := AllocCell(p, InternalCellSize)
	WriteInternalCell(p, off, key, leftChild)
	InsertCellPtr(p, NumCells(p), uint16(off))
}

// ChildAt returns child idx of an internal page with n cells; child n is the
// rightmost pointer kept in the header.
func ChildAt(p *pager.Page, idx, n int) uint32 {
	if idx == n {
		return Rightmost(p)
	}
	_, lc := ReadInternalCell(p, idx)
	return lc
}

// ─── Leaf cells ───────────────────────────────────────────────────────────────

func LeafCellSize(value []byte) int { return leafCellHeader + len(value) }

func ReadLeafKey(p *pager.Page, i int) int64 {
	off := int(CellPtr(p, i))
	return int64(binary.LittleEndian.Uint64(p[off : off+8]))
}

// ReadLeafCell returns the key and a view of the value bytes inside p.
func ReadLeafCell(p *pager.Page, i int) (key int64, value []byte) {
	off := int(CellPtr(p, i))
	key = int64(binary.LittleEndian.Uint64(p[off : off+8]))
	vl := int(binary.LittleEndian.Uint16(p[off+8 : off+10]))
	value = p[off+leafCellHeader : off+leafCellHeader+vl]
	return
}

func WriteLeafCell(p *pager.Page, off int, key int64, value []byte) {
	binary.LittleEndian.PutUint64(p[off:off+8], uint64(key))
	binary.LittleEndian.PutUint16(p[off+8:off+10], uint16(len(value)))
	copy(p[off+leafCellHeader:], value)
}

func AppendLeafCell(p *pager.Page, key int64, value []byte) {
	off := AllocCell(p, LeafCellSize(value))
	WriteLeafCell(p, off, key, value)
	InsertCellPtr(p, NumCells(p), uint16(off))
}

// FindIdx returns the first cell index whose key is >= key.
func FindIdx(p *pager.Page, key int64) int {
	lo, hi := 0, NumCells(p)
	leaf := IsLeaf(p)
	for lo < hi {
		m := (lo + hi) / 2
		var k int64
		if leaf {
			k = ReadLeafKey(p, m)
		} else {
			k, _ = ReadInternalCell(p, m)
		}
		if k < key {
			lo = m + 1
		} else {
			hi = m
		}
	}
	return lo
}
