package btpage

import (
	"bytes"
	"testing"

	"github.com/btree-query-bench/scancursor/dbms/pager"
)

func TestLeafCells(t *testing.T) {
	p := new(pager.Page)
	InitPage(p, TypeLeaf)

	if !IsLeaf(p) || NumCells(p) != 0 || NextLeaf(p) != InvalidPage {
		t.Fatalf("fresh leaf header wrong: leaf=%v cells=%d next=%d", IsLeaf(p), NumCells(p), NextLeaf(p))
	}

	for _, k := range []int64{10, 20, 30} {
		AppendLeafCell(p, k, []byte{byte(k)})
	}

	if NumCells(p) != 3 {
		t.Fatalf("Expected 3 cells, got %d", NumCells(p))
	}
	k, v := ReadLeafCell(p, 1)
	if k != 20 || !bytes.Equal(v, []byte{20}) {
		t.Errorf("cell 1: got (%d, %v)", k, v)
	}

	for _, test := range []struct {
		key  int64
		want int
	}{
		{5, 0}, {10, 0}, {15, 1}, {30, 2}, {31, 3},
	} {
		if got := FindIdx(p, test.key); got != test.want {
			t.Errorf("FindIdx(%d) = %d, want %d", test.key, got, test.want)
		}
	}

	DeleteCell(p, 0)
	if NumCells(p) != 2 || ReadLeafKey(p, 0) != 20 {
		t.Errorf("after delete: cells=%d first=%d", NumCells(p), ReadLeafKey(p, 0))
	}
}

func TestInternalCells(t *testing.T) {
	p := new(pager.Page)
	InitPage(p, TypeInternal)
	SetRightmost(p, 99)
	AppendInternalCell(p, 100, 7)
	AppendInternalCell(p, 200, 8)

	n := NumCells(p)
	for i, want := range []uint32{7, 8, 99} {
		if got := ChildAt(p, i, n); got != want {
			t.Errorf("ChildAt(%d) = %d, want %d", i, got, want)
		}
	}

	SetLeftChild(p, 1, 42)
	if _, lc := ReadInternalCell(p, 1); lc != 42 {
		t.Errorf("SetLeftChild not applied, got %d", lc)
	}
	if got := FindIdx(p, 150); got != 1 {
		t.Errorf("FindIdx(150) = %d, want 1", got)
	}
}

func TestFreeSpace(t *testing.T) {
	p := new(pager.Page)
	InitPage(p, TypeLeaf)

	before := FreeSpace(p, 0)
	AppendLeafCell(p, 1, make([]byte, 100))
	after := FreeSpace(p, 1)

	if want := before - LeafCellSize(make([]byte, 100)) - CellPtrSize; after != want {
		t.Errorf("FreeSpace after insert = %d, want %d", after, want)
	}
}
