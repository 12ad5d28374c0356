package index

import (
	"cmp"
	"slices"
	"testing"

	"github.com/btree-query-bench/scancursor/dbms/index/btree"
	"github.com/btree-query-bench/scancursor/dbms/row"
	"github.com/cockroachdb/errors"
)

func TestCursorIterator(t *testing.T) {
	m := btree.NewMap[int64, row.Row](cmp.Compare[int64], btree.WithMaxKeys[row.Row](4))
	for k := int64(0); k < 40; k += 2 {
		m.Put(k, row.FromStrings("v"))
	}

	for _, test := range []struct {
		name       string
		start, end int64
		want       []int64
	}{
		{"inside", 5, 11, []int64{6, 8, 10}},
		{"inclusive end", 6, 10, []int64{6, 8, 10}},
		{"past the last key", 34, 100, []int64{34, 36, 38}},
		{"empty range", 11, 11, nil},
		{"inverted", 20, 10, nil},
	} {
		t.Run(test.name, func(t *testing.T) {
			c, err := m.Cursor(btree.IterationParameters[int64]{}.WithFrom(test.start))
			if err != nil {
				t.Fatalf("Failed to open cursor: %v", err)
			}
			it := NewCursorIterator(c, test.end)
			defer it.Close()

			var got []int64
			for it.Next() {
				got = append(got, it.Key())
				if !it.Value().Equal(row.FromStrings("v")) {
					t.Errorf("unexpected value %v for key %d", it.Value(), it.Key())
				}
			}
			if err := it.Error(); err != nil {
				t.Fatalf("Iterator failed: %v", err)
			}
			if !slices.Equal(got, test.want) {
				t.Errorf("Got=%v, Want=%v", got, test.want)
			}
			if it.Next() {
				t.Errorf("Next after the end returned true")
			}
		})
	}
}

// flakyLeaf/flakyNode build a two-leaf tree whose second leaf cannot be
// loaded.
type flakyLeaf struct{ keys []int64 }

func (p *flakyLeaf) KeyCount() int                       { return len(p.keys) }
func (p *flakyLeaf) Key(i int) int64                     { return p.keys[i] }
func (p *flakyLeaf) Value(int) row.Row                   { return row.FromStrings("v") }
func (p *flakyLeaf) Values() []row.Row                   { return make([]row.Row, len(p.keys)) }
func (p *flakyLeaf) ProjectValue(i int, _ []int) row.Row { return p.Value(i) }

func (p *flakyLeaf) BinarySearch(k int64) int {
	return btree.SearchResult(slices.BinarySearch(p.keys, k))
}

type flakyNode struct{ first *flakyLeaf }

var errLoad = errors.New("load failed")

func (p *flakyNode) KeyCount() int { return 1 }
func (p *flakyNode) Key(int) int64 { return 10 }

func (p *flakyNode) BinarySearch(k int64) int {
	return btree.SearchResult(slices.BinarySearch([]int64{10}, k))
}

func (p *flakyNode) ChildPage(i int) (btree.Page[int64, row.Row], error) {
	if i == 0 {
		return p.first, nil
	}
	return nil, errLoad
}

type flakyMap struct{}

func (flakyMap) ChildPageCount(btree.InternalPage[int64, row.Row]) int { return 2 }

func TestCursorIteratorError(t *testing.T) {
	root := &flakyNode{first: &flakyLeaf{keys: []int64{1, 2}}}
	c, err := btree.NewCursor[int64, row.Row](flakyMap{}, root, btree.IterationParameters[int64]{})
	if err != nil {
		t.Fatalf("Failed to open cursor: %v", err)
	}

	it := NewCursorIterator(c, 100)
	var got []int64
	for it.Next() {
		got = append(got, it.Key())
	}
	if !slices.Equal(got, []int64{1, 2}) {
		t.Errorf("entries before the failure: Got=%v", got)
	}
	if !errors.Is(it.Error(), errLoad) {
		t.Errorf("Error() = %v, want errLoad", it.Error())
	}
}
