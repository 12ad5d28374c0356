// Package btree implements ordered iteration over a paged B-tree.
//
// The cursor reads the tree through the narrow contracts below and never
// mutates a page. A tree is a root Page; every page is either a LeafPage,
// holding keys and their values, or an InternalPage, holding separator keys
// and one more child than keys. Keys equal to a separator live in the
// subtree to its right.
package btree

// Page is a resident, read-only tree node.
type Page[K, V any] interface {
	KeyCount() int
	Key(i int) K
	// BinarySearch returns the index of key if present, otherwise
	// -(insertion point)-1.
	BinarySearch(key K) int
}

// LeafPage is a page holding stored entries.
type LeafPage[K, V any] interface {
	Page[K, V]
	// Value returns the full value at index i.
	Value(i int) V
	// ProjectValue returns the value at index i restricted to columns.
	ProjectValue(i int, columns []int) V
	// Values returns every value of the leaf, unprojected, in key order.
	Values() []V
}

// InternalPage is a page routing to child pages.
type InternalPage[K, V any] interface {
	Page[K, V]
	// ChildPage loads child i. Loading may block on I/O and may fail.
	ChildPage(i int) (Page[K, V], error)
}

// Map answers structural questions the pages cannot answer themselves.
type Map[K, V any] interface {
	// ChildPageCount is the authoritative number of children of p.
	ChildPageCount(p InternalPage[K, V]) int
}

// SearchResult encodes the outcome of a binary search in the form expected
// by Page.BinarySearch.
func SearchResult(i int, found bool) int {
	if found {
		return i
	}
	return -i - 1
}
