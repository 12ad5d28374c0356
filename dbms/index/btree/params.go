package btree

import "slices"

// IterationParameters configures one cursor. The zero value scans the whole
// tree and returns full values.
type IterationParameters[K any] struct {
	from    K
	hasFrom bool
	project bool
	columns []int
}

// WithFrom returns a copy of p that starts at the first key >= key.
func (p IterationParameters[K]) WithFrom(key K) IterationParameters[K] {
	p.from = key
	p.hasFrom = true
	return p
}

// WithColumns returns a copy of p that projects values to columns.
func (p IterationParameters[K]) WithColumns(columns ...int) IterationParameters[K] {
	p.project = true
	p.columns = slices.Clone(columns)
	return p
}

// From returns the starting key and whether one is set. An unset key is
// not the same as a key below every stored key: without one the descent
// never searches at all.
func (p IterationParameters[K]) From() (K, bool) {
	return p.from, p.hasFrom
}

func (p IterationParameters[K]) AllColumns() bool {
	return !p.project
}

// ColumnIndexes returns the projected columns; nil when AllColumns.
func (p IterationParameters[K]) ColumnIndexes() []int {
	if !p.project {
		return nil
	}
	return slices.Clone(p.columns)
}
