package btree

import (
	"slices"
	"sync"
)

const (
	DefaultMaxKeys = 32
	minMaxKeys     = 3
)

// BTreeMap is an in-memory B+ tree whose pages are never modified once
// published: writers copy the root-to-leaf path they touch, so a cursor keeps
// reading the snapshot it was opened on.
type BTreeMap[K, V any] struct {
	mu      sync.RWMutex
	root    Page[K, V]
	size    int
	cmp     func(a, b K) int
	maxKeys int
	project func(v V, columns []int) V
}

type MapOption[V any] func(*mapOptions[V])

type mapOptions[V any] struct {
	maxKeys int
	project func(v V, columns []int) V
}

// WithMaxKeys bounds the number of keys per page before it splits.
func WithMaxKeys[V any](n int) MapOption[V] {
	return func(o *mapOptions[V]) { o.maxKeys = n }
}

// WithProjector sets how values are restricted to a column subset. Without
// one, projection returns values unchanged.
func WithProjector[V any](fn func(v V, columns []int) V) MapOption[V] {
	return func(o *mapOptions[V]) { o.project = fn }
}

func NewMap[K, V any](cmp func(a, b K) int, opts ...MapOption[V]) *BTreeMap[K, V] {
	o := mapOptions[V]{
		maxKeys: DefaultMaxKeys,
		project: func(v V, _ []int) V { return v },
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxKeys < minMaxKeys {
		o.maxKeys = minMaxKeys
	}
	return &BTreeMap[K, V]{cmp: cmp, maxKeys: o.maxKeys, project: o.project}
}

// ─── Pages ────────────────────────────────────────────────────────────────────

type memLeaf[K, V any] struct {
	m      *BTreeMap[K, V]
	keys   []K
	values []V
}

func (p *memLeaf[K, V]) KeyCount() int { return len(p.keys) }
func (p *memLeaf[K, V]) Key(i int) K   { return p.keys[i] }
func (p *memLeaf[K, V]) Value(i int) V { return p.values[i] }
func (p *memLeaf[K, V]) Values() []V   { return p.values }

func (p *memLeaf[K, V]) ProjectValue(i int, columns []int) V {
	return p.m.project(p.values[i], columns)
}

func (p *memLeaf[K, V]) BinarySearch(key K) int {
	return SearchResult(slices.BinarySearchFunc(p.keys, key, p.m.cmp))
}

func (p *memLeaf[K, V]) clone() *memLeaf[K, V] {
	return &memLeaf[K, V]{m: p.m, keys: slices.Clone(p.keys), values: slices.Clone(p.values)}
}

type memInternal[K, V any] struct {
	m        *BTreeMap[K, V]
	keys     []K
	children []Page[K, V]
}

func (p *memInternal[K, V]) KeyCount() int { return len(p.keys) }
func (p *memInternal[K, V]) Key(i int) K   { return p.keys[i] }

func (p *memInternal[K, V]) ChildPage(i int) (Page[K, V], error) {
	return p.children[i], nil
}

func (p *memInternal[K, V]) BinarySearch(key K) int {
	return SearchResult(slices.BinarySearchFunc(p.keys, key, p.m.cmp))
}

func (p *memInternal[K, V]) clone() *memInternal[K, V] {
	return &memInternal[K, V]{m: p.m, keys: slices.Clone(p.keys), children: slices.Clone(p.children)}
}

// childIndex picks the child whose subtree holds key.
func (p *memInternal[K, V]) childIndex(key K) int {
	i, found := slices.BinarySearchFunc(p.keys, key, p.m.cmp)
	if found {
		i++
	}
	return i
}

// ─── Map ──────────────────────────────────────────────────────────────────────

// Root returns the current root page, or nil for an empty map.
func (m *BTreeMap[K, V]) Root() Page[K, V] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root
}

func (m *BTreeMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *BTreeMap[K, V]) ChildPageCount(p InternalPage[K, V]) int {
	if n, ok := p.(*memInternal[K, V]); ok {
		return len(n.children)
	}
	return p.KeyCount() + 1
}

// Cursor opens a cursor on the current snapshot of the map.
func (m *BTreeMap[K, V]) Cursor(params IterationParameters[K]) (*Cursor[K, V], error) {
	return NewCursor[K, V](m, m.Root(), params)
}

func (m *BTreeMap[K, V]) Get(key K) (V, bool) {
	p := m.Root()
	for p != nil {
		switch n := p.(type) {
		case *memLeaf[K, V]:
			if i := n.BinarySearch(key); i >= 0 {
				return n.values[i], true
			}
			p = nil
		case *memInternal[K, V]:
			p = n.children[n.childIndex(key)]
		default:
			p = nil
		}
	}
	var zero V
	return zero, false
}

// Put inserts or replaces the value for key.
func (m *BTreeMap[K, V]) Put(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.root == nil {
		m.root = &memLeaf[K, V]{m: m, keys: []K{key}, values: []V{value}}
		m.size = 1
		return
	}

	root, sep, right, added := m.insert(m.root, key, value)
	if right != nil {
		root = &memInternal[K, V]{m: m, keys: []K{sep}, children: []Page[K, V]{root, right}}
		log.Debugf("root split, tree grows to a new level")
	}
	m.root = root
	if added {
		m.size++
	}
}

// insert returns the copied page replacing p and, if it split, the separator
// and the new right sibling.
func (m *BTreeMap[K, V]) insert(p Page[K, V], key K, value V) (Page[K, V], K, Page[K, V], bool) {
	var zero K
	switch n := p.(type) {
	case *memLeaf[K, V]:
		c := n.clone()
		i, found := slices.BinarySearchFunc(c.keys, key, m.cmp)
		if found {
			c.values[i] = value
			return c, zero, nil, false
		}
		c.keys = slices.Insert(c.keys, i, key)
		c.values = slices.Insert(c.values, i, value)
		if len(c.keys) <= m.maxKeys {
			return c, zero, nil, true
		}
		// copy-up: the right half's first key becomes the separator
		mid := len(c.keys) / 2
		right := &memLeaf[K, V]{m: m, keys: slices.Clone(c.keys[mid:]), values: slices.Clone(c.values[mid:])}
		c.keys, c.values = c.keys[:mid:mid], c.values[:mid:mid]
		return c, right.keys[0], right, true

	case *memInternal[K, V]:
		i := n.childIndex(key)
		child, sep, right, added := m.insert(n.children[i], key, value)
		c := n.clone()
		c.children[i] = child
		if right == nil {
			return c, zero, nil, added
		}
		c.keys = slices.Insert(c.keys, i, sep)
		c.children = slices.Insert(c.children, i+1, right)
		if len(c.keys) <= m.maxKeys {
			return c, zero, nil, added
		}
		// push-up: the median leaves this level
		mid := len(c.keys) / 2
		promote := c.keys[mid]
		r := &memInternal[K, V]{m: m, keys: slices.Clone(c.keys[mid+1:]), children: slices.Clone(c.children[mid+1:])}
		c.keys, c.children = c.keys[:mid:mid], c.children[:mid+1:mid+1]
		log.Debugf("internal split at %d keys", mid)
		return c, promote, r, added
	}
	panic("btree: unknown page type in map")
}

// Delete removes key from its leaf. Pages are not merged, so a leaf may end
// up empty; cursors step over it.
func (m *BTreeMap[K, V]) Delete(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.root == nil {
		return false
	}
	root, ok := m.remove(m.root, key)
	if !ok {
		return false
	}
	m.root = root
	m.size--
	if m.size == 0 {
		m.root = nil
	}
	return true
}

func (m *BTreeMap[K, V]) remove(p Page[K, V], key K) (Page[K, V], bool) {
	switch n := p.(type) {
	case *memLeaf[K, V]:
		i, found := slices.BinarySearchFunc(n.keys, key, m.cmp)
		if !found {
			return p, false
		}
		c := n.clone()
		c.keys = slices.Delete(c.keys, i, i+1)
		c.values = slices.Delete(c.values, i, i+1)
		return c, true

	case *memInternal[K, V]:
		i := n.childIndex(key)
		child, ok := m.remove(n.children[i], key)
		if !ok {
			return p, false
		}
		c := n.clone()
		c.children[i] = child
		return c, true
	}
	panic("btree: unknown page type in map")
}
