package btree

import "github.com/cockroachdb/errors"

// ErrExhausted is returned by Next once the cursor has no entries left.
var ErrExhausted = errors.New("btree: cursor exhausted")

type entry[K, V any] struct {
	key   K
	value V
}

// Cursor iterates over the entries of a tree in ascending key order.
//
// The cursor always holds one entry of lookahead: HasNext reports whether it
// is present and Next moves it into the slot read by Key and Value.
// Alternatively NextBatch hands out whole leaves. The two protocols share the
// position stack and must not be mixed on one cursor.
//
// The tree must not change while a cursor is open on it. A Cursor is not
// safe for concurrent use.
type Cursor[K, V any] struct {
	m      Map[K, V]
	params IterationParameters[K]
	stack  posStack[K, V]

	current    entry[K, V]
	hasCurrent bool
	last       entry[K, V]
}

// NewCursor positions a cursor on the first entry of root whose key is >=
// params.From, or on the first entry when no start key is set. A nil root is
// an empty tree.
func NewCursor[K, V any](m Map[K, V], root Page[K, V], params IterationParameters[K]) (*Cursor[K, V], error) {
	c := &Cursor[K, V]{m: m, params: params}
	if root != nil {
		from, ok := params.From()
		if err := c.min(root, from, ok); err != nil {
			return nil, err
		}
	}
	if err := c.fetchNext(); err != nil {
		return nil, err
	}
	return c, nil
}

// Key returns the key most recently returned by Next.
func (c *Cursor[K, V]) Key() K { return c.last.key }

// Value returns the value belonging to Key, projected if the cursor was
// built with columns.
func (c *Cursor[K, V]) Value() V { return c.last.value }

func (c *Cursor[K, V]) HasNext() bool { return c.hasCurrent }

// Next advances to the next entry and returns its key. On a page load error
// the returned key is still valid; the error belongs to the lookahead.
func (c *Cursor[K, V]) Next() (K, error) {
	if !c.hasCurrent {
		var zero K
		return zero, ErrExhausted
	}
	c.last = c.current
	if err := c.fetchNext(); err != nil {
		return c.last.key, err
	}
	return c.last.key, nil
}

// HasNextBatch reports whether NextBatch has a leaf to return.
func (c *Cursor[K, V]) HasNextBatch() bool { return !c.stack.empty() }

// NextBatch returns every value of the current leaf, unprojected and
// regardless of how far Next had read into it, then moves to the next leaf.
// It returns nil once the cursor is exhausted.
func (c *Cursor[K, V]) NextBatch() ([]V, error) {
	if c.stack.empty() {
		return nil, nil
	}
	top := c.stack.top()
	if top.leaf == nil {
		return nil, errors.AssertionFailedf("btree: batch read positioned on internal page")
	}
	values := top.leaf.Values()
	if err := c.advanceBatch(); err != nil {
		return values, err
	}
	return values, nil
}

// advanceBatch moves to the next leaf holding at least one entry, so
// HasNextBatch never promises an empty batch.
func (c *Cursor[K, V]) advanceBatch() error {
	for {
		if err := c.advance(); err != nil {
			return err
		}
		if c.stack.empty() {
			return nil
		}
		if top := c.stack.top(); top.leaf == nil || top.leaf.KeyCount() > 0 {
			return nil
		}
	}
}

// min pushes the path from p down to the first leaf position whose key is
// >= key, keeping the frames already on the stack.
func (c *Cursor[K, V]) min(p Page[K, V], key K, hasKey bool) error {
	for {
		switch pg := p.(type) {
		case LeafPage[K, V]:
			x := 0
			if hasKey {
				x = pg.BinarySearch(key)
				if x < 0 {
					x = -x - 1
				}
			}
			c.stack.pushLeaf(pg, x)
			return nil

		case InternalPage[K, V]:
			x := 0
			if hasKey {
				x = pg.BinarySearch(key)
				if x < 0 {
					x = -x - 1
				} else {
					x++
				}
			}
			c.stack.pushNode(pg, x+1)
			child, err := pg.ChildPage(x)
			if err != nil {
				return err
			}
			p = child

		default:
			return errors.AssertionFailedf("btree: page %T is neither leaf nor internal", p)
		}
	}
}

// fetchNext fills the lookahead slot with the next entry, or clears it when
// the stack runs out.
func (c *Cursor[K, V]) fetchNext() error {
	for !c.stack.empty() {
		top := c.stack.top()
		if top.leaf != nil && top.index < top.leaf.KeyCount() {
			i := top.index
			top.index++
			c.current = entry[K, V]{key: top.leaf.Key(i), value: c.value(top.leaf, i)}
			c.hasCurrent = true
			return nil
		}
		if err := c.advance(); err != nil {
			return err
		}
	}
	c.current = entry[K, V]{}
	c.hasCurrent = false
	return nil
}

// advance pops the top frame and descends into the next unvisited subtree,
// popping further while ancestors have no children left.
func (c *Cursor[K, V]) advance() error {
	for {
		c.stack.pop()
		if c.stack.empty() {
			return nil
		}
		top := c.stack.top()
		if top.node == nil || top.index >= c.m.ChildPageCount(top.node) {
			continue
		}
		child, err := top.node.ChildPage(top.index)
		if err != nil {
			return err
		}
		top.index++
		var zero K
		return c.min(child, zero, false)
	}
}

func (c *Cursor[K, V]) value(p LeafPage[K, V], i int) V {
	if c.params.AllColumns() {
		return p.Value(i)
	}
	return p.ProjectValue(i, c.params.columns)
}
