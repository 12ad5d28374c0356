package btree

// cursorPos is one frame of the root-to-leaf path. Exactly one of leaf and
// node is set.
//
// In a leaf frame, index is the next entry to emit; index == KeyCount means
// the leaf is used up. In an internal frame, index is the next child to
// descend into once the current subtree is used up.
type cursorPos[K, V any] struct {
	leaf  LeafPage[K, V]
	node  InternalPage[K, V]
	index int
}

// posStack holds the frames, root first.
type posStack[K, V any] []cursorPos[K, V]

func (s *posStack[K, V]) pushLeaf(p LeafPage[K, V], index int) {
	*s = append(*s, cursorPos[K, V]{leaf: p, index: index})
}

func (s *posStack[K, V]) pushNode(p InternalPage[K, V], index int) {
	*s = append(*s, cursorPos[K, V]{node: p, index: index})
}

func (s *posStack[K, V]) pop() {
	old := *s
	old[len(old)-1] = cursorPos[K, V]{}
	*s = old[:len(old)-1]
}

// top returns the innermost frame. The pointer is invalidated by the next
// push.
func (s posStack[K, V]) top() *cursorPos[K, V] {
	return &s[len(s)-1]
}

func (s posStack[K, V]) empty() bool { return len(s) == 0 }
