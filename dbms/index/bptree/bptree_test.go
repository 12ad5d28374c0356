package bptree

import (
	"bytes"
	"fmt"
	"math/rand"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/btree-query-bench/scancursor/dbms/index"
	"github.com/btree-query-bench/scancursor/dbms/index/btree"
	"github.com/btree-query-bench/scancursor/dbms/row"
	"github.com/cockroachdb/errors"
)

func openTree(t *testing.T, opts ...Option) *BPTree {
	t.Helper()
	tree, err := Open(filepath.Join(t.TempDir(), "test"), 64, opts...)
	if err != nil {
		t.Fatalf("Failed to open tree: %v", err)
	}
	t.Cleanup(func() { tree.Close() })
	return tree
}

func rowFor(k int64) row.Row {
	return row.FromStrings(fmt.Sprintf("key-%d", k), fmt.Sprintf("payload-%d", k*7))
}

func scanAll(t *testing.T, tree *BPTree, params btree.IterationParameters[int64]) ([]int64, []row.Row) {
	t.Helper()
	c, err := tree.Scan(params)
	if err != nil {
		t.Fatalf("Failed to open cursor: %v", err)
	}
	var keys []int64
	var rows []row.Row
	for c.HasNext() {
		k, err := c.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		keys = append(keys, k)
		rows = append(rows, c.Value())
	}
	return keys, rows
}

func height(t *testing.T, tree *BPTree) int {
	t.Helper()
	p, err := tree.loadPage(uint64(tree.rootID))
	if err != nil {
		t.Fatalf("Failed to load root: %v", err)
	}
	h := 1
	for {
		ip, ok := p.(*internalPage)
		if !ok {
			return h
		}
		if p, err = ip.ChildPage(0); err != nil {
			t.Fatalf("Failed to load child: %v", err)
		}
		h++
	}
}

func insertRandom(t *testing.T, tree *BPTree, n int, seed int64) []int64 {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	seen := make(map[int64]bool)
	var keys []int64
	for len(keys) < n {
		k := rng.Int63n(int64(n) * 10)
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
		if err := tree.Insert(k, rowFor(k)); err != nil {
			t.Fatalf("Insert(%d) failed: %v", k, err)
		}
	}
	slices.Sort(keys)
	return keys
}

func TestInsertGet(t *testing.T) {
	tree := openTree(t, WithMaxKeys(4))
	keys := insertRandom(t, tree, 500, 1)

	for _, k := range keys {
		got, err := tree.Get(k)
		if err != nil {
			t.Fatalf("Get(%d) failed: %v", k, err)
		}
		if !got.Equal(rowFor(k)) {
			t.Fatalf("Get(%d) = %q", k, got)
		}
	}
	if _, err := tree.Get(-1); !errors.Is(err, index.ErrNotFound) {
		t.Errorf("Get(-1) error = %v, want ErrNotFound", err)
	}
	if h := height(t, tree); h < 3 {
		t.Errorf("tree height = %d, want at least 3", h)
	}
}

func TestScan(t *testing.T) {
	tree := openTree(t, WithMaxKeys(4))
	keys := insertRandom(t, tree, 500, 2)

	got, rows := scanAll(t, tree, btree.IterationParameters[int64]{})
	if !slices.Equal(got, keys) {
		t.Fatalf("full scan returned %d keys, want %d in order", len(got), len(keys))
	}
	for i, r := range rows {
		if !r.Equal(rowFor(got[i])) {
			t.Fatalf("row for %d = %q", got[i], r)
		}
	}

	for _, from := range []int64{-5, keys[0], keys[17], keys[17] + 1, keys[len(keys)-1], keys[len(keys)-1] + 1} {
		i, _ := slices.BinarySearch(keys, from)
		got, _ := scanAll(t, tree, btree.IterationParameters[int64]{}.WithFrom(from))
		if !slices.Equal(got, keys[i:]) {
			t.Errorf("scan from %d: got %d keys, want %d", from, len(got), len(keys)-i)
		}
	}
}

func TestScanPageCapacity(t *testing.T) {
	tree := openTree(t)
	pad := strings.Repeat("x", 300)
	for k := int64(0); k < 2000; k++ {
		if err := tree.Insert(k, row.FromStrings(pad, fmt.Sprint(k))); err != nil {
			t.Fatalf("Insert(%d) failed: %v", k, err)
		}
	}
	keys, rows := scanAll(t, tree, btree.IterationParameters[int64]{}.WithColumns(1))
	if len(keys) != 2000 {
		t.Fatalf("scan returned %d keys, want 2000", len(keys))
	}
	for i, r := range rows {
		if len(r) != 1 || string(r[0]) != fmt.Sprint(keys[i]) {
			t.Fatalf("projected row %d = %q", keys[i], r)
		}
	}
	if h := height(t, tree); h < 2 {
		t.Errorf("tree height = %d, want at least 2", h)
	}
}

func TestBatch(t *testing.T) {
	tree := openTree(t, WithMaxKeys(4))
	keys := insertRandom(t, tree, 300, 3)

	c, err := tree.Scan(btree.IterationParameters[int64]{}.WithColumns(0))
	if err != nil {
		t.Fatalf("Failed to open cursor: %v", err)
	}
	var all []row.Row
	for c.HasNextBatch() {
		batch, err := c.NextBatch()
		if err != nil {
			t.Fatalf("NextBatch failed: %v", err)
		}
		if len(batch) > 4 {
			t.Errorf("batch of %d rows exceeds a leaf", len(batch))
		}
		all = append(all, batch...)
	}
	if len(all) != len(keys) {
		t.Fatalf("batches returned %d rows, want %d", len(all), len(keys))
	}
	for i, r := range all {
		if !r.Equal(rowFor(keys[i])) {
			t.Fatalf("batch row %d = %q, want unprojected %q", i, r, rowFor(keys[i]))
		}
	}
}

func TestOverwrite(t *testing.T) {
	tree := openTree(t, WithMaxKeys(4))
	for k := int64(0); k < 50; k++ {
		if err := tree.Insert(k, rowFor(k)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	shorter := row.FromStrings("s")
	longer := row.FromStrings(strings.Repeat("L", 200), "more")
	if err := tree.Insert(10, shorter); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := tree.Insert(20, longer); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	for k, want := range map[int64]row.Row{10: shorter, 20: longer, 30: rowFor(30)} {
		got, err := tree.Get(k)
		if err != nil || !got.Equal(want) {
			t.Errorf("Get(%d) = (%q, %v), want %q", k, got, err, want)
		}
	}
	if keys, _ := scanAll(t, tree, btree.IterationParameters[int64]{}); len(keys) != 50 {
		t.Errorf("overwrites changed the key count to %d", len(keys))
	}
}

func TestValueTooLarge(t *testing.T) {
	tree := openTree(t)
	err := tree.Insert(1, row.FromStrings(strings.Repeat("z", 2000)))
	if !errors.Is(err, ErrValueTooLarge) {
		t.Errorf("Insert error = %v, want ErrValueTooLarge", err)
	}
	if _, err := tree.Get(1); !errors.Is(err, index.ErrNotFound) {
		t.Errorf("rejected row is readable: %v", err)
	}
}

func TestDeleteLeavesEmptyLeaves(t *testing.T) {
	tree := openTree(t, WithMaxKeys(4))
	for k := int64(0); k < 100; k++ {
		if err := tree.Insert(k, rowFor(k)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	for k := int64(20); k < 80; k++ {
		if err := tree.Delete(k); err != nil {
			t.Fatalf("Delete(%d) failed: %v", k, err)
		}
	}
	if err := tree.Delete(50); err != nil {
		t.Errorf("Delete of a missing key failed: %v", err)
	}

	var want []int64
	for k := int64(0); k < 100; k++ {
		if k < 20 || k >= 80 {
			want = append(want, k)
		}
	}
	if got, _ := scanAll(t, tree, btree.IterationParameters[int64]{}); !slices.Equal(got, want) {
		t.Errorf("Got=%v, Want=%v", got, want)
	}
	if got, _ := scanAll(t, tree, btree.IterationParameters[int64]{}.WithFrom(40)); !slices.Equal(got, want[20:]) {
		t.Errorf("scan from deleted range: Got=%v, Want=%v", got, want[20:])
	}
}

func TestRange(t *testing.T) {
	tree := openTree(t, WithMaxKeys(4))
	for k := int64(0); k < 200; k += 2 {
		if err := tree.Insert(k, rowFor(k)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	for _, test := range []struct {
		start, end int64
		want       int
	}{
		{0, 198, 100},
		{1, 9, 4},
		{50, 50, 1},
		{51, 51, 0},
		{190, 1000, 5},
	} {
		t.Run(fmt.Sprintf("%d-%d", test.start, test.end), func(t *testing.T) {
			it, err := tree.Range(test.start, test.end)
			if err != nil {
				t.Fatalf("Range failed: %v", err)
			}
			defer it.Close()
			n := 0
			for it.Next() {
				if it.Key() < test.start || it.Key() > test.end {
					t.Errorf("key %d outside range", it.Key())
				}
				if !it.Value().Equal(rowFor(it.Key())) {
					t.Errorf("value mismatch for %d", it.Key())
				}
				n++
			}
			if err := it.Error(); err != nil {
				t.Fatalf("Iterator failed: %v", err)
			}
			if n != test.want {
				t.Errorf("Range returned %d entries, want %d", n, test.want)
			}
		})
	}
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen")
	tree, err := Open(path, 16, WithMaxKeys(4))
	if err != nil {
		t.Fatalf("Failed to open tree: %v", err)
	}
	for k := int64(0); k < 100; k++ {
		if err := tree.Insert(k, rowFor(k)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := tree.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tree, err = Open(path, 16, WithMaxKeys(4))
	if err != nil {
		t.Fatalf("Failed to reopen tree: %v", err)
	}
	defer tree.Close()

	keys, _ := scanAll(t, tree, btree.IterationParameters[int64]{})
	if len(keys) != 100 || keys[0] != 0 || keys[99] != 99 {
		t.Errorf("reopened tree scanned %d keys", len(keys))
	}
	if s := tree.Stats(); s.Hits+s.Misses == 0 {
		t.Errorf("pager stats not recorded: %+v", s)
	}
}

func TestExportDOT(t *testing.T) {
	tree := openTree(t, WithMaxKeys(4))
	for k := int64(0); k < 30; k++ {
		if err := tree.Insert(k, rowFor(k)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := tree.ExportDOT(&buf); err != nil {
		t.Fatalf("ExportDOT failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"digraph BPTree {", "(INTERNAL)", "(LEAF)", ":next ->", "rank=same"} {
		if !strings.Contains(out, want) {
			t.Errorf("DOT output missing %q", want)
		}
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Errorf("DOT output not terminated")
	}
}
