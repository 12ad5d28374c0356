package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/btree-query-bench/scancursor/dbms/index/bptree"
	"github.com/btree-query-bench/scancursor/dbms/index/btree"
	"github.com/btree-query-bench/scancursor/dbms/row"
	"github.com/cockroachdb/errors"
)

const smokeKeys = 60

// runSmoke grows a small paged tree past a single leaf, checks lookups and
// scans across leaf boundaries, and dumps the page graph as DOT (and PNG when
// Graphviz is installed).
func runSmoke(cfg *Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return errors.Wrap(err, "create data dir")
	}
	base := filepath.Join(cfg.DataDir, "smoke")
	if err := os.Remove(base + ".bpt"); err != nil && !os.IsNotExist(err) {
		return err
	}
	t, err := bptree.Open(base, cfg.CachePages)
	if err != nil {
		return err
	}
	defer t.Close()

	// 512-byte rows leave room for about seven cells per page, so 60 keys
	// spread over well over a handful of leaves.
	large := strings.Repeat("X", 512)
	for k := int64(1); k <= smokeKeys; k++ {
		if err := t.Insert(k, row.FromStrings(large)); err != nil {
			return errors.Wrapf(err, "insert %d", k)
		}
	}
	bnchLog.Infof("Inserted %d keys", smokeKeys)

	r, err := t.Get(30)
	if err != nil {
		return errors.Wrap(err, "lookup 30")
	}
	if len(r) != 1 || len(r[0]) != len(large) {
		return errors.Newf("lookup 30: row of %d columns, want one 512-byte column", len(r))
	}

	it, err := t.Range(5, 55)
	if err != nil {
		return err
	}
	count := 0
	for it.Next() {
		count++
	}
	if err := errors.CombineErrors(it.Error(), it.Close()); err != nil {
		return errors.Wrap(err, "range scan")
	}
	if count != 51 {
		return errors.Newf("range scan found %d keys, want 51", count)
	}

	c, err := t.Scan(btree.IterationParameters[int64]{})
	if err != nil {
		return err
	}
	leaves, rows := 0, 0
	for c.HasNextBatch() {
		batch, err := c.NextBatch()
		if err != nil {
			return errors.Wrap(err, "batch scan")
		}
		leaves++
		rows += len(batch)
	}
	if rows != smokeKeys {
		return errors.Newf("batch scan found %d rows, want %d", rows, smokeKeys)
	}
	bnchLog.Infof("Lookups and scans OK: %d rows in %d leaves", rows, leaves)

	dotPath := base + ".dot"
	f, err := os.Create(dotPath)
	if err != nil {
		return err
	}
	if err := errors.CombineErrors(t.ExportDOT(f), f.Close()); err != nil {
		return errors.Wrap(err, "export DOT")
	}
	bnchLog.Infof("Page graph written to %s", dotPath)

	if _, err := exec.LookPath("dot"); err != nil {
		bnchLog.Debugf("graphviz not installed, skipping PNG")
		return nil
	}
	pngPath := base + ".png"
	if out, err := exec.Command("dot", "-Tpng", dotPath, "-o", pngPath).CombinedOutput(); err != nil {
		bnchLog.Warnf("graphviz failed: %v: %s", err, out)
	}
	return nil
}
