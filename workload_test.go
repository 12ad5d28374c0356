package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btree-query-bench/scancursor/dbms/index/bptree"
	"github.com/btree-query-bench/scancursor/dbms/index/memtree"
)

func TestWorkloads(t *testing.T) {
	const n = 500
	tree := memtree.New(8)
	for k := int64(0); k < n; k++ {
		if err := tree.Insert(k, makeRow(k, "v")); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	for _, wType := range []WorkloadType{OLTP, OLAP, Reporting} {
		if err := ExecuteWorkload(tree, wType, 200, n); err != nil {
			t.Errorf("%s failed: %v", wType, err)
		}
	}
	if err := ExecuteWorkload(tree, FullScan, 1, n); err == nil {
		t.Errorf("ExecuteWorkload accepted a scan workload")
	}

	for _, wType := range []WorkloadType{FullScan, BatchScan} {
		rows, err := ExecuteScan(tree, wType)
		if err != nil {
			t.Fatalf("%s failed: %v", wType, err)
		}
		if rows != tree.Len() {
			t.Errorf("%s visited %d rows, want %d", wType, rows, tree.Len())
		}
	}
}

func TestRunSuite(t *testing.T) {
	tree, err := bptree.Open(filepath.Join(t.TempDir(), "suite"), 16)
	if err != nil {
		t.Fatalf("Failed to open tree: %v", err)
	}

	var results []BenchResult
	record := func(r BenchResult) error {
		results = append(results, r)
		return nil
	}
	if err := runSuite(record, "BPTree", "16", tree, 300); err != nil {
		t.Fatalf("runSuite failed: %v", err)
	}

	var ops []string
	for _, r := range results {
		ops = append(ops, r.Operation)
	}
	want := "Footprint_SteadyState,Workload_OLTP,Workload_OLAP,Workload_Range,Scan_Full,Scan_Batch"
	if got := strings.Join(ops, ","); got != want {
		t.Errorf("operations = %s, want %s", got, want)
	}

	dir := t.TempDir()
	plotPath := filepath.Join(dir, "latency.png")
	if err := RenderPlot(results, plotPath); err != nil {
		t.Fatalf("RenderPlot failed: %v", err)
	}
	if info, err := os.Stat(plotPath); err != nil || info.Size() == 0 {
		t.Errorf("plot not written: %v", err)
	}
	if err := RenderPlot(nil, plotPath); err == nil {
		t.Errorf("RenderPlot accepted no results")
	}

	f, err := os.Create(filepath.Join(dir, "results.csv"))
	if err != nil {
		t.Fatalf("Failed to create csv: %v", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := Record(w, results[0]); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Errorf("csv flush failed: %v", err)
	}
}

func TestSmoke(t *testing.T) {
	cfg := &Config{DataDir: t.TempDir(), CachePages: 8}
	if err := runSmoke(cfg); err != nil {
		t.Fatalf("runSmoke failed: %v", err)
	}
	dot, err := os.ReadFile(filepath.Join(cfg.DataDir, "smoke.dot"))
	if err != nil {
		t.Fatalf("DOT file missing: %v", err)
	}
	if !strings.Contains(string(dot), "(INTERNAL)") {
		t.Errorf("smoke tree never split")
	}
}
