package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/btree-query-bench/scancursor/dbms/index"
	"github.com/btree-query-bench/scancursor/dbms/index/bptree"
	"github.com/btree-query-bench/scancursor/dbms/index/lsm"
	"github.com/btree-query-bench/scancursor/dbms/index/memtree"
	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.LogFile != "" {
		if err := initLogRotator(cfg.LogFile); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		defer logRotator.Close()
	}
	setLogLevels(cfg.LogLevel)

	run := runBenchmark
	if cfg.Smoke {
		run = runSmoke
	}
	if err := run(cfg); err != nil {
		bnchLog.Errorf("%+v", err)
		if logRotator != nil {
			logRotator.Close()
		}
		os.Exit(1)
	}
}

func runBenchmark(cfg *Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return errors.Wrap(err, "create data dir")
	}
	f, err := os.Create(cfg.Out)
	if err != nil {
		return errors.Wrap(err, "create results file")
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}

	var results []BenchResult
	record := func(r BenchResult) error {
		results = append(results, r)
		return Record(w, r)
	}

	// --- 1. Sweep the in-memory tree over page degrees ---
	for _, d := range cfg.Degrees {
		if err := runSuite(record, "MemTree", strconv.Itoa(d), memtree.New(d), cfg.Scale); err != nil {
			return err
		}
	}

	// --- 2. Paged B+ tree ---
	base := filepath.Join(cfg.DataDir, "bench")
	if err := os.Remove(base + ".bpt"); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove old tree file")
	}
	bpt, err := bptree.Open(base, cfg.CachePages)
	if err != nil {
		return err
	}
	if err := runSuite(record, "BPTree", strconv.Itoa(cfg.CachePages), bpt, cfg.Scale); err != nil {
		return err
	}
	s := bpt.Stats()
	bnchLog.Infof("BPTree page cache: %d hits, %d misses, %d disk reads", s.Hits, s.Misses, s.DiskReads)

	// --- 3. Pebble baseline ---
	dir := filepath.Join(cfg.DataDir, "pebble")
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrap(err, "remove old pebble store")
	}
	db, err := lsm.Open(dir)
	if err != nil {
		return err
	}
	if err := runSuite(record, "Pebble", "default", db, cfg.Scale); err != nil {
		return err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "write results")
	}
	bnchLog.Infof("Benchmark complete, %d results written to %s", len(results), cfg.Out)

	if cfg.Plot != "" {
		if err := RenderPlot(results, cfg.Plot); err != nil {
			return err
		}
		bnchLog.Infof("Latency chart written to %s", cfg.Plot)
	}
	return nil
}

// runSuite loads n rows into idx, runs every workload against it and closes it.
func runSuite(record func(BenchResult) error, name, conf string, idx index.Index, n int) (err error) {
	defer func() { err = errors.CombineErrors(err, idx.Close()) }()
	bnchLog.Infof("Testing %s (Config: %s)", name, conf)

	// 1. Pure Insert (Initial Load)
	start := time.Now()
	for k := 0; k < n; k++ {
		if err := idx.Insert(int64(k), makeRow(int64(k), "v")); err != nil {
			return errors.Wrapf(err, "%s: load", name)
		}
	}
	insertLatency := time.Since(start).Nanoseconds() / int64(n)

	// Measure memory after load but before workloads
	stats := GetDetailedMem()
	if err := record(BenchResult{name, conf, "Footprint_SteadyState", insertLatency, stats.AllocMB, stats.HeapObjects}); err != nil {
		return err
	}

	ops := max(n/2, 1)
	for _, wl := range []struct {
		op    string
		wType WorkloadType
		ops   int
	}{
		{"Workload_OLTP", OLTP, ops},
		{"Workload_OLAP", OLAP, ops},
		{"Workload_Range", Reporting, 100},
	} {
		start = time.Now()
		if err := ExecuteWorkload(idx, wl.wType, wl.ops, n); err != nil {
			return errors.Wrapf(err, "%s", name)
		}
		lat := time.Since(start).Nanoseconds() / int64(wl.ops)
		if err := record(BenchResult{name, conf, wl.op, lat, GetDetailedMem().AllocMB, 0}); err != nil {
			return err
		}
	}

	scanner, ok := idx.(index.Scanner)
	if !ok {
		return nil
	}
	for _, wl := range []struct {
		op    string
		wType WorkloadType
	}{
		{"Scan_Full", FullScan},
		{"Scan_Batch", BatchScan},
	} {
		start = time.Now()
		rows, err := ExecuteScan(scanner, wl.wType)
		if err != nil {
			return errors.Wrapf(err, "%s", name)
		}
		elapsed := time.Since(start)
		bnchLog.Debugf("%s %s visited %d rows in %v", name, wl.op, rows, elapsed)
		lat := elapsed.Nanoseconds() / int64(max(rows, 1))
		if err := record(BenchResult{name, conf, wl.op, lat, GetDetailedMem().AllocMB, 0}); err != nil {
			return err
		}
	}
	return nil
}
