package main

import (
	"math/rand"
	"strconv"

	"github.com/btree-query-bench/scancursor/dbms/index"
	"github.com/btree-query-bench/scancursor/dbms/index/btree"
	"github.com/btree-query-bench/scancursor/dbms/row"
	"github.com/cockroachdb/errors"
)

type WorkloadType string

const (
	OLTP      WorkloadType = "OLTP (90/10)"
	OLAP      WorkloadType = "OLAP (10/90)"
	Reporting WorkloadType = "Reporting (Range)"

	// Cursor workloads, for indexes that implement index.Scanner.
	FullScan  WorkloadType = "FullScan (projected)"
	BatchScan WorkloadType = "BatchScan (leaves)"
)

const reportingSpan = 100

// makeRow is the row stored under key k: the key as text and a payload column.
func makeRow(k int64, payload string) row.Row {
	return row.FromStrings(strconv.FormatInt(k, 10), payload)
}

// ExecuteWorkload runs a mixed distribution of ops over keys in [0, keySpace).
func ExecuteWorkload(idx index.Index, wType WorkloadType, ops, keySpace int) error {
	for i := 0; i < ops; i++ {
		choice := rand.Intn(100)
		key := int64(rand.Intn(keySpace))

		var err error
		switch wType {
		case OLTP:
			if choice < 90 {
				_, err = idx.Get(key)
			} else {
				err = idx.Insert(key, makeRow(key, "x"))
			}
		case OLAP:
			if choice < 10 {
				_, err = idx.Get(key)
			} else {
				err = idx.Insert(key, makeRow(key, "x"))
			}
		case Reporting:
			err = drainRange(idx, key, key+reportingSpan)
		default:
			return errors.Newf("workload %q is not a point/range workload", wType)
		}
		if err != nil && !errors.Is(err, index.ErrNotFound) {
			return errors.Wrapf(err, "%s op %d", wType, i)
		}
	}
	return nil
}

func drainRange(idx index.Index, start, end int64) error {
	it, err := idx.Range(start, end)
	if err != nil {
		return err
	}
	for it.Next() {
	}
	return errors.CombineErrors(it.Error(), it.Close())
}

// ExecuteScan drains a full cursor over s and returns the number of rows
// visited. FullScan reads entry by entry, projecting the payload column;
// BatchScan takes whole leaves.
func ExecuteScan(s index.Scanner, wType WorkloadType) (int, error) {
	var params btree.IterationParameters[int64]
	if wType == FullScan {
		params = params.WithColumns(1)
	}
	c, err := s.Scan(params)
	if err != nil {
		return 0, err
	}

	n := 0
	switch wType {
	case FullScan:
		for c.HasNext() {
			if _, err := c.Next(); err != nil {
				return n, err
			}
			n++
		}
	case BatchScan:
		for c.HasNextBatch() {
			rows, err := c.NextBatch()
			n += len(rows)
			if err != nil {
				return n, err
			}
		}
	default:
		return 0, errors.Newf("workload %q is not a scan workload", wType)
	}
	return n, nil
}
