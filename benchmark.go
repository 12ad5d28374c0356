package main

import (
	"encoding/csv"
	"runtime"
	"slices"
	"strconv"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var csvHeader = []string{"Structure", "Config", "TestType", "LatencyNs", "MemMB", "HeapObjects"}

// BenchResult is one CSV row. Objects tracks GC pressure.
type BenchResult struct {
	Name      string
	Config    string
	Operation string
	LatencyNs int64
	MemMB     uint64
	Objects   uint64
}

type MemoryStats struct {
	AllocMB      uint64
	TotalAllocMB uint64
	HeapObjects  uint64
}

// GetDetailedMem samples the heap after a forced GC, so only live data is
// counted.
func GetDetailedMem() MemoryStats {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocMB:      m.Alloc / 1024 / 1024,
		TotalAllocMB: m.TotalAlloc / 1024 / 1024,
		HeapObjects:  m.HeapObjects,
	}
}

func Record(w *csv.Writer, res BenchResult) error {
	return w.Write([]string{
		res.Name,
		res.Config,
		res.Operation,
		strconv.FormatInt(res.LatencyNs, 10),
		strconv.FormatUint(res.MemMB, 10),
		strconv.FormatUint(res.Objects, 10),
	})
}

// RenderPlot draws a grouped bar chart of per-op latency: one group per
// operation, one bar per structure/config. The format follows the file
// extension of path.
func RenderPlot(results []BenchResult, path string) error {
	var ops, series []string
	latency := make(map[[2]string]float64)
	for _, r := range results {
		s := r.Name + " " + r.Config
		if !slices.Contains(ops, r.Operation) {
			ops = append(ops, r.Operation)
		}
		if !slices.Contains(series, s) {
			series = append(series, s)
		}
		latency[[2]string{s, r.Operation}] = float64(r.LatencyNs)
	}
	if len(series) == 0 {
		return errors.New("plot: no results")
	}

	p := plot.New()
	p.Title.Text = "Latency per operation"
	p.Y.Label.Text = "ns/op"
	p.Legend.Top = true

	width := vg.Points(60 / float64(len(series)))
	for i, s := range series {
		vals := make(plotter.Values, len(ops))
		for j, op := range ops {
			vals[j] = latency[[2]string{s, op}]
		}
		bars, err := plotter.NewBarChart(vals, width)
		if err != nil {
			return errors.Wrapf(err, "plot: series %s", s)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = width * vg.Length(float64(i)-float64(len(series)-1)/2)
		p.Add(bars)
		p.Legend.Add(s, bars)
	}
	p.NominalX(ops...)

	if err := p.Save(vg.Length(max(8, 2*len(ops)))*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "plot: save %s", path)
	}
	return nil
}
