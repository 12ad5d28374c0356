package bptree

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/btree-query-bench/scancursor/dbms/index/btpage"
	"github.com/btree-query-bench/scancursor/dbms/pager"
)

// ExportDOT writes the page graph in Graphviz format. Leaves are drawn on one
// rank and chained by their nextLeaf links.
func (t *BPTree) ExportDOT(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "digraph BPTree {")
	fmt.Fprintln(bw, "  graph [ranksep=0.8, nodesep=0.5, rankdir=TB];")
	fmt.Fprintln(bw, "  node [shape=none, fontname=\"Helvetica\", fontsize=10];")
	fmt.Fprintln(bw, "  edge [arrowsize=0.8, color=\"#444444\"];")

	names := make(map[uint64]string)
	next := make(map[uint64]uint32)
	var leaves []uint64

	var export func(id uint64) (string, error)
	export = func(id uint64) (string, error) {
		if name, ok := names[id]; ok {
			return name, nil
		}
		name := fmt.Sprintf("page%d", id)
		names[id] = name

		p, err := t.pg.Read(id)
		if err != nil {
			return "", err
		}
		n := btpage.NumCells(p)
		fill := 100 - float64(btpage.FreeSpace(p, n))/pager.PageSize*100

		if btpage.IsLeaf(p) {
			var keys strings.Builder
			for i := 0; i < n; i++ {
				fmt.Fprintf(&keys, "<B>%d</B><BR/>", btpage.ReadLeafKey(p, i))
			}
			fmt.Fprintf(bw, "  %s [label=<<TABLE BORDER=\"0\" CELLBORDER=\"1\" CELLSPACING=\"0\" CELLPADDING=\"4\">"+
				"<TR><TD COLSPAN=\"2\" BGCOLOR=\"#D5E8D4\"><B>PAGE %d (LEAF)</B><BR/><FONT POINT-SIZE=\"8\">Fill: %.1f%%</FONT></TD></TR>"+
				"<TR><TD BGCOLOR=\"#F5F5F5\" ALIGN=\"LEFT\">%s</TD><TD PORT=\"next\" BGCOLOR=\"#E1F5FE\">Next</TD></TR></TABLE>>];\n",
				name, id, fill, keys.String())
			leaves = append(leaves, id)
			next[id] = btpage.NextLeaf(p)
			return name, nil
		}

		keys, children := internalCells(p)
		var cells strings.Builder
		for i, k := range keys {
			fmt.Fprintf(&cells, "<TD PORT=\"f%d\" BGCOLOR=\"#E1F5FE\">P:%d</TD><TD><B>%d</B></TD>", i, children[i], k)
		}
		fmt.Fprintf(&cells, "<TD PORT=\"f%d\" BGCOLOR=\"#E1F5FE\">P:%d</TD>", n, children[n])
		fmt.Fprintf(bw, "  %s [label=<<TABLE BORDER=\"0\" CELLBORDER=\"1\" CELLSPACING=\"0\" CELLPADDING=\"4\">"+
			"<TR><TD COLSPAN=\"%d\" BGCOLOR=\"#DAE8FC\"><B>PAGE %d (INTERNAL)</B><BR/><FONT POINT-SIZE=\"8\">Fill: %.1f%%</FONT></TD></TR>"+
			"<TR>%s</TR></TABLE>>];\n",
			name, 2*n+1, id, fill, cells.String())

		for i, c := range children {
			child, err := export(uint64(c))
			if err != nil {
				return "", err
			}
			fmt.Fprintf(bw, "  %s:f%d -> %s;\n", name, i, child)
		}
		return name, nil
	}

	if _, err := export(uint64(t.rootID)); err != nil {
		return err
	}

	if len(leaves) > 1 {
		fmt.Fprintln(bw, "  { rank=same;")
		for _, id := range leaves {
			fmt.Fprintf(bw, "    %s;\n", names[id])
		}
		fmt.Fprintln(bw, "  }")
		for _, id := range leaves {
			if target, ok := names[uint64(next[id])]; ok && next[id] != btpage.InvalidPage {
				fmt.Fprintf(bw, "  %s:next -> %s [style=dashed, color=\"#03A9F4\", constraint=false];\n", names[id], target)
			}
		}
	}

	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
