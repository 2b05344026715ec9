package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/treematch/pkg/decompressed"
	"github.com/Sumatoshi-tech/treematch/pkg/treematch"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
)

const (
	percentageValue = 100
	maxLabelLen     = 32
	coverageGood    = 0.8
	coverageFair    = 0.5
)

// matchReport is the JSON form of a single match.
type matchReport struct {
	Src       string      `json:"src"`
	Dst       string      `json:"dst"`
	SrcNodes  int         `json:"src_nodes"`
	DstNodes  int         `json:"dst_nodes"`
	Mapped    int         `json:"mapped"`
	Unique    int         `json:"unique"`
	Ambiguous int         `json:"ambiguous"`
	Committed int         `json:"committed"`
	Cached    bool        `json:"cached"`
	ElapsedMS float64     `json:"elapsed_ms"`
	Pairs     [][2]uint32 `json:"pairs,omitempty"`
}

func newMatchReport(src, dst string, res *treematch.Result, withPairs bool) matchReport {
	sum := res.Summary()

	report := matchReport{
		Src:       src,
		Dst:       dst,
		SrcNodes:  sum.SrcNodes,
		DstNodes:  sum.DstNodes,
		Mapped:    sum.Mapped,
		Unique:    res.Stats.Unique,
		Ambiguous: res.Stats.Ambiguous,
		Committed: res.Stats.Committed,
		Cached:    res.Cached,
		ElapsedMS: float64(res.Elapsed) / float64(time.Millisecond),
	}

	if withPairs {
		report.Pairs = make([][2]uint32, 0, sum.Mapped)
		for s, d := range res.Mappings.Iter() {
			report.Pairs = append(report.Pairs, [2]uint32{s, d})
		}
	}

	return report
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(v)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

// writePairsTable prints one row per mapped pair, in src post-order.
func writePairsTable(w io.Writer, res *treematch.Result) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Src", "Src node", "Dst", "Dst node"})

	for s, d := range res.Mappings.Iter() {
		srcNode, err := describe(res.Src, s)
		if err != nil {
			return err
		}

		dstNode, err := describe(res.Dst, d)
		if err != nil {
			return err
		}

		tbl.AppendRow(table.Row{s, srcNode, d, dstNode})
	}

	tbl.AppendFooter(table.Row{"", fmt.Sprintf("Total: %s pairs", humanize.Comma(int64(res.Mappings.Len())))})

	_, err := fmt.Fprintln(w, tbl.Render())

	return err
}

func describe(arena *decompressed.LazyPostOrder, i uint32) (string, error) {
	_, err := arena.DecompressTo(i)
	if err != nil {
		return "", err
	}

	n, err := arena.Node(i)
	if err != nil {
		return "", err
	}

	if !n.HasLabel {
		return n.Type, nil
	}

	label := []rune(n.Label)
	if len(label) > maxLabelLen {
		label = append(label[:maxLabelLen], '…')
	}

	return fmt.Sprintf("%s %q", n.Type, string(label)), nil
}

func writeSummary(w io.Writer, res *treematch.Result) {
	sum := res.Summary()

	coverage := coverageColor(sum.SrcCoverage())
	coverage.Fprintf(w, "mapped %s of %s src nodes (%.1f%%)",
		humanize.Comma(int64(sum.Mapped)),
		humanize.Comma(int64(sum.SrcNodes)),
		sum.SrcCoverage()*percentageValue,
	)

	fmt.Fprintf(w, " onto %s dst nodes (%.1f%%)\n",
		humanize.Comma(int64(sum.DstNodes)),
		sum.DstCoverage()*percentageValue,
	)

	if res.Cached {
		color.New(color.FgCyan).Fprintf(w, "cached mapping, %s\n", res.Elapsed)

		return
	}

	fmt.Fprintf(w, "unique %d, ambiguous %d, committed %d, %s\n",
		res.Stats.Unique, res.Stats.Ambiguous, res.Stats.Committed, res.Elapsed)
}

func coverageColor(c float64) *color.Color {
	switch {
	case c >= coverageGood:
		return color.New(color.FgGreen)
	case c >= coverageFair:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
