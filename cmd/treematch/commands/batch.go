package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/treematch/pkg/observability"
)

// ErrMalformedPair is returned for a pairs-file line that is not "SRC DST".
var ErrMalformedPair = errors.New("malformed pair line")

type batchOptions struct {
	format   string
	language string
	workers  int
}

type pairSpec struct {
	line int
	src  string
	dst  string
}

func newBatchCommand(global *globalOptions) *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch PAIRS_FILE",
		Short: "Match many tree pairs concurrently",
		Long: `Batch reads one "SRC DST" pair per line (blank lines and lines starting
with # are skipped) and matches all pairs with a bounded worker pool. Pairs
share one tree store and one mapping cache, so repeated pairs are computed
once. Results are printed in input order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.workers, flagWorkers, 0, "concurrent matches (default from config)")
	cmd.Flags().StringVar(&opts.format, flagFormat, formatText, "output format: text or json")
	cmd.Flags().StringVar(&opts.language, flagLanguage, "", "grammar for source inputs (default: detect)")

	return cmd
}

func runBatch(cmd *cobra.Command, global *globalOptions, opts *batchOptions, pairsPath string) (err error) {
	if opts.format != formatText && opts.format != formatJSON {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, opts.format)
	}

	pairs, err := readPairsFile(pairsPath)
	if err != nil {
		return err
	}

	s, err := newSession(cmd, global, observability.ModeBatch, sessionOverrides{workers: opts.workers})
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, s.Close(context.Background()))
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	reports, err := s.matchAll(ctx, pairs, opts.language)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if opts.format == formatJSON {
		return writeJSON(out, reports)
	}

	writeBatchTable(out, reports)

	if s.cache != nil {
		fmt.Fprintf(out, "cache: %s computed, %s hits\n",
			humanize.Comma(s.cache.CacheComputations()), humanize.Comma(s.cache.CacheHits()))
	}

	return nil
}

func (s *session) matchAll(ctx context.Context, pairs []pairSpec, lang string) ([]matchReport, error) {
	reports := make([]matchReport, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Batch.Workers)

	for i, p := range pairs {
		g.Go(func() error {
			src, err := s.loadTree(gctx, p.src, lang)
			if err != nil {
				return fmt.Errorf("line %d: %w", p.line, err)
			}

			dst, err := s.loadTree(gctx, p.dst, lang)
			if err != nil {
				return fmt.Errorf("line %d: %w", p.line, err)
			}

			res, err := s.engine.Match(gctx, src, dst)
			if err != nil {
				return fmt.Errorf("line %d: %w", p.line, err)
			}

			reports[i] = newMatchReport(p.src, p.dst, res, false)

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}

	return reports, nil
}

func readPairsFile(path string) ([]pairSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pairs file: %w", err)
	}
	defer f.Close()

	return readPairs(f)
}

func readPairs(r io.Reader) ([]pairSpec, error) {
	var pairs []pairSpec

	scanner := bufio.NewScanner(r)
	line := 0

	for scanner.Scan() {
		line++

		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 2 { //nolint:mnd // SRC and DST.
			return nil, fmt.Errorf("%w %d: %q", ErrMalformedPair, line, text)
		}

		pairs = append(pairs, pairSpec{line: line, src: fields[0], dst: fields[1]})
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read pairs: %w", err)
	}

	return pairs, nil
}

func writeBatchTable(w io.Writer, reports []matchReport) {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"#", "Src", "Dst", "Mapped", "Src cov", "Dst cov", "Cached"})

	mapped := 0

	for i, r := range reports {
		mapped += r.Mapped

		tbl.AppendRow(table.Row{
			i + 1, r.Src, r.Dst,
			humanize.Comma(int64(r.Mapped)),
			percent(r.Mapped, r.SrcNodes),
			percent(r.Mapped, r.DstNodes),
			r.Cached,
		})
	}

	tbl.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d pairs", len(reports)), "", humanize.Comma(int64(mapped))})

	fmt.Fprintln(w, tbl.Render())
}

func percent(part, whole int) string {
	if whole == 0 {
		return "-"
	}

	return fmt.Sprintf("%.1f%%", float64(part)*percentageValue/float64(whole))
}
