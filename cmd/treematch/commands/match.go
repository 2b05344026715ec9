package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/treematch/pkg/observability"
)

const (
	flagMinHeight = "min-height"
	flagFormat    = "format"
	flagLanguage  = "language"
	flagWorkers   = "workers"
)

// ErrUnknownFormat is returned for an unsupported --format value.
var ErrUnknownFormat = errors.New("unknown output format")

type matchOptions struct {
	format    string
	language  string
	minHeight int
}

func newMatchCommand(global *globalOptions) *cobra.Command {
	opts := &matchOptions{}

	cmd := &cobra.Command{
		Use:   "match SRC DST",
		Short: "Match two trees and print the mapping",
		Long: `Match maps the nodes of SRC onto DST. Inputs ending in .yaml or .yml are
read as tree documents; any other file is parsed with a tree-sitter grammar
chosen from its name, or from --language.`,
		Args: cobra.ExactArgs(2), //nolint:mnd // SRC and DST.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd, global, opts, args[0], args[1])
		},
	}

	cmd.Flags().IntVar(&opts.minHeight, flagMinHeight, 0, "smallest subtree height to match (default from config)")
	cmd.Flags().StringVar(&opts.format, flagFormat, formatText, "output format: text or json")
	cmd.Flags().StringVar(&opts.language, flagLanguage, "", "grammar for source inputs (default: detect)")

	return cmd
}

func runMatch(cmd *cobra.Command, global *globalOptions, opts *matchOptions, srcPath, dstPath string) (err error) {
	if opts.format != formatText && opts.format != formatJSON {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, opts.format)
	}

	s, err := newSession(cmd, global, observability.ModeCLI, sessionOverrides{minHeight: opts.minHeight})
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

	src, err := s.loadTree(ctx, srcPath, opts.language)
	if err != nil {
		return err
	}

	dst, err := s.loadTree(ctx, dstPath, opts.language)
	if err != nil {
		return err
	}

	res, err := s.engine.Match(ctx, src, dst)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if opts.format == formatJSON {
		return writeJSON(out, newMatchReport(srcPath, dstPath, res, true))
	}

	err = writePairsTable(out, res)
	if err != nil {
		return err
	}

	writeSummary(out, res)

	return nil
}
