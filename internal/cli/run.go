package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/flwor/internal/ir"
)

// RunResult is the JSON payload of a successful run.
type RunResult struct {
	Version string          `json:"version"`
	Count   int             `json:"count"`
	Items   json.RawMessage `json:"items"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <query|@file>",
		Short: "Evaluate a query",
		Long: `Evaluate a query and print its result items.

The query is given inline or, prefixed with @, read from a file. Items are
printed one per line as canonical JSON. With --format json the result is
wrapped in the standard response envelope.

Exit codes:
  0 - Query evaluated
  1 - Query failed (static or dynamic error)
  2 - Command error (missing files, bad flags, bad config)

Examples:
  flwor run 'for $x in 1 to 3 return $x * 2'
  flwor run --input order.json 'for $l in lines?* return $l?sku'
  flwor run --db ./orders.db --var 'status="open"' @open-orders.xq
  flwor run --config flwor.cue --mode push --trace @report.xq`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)

	return cmd
}

func runQuery(opts *QueryOptions, arg string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	text, err := readQuery(arg)
	if err != nil {
		return commandError(formatter, ErrCodeNotFound, err)
	}

	sess, err := openSession(cmd, opts, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	q, err := sess.engine.Compile(text, sess.variableNames()...)
	if err != nil {
		return queryError(formatter, err)
	}
	formatter.VerboseLog("Compiled query in %s mode", sess.engine.Mode())

	items, err := q.Evaluate(cmd.Context(), sess.input())
	if err != nil {
		return queryError(formatter, err)
	}
	formatter.VerboseLog("Query returned %d item(s)", len(items))

	return outputItems(formatter, items)
}

// outputItems prints result items as canonical JSON.
func outputItems(f *OutputFormatter, items ir.Sequence) error {
	if f.Format == "json" {
		data, err := ir.MarshalCanonical(items)
		if err != nil {
			return queryError(f, fmt.Errorf("serialize result: %w", err))
		}
		return f.Success(RunResult{Version: ir.ResultFormatVersion, Count: len(items), Items: data})
	}

	for _, item := range items {
		data, err := ir.MarshalCanonical(item)
		if err != nil {
			return queryError(f, fmt.Errorf("serialize result: %w", err))
		}
		fmt.Fprintln(f.Writer, string(data))
	}
	return nil
}
