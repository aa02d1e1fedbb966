package cli

import (
	"github.com/spf13/cobra"
)

// ExplainResult is the JSON payload of the explain command.
type ExplainResult struct {
	Mode      string   `json:"mode"`
	Externals []string `json:"externals"`
	Plan      string   `json:"plan"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <query|@file>",
		Short: "Print the compiled plan of a query",
		Long: `Compile a query and print its plan after type checking and rewrites.

Variables named with --var (or in the config file) are declared as external
variables; their values are not used.

Examples:
  flwor explain 'for $x in (3, 1, 2) order by $x return $x'
  flwor explain --no-optimize @report.xq
  flwor explain --db ./orders.db 'for $o in collection("orders") where $o?status = "open" return $o'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)

	return cmd
}

func runExplain(opts *QueryOptions, arg string, cmd *cobra.Command) error {
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

	if formatter.Format == "json" {
		return formatter.Success(ExplainResult{
			Mode:      string(sess.engine.Mode()),
			Externals: q.Externals(),
			Plan:      q.Explain(),
		})
	}
	_, err = formatter.Writer.Write([]byte(q.Explain()))
	return err
}
