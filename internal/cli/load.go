package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/flwor/internal/config"
	"github.com/roach88/flwor/internal/store"
)

// LoadResult is the JSON payload of the load command.
type LoadResult struct {
	Database   string `json:"database"`
	Collection string `json:"collection"`
	Documents  int    `json:"documents"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <db> <collection> <file>",
		Short: "Store documents as a collection",
		Long: `Store the documents of a JSON or YAML file as a named collection in a
SQLite database, creating the database if it doesn't exist. A top-level
array holds one document per member. An existing collection of the same
name is replaced.

Example:
  flwor load ./orders.db orders ./orders.json`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, args[0], args[1], args[2], cmd)
		},
	}

	return cmd
}

func runLoad(opts *RootOptions, dbPath, collection, file string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	docs, err := config.ReadDocuments(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return commandError(formatter, ErrCodeNotFound, err)
		}
		return commandError(formatter, ErrCodeBadInput, err)
	}
	formatter.VerboseLog("Read %d document(s) from %s", len(docs), file)

	st, err := store.Open(dbPath)
	if err != nil {
		return commandError(formatter, ErrCodeDatabase, err)
	}
	defer st.Close()

	if err := st.CreateCollection(cmd.Context(), collection, docs); err != nil {
		return commandError(formatter, ErrCodeDatabase, err)
	}
	opts.Logger.Debug("collection stored", "collection", collection, "documents", len(docs), "db", dbPath)

	if formatter.Format == "json" {
		return formatter.Success(LoadResult{Database: dbPath, Collection: collection, Documents: len(docs)})
	}
	fmt.Fprintf(formatter.Writer, "✓ Loaded %d document(s) into collection %q\n", len(docs), collection)
	return nil
}
