package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/querysync/internal/store"
	"github.com/roach88/querysync/internal/value"
)

// CacheOptions holds flags shared by the cache subcommands.
type CacheOptions struct {
	*RootOptions
	Database string
}

// CachedResult is one persisted query result as printed by the CLI.
type CachedResult struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Args    any    `json:"args"`
	Value   any    `json:"value"`
	Journal string `json:"journal,omitempty"`
	Seq     int64  `json:"seq"`
}

// NewCacheCommand creates the cache command and its subcommands.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the persisted result cache",
		Long: `Inspect the SQLite store that keeps the last authoritative value and
reconnect journal of every query a client has seen.

Examples:
  querysync cache list --db ./querysync.db
  querysync cache list --db ./querysync.db --name listMessages
  querysync cache show --db ./querysync.db <key>
  querysync cache prune --db ./querysync.db --before 1200`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(newCacheListCommand(opts))
	cmd.AddCommand(newCacheShowCommand(opts))
	cmd.AddCommand(newCachePruneCommand(opts))
	return cmd
}

func newCacheListCommand(opts *CacheOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List persisted results",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(ctx context.Context, st *store.Store) error {
				records, err := st.ListResults(ctx, name)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to list results", err)
				}
				results := make([]CachedResult, 0, len(records))
				for _, rec := range records {
					results = append(results, toCachedResult(rec))
				}
				return newFormatter(opts.RootOptions, cmd.OutOrStdout()).Success(results, func(w io.Writer) {
					if len(results) == 0 {
						fmt.Fprintln(w, "No cached results.")
						return
					}
					for _, r := range records {
						fmt.Fprintf(w, "%s  %s %s  seq=%d\n", r.Key.Short(), r.Name, r.Args, r.Seq)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "only list results of this query")
	return cmd
}

func newCacheShowCommand(opts *CacheOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <key>",
		Short:         "Show one persisted result",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(ctx context.Context, st *store.Store) error {
				rec, ok, err := st.LoadResult(ctx, value.QueryKey(args[0]))
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to load result", err)
				}
				if !ok {
					return NewExitError(ExitCommandError, fmt.Sprintf("no cached result for key %s", args[0]))
				}
				result := toCachedResult(rec)
				return newFormatter(opts.RootOptions, cmd.OutOrStdout()).Success(result, func(w io.Writer) {
					fmt.Fprintf(w, "key:     %s\n", rec.Key)
					fmt.Fprintf(w, "query:   %s\n", rec.Name)
					fmt.Fprintf(w, "args:    %s\n", rec.Args)
					fmt.Fprintf(w, "value:   %s\n", rec.Value)
					fmt.Fprintf(w, "journal: %s\n", rec.Journal)
					fmt.Fprintf(w, "seq:     %d\n", rec.Seq)
				})
			})
		},
	}
}

func newCachePruneCommand(opts *CacheOptions) *cobra.Command {
	var before int64
	cmd := &cobra.Command{
		Use:           "prune",
		Short:         "Delete results older than a sequence number",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if before <= 0 {
				return NewExitError(ExitCommandError, "--before must be a positive sequence number")
			}
			return withStore(opts, func(ctx context.Context, st *store.Store) error {
				n, err := st.Prune(ctx, before)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to prune results", err)
				}
				data := map[string]int64{"deleted": n, "before": before}
				return newFormatter(opts.RootOptions, cmd.OutOrStdout()).Success(data, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted %d result(s) with seq < %d\n", n, before)
				})
			})
		},
	}
	cmd.Flags().Int64Var(&before, "before", 0, "delete results with seq below this value (required)")
	_ = cmd.MarkFlagRequired("before")
	return cmd
}

// withStore opens the database for the duration of fn. A missing database
// file is a command error rather than an empty cache.
func withStore(opts *CacheOptions, fn func(ctx context.Context, st *store.Store) error) error {
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database), err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()
	opts.logger().Debug("store opened", "path", opts.Database)

	return fn(context.Background(), st)
}

// toCachedResult decodes the canonical JSON columns so JSON output nests
// them as values rather than strings.
func toCachedResult(rec store.Record) CachedResult {
	out := CachedResult{
		Key:     rec.Key.String(),
		Name:    rec.Name,
		Args:    rec.Args,
		Value:   rec.Value,
		Journal: string(rec.Journal),
		Seq:     rec.Seq,
	}
	if v, err := value.Decode([]byte(rec.Args)); err == nil {
		out.Args = v
	}
	if v, err := value.Decode([]byte(rec.Value)); err == nil {
		out.Value = v
	}
	return out
}
