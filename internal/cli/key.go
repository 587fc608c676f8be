package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/querysync/internal/value"
)

// KeyResult is the output of the key command.
type KeyResult struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Args string `json:"args"` // canonical JSON
}

// NewKeyCommand creates the key command.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	var nfc bool
	cmd := &cobra.Command{
		Use:   "key <name> [args-json]",
		Short: "Compute the query key for a query",
		Long: `Compute the query key of a named query and its arguments.

Two invocations print the same key exactly when their arguments are
structurally equal, regardless of property order or number spelling.
Strings compare byte for byte; --nfc folds them to Unicode NFC first, for
arguments typed by hand in an unknown normalization form.

Examples:
  querysync key listMessages
  querysync key listMessages '{"channel":"general","limit":20}'
  querysync key getUser '{"id":"u1"}' --format json
  querysync key search '{"q":"café"}' --nfc`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := "{}"
			if len(args) == 2 {
				raw = args[1]
			}
			return runKey(rootOpts, cmd, args[0], raw, nfc)
		},
	}
	cmd.Flags().BoolVar(&nfc, "nfc", false, "fold strings to Unicode NFC before computing the key")
	return cmd
}

func runKey(opts *RootOptions, cmd *cobra.Command, name, raw string, nfc bool) error {
	decoded, err := value.Decode([]byte(raw))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid args JSON", err)
	}
	if nfc {
		decoded = value.FoldNFC(decoded)
	}
	args, ok := decoded.(map[string]any)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("args must be a JSON object, got %s", raw))
	}

	key, err := value.Canonicalize(name, args)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to canonicalize query", err)
	}
	canonical, err := value.CanonicalArgs(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to canonicalize args", err)
	}
	opts.logger().Debug("query key computed", "query", name, "key", key.Short())

	result := KeyResult{Key: key.String(), Name: name, Args: canonical}
	return newFormatter(opts, cmd.OutOrStdout()).Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s\n", result.Key)
		fmt.Fprintf(w, "  query: %s\n", result.Name)
		fmt.Fprintf(w, "  args:  %s\n", result.Args)
	})
}
