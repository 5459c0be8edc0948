package cmd

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/keypool/internal/errors"
	"github.com/firefly-engineering/keypool/internal/keysource"
)

var pushKeysCmd = &cobra.Command{
	Use:   "push-keys [key...]",
	Short: "Replace the running daemon's keys",
	Long: `Send a new key list to the control surface. The list replaces the
pool entirely and is written to the daemon's cache.

Keys come from arguments, a file (--from-file, "-" for stdin) or a helper
command (--from-command). Files and command output may be a JSON array,
an object with a "keys" array, or one key per line.`,
	RunE: runPushKeys,
}

var (
	pushFromFile    string
	pushFromCommand string
)

func init() {
	pushKeysCmd.Flags().StringVar(&pushFromFile, "from-file", "", `Read keys from a file ("-" for stdin)`)
	pushKeysCmd.Flags().StringVar(&pushFromCommand, "from-command", "", "Read keys from a command's output")
	pushKeysCmd.MarkFlagsMutuallyExclusive("from-file", "from-command")
	rootCmd.AddCommand(pushKeysCmd)
}

// collectKeys gathers keys from exactly one source.
func collectKeys(ctx context.Context, args []string, stdin io.Reader) ([]string, error) {
	sources := 0
	for _, set := range []bool{len(args) > 0, pushFromFile != "", pushFromCommand != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, errors.ValidationError("provide keys as arguments, --from-file or --from-command")
	}

	switch {
	case pushFromCommand != "":
		keys, err := keysource.Run(ctx, pushFromCommand)
		if err != nil {
			return nil, errors.KeySourceError("failed to run keys command", err)
		}
		return keys, nil

	case pushFromFile == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, errors.KeySourceError("failed to read stdin", err)
		}
		keys, err := keysource.Parse(data)
		if err != nil {
			return nil, errors.KeySourceError("failed to parse keys from stdin", err)
		}
		return keys, nil

	case pushFromFile != "":
		keys, err := keysource.ReadFile(pushFromFile)
		if err != nil {
			return nil, errors.KeySourceError("failed to read keys file", err)
		}
		return keys, nil
	}

	keys, err := keysource.Parse([]byte(strings.Join(args, "\n")))
	if err != nil {
		return nil, errors.KeySourceError("invalid keys", err)
	}
	return keys, nil
}

func runPushKeys(cmd *cobra.Command, args []string) error {
	keys, err := collectKeys(cmd.Context(), args, os.Stdin)
	if err != nil {
		return err
	}

	c, err := controlClient(cmd)
	if err != nil {
		return err
	}

	resp, err := c.UpdateKeys(cmd.Context(), keys)
	if err != nil {
		return errors.ControlError("update-keys", err)
	}

	logSuccess("Pushed %d keys to %s (%d available)", resp.Count, c.BaseURL(), resp.Stats.Available)
	return nil
}
