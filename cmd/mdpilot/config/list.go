package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mdpilot/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays all configuration keys and their current values from the
config.toml file stored in the .mdpilot/ directory. Secret values
are masked.

Examples:
  mdpilot config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir)
		},
	}

	return cmd
}

func runList(w io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "Using config file: %s\n\n", target)
	} else {
		fmt.Fprint(w, "No config file found. Using default config.\n\n")
	}

	values, err := cfger.Values()
	if err != nil {
		return err
	}

	// Find the longest key name for alignment.
	maxLen := 0
	for _, kv := range values {
		if len(kv[0]) > maxLen {
			maxLen = len(kv[0])
		}
	}

	for _, kv := range values {
		if kv[1] == "" {
			fmt.Fprintf(w, "%-*s = <not set>\n", maxLen, kv[0])
		} else {
			fmt.Fprintf(w, "%-*s = %q\n", maxLen, kv[0], kv[1])
		}
	}

	return nil
}
