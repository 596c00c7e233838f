// Package configcmder provides the config command for managing persistent
// mdpilot configuration stored in the .mdpilot/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mdpilot/pkg/cliui"
	"github.com/papercomputeco/mdpilot/pkg/config"
)

const configLongDesc string = `Manage persistent mdpilot configuration.

Configuration is stored as config.toml in the .mdpilot/ directory and provides
default values for command flags. CLI flags and MDPILOT_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  api.key, api.endpoint, api.model, api.temperature, api.timeout,
  chat.language, chat.include_history, chat.cooldown,
  output.folder, output.auto_save, output.render,
  server.listen, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  mdpilot config set <key> <value>    Set a configuration value
  mdpilot config get <key>            Get a configuration value
  mdpilot config list                 List all configuration values

Examples:
  mdpilot config set api.model sonar-pro
  mdpilot config set chat.cooldown 30s
  mdpilot config get api.model
  mdpilot config list`

const configShortDesc string = "Manage persistent mdpilot configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func validKeysArgs(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func printTarget(w io.Writer, cfger *config.Configer) {
	target := cfger.GetTarget()
	if target != "" {
		cliui.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		cliui.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}
}
