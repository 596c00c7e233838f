// Package mdpilotcmder
package mdpilotcmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/mdpilot/cmd/mdpilot/ask"
	authcmder "github.com/papercomputeco/mdpilot/cmd/mdpilot/auth"
	chatcmder "github.com/papercomputeco/mdpilot/cmd/mdpilot/chat"
	configcmder "github.com/papercomputeco/mdpilot/cmd/mdpilot/config"
	servecmder "github.com/papercomputeco/mdpilot/cmd/mdpilot/serve"
	watchcmder "github.com/papercomputeco/mdpilot/cmd/mdpilot/watch"
	versioncmder "github.com/papercomputeco/mdpilot/cmd/version"
)

const mdpilotLongDesc string = `mdpilot edits Markdown with Perplexity chat completions.

Answers stream to the terminal as they are generated. When the model returns
whole documents between "==== name ====" and "==== koniec ====" lines they can
be saved to the output folder.

Commands:
  mdpilot chat              Interactive chat, optionally with attached files
  mdpilot ask               Run a queue of prompts over Markdown files
  mdpilot watch             Re-run a prompt whenever a Markdown file changes
  mdpilot serve             Stream completions over HTTP
  mdpilot auth              Store the API key
  mdpilot config            Manage persistent configuration`

const mdpilotShortDesc string = "mdpilot - Markdown editing with streamed completions"

func NewMdpilotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mdpilot",
		Short:         mdpilotShortDesc,
		Long:          mdpilotLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .mdpilot/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(watchcmder.NewWatchCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
