// Package authcmder provides the auth command for storing the API key.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/mdpilot/pkg/cliui"
	"github.com/papercomputeco/mdpilot/pkg/config"
)

const authLongDesc string = `Store the Perplexity API key.

The key is saved as api.key in config.toml in the .mdpilot/ directory
(file mode 0600). MDPILOT_API_KEY overrides it at runtime.

Examples:
  mdpilot auth                   Prompt for the API key
  mdpilot auth --remove          Remove the stored key
  echo $KEY | mdpilot auth       Pipe the API key from stdin`

const authShortDesc string = "Store the Perplexity API key"

const apiKeyConfigKey = "api.key"

type authCommander struct {
	remove    bool
	configDir string

	in  io.Reader
	out io.Writer
}

func NewAuthCmd() *cobra.Command {
	cmder := &authCommander{}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()

			if cmder.remove {
				return cmder.runRemove()
			}
			return cmder.runAuth()
		},
	}

	cmd.Flags().BoolVar(&cmder.remove, "remove", false, "Remove the stored API key")

	return cmd
}

func (c *authCommander) runAuth() error {
	apiKey, err := c.readAPIKey()
	if err != nil {
		return err
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("API key cannot be empty")
	}

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfger.SetConfigValue(apiKeyConfigKey, apiKey); err != nil {
		return err
	}

	cliui.Fprintf(c.out, "\n  %s Stored API key %s\n\n",
		cliui.SuccessMark,
		cliui.DimStyle.Render("("+cfger.GetTarget()+")"),
	)
	return nil
}

func (c *authCommander) runRemove() error {
	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfger.SetConfigValue(apiKeyConfigKey, ""); err != nil {
		return err
	}

	cliui.Fprintf(c.out, "\n  %s Removed the stored API key.\n\n", cliui.SuccessMark)
	return nil
}

// readAPIKey reads an API key from stdin. If stdin is not a terminal, it
// reads the first line. Otherwise, it prompts interactively with hidden input.
func (c *authCommander) readAPIKey() (string, error) {
	f, ok := c.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		scanner := bufio.NewScanner(c.in)
		if scanner.Scan() {
			return scanner.Text(), nil
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return "", errors.New("no input received on stdin")
	}

	cliui.Fprint(c.out, "Enter Perplexity API key (MDPILOT_API_KEY): ")

	keyBytes, err := term.ReadPassword(int(f.Fd()))
	cliui.Fprintln(c.out) // newline after hidden input
	if err != nil {
		return "", fmt.Errorf("reading API key: %w", err)
	}

	return string(keyBytes), nil
}
