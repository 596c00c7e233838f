package main

import (
	"os"

	mdpilotcmder "github.com/papercomputeco/mdpilot/cmd/mdpilot"
)

func main() {
	cmd := mdpilotcmder.NewMdpilotCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
