package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// set at build time via -ldflags
	Version   = "0.1.0-dev"
	GitCommit = ""
)

var versionColor = color.New(color.FgCyan, color.Bold)

func versionString() string {
	if GitCommit == "" {
		return Version
	}
	return Version + " (" + GitCommit + ")"
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the simepoll version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyColorFlag(cmd); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "simepoll %s\n", versionColor.Sprint(versionString()))
		return err
	},
}
