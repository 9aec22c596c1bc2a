package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "simepoll",
	Short:        "Emulated epoll playground",
	Long:         `simepoll runs small TOML scenarios of pipes and multiplexers on a simulated host and prints what the process sees`,
	SilenceUsage: true,
}

func main() {
	rootCmd.Version = versionString()

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace|debug|info|notice|warning|err|off), overrides the config file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
