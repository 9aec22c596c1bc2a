package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Viet-ph/simepoll/config"
	custom_err "github.com/Viet-ph/simepoll/internal/error"
	"github.com/Viet-ph/simepoll/internal/logger"
	"github.com/Viet-ph/simepoll/internal/scenario"
)

var (
	runConfigPath string
	runTree       bool
)

var (
	timeColor    = color.New(color.Faint)
	epollColor   = color.New(color.FgCyan)
	tagColor     = color.New(color.Bold)
	eventColor   = color.New(color.FgGreen)
	failureColor = color.New(color.FgRed, color.Bold)
)

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "TOML file overriding the built-in defaults")
	runCmd.Flags().BoolVar(&runTree, "tree", false, "print the watch tree of the main multiplexer at the end")
}

var runCmd = &cobra.Command{
	Use:   "run <scenario.toml>",
	Short: "Run a scenario and print every event the process collects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if runConfigPath != "" {
			if err := config.Load(runConfigPath); err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		}
		if err := applyColorFlag(cmd); err != nil {
			return err
		}

		level := config.LogLevel
		if l, _ := cmd.Flags().GetString("log-level"); l != "" {
			level = l
		}
		log, err := logger.New(cmd.ErrOrStderr(), level)
		if err != nil {
			return err
		}

		s, err := scenario.Load(args[0])
		if err != nil {
			return err
		}
		res, err := scenario.Run(s, scenario.WithLogger(log))
		if err != nil {
			return err
		}

		printResult(cmd.OutOrStdout(), res, runTree)
		return nil
	},
}

func applyColorFlag(cmd *cobra.Command) error {
	mode, _ := cmd.Flags().GetString("color")
	switch strings.ToLower(mode) {
	case "auto", "":
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("unsupported color mode %q (must be auto, on or off)", mode)
	}
	return nil
}

func printResult(w io.Writer, res *scenario.Result, tree bool) {
	for _, rec := range res.Records {
		var detail string
		switch {
		case rec.EOF:
			detail = " eof"
		case rec.Bytes > 0:
			detail = fmt.Sprintf(" read %d bytes", rec.Bytes)
		}
		fmt.Fprintf(w, "%s %s %s %s%s\n",
			timeColor.Sprintf("t=%-5d", rec.At),
			epollColor.Sprintf("%-8s", rec.Epoll),
			tagColor.Sprintf("%-12s", rec.Tag),
			eventColor.Sprint(rec.Events),
			detail,
		)
	}

	for _, f := range res.Failures {
		msg := f.Err.Error()
		if errno := custom_err.Errno(f.Err); errno != 0 {
			msg = fmt.Sprintf("%s (errno %d)", msg, int(errno))
		}
		fmt.Fprintf(w, "%s %s %s: %s\n",
			failureColor.Sprint("!"),
			timeColor.Sprintf("t=%-5d", f.At),
			f.Action,
			msg,
		)
	}

	fmt.Fprintf(w, "%d events, %d failures, %d resumes, %d tasks\n",
		len(res.Records), len(res.Failures), res.Resumes, res.Executed)
	if tree {
		fmt.Fprintf(w, "tree:%s\n", res.Tree)
	}
}
