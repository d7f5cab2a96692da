package main

import (
	"fmt"
	"strconv"

	"github.com/actionsum/wsbridge/pkg/compositor"
	"github.com/actionsum/wsbridge/pkg/detector"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var focusCmd = &cobra.Command{
	Use:   "focus <workspace-id>",
	Short: "Focus a workspace by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid workspace id %q", args[0])
		}
		return dispatch(compositor.FocusWorkspace{ID: id})
	},
}

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Show or switch the keyboard layout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		protocol, err := detector.New(cfg.Compositor)
		if err != nil {
			return errors.Wrap(err, "failed to initialize compositor")
		}
		defer protocol.Close()

		layout, err := protocol.KeyboardLayout()
		if err != nil {
			return err
		}
		fmt.Println(layout)
		return nil
	},
}

var layoutNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Switch the main keyboard to its next layout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dispatch(compositor.NextKeyboardLayout{})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", appName, version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	layoutCmd.AddCommand(layoutNextCmd)
	rootCmd.AddCommand(focusCmd, layoutCmd, versionCmd)
}

// dispatch sends cmd directly so a failure reaches the user, unlike the
// bridge's fire-and-forget commands
func dispatch(cmd compositor.Command) error {
	protocol, err := detector.New(cfg.Compositor)
	if err != nil {
		return errors.Wrap(err, "failed to initialize compositor")
	}
	defer protocol.Close()

	return protocol.Dispatch(cmd)
}
