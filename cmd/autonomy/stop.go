package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// stopCmd terminates a detached program under test by process-group id,
// using the same polite-then-hard sequence the supervisor applies to
// children it still owns.
var stopCmd = &cobra.Command{
	Use:   "stop <pgid>",
	Short: "Stop a detached program under test by process-group id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pgid, err := strconv.Atoi(args[0])
		if err != nil || pgid <= 0 {
			return &configError{fmt.Errorf("invalid process-group id %q", args[0])}
		}

		if err := terminateProcessGroup(pgid, 5*time.Second); err != nil {
			return err
		}
		fmt.Printf("process group %d stopped\n", pgid)
		return nil
	},
}
