package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(policyCmd)
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "List the scheduling policies rtoskernel supports.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(os.Stdout, "priority     scan priority classes 0..P_MAX-1, FIFO within a class")
		fmt.Fprintln(os.Stdout, "round-robin  time-sliced rotation within the current priority class")
		fmt.Fprintln(os.Stdout, "edf          earliest absolute deadline first, across all ready tasks")
		fmt.Fprintln(os.Stdout, "rms          rate-monotonic: priority order, priorities assigned by the caller from period")
	},
}
