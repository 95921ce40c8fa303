package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rtoskernel/examples/workload"
	"rtoskernel/internal/klog"
	"rtoskernel/kernel"
)

var flagStatsTicks uint64

func init() {
	statsCmd.Flags().Uint64Var(&flagStatsTicks, "ticks", 50, "number of ticks to simulate before printing stats")
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Run the demo workload briefly and print a task/scheduler snapshot.",
	RunE: func(cmd *cobra.Command, args []string) error {
		loadEnv()

		cfg := kernel.DefaultConfig()
		cfg.DebugLevel = resolveDebugLevel()

		k, err := kernel.New(cfg, klog.New(cfg.DebugLevel))
		if err != nil {
			return fmt.Errorf("rtoskernel: %w", err)
		}

		if err := workload.Spawn(k); err != nil {
			return fmt.Errorf("rtoskernel: %w", err)
		}

		if err := k.Start(); err != nil {
			return fmt.Errorf("rtoskernel: %w", err)
		}

		for i := uint64(0); i < flagStatsTicks; i++ {
			k.Tick()
		}

		snap := k.Snapshot()

		fmt.Fprintf(os.Stdout, "now=%d policy=%s scheduler=%s cpu_load=%.2f\n",
			snap.Now, snap.Policy, snap.SchedulerState, snap.CPULoad)

		tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSTATE\tPRI\tRUNTIME\tMAXBURST\tMISSES")

		for _, t := range snap.Tasks {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n",
				t.Name, t.State, t.Priority, t.TotalRuntime, t.MaxBurst, t.DeadlineMisses)
		}

		return tw.Flush()
	},
}
