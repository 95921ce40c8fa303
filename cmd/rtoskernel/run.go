package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"rtoskernel/examples/workload"
	"rtoskernel/internal/klog"
	"rtoskernel/internal/scheduler"
	"rtoskernel/kernel"
	"rtoskernel/tracesink"
	"rtoskernel/webstatus"
)

var (
	flagTicks     uint64
	flagPort      int
	flagOpen      bool
	flagTracePath string
	flagPolicy    string
)

func init() {
	runCmd.Flags().Uint64Var(&flagTicks, "ticks", 200, "number of ticks to simulate")
	runCmd.Flags().IntVar(&flagPort, "port", 0, "dashboard port (0 = pick automatically)")
	runCmd.Flags().BoolVar(&flagOpen, "open", false, "open the dashboard in the default browser")
	runCmd.Flags().StringVar(&flagTracePath, "trace", "", "SQLite path to write a scheduler event trace (disabled if empty)")
	runCmd.Flags().StringVar(&flagPolicy, "policy", "priority", "scheduling policy: priority, round-robin, edf, rms")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the demo workload against the kernel for a number of ticks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		loadEnv()

		cfg := kernel.DefaultConfig()
		cfg.DebugLevel = resolveDebugLevel()

		if v := os.Getenv("RTOS_MAX_TASKS"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				cfg.MaxTasks = n
			}
		}

		if v := os.Getenv("RTOS_P_MAX"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				cfg.PMax = n
			}
		}

		policy, err := parsePolicy(flagPolicy)
		if err != nil {
			return err
		}

		cfg.Policy = policy

		logger := klog.New(cfg.DebugLevel)

		k, err := kernel.New(cfg, logger)
		if err != nil {
			return fmt.Errorf("rtoskernel: %w", err)
		}

		if flagTracePath != "" {
			w, err := tracesink.NewWriter(flagTracePath, logger)
			if err != nil {
				return fmt.Errorf("rtoskernel: trace sink: %w", err)
			}
			defer w.Close()

			tracesink.RegisterHooks(k.Scheduler(), w)
		}

		if err := workload.Spawn(k); err != nil {
			return fmt.Errorf("rtoskernel: %w", err)
		}

		srv := webstatus.New(k, logger, flagPort)

		addr, err := srv.Start()
		if err != nil {
			return fmt.Errorf("rtoskernel: dashboard: %w", err)
		}

		fmt.Fprintf(os.Stdout, "rtoskernel: dashboard at %s\n", addr)

		if flagOpen {
			if err := browser.OpenURL(addr); err != nil {
				logger.Warnf("rtoskernel: could not open browser: %v", err)
			}
		}

		if err := k.Start(); err != nil {
			return fmt.Errorf("rtoskernel: %w", err)
		}

		for i := uint64(0); i < flagTicks; i++ {
			k.Tick()
		}

		stats := k.SchedulerStats()
		fmt.Fprintf(os.Stdout,
			"rtoskernel: ran %d ticks, %d context switches, %d deadline misses\n",
			flagTicks, stats.ContextSwitches, stats.DeadlineMisses)

		return nil
	},
}

func parsePolicy(name string) (scheduler.Policy, error) {
	switch name {
	case "priority":
		return scheduler.PolicyPriority, nil
	case "round-robin", "rr":
		return scheduler.PolicyRoundRobin, nil
	case "edf":
		return scheduler.PolicyEDF, nil
	case "rms":
		return scheduler.PolicyRMS, nil
	default:
		return 0, fmt.Errorf("rtoskernel: unknown policy %q", name)
	}
}
