// Package main is the rtoskernel CLI entry point: a cobra root command with
// run/stats/policy subcommands driving a Kernel, grounded on the teacher's
// akita/cmd/root.go (a package-level cobra.Command plus an Execute
// function) and akita/cmd/component.go's flag-and-subcommand shape.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"rtoskernel/internal/klog"
)

var rootCmd = &cobra.Command{
	Use:   "rtoskernel",
	Short: "rtoskernel runs and inspects a simulated real-time kernel.",
	Long: `rtoskernel drives a simulated preemptive RTOS kernel: task ` +
		`scheduling, priority inheritance, semaphores, bounded queues, and ` +
		`event groups, with an optional web dashboard and SQLite trace sink.`,
}

var (
	flagDebugLevel string
	flagEnvFile    string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDebugLevel, "debug-level", "",
		"log level: debug, info, warn, error, off (overrides RTOS_DEBUG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env",
		"path to a .env file of RTOS_* configuration overrides")
}

// loadEnv loads flagEnvFile if present. A missing file is not an error —
// the CLI falls back to flag defaults, the same "best effort, don't fail
// the run" posture godotenv.Load itself takes when called with no
// arguments in typical CLI usage.
func loadEnv() {
	if err := godotenv.Load(flagEnvFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "rtoskernel: warning: could not load %s: %v\n", flagEnvFile, err)
	}
}

func resolveDebugLevel() klog.Level {
	level := flagDebugLevel
	if level == "" {
		level = os.Getenv("RTOS_DEBUG_LEVEL")
	}

	switch level {
	case "debug":
		return klog.LevelDebug
	case "warn":
		return klog.LevelWarn
	case "error":
		return klog.LevelError
	case "off":
		return klog.LevelOff
	default:
		return klog.LevelInfo
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
