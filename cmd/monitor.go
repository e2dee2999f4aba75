// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Attach the telemetry dashboard",
	Long: `Monitor starts its own firmware process with every worker running, exactly
like "run", but immediately hands the terminal to the dashboard instead of
blocking on a signal. It is equivalent to "run --with-monitor".

It never calls any registry Set* method itself; the dashboard polls state
that the firmware's own workers publish. Its command line (opened with ":")
sends launch, stop and kill to the state machine as events, the same way
the ground-station link does.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	withMonitor = true
	sensorsOnly = false
	motorsOnly = false
	return runRun(cmd, args)
}
