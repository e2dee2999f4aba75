// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "podctl",
	Short: "Pod control firmware",
	Long: `podctl is the onboard control firmware for a hyperloop prototype pod.

It acquires sensor readings, fuses them into a navigation estimate, drives
four wheel motor controllers over a CAN gateway, and coordinates the run
through a central state machine that reacts to ground-station commands.`,
	Version: "1.0.0",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to pod.yaml (defaults to built-in settings)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
