// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	podconfig "github.com/hyped/podctl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate pod configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a pod.yaml file",
	Long: `Validate loads a pod.yaml file (or the built-in defaults, if --config is
not set) and checks that it is internally consistent: required fields are
set, numeric fields are in range, and the ground-station and CAN transports
have enough configuration to start.

Exit codes: 0 valid, 1 invalid or unreadable.`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	var cfg podconfig.Config
	var err error
	if configPath != "" {
		cfg, err = podconfig.Load(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	} else {
		cfg = podconfig.Default()
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println("configuration valid")
	return nil
}
