// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package command holds command related files
package command

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// GlobalParams contains the values of global Cobra flags.
//
// A pointer to this type is passed to SubcommandFactory's, but its contents
// are not valid until Cobra calls the subcommand's Run or RunE function.
type GlobalParams struct {
	// ConfFilePath holds the path to the YAML configuration file
	ConfFilePath string

	// LogLevel overrides the log level of the configuration file
	LogLevel string

	// NoColor is a flag to disable color output
	NoColor bool
}

// SubcommandFactory returns a sub-command factory
type SubcommandFactory func(globalParams *GlobalParams) []*cobra.Command

// MakeCommand makes the top-level Cobra command for this command.
func MakeCommand(subcommandFactories []SubcommandFactory) *cobra.Command {
	var globalParams GlobalParams

	inspectCmd := &cobra.Command{
		Use:   "cuda-inspect [command]",
		Short: "Inspect the kernel metadata of CUDA binaries.",
		Long: `
cuda-inspect decodes the .nv.info metadata of the cubins embedded in CUDA
fatbins, standalone cubins and host executables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	inspectCmd.PersistentFlags().StringVarP(&globalParams.ConfFilePath, "cfgpath", "c", "", "path to the cuda-inspect.yaml configuration file")
	inspectCmd.PersistentFlags().StringVarP(&globalParams.LogLevel, "log-level", "l", "", "log level (trace, debug, info, warn, error, critical, off)")
	inspectCmd.PersistentFlags().BoolVarP(&globalParams.NoColor, "no-color", "n", false, "disable color output")

	inspectCmd.PersistentPreRun = func(*cobra.Command, []string) {
		if globalParams.NoColor {
			color.NoColor = true
		}
	}
	for _, factory := range subcommandFactories {
		for _, subcmd := range factory(&globalParams) {
			inspectCmd.AddCommand(subcmd)
		}
	}

	return inspectCmd
}
