// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package version implements 'cuda-inspect version'.
package version

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DataDog/cuda-inspect/cmd/cuda-inspect/command"
	"github.com/DataDog/cuda-inspect/pkg/version"
)

// Commands returns a slice of subcommands for the 'cuda-inspect' command.
func Commands(globalParams *command.GlobalParams) []*cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version info",
		Long:  ``,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if globalParams.NoColor {
				color.NoColor = true
			}
			commit := ""
			if version.Commit != "" {
				commit = fmt.Sprintf("- Commit: %s ", color.GreenString(version.Commit))
			}
			fmt.Fprintf(
				cmd.OutOrStdout(),
				"cuda-inspect %s %s- Go version: %s\n",
				color.CyanString(version.InspectorVersion),
				commit,
				color.RedString(runtime.Version()),
			)
		},
	}
	return []*cobra.Command{versionCmd}
}
