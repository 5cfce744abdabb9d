// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package nvinfo implements 'cuda-inspect nvinfo'.
package nvinfo

import (
	"bufio"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DataDog/cuda-inspect/cmd/cuda-inspect/command"
	"github.com/DataDog/cuda-inspect/pkg/gpu/cuda"
)

// Commands returns a slice of subcommands for the 'cuda-inspect' command.
func Commands(globalParams *command.GlobalParams) []*cobra.Command {
	var flags command.InspectFlags

	nvinfoCmd := &cobra.Command{
		Use:   "nvinfo <file>...",
		Short: "Print the .nv.info sections of CUDA binaries like cuobjdump -elf",
		Long: `Print the .nv.info sections of fatbins, cubins and host executables with
embedded fatbins, in the same format as the corresponding excerpt of cuobjdump -elf.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := command.Setup(globalParams)
			if err != nil {
				return err
			}
			flags.Apply(cmd.Flags(), cfg)

			results, err := command.InspectFiles(cmd.Context(), cfg, args)
			if err != nil {
				return err
			}

			w := bufio.NewWriter(cmd.OutOrStdout())
			for _, result := range results {
				if result.Err != nil {
					continue
				}
				if err := render(w, result, len(args) > 1); err != nil {
					return err
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}

			return command.CollectErrors(results)
		},
	}
	flags.Register(nvinfoCmd.Flags())

	return []*cobra.Command{nvinfoCmd}
}

func render(w io.Writer, result command.FileResult, withFileHeader bool) error {
	if withFileHeader {
		fmt.Fprintf(w, "%s (%s):\n\n", color.CyanString(result.Path), result.Data.Kind)
	}

	if result.Data.Fatbin == nil {
		return cuda.WriteCuobjdump(w, result.Data.Cubin)
	}

	fatbin := result.Data.Fatbin
	for _, smVersion := range fatbin.SortedSMVersions() {
		fmt.Fprintf(w, "Fatbin elf code:\n================\narch = sm_%d\n\n", smVersion)
		// section maps do not keep the header order, print them by name
		if err := cuda.WriteCuobjdump(w, cuda.SortedSections(fatbin.SMVersions[smVersion])); err != nil {
			return err
		}
	}
	return nil
}
