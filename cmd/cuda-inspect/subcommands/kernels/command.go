// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package kernels implements 'cuda-inspect kernels'.
package kernels

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/DataDog/cuda-inspect/cmd/cuda-inspect/command"
	"github.com/DataDog/cuda-inspect/pkg/gpu/cuda"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FileKernels is the JSON document printed for each file
type FileKernels struct {
	Path    string         `json:"path"`
	Kind    string         `json:"kind"`
	Kernels []*cuda.Kernel `json:"kernels"`
	// Stats of the fatbin entries, absent for standalone cubins
	CompressedPayloads   int `json:"compressed_payloads,omitempty"`
	UncompressedPayloads int `json:"uncompressed_payloads,omitempty"`
	PTXPayloads          int `json:"ptx_payloads,omitempty"`
	SkippedPayloads      int `json:"skipped_payloads,omitempty"`
}

// Commands returns a slice of subcommands for the 'cuda-inspect' command.
func Commands(globalParams *command.GlobalParams) []*cobra.Command {
	var flags command.InspectFlags
	var pretty bool

	kernelsCmd := &cobra.Command{
		Use:   "kernels <file>...",
		Short: "Print a JSON summary of the kernels of CUDA binaries",
		Args:  cobra.MinimumNArgs(1),
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

			files := make([]FileKernels, 0, len(results))
			for _, result := range results {
				if result.Err == nil {
					files = append(files, summarize(result))
				}
			}

			var out []byte
			if pretty {
				out, err = json.MarshalIndent(files, "", "  ")
			} else {
				out, err = json.Marshal(files)
			}
			if err != nil {
				return fmt.Errorf("unable to marshal kernels: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			return command.CollectErrors(results)
		},
	}
	flags.Register(kernelsCmd.Flags())
	kernelsCmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "pretty print the JSON output")

	return []*cobra.Command{kernelsCmd}
}

func summarize(result command.FileResult) FileKernels {
	summary := FileKernels{
		Path:    result.Path,
		Kind:    result.Data.Kind.String(),
		Kernels: result.Data.Kernels(),
	}
	if summary.Kernels == nil {
		summary.Kernels = []*cuda.Kernel{}
	}

	if fatbin := result.Data.Fatbin; fatbin != nil {
		summary.CompressedPayloads = fatbin.CompressedPayloads
		summary.UncompressedPayloads = fatbin.UncompressedPayloads
		summary.PTXPayloads = fatbin.PTXPayloads
		summary.SkippedPayloads = fatbin.SkippedPayloads
	}
	return summary
}
