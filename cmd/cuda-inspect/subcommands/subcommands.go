// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package subcommands holds the subcommands for the cuda-inspect command
package subcommands

import (
	"github.com/DataDog/cuda-inspect/cmd/cuda-inspect/command"
	"github.com/DataDog/cuda-inspect/cmd/cuda-inspect/subcommands/kernels"
	"github.com/DataDog/cuda-inspect/cmd/cuda-inspect/subcommands/nvinfo"
	"github.com/DataDog/cuda-inspect/cmd/cuda-inspect/subcommands/version"
)

// CudaInspectSubcommands returns all subcommands for the cuda-inspect command
func CudaInspectSubcommands() []command.SubcommandFactory {
	return []command.SubcommandFactory{
		nvinfo.Commands,
		kernels.Commands,
		version.Commands,
	}
}
