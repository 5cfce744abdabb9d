// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package main implements the cuda-inspect command line tool
package main

import (
	"os"

	"github.com/fatih/color"

	"github.com/DataDog/cuda-inspect/cmd/cuda-inspect/command"
	"github.com/DataDog/cuda-inspect/cmd/cuda-inspect/subcommands"
	"github.com/DataDog/cuda-inspect/pkg/util/log"
)

func main() {
	cmd := command.MakeCommand(subcommands.CudaInspectSubcommands())
	err := cmd.Execute()
	log.Flush()

	if err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err) //nolint:errcheck
		os.Exit(1)
	}
}
