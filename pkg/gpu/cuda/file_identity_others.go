// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//go:build !unix

package cuda

import (
	"fmt"
	"os"
	"path/filepath"
)

func buildFileIdentifier(path string) (fileIdentifier, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return fileIdentifier{}, fmt.Errorf("error getting file info: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fileIdentifier{}, fmt.Errorf("error getting absolute path: %w", err)
	}

	return fileIdentifier{path: absPath, fileSize: stat.Size()}, nil
}
