// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//go:build unix

package cuda

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func buildFileIdentifier(path string) (fileIdentifier, error) {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return fileIdentifier{}, fmt.Errorf("error getting file info: %w", err)
	}

	return fileIdentifier{inode: uint64(stat.Ino), fileSize: stat.Size}, nil
}
