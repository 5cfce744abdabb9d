// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package cuda

import (
	"bytes"
	"fmt"

	"github.com/DataDog/cuda-inspect/pkg/util/log"
	"github.com/DataDog/cuda-inspect/pkg/util/safeelf"
)

// IsELF returns true if the buffer starts with the ELF magic
func IsELF(data []byte) bool {
	return len(data) >= len(safeelf.ELFMAG) && string(data[:len(safeelf.ELFMAG)]) == safeelf.ELFMAG
}

// ParseCubin decodes every .nv.info.* section of a cubin, in section header order
func ParseCubin(data []byte) ([]NVInfoSection, error) {
	if !IsELF(data) {
		var actual []byte
		if len(data) >= 4 {
			actual = data[:4]
		} else {
			actual = data
		}
		return nil, newParseError(ErrFormat, 0, "elf.magic", []byte(safeelf.ELFMAG), actual)
	}

	elfFile, err := safeelf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, newParseError(ErrFormat, 0, "elf.header", "valid ELF file", err.Error())
	}

	resolver := newELFResolver(elfFile, data)

	var out []NVInfoSection
	for _, section := range resolver.nvInfoSections() {
		sectionData, err := resolver.sectionBytes(section)
		if err != nil {
			return nil, err
		}

		log.Tracef("Parsing cubin section %s (%d bytes at %#x)", section.Name, len(sectionData), section.Offset)

		items, err := ParseNVInfoSection(sectionData, int(section.Offset), resolver)
		if err != nil {
			return nil, fmt.Errorf("error parsing section %s: %w", section.Name, err)
		}

		out = append(out, NVInfoSection{Name: section.Name, Items: items})
	}

	return out, nil
}
