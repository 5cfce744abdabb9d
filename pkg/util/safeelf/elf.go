// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package safeelf wraps the standard library ELF reader so that malformed
// inputs surface as errors instead of panics.
package safeelf

import (
	"debug/elf" //nolint:depguard
	"fmt"
	"io"
)

// File is a wrapper around *elf.File that recovers from panics raised by the
// standard library while parsing untrusted binaries.
type File struct {
	*elf.File
}

// NewFile creates a new ELF file reader from the given io.ReaderAt
func NewFile(r io.ReaderAt) (f *File, err error) {
	defer func() {
		if r := recover(); r != nil {
			f = nil
			err = fmt.Errorf("recovered from panic while parsing ELF file: %v", r)
		}
	}()

	ef, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}
	return &File{File: ef}, nil
}

// Open opens the named file and parses it as an ELF binary
func Open(path string) (f *File, err error) {
	defer func() {
		if r := recover(); r != nil {
			f = nil
			err = fmt.Errorf("recovered from panic while opening ELF file %s: %v", path, r)
		}
	}()

	ef, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{File: ef}, nil
}

// Symbols returns the symbol table of the file, recovering from any panic
// raised by the standard library.
func (f *File) Symbols() (syms []Symbol, err error) {
	defer func() {
		if r := recover(); r != nil {
			syms = nil
			err = fmt.Errorf("recovered from panic while reading ELF symbols: %v", r)
		}
	}()

	return f.File.Symbols()
}

// SectionData returns the contents of the named section, or nil if the
// section does not exist.
func (f *File) SectionData(name string) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = fmt.Errorf("recovered from panic while reading ELF section %s: %v", name, r)
		}
	}()

	section := f.Section(name)
	if section == nil {
		return nil, nil
	}
	if section.Type == SHT_NOBITS {
		return nil, fmt.Errorf("section %s has no data in file", name)
	}
	return section.Data()
}
