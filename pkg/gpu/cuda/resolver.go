// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package cuda

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DataDog/cuda-inspect/pkg/util/safeelf"
)

// SymbolResolver resolves symbol-table indexes to symbol names. It is the only
// dependency of the NVInfo decoder outside of the section bytes.
type SymbolResolver interface {
	SymbolName(index uint32) (string, error)
}

// elfResolver gives read-only access to the sections and symbols of a cubin
type elfResolver struct {
	file *safeelf.File
	data []byte

	symbolsLoaded bool
	symbols       []safeelf.Symbol
	symbolsErr    error
}

func newELFResolver(file *safeelf.File, data []byte) *elfResolver {
	return &elfResolver{file: file, data: data}
}

// nvInfoSections returns the .nv.info.* sections in section header order
func (r *elfResolver) nvInfoSections() []*safeelf.Section {
	var sections []*safeelf.Section
	for _, section := range r.file.Sections {
		if strings.HasPrefix(section.Name, nvInfoSectionPrefix) {
			sections = append(sections, section)
		}
	}
	return sections
}

// sectionBytes returns the raw file bytes of the section. The returned slice
// aliases the input buffer and must not be retained past the parse call.
func (r *elfResolver) sectionBytes(section *safeelf.Section) ([]byte, error) {
	if section.Type == safeelf.SHT_NOBITS {
		return nil, nil
	}

	start := section.Offset
	end := start + section.FileSize
	if end < start || end > uint64(len(r.data)) {
		return nil, newParseError(ErrTruncatedInput, int(start), "section "+section.Name, section.FileSize, uint64(len(r.data))-min(start, uint64(len(r.data))))
	}
	return r.data[start:end], nil
}

// SymbolName returns the name of the symbol at the given index of the ELF
// symbol table. Index 0 is the reserved null symbol, which has no name.
func (r *elfResolver) SymbolName(index uint32) (string, error) {
	if !r.symbolsLoaded {
		r.symbols, r.symbolsErr = r.file.Symbols()
		r.symbolsLoaded = true
	}

	if r.symbolsErr != nil && !errors.Is(r.symbolsErr, safeelf.ErrNoSymbols) {
		return "", newParseError(ErrUnresolvedSymbol, 0, "symtab", "readable symbol table", r.symbolsErr.Error())
	}

	if index == 0 {
		return "", nil
	}

	// The standard library drops the null symbol, so everything is shifted by one
	if int(index) > len(r.symbols) {
		return "", newParseError(ErrUnresolvedSymbol, 0, "symtab", fmt.Sprintf("index < %d", len(r.symbols)+1), index)
	}

	return r.symbols[index-1].Name, nil
}
