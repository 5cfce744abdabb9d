// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package cuda

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/DataDog/cuda-inspect/pkg/util/safeelf"
)

// ErrNoCUDAData is returned when a file contains neither a fatbin nor a cubin
var ErrNoCUDAData = errors.New("no CUDA fatbin or cubin found")

// fatbinSectionNames are the host ELF sections that can hold fatbins
var fatbinSectionNames = []string{".nv_fatbin", "__nv_relfatbin"}

// FileKind is the kind of file GetFileData found
type FileKind int

// Kinds of files holding CUDA kernels
const (
	FileKindFatbin FileKind = iota
	FileKindHostELF
	FileKindCubin
)

func (k FileKind) String() string {
	switch k {
	case FileKindFatbin:
		return "fatbin"
	case FileKindHostELF:
		return "host-elf"
	case FileKindCubin:
		return "cubin"
	default:
		return "unknown"
	}
}

// ExecutableData holds all necessary data from a CUDA executable for
// getting necessary CUDA kernel data
type ExecutableData struct {
	Kind FileKind
	// SymbolTable maps symbol values to names, for host executables only
	SymbolTable map[uint64]string
	// Fatbin is set for fatbin files and host executables
	Fatbin *Fatbin
	// Cubin is set for standalone cubin files, sections in header order
	Cubin []NVInfoSection
}

// GetFileData reads the file at the given path and returns the parsed CUDA
// data. Only cubins for the given SM versions are decoded, nil means all.
func GetFileData(path string, wantedSmVersions map[uint32]struct{}) (*ExecutableData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", path, err)
	}

	execData, err := ParseFileData(data, wantedSmVersions)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}
	return execData, nil
}

// ParseFileData detects the kind of the buffer (fatbin, host executable or
// cubin) and parses it
func ParseFileData(data []byte, wantedSmVersions map[uint32]struct{}) (*ExecutableData, error) {
	if IsFatbin(data) {
		fatbin, err := ParseFatbin(data, wantedSmVersions)
		if err != nil {
			return nil, err
		}
		return &ExecutableData{Kind: FileKindFatbin, Fatbin: fatbin}, nil
	}

	if !IsELF(data) {
		return nil, ErrNoCUDAData
	}

	elfFile, err := safeelf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error opening ELF file: %w", err)
	}

	if elfFile.Machine == safeelf.EM_CUDA {
		cubin, err := ParseCubin(data)
		if err != nil {
			return nil, err
		}
		return &ExecutableData{Kind: FileKindCubin, Cubin: cubin}, nil
	}

	fatbin, err := ParseFatbinFromELFFile(elfFile, wantedSmVersions)
	if err != nil {
		return nil, err
	}

	execData := &ExecutableData{
		Kind:        FileKindHostELF,
		SymbolTable: make(map[uint64]string),
		Fatbin:      fatbin,
	}

	syms, err := elfFile.Symbols()
	if err != nil && !errors.Is(err, safeelf.ErrNoSymbols) {
		return nil, fmt.Errorf("error reading symbols from ELF file: %w", err)
	}

	for _, sym := range syms {
		execData.SymbolTable[sym.Value] = sym.Name
	}

	return execData, nil
}

// ParseFatbinFromELFFile parses all the fatbins stored in the fatbin sections
// of a host executable
func ParseFatbinFromELFFile(elfFile *safeelf.File, wantedSmVersions map[uint32]struct{}) (*Fatbin, error) {
	var result *Fatbin
	for _, name := range fatbinSectionNames {
		data, err := elfFile.SectionData(name)
		if err != nil {
			return nil, fmt.Errorf("error reading section %s: %w", name, err)
		}
		if data == nil {
			continue
		}

		fatbin, err := ParseFatbinSection(data, wantedSmVersions)
		if err != nil {
			return nil, fmt.Errorf("error parsing section %s: %w", name, err)
		}

		if result == nil {
			result = fatbin
			continue
		}
		result.mergeFatbin(fatbin)
	}

	if result == nil {
		return nil, ErrNoCUDAData
	}
	return result, nil
}

// mergeFatbin adds the contents of other to f, with the same overwrite
// policy as for cubins inside a single fatbin
func (f *Fatbin) mergeFatbin(other *Fatbin) {
	for _, smVersion := range other.SortedSMVersions() {
		f.merge(smVersion, SortedSections(other.SMVersions[smVersion]))
	}
	f.CompressedPayloads += other.CompressedPayloads
	f.UncompressedPayloads += other.UncompressedPayloads
	f.PTXPayloads += other.PTXPayloads
	f.SkippedPayloads += other.SkippedPayloads
}
