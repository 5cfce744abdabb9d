// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package testutil contains helpers to build synthetic cubins and fatbins for testing.
package testutil

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// Machine types used by the builders
const (
	MachineX86_64 uint16 = 62
	MachineCUDA   uint16 = 190
)

const (
	elfHeaderSize     = 64
	sectionHeaderSize = 64
	symbolSize        = 24

	shtProgbits  = 1
	shtSymtab    = 2
	shtStrtab    = 3
	shtCudaInfo  = 0x70000000
	symInfoFunc  = 0x12 // STB_GLOBAL | STT_FUNC
	dataAlignment = 8
)

type elfSection struct {
	name string
	typ  uint32
	data []byte
}

// ELFBuilder builds minimal little-endian ELF64 files with arbitrary sections
// and a symbol table
type ELFBuilder struct {
	machine  uint16
	flags    uint32
	sections []elfSection
	symbols  []string
}

// NewCubinBuilder returns a builder for a cubin targeting the given SM version
func NewCubinBuilder(smVersion uint32) *ELFBuilder {
	return &ELFBuilder{machine: MachineCUDA, flags: smVersion}
}

// NewHostELFBuilder returns a builder for an x86-64 host executable
func NewHostELFBuilder() *ELFBuilder {
	return &ELFBuilder{machine: MachineX86_64}
}

// AddSymbol appends a function symbol and returns its symbol table index.
// Index 0 is the reserved null symbol, so the first symbol gets index 1.
func (b *ELFBuilder) AddSymbol(name string) uint32 {
	b.symbols = append(b.symbols, name)
	return uint32(len(b.symbols))
}

// AddSection appends a section with the given contents. .nv.info sections get
// the NVIDIA-specific section type, others are PROGBITS.
func (b *ELFBuilder) AddSection(name string, data []byte) *ELFBuilder {
	typ := uint32(shtProgbits)
	if strings.HasPrefix(name, ".nv.info") {
		typ = shtCudaInfo
	}
	b.sections = append(b.sections, elfSection{name: name, typ: typ, data: data})
	return b
}

// Build serializes the ELF file
func (b *ELFBuilder) Build() []byte {
	var shstrtab, strtab bytes.Buffer
	shstrtab.WriteByte(0)
	strtab.WriteByte(0)

	addName := func(buf *bytes.Buffer, name string) uint32 {
		off := uint32(buf.Len())
		buf.WriteString(name)
		buf.WriteByte(0)
		return off
	}

	symtab := make([]byte, symbolSize) // null symbol
	for i, name := range b.symbols {
		sym := make([]byte, symbolSize)
		binary.LittleEndian.PutUint32(sym[0:], addName(&strtab, name))
		sym[4] = symInfoFunc
		binary.LittleEndian.PutUint64(sym[8:], uint64(i+1)*0x10)
		symtab = append(symtab, sym...)
	}

	type header struct {
		nameOff uint32
		typ     uint32
		link    uint32
		info    uint32
		entsize uint64
		data    []byte
	}

	// Section 0 is the null section, 1 the section names, 2 the symbol names, 3 the symbols
	headers := []header{
		{},
		{nameOff: addName(&shstrtab, ".shstrtab"), typ: shtStrtab},
		{nameOff: addName(&shstrtab, ".strtab"), typ: shtStrtab},
		{nameOff: addName(&shstrtab, ".symtab"), typ: shtSymtab, link: 2, info: 1, entsize: symbolSize, data: symtab},
	}
	for _, s := range b.sections {
		headers = append(headers, header{nameOff: addName(&shstrtab, s.name), typ: s.typ, data: s.data})
	}
	headers[1].data = shstrtab.Bytes()
	headers[2].data = strtab.Bytes()

	out := make([]byte, elfHeaderSize)
	offsets := make([]uint64, len(headers))
	for i := 1; i < len(headers); i++ {
		out = pad(out, dataAlignment)
		offsets[i] = uint64(len(out))
		out = append(out, headers[i].data...)
	}

	out = pad(out, dataAlignment)
	shoff := uint64(len(out))
	for i, h := range headers {
		sh := make([]byte, sectionHeaderSize)
		binary.LittleEndian.PutUint32(sh[0:], h.nameOff)
		binary.LittleEndian.PutUint32(sh[4:], h.typ)
		if i != 0 {
			binary.LittleEndian.PutUint64(sh[24:], offsets[i])
			binary.LittleEndian.PutUint64(sh[32:], uint64(len(h.data)))
			binary.LittleEndian.PutUint64(sh[48:], 1)
		}
		binary.LittleEndian.PutUint32(sh[40:], h.link)
		binary.LittleEndian.PutUint32(sh[44:], h.info)
		binary.LittleEndian.PutUint64(sh[56:], h.entsize)
		out = append(out, sh...)
	}

	// ELF header
	copy(out[0:], []byte{0x7f, 'E', 'L', 'F', 2 /* 64 bits */, 1 /* little endian */, 1 /* version */})
	binary.LittleEndian.PutUint16(out[16:], 2) // ET_EXEC
	binary.LittleEndian.PutUint16(out[18:], b.machine)
	binary.LittleEndian.PutUint32(out[20:], 1)
	binary.LittleEndian.PutUint64(out[40:], shoff)
	binary.LittleEndian.PutUint32(out[48:], b.flags)
	binary.LittleEndian.PutUint16(out[52:], elfHeaderSize)
	binary.LittleEndian.PutUint16(out[58:], sectionHeaderSize)
	binary.LittleEndian.PutUint16(out[60:], uint16(len(headers)))
	binary.LittleEndian.PutUint16(out[62:], 1)

	return out
}

func pad(b []byte, align int) []byte {
	for len(b)%align != 0 {
		b = append(b, 0)
	}
	return b
}
