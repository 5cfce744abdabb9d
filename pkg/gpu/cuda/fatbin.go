// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package cuda

import (
	"encoding/binary"
	"fmt"

	"github.com/DataDog/cuda-inspect/pkg/util/log"
)

// See https://gist.github.com/malfet/8990c577d61c1a46fa87e7d93b8dfdf8 for the layout of the fatbin container

const (
	fatbinMagic   = 0xBA55ED50
	fatbinVersion = 1

	// fatbinHeaderReadSize is the number of bytes of the container header we decode
	fatbinHeaderReadSize = 16

	fatbinEntryVersion = 0x0101
	// fatbinEntryHeaderSize is the size of the fixed part of an entry header
	fatbinEntryHeaderSize = 64

	// fatbinSectionAlignment is the alignment of consecutive fatbins inside a .nv_fatbin section
	fatbinSectionAlignment = 8
)

// FatbinEntryKind is the kind of payload stored in a fatbin entry
type FatbinEntryKind uint16

// Known fatbin entry kinds
const (
	FatbinEntryPTX FatbinEntryKind = 1
	FatbinEntryELF FatbinEntryKind = 2
)

func (k FatbinEntryKind) String() string {
	switch k {
	case FatbinEntryPTX:
		return "ptx"
	case FatbinEntryELF:
		return "elf"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(k))
	}
}

// fatbinHeader is the header of the whole fatbin container
type fatbinHeader struct {
	magic      uint32
	version    uint16
	headerSize uint16
	fatSize    uint64 // not including this header
}

// fatbinEntryHeader is the header of each payload stored in a fatbin
type fatbinEntryHeader struct {
	kind              FatbinEntryKind
	version           uint16
	headerSize        uint32
	paddedPayloadSize uint32
	payloadSize       uint32
	smVersion         uint32
	flags             uint64
	uncompressedSize  uint64
}

// Fatbin holds the .nv.info data of all the cubins embedded in one or more fatbins
type Fatbin struct {
	// SMVersions maps each SM version to the .nv.info sections of its cubins.
	// If two cubins for the same SM version contain a section with the same
	// name, the one seen last is kept.
	SMVersions map[uint32]SectionMap

	// CompressedPayloads is the number of ELF payloads that were stored compressed
	CompressedPayloads int
	// UncompressedPayloads is the number of ELF payloads that were stored raw
	UncompressedPayloads int
	// PTXPayloads is the number of PTX payloads, which are not parsed
	PTXPayloads int
	// SkippedPayloads is the number of ELF payloads ignored because of their SM version
	SkippedPayloads int
}

// NewFatbin returns an empty Fatbin
func NewFatbin() *Fatbin {
	return &Fatbin{SMVersions: make(map[uint32]SectionMap)}
}

// IsFatbin returns true if the buffer starts with the fatbin magic
func IsFatbin(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == fatbinMagic
}

// FatbinSize returns the total size in bytes of the fatbin at the start of the
// buffer, header included.
func FatbinSize(data []byte) (uint64, error) {
	header, err := readFatbinHeader(newByteReader(data, 0))
	if err != nil {
		return 0, err
	}
	return uint64(header.headerSize) + header.fatSize, nil
}

// ParseFatbin parses a single fatbin container. Only ELF payloads whose SM
// version is in wantedSmVersions are decoded; a nil set means all of them.
func ParseFatbin(data []byte, wantedSmVersions map[uint32]struct{}) (*Fatbin, error) {
	fatbin := NewFatbin()
	if _, err := fatbin.parse(newByteReader(data, 0), wantedSmVersions); err != nil {
		return nil, err
	}
	return fatbin, nil
}

// ParseFatbinSection parses the contents of a host executable .nv_fatbin
// section, which holds one or more fatbins stored back to back, each aligned
// to 8 bytes. All of them are merged in a single Fatbin.
func ParseFatbinSection(data []byte, wantedSmVersions map[uint32]struct{}) (*Fatbin, error) {
	fatbin := NewFatbin()
	r := newByteReader(data, 0)

	for r.remaining() > 0 {
		// Skip the zero padding between fatbins
		if aligned := alignUp(r.pos, fatbinSectionAlignment); aligned != r.pos {
			if err := r.seek(min(aligned, len(r.data)), "fatbin.padding"); err != nil {
				return nil, err
			}
			continue
		}
		if r.remaining() < 4 || binary.LittleEndian.Uint32(r.data[r.pos:]) == 0 {
			if err := r.skip(min(fatbinSectionAlignment, r.remaining()), "fatbin.padding"); err != nil {
				return nil, err
			}
			continue
		}

		start := r.offset()
		size, err := fatbin.parse(r, wantedSmVersions)
		if err != nil {
			return nil, fmt.Errorf("error parsing fatbin at offset %#x: %w", start, err)
		}
		log.Tracef("Parsed fatbin at offset %#x, size %d", start, size)
	}

	return fatbin, nil
}

func readFatbinHeader(r *byteReader) (fatbinHeader, error) {
	var header fatbinHeader
	var err error

	start := r.offset()
	if header.magic, err = r.uint32("fatbin.magic"); err != nil {
		return header, err
	}
	if header.magic != fatbinMagic {
		return header, newParseError(ErrFormat, start, "fatbin.magic", fmt.Sprintf("%#x", fatbinMagic), fmt.Sprintf("%#x", header.magic))
	}

	versionOffset := r.offset()
	if header.version, err = r.uint16("fatbin.version"); err != nil {
		return header, err
	}
	if header.version != fatbinVersion {
		return header, newParseError(ErrFormat, versionOffset, "fatbin.version", fatbinVersion, header.version)
	}

	if header.headerSize, err = r.uint16("fatbin.header_size"); err != nil {
		return header, err
	}
	if header.fatSize, err = r.uint64("fatbin.fat_size"); err != nil {
		return header, err
	}
	if header.headerSize < fatbinHeaderReadSize {
		return header, newParseError(ErrFormat, start+6, "fatbin.header_size", fmt.Sprintf(">= %d", fatbinHeaderReadSize), header.headerSize)
	}

	return header, nil
}

func readFatbinEntryHeader(r *byteReader) (fatbinEntryHeader, error) {
	var header fatbinEntryHeader

	start := r.offset()
	raw, err := r.bytes(fatbinEntryHeaderSize, "entry.header")
	if err != nil {
		return header, err
	}

	header.kind = FatbinEntryKind(binary.LittleEndian.Uint16(raw[0:]))
	header.version = binary.LittleEndian.Uint16(raw[2:])
	header.headerSize = binary.LittleEndian.Uint32(raw[4:])
	header.paddedPayloadSize = binary.LittleEndian.Uint32(raw[8:])
	header.payloadSize = binary.LittleEndian.Uint32(raw[16:])
	header.smVersion = binary.LittleEndian.Uint32(raw[28:])
	header.flags = binary.LittleEndian.Uint64(raw[40:])
	header.uncompressedSize = binary.LittleEndian.Uint64(raw[56:])

	if header.kind != FatbinEntryPTX && header.kind != FatbinEntryELF {
		return header, newParseError(ErrUnsupportedEntryKind, start, "entry.kind", "1 (ptx) or 2 (elf)", uint16(header.kind))
	}
	if header.version != fatbinEntryVersion {
		return header, newParseError(ErrFormat, start+2, "entry.version", fmt.Sprintf("%#x", fatbinEntryVersion), fmt.Sprintf("%#x", header.version))
	}
	if header.headerSize < fatbinEntryHeaderSize {
		return header, newParseError(ErrFormat, start+4, "entry.header_size", fmt.Sprintf(">= %d", fatbinEntryHeaderSize), header.headerSize)
	}

	return header, nil
}

// parse walks one fatbin container starting at the reader position, merging
// its cubins into f. It returns the number of bytes consumed.
func (f *Fatbin) parse(r *byteReader, wantedSmVersions map[uint32]struct{}) (uint64, error) {
	start := r.pos
	header, err := readFatbinHeader(r)
	if err != nil {
		return 0, err
	}

	log.Tracef("Got fatbin header at %#x: version=%d header_size=%d fat_size=%d", r.base+start, header.version, header.headerSize, header.fatSize)

	if err := r.seek(start+int(header.headerSize), "fatbin.header"); err != nil {
		return 0, err
	}

	remaining := header.fatSize
	for remaining > 0 {
		entryStart := r.pos
		entry, err := readFatbinEntryHeader(r)
		if err != nil {
			return 0, err
		}

		log.Tracef("Fatbin entry at %#x: kind=%s sm_%d header_size=%d padded_payload_size=%d payload_size=%d uncompressed_size=%d flags=%#x",
			r.base+entryStart, entry.kind, entry.smVersion, entry.headerSize, entry.paddedPayloadSize, entry.payloadSize, entry.uncompressedSize, entry.flags)

		if err := r.seek(entryStart+int(entry.headerSize), "entry.header"); err != nil {
			return 0, err
		}

		if err := f.parseEntry(r, entry, wantedSmVersions); err != nil {
			return 0, fmt.Errorf("error parsing %s entry for sm_%d at offset %#x: %w", entry.kind, entry.smVersion, r.base+entryStart, err)
		}

		consumed := uint64(entry.headerSize) + uint64(entry.paddedPayloadSize)
		if consumed > remaining {
			return 0, newParseError(ErrSizeMismatch, r.base+entryStart, "fatbin.fat_size", fmt.Sprintf(">= %d", consumed), remaining)
		}
		remaining -= consumed
	}

	return uint64(r.pos - start), nil
}

// parseEntry decodes the payload of an entry, leaving the reader positioned
// right after the padded payload
func (f *Fatbin) parseEntry(r *byteReader, entry fatbinEntryHeader, wantedSmVersions map[uint32]struct{}) error {
	payloadOffset := r.offset()
	padded, err := r.bytes(int(entry.paddedPayloadSize), "entry.payload")
	if err != nil {
		return err
	}

	if entry.kind == FatbinEntryPTX {
		log.Tracef("Ignoring PTX payload for sm_%d", entry.smVersion)
		f.PTXPayloads++
		return nil
	}

	if wantedSmVersions != nil {
		if _, ok := wantedSmVersions[entry.smVersion]; !ok {
			log.Tracef("Skipping ELF payload for unwanted sm_%d", entry.smVersion)
			f.SkippedPayloads++
			return nil
		}
	}

	var cubin []byte
	if entry.uncompressedSize != 0 {
		if entry.payloadSize > entry.paddedPayloadSize {
			return newParseError(ErrSizeMismatch, payloadOffset, "entry.payload_size", fmt.Sprintf("<= %d", entry.paddedPayloadSize), entry.payloadSize)
		}

		var compression payloadCompression
		cubin, compression, err = decompressPayload(padded[:entry.payloadSize], entry.uncompressedSize, payloadOffset)
		if err != nil {
			return err
		}
		log.Tracef("Decompressed %s payload for sm_%d: %d -> %d bytes", compression, entry.smVersion, entry.payloadSize, len(cubin))
		f.CompressedPayloads++
	} else {
		cubin = padded
		f.UncompressedPayloads++
	}

	if !IsELF(cubin) {
		var actual []byte
		if len(cubin) >= 4 {
			actual = cubin[:4]
		} else {
			actual = cubin
		}
		return newParseError(ErrFormat, payloadOffset, "entry.elf_magic", []byte("\x7fELF"), actual)
	}

	sections, err := ParseCubin(cubin)
	if err != nil {
		return err
	}

	f.merge(entry.smVersion, sections)
	return nil
}

// merge adds the sections of a cubin to the given SM version. Sections with a
// name already present are overwritten.
func (f *Fatbin) merge(smVersion uint32, sections []NVInfoSection) {
	toFill, ok := f.SMVersions[smVersion]
	if !ok {
		toFill = make(SectionMap)
		f.SMVersions[smVersion] = toFill
	}

	for _, section := range sections {
		if _, exists := toFill[section.Name]; exists {
			log.Debugf("Section %s for sm_%d seen more than once, keeping the last one", section.Name, smVersion)
		}
		toFill[section.Name] = section.Items
	}
}

func alignUp(v, align int) int {
	return (v + align - 1) &^ (align - 1)
}
