// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package testutil

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Fatbin layout constants
const (
	FatbinMagic           = 0xBA55ED50
	FatbinHeaderSize      = 16
	FatbinEntryHeaderSize = 64

	entryKindPTX = 1
	entryKindELF = 2

	entryFlagCompressed = 0x2000
)

// Offsets of the entry header fields, relative to the start of the entry
const (
	EntryKindOffset              = 0
	EntryVersionOffset           = 2
	EntryHeaderSizeOffset        = 4
	EntryPaddedPayloadSizeOffset = 8
	EntryPayloadSizeOffset       = 16
	EntrySmVersionOffset         = 28
	EntryFlagsOffset             = 40
	EntryUncompressedSizeOffset  = 56
)

// Compression selects how a builder entry payload is stored
type Compression int

// Supported payload encodings
const (
	NoCompression Compression = iota
	LZ4Compression
	ZstdCompression
)

type fatbinEntry struct {
	kind        uint16
	smVersion   uint32
	payload     []byte
	compression Compression
}

// FatbinBuilder builds fatbin containers
type FatbinBuilder struct {
	entries []fatbinEntry
}

// NewFatbinBuilder returns an empty builder
func NewFatbinBuilder() *FatbinBuilder {
	return &FatbinBuilder{}
}

// AddCubin adds an ELF entry for the given SM version
func (b *FatbinBuilder) AddCubin(smVersion uint32, cubin []byte, compression Compression) *FatbinBuilder {
	b.entries = append(b.entries, fatbinEntry{kind: entryKindELF, smVersion: smVersion, payload: cubin, compression: compression})
	return b
}

// AddPTX adds a PTX entry for the given SM version
func (b *FatbinBuilder) AddPTX(smVersion uint32, text string) *FatbinBuilder {
	b.entries = append(b.entries, fatbinEntry{kind: entryKindPTX, smVersion: smVersion, payload: []byte(text)})
	return b
}

// Build serializes the fatbin
func (b *FatbinBuilder) Build() ([]byte, error) {
	var body []byte
	for _, entry := range b.entries {
		stored, err := compress(entry.payload, entry.compression)
		if err != nil {
			return nil, fmt.Errorf("cannot compress sm_%d payload: %w", entry.smVersion, err)
		}

		header := make([]byte, FatbinEntryHeaderSize)
		paddedSize := alignUp(len(stored), 8)
		binary.LittleEndian.PutUint16(header[EntryKindOffset:], entry.kind)
		binary.LittleEndian.PutUint16(header[EntryVersionOffset:], 0x0101)
		binary.LittleEndian.PutUint32(header[EntryHeaderSizeOffset:], FatbinEntryHeaderSize)
		binary.LittleEndian.PutUint32(header[EntryPaddedPayloadSizeOffset:], uint32(paddedSize))
		binary.LittleEndian.PutUint32(header[EntryPayloadSizeOffset:], uint32(len(stored)))
		binary.LittleEndian.PutUint32(header[EntrySmVersionOffset:], entry.smVersion)
		if entry.compression != NoCompression {
			binary.LittleEndian.PutUint64(header[EntryFlagsOffset:], entryFlagCompressed)
			binary.LittleEndian.PutUint64(header[EntryUncompressedSizeOffset:], uint64(len(entry.payload)))
		}

		body = append(body, header...)
		body = append(body, stored...)
		body = pad(body, 8)
	}

	out := make([]byte, FatbinHeaderSize, FatbinHeaderSize+len(body))
	binary.LittleEndian.PutUint32(out[0:], FatbinMagic)
	binary.LittleEndian.PutUint16(out[4:], 1)
	binary.LittleEndian.PutUint16(out[6:], FatbinHeaderSize)
	binary.LittleEndian.PutUint64(out[8:], uint64(len(body)))
	return append(out, body...), nil
}

// MustBuild is like Build but panics on error
func (b *FatbinBuilder) MustBuild() []byte {
	data, err := b.Build()
	if err != nil {
		panic(err)
	}
	return data
}

// FatbinSection concatenates fatbins the way the host linker lays them out
// in a .nv_fatbin section, padding each one to 8 bytes
func FatbinSection(fatbins ...[]byte) []byte {
	var out []byte
	for _, fatbin := range fatbins {
		out = pad(out, 8)
		out = append(out, fatbin...)
	}
	return out
}

// CompressLZ4 compresses data as a single LZ4 block
func CompressLZ4(data []byte) ([]byte, error) {
	var c lz4.Compressor
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := c.CompressBlock(data, dst)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.New("data is not compressible")
	}
	return dst[:n], nil
}

// CompressZstd compresses data as a single zstd frame
func CompressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithZeroFrames(true))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func compress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case LZ4Compression:
		return CompressLZ4(data)
	case ZstdCompression:
		return CompressZstd(data)
	default:
		return data, nil
	}
}

func alignUp(v, align int) int {
	return (v + align - 1) &^ (align - 1)
}
