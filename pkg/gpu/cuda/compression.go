// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package cuda

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// zstdFrameMagic is the little-endian encoding of the zstd frame magic number
var zstdFrameMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

const (
	lz4InitialRatio  = 4
	lz4MinBufferSize = 4096

	// zstdMinWindowSize is the default window of the reference zstd encoder
	zstdMinWindowSize = 8 << 20
)

// payloadCompression identifies the codec used by a compressed fatbin payload
type payloadCompression int

const (
	compressionLZ4 payloadCompression = iota
	compressionZstd
)

func (c payloadCompression) String() string {
	if c == compressionZstd {
		return "zstd"
	}
	return "lz4"
}

func detectCompression(payload []byte) payloadCompression {
	if bytes.HasPrefix(payload, zstdFrameMagic) {
		return compressionZstd
	}
	return compressionLZ4
}

// decompressPayload decompresses a fatbin payload that is expected to expand
// to exactly uncompressedSize bytes. offset is the file offset of the payload,
// used for error reporting.
func decompressPayload(payload []byte, uncompressedSize uint64, offset int) ([]byte, payloadCompression, error) {
	compression := detectCompression(payload)

	// The declared size is untrusted; refuse to allocate more than what the
	// best possible compression ratio could produce.
	if uncompressedSize > maxDecompressedSize(len(payload), compression) {
		return nil, compression, newParseError(ErrSizeMismatch, offset, "entry.uncompressed_size", maxDecompressedSize(len(payload), compression), uncompressedSize)
	}

	var out []byte
	var err error
	switch compression {
	case compressionZstd:
		out, err = decompressZstd(payload, uncompressedSize)
	default:
		out, err = decompressLZ4(payload, maxDecompressedSize(len(payload), compression))
	}
	if err != nil {
		return nil, compression, newParseError(ErrFormat, offset, "entry.payload", compression.String()+" data", err.Error())
	}

	if uint64(len(out)) > uncompressedSize {
		return nil, compression, newParseError(ErrSizeMismatch, offset, "entry.uncompressed_size", uncompressedSize, fmt.Sprintf("at least %d", len(out)))
	}
	if uint64(len(out)) != uncompressedSize {
		return nil, compression, newParseError(ErrSizeMismatch, offset, "entry.uncompressed_size", uncompressedSize, len(out))
	}

	return out, compression, nil
}

func maxDecompressedSize(compressedSize int, compression payloadCompression) uint64 {
	if compression == compressionZstd {
		// zstd frames can reach ratios well beyond LZ4, use a generous bound
		return uint64(compressedSize) * 32768
	}
	// An LZ4 sequence of n bytes can expand to at most ~255*n bytes
	return uint64(compressedSize) * 255
}

// decompressLZ4 decodes an LZ4 block. The output buffer starts small and
// grows on short buffer errors, up to limit bytes.
func decompressLZ4(payload []byte, limit uint64) ([]byte, error) {
	size := min(max(uint64(len(payload))*lz4InitialRatio, lz4MinBufferSize), limit)
	for {
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err == nil {
			return out[:n], nil
		}
		if !errors.Is(err, lz4.ErrInvalidSourceShortBuffer) || size >= limit {
			return nil, err
		}
		size = min(size*2, limit)
	}
}

// decompressZstd decodes a zstd frame. At most uncompressedSize+1 bytes are
// read so that an oversized frame shows up as a length mismatch without
// being fully materialized.
func decompressZstd(payload []byte, uncompressedSize uint64) ([]byte, error) {
	window := min(max(maxDecompressedSize(len(payload), compressionZstd), zstdMinWindowSize), zstd.MaxWindowSize)

	decoder, err := zstd.NewReader(bytes.NewReader(payload),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
		zstd.WithDecoderMaxWindow(window),
	)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	return io.ReadAll(io.LimitReader(decoder, int64(uncompressedSize)+1))
}
