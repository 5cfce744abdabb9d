// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package cuda

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/cuda-inspect/pkg/gpu/cuda/testutil"
)

// compressibleData returns data that compresses far beyond the initial LZ4 buffer
func compressibleData(size int) []byte {
	pattern := []byte(".nv.info.kernel\x00\x04\x17\x0c\x00")
	return bytes.Repeat(pattern, size/len(pattern)+1)[:size]
}

// compressZstdStream writes a frame without a content size, which declares the
// encoder window instead
func compressZstdStream(t *testing.T, data []byte) []byte {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderConcurrency(1))
	require.NoError(t, err)
	_, err = enc.Write(data)
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	return buf.Bytes()
}

func TestDecompressPayloadRoundTrip(t *testing.T) {
	small := buildTestCubin()
	large := compressibleData(256 << 10)

	lz4Small, err := testutil.CompressLZ4(small)
	require.NoError(t, err)
	lz4Large, err := testutil.CompressLZ4(large)
	require.NoError(t, err)
	zstdSmall, err := testutil.CompressZstd(small)
	require.NoError(t, err)
	zstdLarge, err := testutil.CompressZstd(large)
	require.NoError(t, err)

	cases := []struct {
		name        string
		payload     []byte
		expected    []byte
		compression payloadCompression
	}{
		{"lz4 cubin", lz4Small, small, compressionLZ4},
		{"lz4 high ratio", lz4Large, large, compressionLZ4},
		{"zstd cubin", zstdSmall, small, compressionZstd},
		{"zstd high ratio", zstdLarge, large, compressionZstd},
		{"zstd streamed frame", compressZstdStream(t, large), large, compressionZstd},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, compression, err := decompressPayload(tc.payload, uint64(len(tc.expected)), 0x40)
			require.NoError(t, err)
			assert.Equal(t, tc.compression, compression)
			assert.Equal(t, tc.expected, out)
		})
	}
}

func TestDecompressPayloadSizeMismatch(t *testing.T) {
	data := compressibleData(64 << 10)

	lz4Payload, err := testutil.CompressLZ4(data)
	require.NoError(t, err)
	zstdPayload, err := testutil.CompressZstd(data)
	require.NoError(t, err)

	for _, tc := range []struct {
		name     string
		payload  []byte
		declared uint64
	}{
		{"lz4 declared smaller", lz4Payload, uint64(len(data) - 8)},
		{"lz4 declared larger", lz4Payload, uint64(len(data) + 8)},
		{"zstd declared smaller", zstdPayload, uint64(len(data) - 8)},
		{"zstd declared larger", zstdPayload, uint64(len(data) + 8)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out, _, err := decompressPayload(tc.payload, tc.declared, 0x40)
			require.ErrorIs(t, err, ErrSizeMismatch)
			assert.Nil(t, out)

			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, "entry.uncompressed_size", parseErr.Field)
			assert.Equal(t, 0x40, parseErr.Offset)
		})
	}
}

func TestDecompressZstdReadsAtMostDeclaredSize(t *testing.T) {
	data := compressibleData(1 << 20)
	payload, err := testutil.CompressZstd(data)
	require.NoError(t, err)

	out, err := decompressZstd(payload, 1024)
	require.NoError(t, err)
	assert.Len(t, out, 1025)
}
