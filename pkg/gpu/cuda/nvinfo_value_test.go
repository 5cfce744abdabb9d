// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package cuda

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/cuda-inspect/pkg/gpu/cuda/testutil"
)

func TestUnpackParamInfo(t *testing.T) {
	cases := []struct {
		name     string
		packed   uint32
		expected ParamInfo
	}{
		{
			name:     "zero",
			packed:   0,
			expected: ParamInfo{IsCBank: true},
		},
		{
			name:     "all ones",
			packed:   0xffffffff,
			expected: ParamInfo{LogAlignment: 0xff, Space: 0xf, CBank: 0x1f, IsCBank: false, SizeBytes: 0x3fff},
		},
		{
			name:     "pointer in constant bank",
			packed:   0x0021f000,
			expected: ParamInfo{CBank: 0x1f, IsCBank: true, SizeBytes: 8},
		},
		{
			name:     "log alignment boundary",
			packed:   0x000000ff,
			expected: ParamInfo{LogAlignment: 0xff, IsCBank: true},
		},
		{
			name:     "space boundary",
			packed:   0x00000f00,
			expected: ParamInfo{Space: 0xf, IsCBank: true},
		},
		{
			name:     "cbank boundary",
			packed:   0x0001f000,
			expected: ParamInfo{CBank: 0x1f, IsCBank: true},
		},
		{
			name:     "bit 17 clears cbank flag",
			packed:   0x00020000,
			expected: ParamInfo{IsCBank: false},
		},
		{
			name:     "bit 16 is shared by cbank and the low size word",
			packed:   0x00010000,
			expected: ParamInfo{CBank: 0x10, IsCBank: true},
		},
		{
			name:     "size boundary",
			packed:   0xfffc0000,
			expected: ParamInfo{IsCBank: true, SizeBytes: 0x3fff},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var info ParamInfo
			unpackParamInfo(&info, tc.packed)
			assert.Equal(t, tc.expected, info)
		})
	}
}

func TestUnpackParamInfoLaw(t *testing.T) {
	for _, tmp := range []uint32{0, 1, 0x80, 0xff, 0x100, 0xfff, 0x1000, 0x1ffff, 0x20000, 0x3ffff, 0x40000, 0x7fffffff, 0x80000000, 0xffffffff, 0x12345678} {
		var info ParamInfo
		unpackParamInfo(&info, tmp)

		q := (tmp >> 16) & 0xffff
		assert.Equal(t, uint8(tmp&0xff), info.LogAlignment, "tmp=%#x", tmp)
		assert.Equal(t, uint8((tmp>>8)&0xf), info.Space, "tmp=%#x", tmp)
		assert.Equal(t, uint8((tmp>>12)&0x1f), info.CBank, "tmp=%#x", tmp)
		assert.Equal(t, q&2 == 0, info.IsCBank, "tmp=%#x", tmp)
		assert.Equal(t, uint16(q>>2), info.SizeBytes, "tmp=%#x", tmp)
	}
}

func TestDecodeParamInfo(t *testing.T) {
	packed := testutil.PackParamFlags(0, 0, 0x1f, true, 8)
	data := (&testutil.NVInfoWriter{}).ParamInfo(uint8(EIATTR_KPARAM_INFO), 0, 2, 0x10, packed).Bytes()

	items, err := ParseNVInfoSection(data, 0, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)

	expected := ParamInfo{Index: 0, Ordinal: 2, Offset: 0x10, CBank: 0x1f, IsCBank: true, SizeBytes: 8}
	assert.Equal(t, SizedValue{Size: 12, Payload: expected}, items[0].Value)
}

func TestPackParamFlagsRoundTrip(t *testing.T) {
	packed := testutil.PackParamFlags(3, 0x5, 0x11, false, 0x123)

	var info ParamInfo
	unpackParamInfo(&info, packed)
	assert.Equal(t, ParamInfo{LogAlignment: 3, Space: 5, CBank: 0x11, IsCBank: false, SizeBytes: 0x123}, info)
}

func TestDecodeSizedPayloadDispatch(t *testing.T) {
	resolver := &mockSymbolResolver{}
	resolver.On("SymbolName", uint32(1)).Return("ext", nil)

	oneWord := []byte{0x01, 0x00, 0x00, 0x00}

	payload, err := decodeSizedPayload(newByteReader(oneWord, 0), EIATTR_EXTERNS, 4, resolver)
	require.NoError(t, err)
	assert.Equal(t, ExternSymbol{Index: 1, Name: "ext"}, payload)

	// any attribute without a dedicated layout decodes as words, whatever its format semantics
	for _, attr := range []NVInfoAttribute{EIATTR_MAX_THREADS, EIATTR_CUDA_API_VERSION, NVInfoAttribute(0xee)} {
		payload, err = decodeSizedPayload(newByteReader(oneWord, 0), attr, 4, resolver)
		require.NoError(t, err)
		assert.Equal(t, RawWords{1}, payload, attr.String())
	}

	resolver.AssertExpectations(t)
}
