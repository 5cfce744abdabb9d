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

func TestNewKernel(t *testing.T) {
	items := []NVInfoItem{
		{Format: EIFMT_HVAL, Attribute: EIATTR_CBANK_PARAM_SIZE, Value: ImmediateValue(0x18)},
		{Format: EIFMT_HVAL, Attribute: EIATTR_MAXREG_COUNT, Value: ImmediateValue(0xff)},
		{Format: EIFMT_SVAL, Attribute: EIATTR_KPARAM_INFO, Value: SizedValue{Size: 12, Payload: ParamInfo{Ordinal: 1, Offset: 0x8, SizeBytes: 8, IsCBank: true}}},
		{Format: EIFMT_SVAL, Attribute: EIATTR_KPARAM_INFO, Value: SizedValue{Size: 12, Payload: ParamInfo{Ordinal: 0, Offset: 0x0, SizeBytes: 8, IsCBank: true}}},
		{Format: EIFMT_SVAL, Attribute: EIATTR_REQNTID, Value: SizedValue{Size: 12, Payload: RawWords{128, 1, 1}}},
		{Format: EIFMT_SVAL, Attribute: EIATTR_CTA_PER_CLUSTER, Value: SizedValue{Size: 12, Payload: RawWords{2, 1, 1}}},
		{Format: EIFMT_NVAL, Attribute: EIATTR_EXPLICIT_CLUSTER, Value: NoValue{}},
		{Format: EIFMT_SVAL, Attribute: EIATTR_EXTERNS, Value: SizedValue{Size: 4, Payload: ExternSymbol{Index: 3, Name: "myFunc"}}},
		{Format: EIFMT_SVAL, Attribute: EIATTR_EXIT_INSTR_OFFSETS, Value: SizedValue{Size: 4, Payload: RawWords{0x70}}},
		{Format: EIFMT_SVAL, Attribute: EIATTR_EXIT_INSTR_OFFSETS, Value: SizedValue{Size: 4, Payload: RawWords{0xf0}}},
		{Format: EIFMT_SVAL, Attribute: EIATTR_COOP_GROUP_INSTR_OFFSETS, Value: SizedValue{Size: 4, Payload: RawWords{0x30}}},
		{Format: EIFMT_SVAL, Attribute: EIATTR_MAX_CLUSTER_RANK, Value: SizedValue{Size: 4, Payload: RawWords{8}}},
		{Format: EIFMT_SVAL, Attribute: NVInfoAttribute(0x60), Value: SizedValue{Size: 4, Payload: RawWords{1}}},
	}

	kernel := NewKernel("vectorAdd", 90, items)

	expected := &Kernel{
		Name:      "vectorAdd",
		SmVersion: 90,
		Params: []ParamInfo{
			{Ordinal: 0, Offset: 0x0, SizeBytes: 8, IsCBank: true},
			{Ordinal: 1, Offset: 0x8, SizeBytes: 8, IsCBank: true},
		},
		ParamBufferSize:       0x18,
		MaxRegCount:           0xff,
		ReqNTID:               []uint32{128, 1, 1},
		CTAPerCluster:         []uint32{2, 1, 1},
		ExplicitCluster:       true,
		MaxClusterRank:        8,
		Externs:               []string{"myFunc"},
		ExitInstrOffsets:      []uint32{0x70, 0xf0},
		CoopGroupInstrOffsets: []uint32{0x30},
	}
	assert.Equal(t, expected, kernel)
}

func TestNewKernelMaxThreads(t *testing.T) {
	kernel := NewKernel("k", 75, testKernelItems())
	assert.Equal(t, []uint32{0x100}, kernel.MaxThreads)

	kernel = NewKernel("k", 75, []NVInfoItem{
		{Format: EIFMT_SVAL, Attribute: EIATTR_MAX_THREADS, Value: SizedValue{Size: 12, Payload: RawWords{256, 2, 1}}},
	})
	assert.Equal(t, []uint32{256, 2, 1}, kernel.MaxThreads)
}

func TestFatbinGetKernels(t *testing.T) {
	cubin := testutil.NewCubinBuilder(75).
		AddSection(".nv.info.zeta", testKernelSection()).
		AddSection(".nv.info", testKernelSection()).
		AddSection(".nv.info.alpha", testKernelSection()).
		Build()

	data := testutil.NewFatbinBuilder().
		AddCubin(90, cubin, testutil.NoCompression).
		AddCubin(75, cubin, testutil.LZ4Compression).
		MustBuild()

	fatbin, err := ParseFatbin(data, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, fatbin.NumKernels())

	type key struct {
		name string
		sm   uint32
	}
	var got []key
	for kernel := range fatbin.GetKernels() {
		got = append(got, key{kernel.Name, kernel.SmVersion})
		assert.Equal(t, []uint32{0x100}, kernel.MaxThreads)
	}

	assert.Equal(t, []key{{"alpha", 75}, {"zeta", 75}, {"alpha", 90}, {"zeta", 90}}, got)

	// stopping the iteration early is supported
	var first *Kernel
	for kernel := range fatbin.GetKernels() {
		first = kernel
		break
	}
	require.NotNil(t, first)
	assert.Equal(t, "alpha", first.Name)
	assert.Equal(t, uint32(75), first.SmVersion)
}

func TestExecutableDataKernels(t *testing.T) {
	cubinData, err := ParseFileData(buildTestCubin(), nil)
	require.NoError(t, err)

	kernels := cubinData.Kernels()
	require.Len(t, kernels, 1)
	assert.Equal(t, &Kernel{Name: "testKernel", MaxThreads: []uint32{0x100}}, kernels[0])

	fatbin := testutil.NewFatbinBuilder().AddCubin(75, buildTestCubin(), testutil.NoCompression).MustBuild()
	fatbinData, err := ParseFileData(fatbin, nil)
	require.NoError(t, err)

	kernels = fatbinData.Kernels()
	require.Len(t, kernels, 1)
	assert.Equal(t, &Kernel{Name: "testKernel", SmVersion: 75, MaxThreads: []uint32{0x100}}, kernels[0])
}
