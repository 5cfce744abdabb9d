// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package nvinfo

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/cuda-inspect/cmd/cuda-inspect/command"
	"github.com/DataDog/cuda-inspect/pkg/gpu/cuda"
	"github.com/DataDog/cuda-inspect/pkg/gpu/cuda/testutil"
)

func maxThreadsSection() []byte {
	return (&testutil.NVInfoWriter{}).Immediate(testutil.FormatHVal, uint8(cuda.EIATTR_MAX_THREADS), 0x100).Bytes()
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := command.MakeCommand([]command.SubcommandFactory{Commands})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"nvinfo", "--no-color", "--log-level", "off"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestNvinfoCubin(t *testing.T) {
	cubin := testutil.NewCubinBuilder(75).AddSection(".nv.info.testKernel", maxThreadsSection()).Build()
	path := filepath.Join(t.TempDir(), "kernel.cubin")
	require.NoError(t, os.WriteFile(path, cubin, 0o644))

	out, err := runCommand(t, path)
	require.NoError(t, err)

	expected := ".nv.info.testKernel\n" +
		"\t<0x1>\n" +
		"\tAttribute:\tEIATTR_MAX_THREADS\n" +
		"\tFormat:\tEIFMT_HVAL\n" +
		"\tValue:\t0x100\n" +
		"\n\n"
	assert.Equal(t, expected, out)
}

func TestNvinfoFatbinFiltered(t *testing.T) {
	cubin := testutil.NewCubinBuilder(75).AddSection(".nv.info.testKernel", maxThreadsSection()).Build()
	fatbin := testutil.NewFatbinBuilder().
		AddCubin(75, cubin, testutil.ZstdCompression).
		AddCubin(90, cubin, testutil.NoCompression).
		MustBuild()
	path := filepath.Join(t.TempDir(), "app.fatbin")
	require.NoError(t, os.WriteFile(path, fatbin, 0o644))

	out, err := runCommand(t, "--sm", "90", path)
	require.NoError(t, err)
	assert.Contains(t, out, "arch = sm_90\n")
	assert.NotContains(t, out, "sm_75")
	assert.Contains(t, out, "\tAttribute:\tEIATTR_MAX_THREADS\n")
}

func TestNvinfoPartialFailure(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.cubin")
	require.NoError(t, os.WriteFile(good, testutil.NewCubinBuilder(80).AddSection(".nv.info.k", maxThreadsSection()).Build(), 0o644))
	bad := filepath.Join(dir, "bad.cubin")
	require.NoError(t, os.WriteFile(bad, testutil.NewCubinBuilder(80).AddSection(".nv.info.k", []byte{0x09, 0x05, 0, 0}).Build(), 0o644))

	out, err := runCommand(t, bad, good)
	require.ErrorIs(t, err, cuda.ErrFormat)
	assert.ErrorContains(t, err, "bad.cubin")

	// the valid file is still printed, with a header since there are several files
	assert.Contains(t, out, good+" (cubin):\n\n.nv.info.k\n")
	assert.NotContains(t, out, bad)
}

func TestNvinfoRequiresFile(t *testing.T) {
	_, err := runCommand(t)
	require.Error(t, err)
}
