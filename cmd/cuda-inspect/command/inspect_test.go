// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package command

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/cuda-inspect/pkg/gpu/cuda"
	"github.com/DataDog/cuda-inspect/pkg/gpu/cuda/testutil"
)

func writeFatbin(t *testing.T, dir string, name string, smVersions ...uint32) string {
	t.Helper()

	builder := testutil.NewFatbinBuilder()
	for _, sm := range smVersions {
		cubin := testutil.NewCubinBuilder(sm).
			AddSection(".nv.info.kernel", (&testutil.NVInfoWriter{}).Immediate(testutil.FormatHVal, uint8(cuda.EIATTR_MAX_THREADS), 0x100).Bytes()).
			Build()
		builder.AddCubin(sm, cubin, testutil.LZ4Compression)
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, builder.MustBuild(), 0o644))
	return path
}

func TestInspectFilesIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	good := writeFatbin(t, dir, "good.fatbin", 75, 80)
	bad := filepath.Join(dir, "bad.bin")
	require.NoError(t, os.WriteFile(bad, []byte("not a CUDA file"), 0o644))
	missing := filepath.Join(dir, "missing")

	cfg := DefaultConfig()
	// a single worker makes the second parse of the same file a cache hit
	cfg.Workers = 1
	cfg.SmVersions = []uint32{80}

	paths := []string{good, bad, missing, good}
	results, err := InspectFiles(context.Background(), cfg, paths)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, result := range results {
		assert.Equal(t, paths[i], result.Path)
	}

	require.NoError(t, results[0].Err)
	assert.Equal(t, []uint32{80}, results[0].Data.Fatbin.SortedSMVersions())
	require.ErrorIs(t, results[1].Err, cuda.ErrNoCUDAData)
	require.Error(t, results[2].Err)
	require.NoError(t, results[3].Err)
	assert.Same(t, results[0].Data, results[3].Data)

	err = CollectErrors(results)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	assert.ErrorContains(t, err, "bad.bin")
	assert.ErrorContains(t, err, "missing")
}

func TestInspectFilesCancelled(t *testing.T) {
	path := writeFatbin(t, t.TempDir(), "app.fatbin", 75)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := InspectFiles(ctx, DefaultConfig(), []string{path})
	require.NoError(t, err)
	require.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestCollectErrorsNone(t *testing.T) {
	assert.NoError(t, CollectErrors([]FileResult{{Path: "a"}, {Path: "b"}}))
	assert.NoError(t, CollectErrors(nil))
}

func TestInspectFlagsApply(t *testing.T) {
	var flags InspectFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Register(fs)

	cfg := DefaultConfig()
	cfg.SmVersions = []uint32{90}
	flags.Apply(fs, cfg)
	assert.Equal(t, []uint32{90}, cfg.SmVersions)

	require.NoError(t, fs.Parse([]string{"--sm", "75,86", "-j", "3"}))
	flags.Apply(fs, cfg)
	assert.Equal(t, []uint32{75, 86}, cfg.SmVersions)
	assert.Equal(t, 3, cfg.Workers)
}
