// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package cuda

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/cuda-inspect/pkg/gpu/cuda/testutil"
)

func TestFileCacheHitAndMiss(t *testing.T) {
	cache, err := NewFileCache(10, nil)
	require.NoError(t, err)

	path := writeTestFile(t, "app", buildTestHostELF(t))

	first, err := cache.GetSymbols(path)
	require.NoError(t, err)
	second, err := cache.GetSymbols(path)
	require.NoError(t, err)

	// the second call returns the cached data without parsing again
	assert.Same(t, first, second)
	assert.Equal(t, CacheStats{Hits: 1, Misses: 1, Errors: 0, Size: 1}, cache.Stats())

	cache.Purge()
	third, err := cache.GetSymbols(path)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, first, third)
	assert.Equal(t, uint64(2), cache.Stats().Misses)
}

func TestFileCacheErrors(t *testing.T) {
	cache, err := NewFileCache(10, nil)
	require.NoError(t, err)

	_, err = cache.GetSymbols(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	notCUDA := writeTestFile(t, "script.sh", []byte("#!/bin/sh\n"))
	_, err = cache.GetSymbols(notCUDA)
	require.ErrorIs(t, err, ErrNoCUDAData)

	// failures are not cached
	_, err = cache.GetSymbols(notCUDA)
	require.ErrorIs(t, err, ErrNoCUDAData)

	assert.Equal(t, CacheStats{Hits: 0, Misses: 2, Errors: 3, Size: 0}, cache.Stats())
}

func TestFileCacheEviction(t *testing.T) {
	cache, err := NewFileCache(1, nil)
	require.NoError(t, err)

	fatbin := testutil.NewFatbinBuilder().AddCubin(75, buildTestCubin(), testutil.NoCompression).MustBuild()
	pathA := writeTestFile(t, "a", fatbin)
	pathB := writeTestFile(t, "b", buildTestCubin())

	_, err = cache.GetSymbols(pathA)
	require.NoError(t, err)
	_, err = cache.GetSymbols(pathB)
	require.NoError(t, err)
	_, err = cache.GetSymbols(pathA)
	require.NoError(t, err)

	stats := cache.Stats()
	assert.Equal(t, uint64(3), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestFileCacheInvalidSize(t *testing.T) {
	_, err := NewFileCache(0, nil)
	require.Error(t, err)
}

func TestFileCacheConcurrentAccess(t *testing.T) {
	cache, err := NewFileCache(10, map[uint32]struct{}{75: {}})
	require.NoError(t, err)

	path := writeTestFile(t, "app", buildTestHostELF(t))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := cache.GetSymbols(path)
			assert.NoError(t, err)
			if assert.NotNil(t, data) {
				assert.Equal(t, []uint32{75}, data.Fatbin.SortedSMVersions())
			}
		}()
	}
	wg.Wait()

	stats := cache.Stats()
	assert.Equal(t, uint64(8), stats.Hits+stats.Misses)
	assert.Equal(t, 1, stats.Size)
}
