// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package cuda

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/atomic"

	"github.com/DataDog/cuda-inspect/pkg/util/log"
)

// fileIdentifier holds the inode and file size of a file, which we use to avoid
// parsing the same file multiple times when it has different paths (e.g., symlinks in /proc/PID/root)
// We add fileSize to the identifier to mitigate possible issues with inode reuse.
type fileIdentifier struct {
	inode    uint64
	fileSize int64
	// path is only set on platforms without inode numbers
	path string
}

// CacheStats holds the counters of a FileCache
type CacheStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Errors uint64 `json:"errors"`
	Size   int    `json:"size"`
}

// FileCache keeps the parsed CUDA data of recently seen files. It is safe for
// concurrent use.
type FileCache struct {
	entries          *lru.Cache[fileIdentifier, *ExecutableData]
	wantedSmVersions map[uint32]struct{}

	hits   *atomic.Uint64
	misses *atomic.Uint64
	errors *atomic.Uint64
}

// NewFileCache creates a cache holding up to size parsed files. Only cubins
// for the given SM versions are decoded, nil means all.
func NewFileCache(size int, wantedSmVersions map[uint32]struct{}) (*FileCache, error) {
	entries, err := lru.New[fileIdentifier, *ExecutableData](size)
	if err != nil {
		return nil, fmt.Errorf("cannot create file cache: %w", err)
	}

	return &FileCache{
		entries:          entries,
		wantedSmVersions: wantedSmVersions,
		hits:             atomic.NewUint64(0),
		misses:           atomic.NewUint64(0),
		errors:           atomic.NewUint64(0),
	}, nil
}

// GetSymbols returns the parsed CUDA data of the file, parsing it only if it
// is not already in the cache. Returned data is shared and must not be modified.
func (c *FileCache) GetSymbols(path string) (*ExecutableData, error) {
	fileIdent, err := buildFileIdentifier(path)
	if err != nil {
		// an error means we cannot access the file, so returning makes sense as we will fail later anyways
		c.errors.Inc()
		return nil, fmt.Errorf("error building file identifier for %s: %w", path, err)
	}

	if data, ok := c.entries.Get(fileIdent); ok {
		c.hits.Inc()
		return data, nil
	}
	c.misses.Inc()

	log.Debugf("Getting CUDA symbols for %s, wanted SM versions: %v", path, c.wantedSmVersions)

	data, err := GetFileData(path, c.wantedSmVersions)
	if err != nil {
		c.errors.Inc()
		return nil, err
	}

	c.entries.Add(fileIdent, data)
	return data, nil
}

// Stats returns a snapshot of the cache counters
func (c *FileCache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.errors.Load(),
		Size:   c.entries.Len(),
	}
}

// Purge removes all the entries of the cache
func (c *FileCache) Purge() {
	c.entries.Purge()
}
