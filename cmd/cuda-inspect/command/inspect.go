// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package command

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/DataDog/cuda-inspect/pkg/gpu/cuda"
	"github.com/DataDog/cuda-inspect/pkg/util/log"
)

// InspectFlags are the command line flags shared by the subcommands reading CUDA files
type InspectFlags struct {
	SmVersions []uint
	Workers    int
}

// Register adds the flags to the given flag set
func (f *InspectFlags) Register(flags *pflag.FlagSet) {
	flags.UintSliceVarP(&f.SmVersions, "sm", "s", nil, "only decode cubins for these SM versions (e.g. 75,80), all by default")
	flags.IntVarP(&f.Workers, "jobs", "j", 0, "number of files parsed concurrently")
}

// Apply overrides the configuration with the flags explicitly set on the command line
func (f *InspectFlags) Apply(flags *pflag.FlagSet, cfg *Config) {
	if flags.Changed("sm") {
		cfg.SmVersions = make([]uint32, 0, len(f.SmVersions))
		for _, v := range f.SmVersions {
			cfg.SmVersions = append(cfg.SmVersions, uint32(v))
		}
	}
	if flags.Changed("jobs") && f.Workers > 0 {
		cfg.Workers = f.Workers
	}
}

// FileResult is the outcome of parsing one file
type FileResult struct {
	Path string
	Data *cuda.ExecutableData
	Err  error
}

// InspectFiles parses the files on a pool of cfg.Workers goroutines. Each file
// is parsed in isolation, so one failure does not affect the others. Results
// are returned in the order of paths.
func InspectFiles(ctx context.Context, cfg *Config, paths []string) ([]FileResult, error) {
	cache, err := cuda.NewFileCache(cfg.CacheSize, cfg.WantedSmVersions())
	if err != nil {
		return nil, err
	}

	results := make([]FileResult, len(paths))

	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for i, path := range paths {
		g.Go(func() error {
			results[i].Path = path
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}

			results[i].Data, results[i].Err = cache.GetSymbols(path)
			if results[i].Err != nil {
				log.Debugf("Cannot inspect %s: %v", path, results[i].Err)
			}
			return nil
		})
	}
	// the workers never fail, errors are stored per file
	_ = g.Wait()

	stats := cache.Stats()
	log.Debugf("Inspected %d files: %d parsed, %d cache hits, %d errors", len(paths), stats.Misses, stats.Hits, stats.Errors)

	return results, nil
}

// CollectErrors aggregates the failures of the results, in input order. It
// returns nil if all files were parsed.
func CollectErrors(results []FileResult) error {
	var errs *multierror.Error
	for _, result := range results {
		if result.Err != nil {
			errs = multierror.Append(errs, result.Err)
		}
	}
	return errs.ErrorOrNil()
}
