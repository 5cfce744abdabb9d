// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package cuda

import (
	"iter"
	"slices"
	"sort"
	"strings"
)

// Kernel summarizes the metadata found in the .nv.info.<name> section of a kernel
type Kernel struct {
	Name      string `json:"name"`
	SmVersion uint32 `json:"sm_version,omitempty"`

	// Params holds the layout of each kernel parameter, sorted by ordinal
	Params []ParamInfo `json:"params,omitempty"`
	// ParamBufferSize is the size in bytes of the parameter constant bank
	ParamBufferSize uint32 `json:"param_buffer_size,omitempty"`
	// MaxRegCount is the register limit requested at compile time
	MaxRegCount uint32 `json:"max_reg_count,omitempty"`
	// MaxThreads is the maximum block size (x, y, z) declared for the kernel
	MaxThreads []uint32 `json:"max_threads,omitempty"`
	// ReqNTID is the required block size (x, y, z) declared for the kernel
	ReqNTID []uint32 `json:"req_ntid,omitempty"`
	// CTAPerCluster is the cluster size (x, y, z) declared for the kernel
	CTAPerCluster   []uint32 `json:"cta_per_cluster,omitempty"`
	ExplicitCluster bool     `json:"explicit_cluster,omitempty"`
	MaxClusterRank  uint32   `json:"max_cluster_rank,omitempty"`
	// Externs lists the names of the external symbols used by the kernel
	Externs               []string `json:"externs,omitempty"`
	ExitInstrOffsets      []uint32 `json:"exit_instr_offsets,omitempty"`
	CoopGroupInstrOffsets []uint32 `json:"coop_group_instr_offsets,omitempty"`
}

// KernelName returns the kernel name encoded in a .nv.info.<name> section
// name, and false if the section is not a per-kernel section
func KernelName(sectionName string) (string, bool) {
	name, ok := strings.CutPrefix(sectionName, nvInfoSectionPrefix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// NewKernel builds the summary of a kernel from the items of its .nv.info section
func NewKernel(name string, smVersion uint32, items []NVInfoItem) *Kernel {
	kernel := &Kernel{Name: name, SmVersion: smVersion}

	for _, item := range items {
		if item.Attribute == EIATTR_EXPLICIT_CLUSTER {
			kernel.ExplicitCluster = true
			continue
		}

		switch v := item.Value.(type) {
		case ImmediateValue:
			kernel.applyImmediate(item.Attribute, uint32(v))
		case SizedValue:
			kernel.applySized(item.Attribute, v.Payload)
		}
	}

	sort.SliceStable(kernel.Params, func(i, j int) bool {
		return kernel.Params[i].Ordinal < kernel.Params[j].Ordinal
	})

	return kernel
}

func (k *Kernel) applyImmediate(attr NVInfoAttribute, v uint32) {
	switch attr {
	case EIATTR_CBANK_PARAM_SIZE:
		k.ParamBufferSize = v
	case EIATTR_MAXREG_COUNT:
		k.MaxRegCount = v
	case EIATTR_MAX_CLUSTER_RANK:
		k.MaxClusterRank = v
	case EIATTR_MAX_THREADS:
		k.MaxThreads = []uint32{v}
	}
}

func (k *Kernel) applySized(attr NVInfoAttribute, payload SizedPayload) {
	switch p := payload.(type) {
	case ParamInfo:
		k.Params = append(k.Params, p)
	case ExternSymbol:
		k.Externs = append(k.Externs, p.Name)
	case RawWords:
		words := slices.Clone([]uint32(p))
		switch attr {
		case EIATTR_MAX_THREADS:
			k.MaxThreads = words
		case EIATTR_REQNTID:
			k.ReqNTID = words
		case EIATTR_CTA_PER_CLUSTER:
			k.CTAPerCluster = words
		case EIATTR_MAX_CLUSTER_RANK:
			if len(words) > 0 {
				k.MaxClusterRank = words[0]
			}
		case EIATTR_EXIT_INSTR_OFFSETS:
			k.ExitInstrOffsets = append(k.ExitInstrOffsets, words...)
		case EIATTR_COOP_GROUP_INSTR_OFFSETS:
			k.CoopGroupInstrOffsets = append(k.CoopGroupInstrOffsets, words...)
		}
	}
}

// KernelsFromSections builds the kernel summaries of all the per-kernel
// sections in the map, sorted by kernel name
func KernelsFromSections(smVersion uint32, sections SectionMap) []*Kernel {
	names := make([]string, 0, len(sections))
	for sectionName := range sections {
		names = append(names, sectionName)
	}
	sort.Strings(names)

	var kernels []*Kernel
	for _, sectionName := range names {
		name, ok := KernelName(sectionName)
		if !ok {
			continue
		}
		kernels = append(kernels, NewKernel(name, smVersion, sections[sectionName]))
	}
	return kernels
}

// SortedSMVersions returns the SM versions present in the fatbin, in increasing order
func (f *Fatbin) SortedSMVersions() []uint32 {
	versions := make([]uint32, 0, len(f.SMVersions))
	for v := range f.SMVersions {
		versions = append(versions, v)
	}
	slices.Sort(versions)
	return versions
}

// GetKernels returns an iterator over the kernels of all the cubins in the
// fatbin, ordered by SM version and then by name
func (f *Fatbin) GetKernels() iter.Seq[*Kernel] {
	return func(yield func(*Kernel) bool) {
		for _, smVersion := range f.SortedSMVersions() {
			for _, kernel := range KernelsFromSections(smVersion, f.SMVersions[smVersion]) {
				if !yield(kernel) {
					return
				}
			}
		}
	}
}

// Kernels returns the kernel summaries of the file. The SM version of
// standalone cubins is not decoded and is left to zero.
func (d *ExecutableData) Kernels() []*Kernel {
	if d.Fatbin != nil {
		return slices.Collect(d.Fatbin.GetKernels())
	}

	sections := make(SectionMap, len(d.Cubin))
	for _, section := range d.Cubin {
		sections[section.Name] = section.Items
	}
	return KernelsFromSections(0, sections)
}

// NumKernels returns the number of kernels in the fatbin
func (f *Fatbin) NumKernels() int {
	count := 0
	for _, sections := range f.SMVersions {
		for sectionName := range sections {
			if _, ok := KernelName(sectionName); ok {
				count++
			}
		}
	}
	return count
}
