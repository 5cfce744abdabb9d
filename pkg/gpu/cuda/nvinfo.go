// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package cuda

import "fmt"

// nvInfoSectionPrefix is the prefix of the per-kernel .nv.info sections
const nvInfoSectionPrefix = ".nv.info."

// NVInfoFormat selects the representation class of an NVInfo item payload
type NVInfoFormat uint8

// Known NVInfo formats
const (
	EIFMT_NVAL NVInfoFormat = 0x01 //nolint:revive // no value
	EIFMT_BVAL NVInfoFormat = 0x02 //nolint:revive // byte value, stored in two bytes
	EIFMT_HVAL NVInfoFormat = 0x03 //nolint:revive // half-word value
	EIFMT_SVAL NVInfoFormat = 0x04 //nolint:revive // sized value
)

func (f NVInfoFormat) String() string {
	switch f {
	case EIFMT_NVAL:
		return "EIFMT_NVAL"
	case EIFMT_BVAL:
		return "EIFMT_BVAL"
	case EIFMT_HVAL:
		return "EIFMT_HVAL"
	case EIFMT_SVAL:
		return "EIFMT_SVAL"
	default:
		return fmt.Sprintf("EIFMT_UNKNOWN_%#x", uint8(f))
	}
}

// NVInfoAttribute names the semantic kind of one NVInfo item. New codes get
// appended by each toolkit release, so values outside of this list are valid
// and are decoded structurally.
type NVInfoAttribute uint8

//nolint:revive
const (
	EIATTR_ERROR NVInfoAttribute = iota
	EIATTR_PAD
	EIATTR_IMAGE_SLOT
	EIATTR_JUMPTABLE_RELOCS
	EIATTR_CTAIDZ_USED
	EIATTR_MAX_THREADS
	EIATTR_IMAGE_OFFSET
	EIATTR_IMAGE_SIZE
	EIATTR_TEXTURE_NORMALIZED
	EIATTR_SAMPLER_INIT
	EIATTR_PARAM_CBANK
	EIATTR_SMEM_PARAM_OFFSETS
	EIATTR_CBANK_PARAM_OFFSETS
	EIATTR_SYNC_STACK
	EIATTR_TEXID_SAMPID_MAP
	EIATTR_EXTERNS
	EIATTR_REQNTID
	EIATTR_FRAME_SIZE
	EIATTR_MIN_STACK_SIZE
	EIATTR_SAMPLER_FORCE_UNNORMALIZED
	EIATTR_BINDLESS_IMAGE_OFFSETS
	EIATTR_BINDLESS_TEXTURE_BANK
	EIATTR_BINDLESS_SURFACE_BANK
	EIATTR_KPARAM_INFO
	EIATTR_SMEM_PARAM_SIZE
	EIATTR_CBANK_PARAM_SIZE
	EIATTR_QUERY_NUMATTRIB
	EIATTR_MAXREG_COUNT
	EIATTR_EXIT_INSTR_OFFSETS
	EIATTR_S2RCTAID_INSTR_OFFSETS
	EIATTR_CRS_STACK_SIZE
	EIATTR_NEED_CNP_WRAPPER
	EIATTR_NEED_CNP_PATCH
	EIATTR_EXPLICIT_CACHING
	EIATTR_ISTYPEP_USED
	EIATTR_MAX_STACK_SIZE
	EIATTR_SUQ_USED
	EIATTR_LD_CACHEMOD_INSTR_OFFSETS
	EIATTR_LOAD_CACHE_REQUEST
	EIATTR_ATOM_SYS_INSTR_OFFSETS
	EIATTR_COOP_GROUP_INSTR_OFFSETS
	EIATTR_COOP_GROUP_MAX_REGIDS
	EIATTR_SW1850030_WAR
	EIATTR_WMMA_USED
	EIATTR_HAS_PRE_V10_OBJECT
	EIATTR_ATOMF16_EMUL_INSTR_OFFSETS
	EIATTR_ATOM16_EMUL_INSTR_REG_MAP
	EIATTR_REGCOUNT
	EIATTR_SW2393858_WAR
	EIATTR_INT_WARP_WIDE_INSTR_OFFSETS
	EIATTR_SHARED_SCRATCH
	EIATTR_STATISTICS

	// Added between CUDA 10.2 and 11.6
	EIATTR_INDIRECT_BRANCH_TARGETS
	EIATTR_SW2861232_WAR
	EIATTR_SW_WAR
	EIATTR_CUDA_API_VERSION
	EIATTR_NUM_MBARRIERS
	EIATTR_MBARRIER_INSTR_OFFSETS
	EIATTR_COROUTINE_RESUME_ID_OFFSETS
	EIATTR_SAM_REGION_STACK_SIZE
	EIATTR_PER_REG_TARGET_PERF_STATS

	// Added between CUDA 11.6 and 11.8
	EIATTR_CTA_PER_CLUSTER
	EIATTR_EXPLICIT_CLUSTER
	EIATTR_MAX_CLUSTER_RANK
	EIATTR_INSTR_REG_MAP

	numKnownAttributes
)

var attributeNames = [numKnownAttributes]string{
	"EIATTR_ERROR",
	"EIATTR_PAD",
	"EIATTR_IMAGE_SLOT",
	"EIATTR_JUMPTABLE_RELOCS",
	"EIATTR_CTAIDZ_USED",
	"EIATTR_MAX_THREADS",
	"EIATTR_IMAGE_OFFSET",
	"EIATTR_IMAGE_SIZE",
	"EIATTR_TEXTURE_NORMALIZED",
	"EIATTR_SAMPLER_INIT",
	"EIATTR_PARAM_CBANK",
	"EIATTR_SMEM_PARAM_OFFSETS",
	"EIATTR_CBANK_PARAM_OFFSETS",
	"EIATTR_SYNC_STACK",
	"EIATTR_TEXID_SAMPID_MAP",
	"EIATTR_EXTERNS",
	"EIATTR_REQNTID",
	"EIATTR_FRAME_SIZE",
	"EIATTR_MIN_STACK_SIZE",
	"EIATTR_SAMPLER_FORCE_UNNORMALIZED",
	"EIATTR_BINDLESS_IMAGE_OFFSETS",
	"EIATTR_BINDLESS_TEXTURE_BANK",
	"EIATTR_BINDLESS_SURFACE_BANK",
	"EIATTR_KPARAM_INFO",
	"EIATTR_SMEM_PARAM_SIZE",
	"EIATTR_CBANK_PARAM_SIZE",
	"EIATTR_QUERY_NUMATTRIB",
	"EIATTR_MAXREG_COUNT",
	"EIATTR_EXIT_INSTR_OFFSETS",
	"EIATTR_S2RCTAID_INSTR_OFFSETS",
	"EIATTR_CRS_STACK_SIZE",
	"EIATTR_NEED_CNP_WRAPPER",
	"EIATTR_NEED_CNP_PATCH",
	"EIATTR_EXPLICIT_CACHING",
	"EIATTR_ISTYPEP_USED",
	"EIATTR_MAX_STACK_SIZE",
	"EIATTR_SUQ_USED",
	"EIATTR_LD_CACHEMOD_INSTR_OFFSETS",
	"EIATTR_LOAD_CACHE_REQUEST",
	"EIATTR_ATOM_SYS_INSTR_OFFSETS",
	"EIATTR_COOP_GROUP_INSTR_OFFSETS",
	"EIATTR_COOP_GROUP_MAX_REGIDS",
	"EIATTR_SW1850030_WAR",
	"EIATTR_WMMA_USED",
	"EIATTR_HAS_PRE_V10_OBJECT",
	"EIATTR_ATOMF16_EMUL_INSTR_OFFSETS",
	"EIATTR_ATOM16_EMUL_INSTR_REG_MAP",
	"EIATTR_REGCOUNT",
	"EIATTR_SW2393858_WAR",
	"EIATTR_INT_WARP_WIDE_INSTR_OFFSETS",
	"EIATTR_SHARED_SCRATCH",
	"EIATTR_STATISTICS",
	"EIATTR_INDIRECT_BRANCH_TARGETS",
	"EIATTR_SW2861232_WAR",
	"EIATTR_SW_WAR",
	"EIATTR_CUDA_API_VERSION",
	"EIATTR_NUM_MBARRIERS",
	"EIATTR_MBARRIER_INSTR_OFFSETS",
	"EIATTR_COROUTINE_RESUME_ID_OFFSETS",
	"EIATTR_SAM_REGION_STACK_SIZE",
	"EIATTR_PER_REG_TARGET_PERF_STATS",
	"EIATTR_CTA_PER_CLUSTER",
	"EIATTR_EXPLICIT_CLUSTER",
	"EIATTR_MAX_CLUSTER_RANK",
	"EIATTR_INSTR_REG_MAP",
}

// Known returns true if the attribute code is part of the catalog known to this package
func (a NVInfoAttribute) Known() bool {
	return a < numKnownAttributes
}

func (a NVInfoAttribute) String() string {
	if a.Known() {
		return attributeNames[a]
	}
	return fmt.Sprintf("EIATTR_UNKNOWN_%#x", uint8(a))
}

// NVInfoItem is a single record of an .nv.info.* section. The shape of Value
// depends on both Format and Attribute.
type NVInfoItem struct {
	Format    NVInfoFormat
	Attribute NVInfoAttribute
	Value     NVInfoValue
}

// NVInfoValue is the payload of an NVInfo item. It is one of NoValue,
// ImmediateValue or SizedValue.
type NVInfoValue interface {
	isNVInfoValue()
}

// NoValue is the payload of EIFMT_NVAL items
type NoValue struct{}

// ImmediateValue is the payload of EIFMT_BVAL and EIFMT_HVAL items
type ImmediateValue uint16

// SizedValue is the payload of EIFMT_SVAL items: a declared byte size and the
// payload decoded according to the item attribute.
type SizedValue struct {
	Size    uint16
	Payload SizedPayload
}

func (NoValue) isNVInfoValue()        {}
func (ImmediateValue) isNVInfoValue() {}
func (SizedValue) isNVInfoValue()     {}

// SizedPayload is the decoded content of a sized value. It is one of
// ParamInfo, ExternSymbol or RawWords.
type SizedPayload interface {
	isSizedPayload()
}

// ParamInfo describes the memory layout of one kernel parameter (EIATTR_KPARAM_INFO)
type ParamInfo struct {
	Index        uint32 `json:"index"`
	Ordinal      uint16 `json:"ordinal"`
	Offset       uint16 `json:"offset"`
	LogAlignment uint8  `json:"log_alignment"`
	Space        uint8  `json:"space"`
	CBank        uint8  `json:"cbank"`
	IsCBank      bool   `json:"is_cbank"`
	SizeBytes    uint16 `json:"size_bytes"`
}

// ExternSymbol is a symbol referenced by the kernel (EIATTR_EXTERNS)
type ExternSymbol struct {
	Index uint32
	Name  string
}

// RawWords is the structural decoding of any sized value without a specific
// decoder: the payload as a sequence of little-endian 32-bit words.
type RawWords []uint32

func (ParamInfo) isSizedPayload()    {}
func (ExternSymbol) isSizedPayload() {}
func (RawWords) isSizedPayload()     {}

// NVInfoSection holds the decoded items of one .nv.info.* section, in on-disk order
type NVInfoSection struct {
	Name  string
	Items []NVInfoItem
}

// SectionMap maps .nv.info.* section names to their decoded items
type SectionMap map[string][]NVInfoItem
