// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//nolint:revive
package safeelf

import "debug/elf" //nolint:depguard

type Symbol = elf.Symbol
type Section = elf.Section
type Machine = elf.Machine

var ErrNoSymbols = elf.ErrNoSymbols

const SHT_NOBITS = elf.SHT_NOBITS

const EM_CUDA = elf.EM_CUDA
const EM_X86_64 = elf.EM_X86_64

// ELFMAG is the magic string every ELF file starts with
const ELFMAG = elf.ELFMAG
