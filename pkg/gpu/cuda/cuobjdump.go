// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package cuda

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"
)

// WriteCuobjdump renders the sections in the same format as the .nv.info.*
// excerpt of `cuobjdump -elf`
func WriteCuobjdump(w io.Writer, sections []NVInfoSection) error {
	bw := bufio.NewWriter(w)

	for _, section := range sections {
		fmt.Fprintf(bw, "%s\n", section.Name)

		for i, item := range section.Items {
			// cuobjdump prints the decimal index after a 0x prefix
			fmt.Fprintf(bw, "\t<0x%d>\n", i+1)
			fmt.Fprintf(bw, "\tAttribute:\t%s\n", item.Attribute)
			fmt.Fprintf(bw, "\tFormat:\t%s\n", item.Format)
			writeItemValue(bw, item)
		}

		bw.WriteString("\n\n")
	}

	return bw.Flush()
}

// FormatCuobjdump is like WriteCuobjdump but returns the rendering as a string
func FormatCuobjdump(sections []NVInfoSection) string {
	var sb strings.Builder
	_ = WriteCuobjdump(&sb, sections)
	return sb.String()
}

// SortedSections returns the sections of the map ordered by name
func SortedSections(sections SectionMap) []NVInfoSection {
	out := make([]NVInfoSection, 0, len(sections))
	for name, items := range sections {
		out = append(out, NVInfoSection{Name: name, Items: items})
	}
	slices.SortFunc(out, func(a, b NVInfoSection) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

func writeItemValue(w *bufio.Writer, item NVInfoItem) {
	switch v := item.Value.(type) {
	case ImmediateValue:
		fmt.Fprintf(w, "\tValue:\t%#x\n", uint16(v))
	case SizedValue:
		writeSizedPayload(w, item.Attribute, v.Payload)
	}
}

func writeSizedPayload(w *bufio.Writer, attr NVInfoAttribute, payload SizedPayload) {
	switch p := payload.(type) {
	case ParamInfo:
		space := "CBANK"
		if !p.IsCBank {
			space = "SMEM"
		}
		fmt.Fprintf(w, "\tValue:\tIndex : %#x\tOrdinal : %#x\tOffset  : %#x\tSize    : %#x\n", p.Index, p.Ordinal, p.Offset, p.SizeBytes)
		fmt.Fprintf(w, "\t\tPointee's logAlignment : %#x\tSpace : %#x\tcbank : %#x\tParameter Space : %s\t\n", p.LogAlignment, p.Space, p.CBank, space)
	case ExternSymbol:
		fmt.Fprintf(w, "\tValue:\texterns:\t%s(%#x)\t\n", p.Name, p.Index)
	case RawWords:
		w.WriteString("\tValue:\t")
		if attr == EIATTR_ATOM16_EMUL_INSTR_REG_MAP && len(p)%2 == 0 {
			// (instruction offset, register) pairs
			for i := 0; i < len(p); i += 2 {
				fmt.Fprintf(w, "(%#x, %d)  ", p[i], p[i+1])
			}
		} else {
			for _, word := range p {
				fmt.Fprintf(w, "%#x ", word)
			}
		}
		w.WriteString("\n")
	}
}
