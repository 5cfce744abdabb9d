// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package testutil

import (
	"encoding/binary"
)

// NVInfo format tags
const (
	FormatNVal uint8 = 1
	FormatBVal uint8 = 2
	FormatHVal uint8 = 3
	FormatSVal uint8 = 4
)

// NVInfoWriter encodes .nv.info section contents
type NVInfoWriter struct {
	buf []byte
}

// NoValue appends an EIFMT_NVAL item
func (w *NVInfoWriter) NoValue(attr uint8) *NVInfoWriter {
	w.buf = append(w.buf, FormatNVal, attr, 0, 0)
	return w
}

// Immediate appends an EIFMT_BVAL or EIFMT_HVAL item
func (w *NVInfoWriter) Immediate(format, attr uint8, value uint16) *NVInfoWriter {
	w.buf = append(w.buf, format, attr)
	w.buf = binary.LittleEndian.AppendUint16(w.buf, value)
	return w
}

// Sized appends an EIFMT_SVAL item with the given raw payload
func (w *NVInfoWriter) Sized(attr uint8, payload []byte) *NVInfoWriter {
	w.buf = append(w.buf, FormatSVal, attr)
	w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(len(payload)))
	w.buf = append(w.buf, payload...)
	return w
}

// Words appends an EIFMT_SVAL item whose payload is a list of 32-bit words
func (w *NVInfoWriter) Words(attr uint8, words ...uint32) *NVInfoWriter {
	payload := make([]byte, 0, 4*len(words))
	for _, word := range words {
		payload = binary.LittleEndian.AppendUint32(payload, word)
	}
	return w.Sized(attr, payload)
}

// ParamInfo appends an EIFMT_SVAL kernel parameter item with the packed field given verbatim
func (w *NVInfoWriter) ParamInfo(attr uint8, index uint32, ordinal, offset uint16, packed uint32) *NVInfoWriter {
	payload := binary.LittleEndian.AppendUint32(nil, index)
	payload = binary.LittleEndian.AppendUint16(payload, ordinal)
	payload = binary.LittleEndian.AppendUint16(payload, offset)
	payload = binary.LittleEndian.AppendUint32(payload, packed)
	return w.Sized(attr, payload)
}

// Raw appends arbitrary bytes
func (w *NVInfoWriter) Raw(b ...byte) *NVInfoWriter {
	w.buf = append(w.buf, b...)
	return w
}

// Bytes returns the encoded section contents
func (w *NVInfoWriter) Bytes() []byte {
	return w.buf
}

// PackParamFlags builds the packed 32-bit field of a kernel parameter item
func PackParamFlags(logAlignment uint8, space uint8, cbank uint8, isCBank bool, sizeBytes uint16) uint32 {
	q := uint32(sizeBytes) << 2
	if !isCBank {
		q |= 2
	}
	return uint32(logAlignment) | uint32(space&0xf)<<8 | uint32(cbank&0x1f)<<12 | q<<16
}
