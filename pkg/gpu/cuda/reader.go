// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package cuda

import (
	"encoding/binary"
)

// byteReader is a little-endian cursor over a byte slice. Every read is
// bounds-checked and fails with ErrTruncatedInput instead of panicking.
// base is added to the cursor position when reporting offsets, so that errors
// point at the position in the enclosing file.
type byteReader struct {
	data []byte
	pos  int
	base int
}

func newByteReader(data []byte, base int) *byteReader {
	return &byteReader{data: data, base: base}
}

func (r *byteReader) remaining() int {
	return len(r.data) - r.pos
}

func (r *byteReader) offset() int {
	return r.base + r.pos
}

func (r *byteReader) need(n int, field string) error {
	if n < 0 || r.remaining() < n {
		return newParseError(ErrTruncatedInput, r.offset(), field, n, r.remaining())
	}
	return nil
}

func (r *byteReader) uint8(field string) (uint8, error) {
	if err := r.need(1, field); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *byteReader) uint16(field string) (uint16, error) {
	if err := r.need(2, field); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *byteReader) uint32(field string) (uint32, error) {
	if err := r.need(4, field); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *byteReader) uint64(field string) (uint64, error) {
	if err := r.need(8, field); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// bytes returns the next n bytes without copying them
func (r *byteReader) bytes(n int, field string) ([]byte, error) {
	if err := r.need(n, field); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) skip(n int, field string) error {
	if err := r.need(n, field); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// seek moves the cursor to an absolute position within the data
func (r *byteReader) seek(pos int, field string) error {
	if pos < 0 || pos > len(r.data) {
		return newParseError(ErrTruncatedInput, r.base+pos, field, pos, len(r.data))
	}
	r.pos = pos
	return nil
}
