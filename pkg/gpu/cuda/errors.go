// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package cuda

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat is returned for bad magic numbers, versions or unrecognized tags
	ErrFormat = errors.New("invalid format")
	// ErrSizeMismatch is returned when a declared length disagrees with a fixed or required size
	ErrSizeMismatch = errors.New("size mismatch")
	// ErrTruncatedInput is returned when there are not enough bytes left for a required read
	ErrTruncatedInput = errors.New("truncated input")
	// ErrUnresolvedSymbol is returned when a symbol index cannot be resolved to a name
	ErrUnresolvedSymbol = errors.New("unresolved symbol")
	// ErrUnsupportedEntryKind is returned for fatbin entries that are neither PTX nor ELF
	ErrUnsupportedEntryKind = errors.New("unsupported fatbin entry kind")
)

// ParseError describes a failure to decode a fatbin or cubin buffer. It
// unwraps to one of the Err* sentinels of this package.
type ParseError struct {
	// Err is the sentinel describing the failure category
	Err error
	// Offset is the byte offset of the failing field, relative to the start of the buffer being parsed
	Offset int
	// Field is the name of the field being decoded
	Field string
	// Expected and Actual hold the values that disagreed, if any
	Expected any
	Actual   any
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: field %s at offset %#x", e.Err, e.Field, e.Offset)
	if e.Expected != nil || e.Actual != nil {
		msg += fmt.Sprintf(": expected %v, got %v", e.Expected, e.Actual)
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func newParseError(err error, offset int, field string, expected, actual any) *ParseError {
	return &ParseError{Err: err, Offset: offset, Field: field, Expected: expected, Actual: actual}
}
