// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package cuda

import "errors"

const (
	paramInfoSize    = 12
	externSymbolSize = 4
)

// sizedDecoder decodes the payload of a sized value for one attribute
type sizedDecoder func(r *byteReader, size uint16, resolver SymbolResolver) (SizedPayload, error)

// sizedDecoders lists the attributes with a dedicated payload layout. Every
// other attribute goes through decodeRawWords.
var sizedDecoders = map[NVInfoAttribute]sizedDecoder{
	EIATTR_KPARAM_INFO: decodeParamInfo,
	EIATTR_EXTERNS:     decodeExternSymbol,
}

func decodeSizedPayload(r *byteReader, attr NVInfoAttribute, size uint16, resolver SymbolResolver) (SizedPayload, error) {
	if decoder, ok := sizedDecoders[attr]; ok {
		return decoder(r, size, resolver)
	}
	return decodeRawWords(r, size, resolver)
}

func decodeParamInfo(r *byteReader, size uint16, _ SymbolResolver) (SizedPayload, error) {
	if size != paramInfoSize {
		return nil, newParseError(ErrSizeMismatch, r.offset(), "kparam_info.size", paramInfoSize, size)
	}

	var info ParamInfo
	var err error
	if info.Index, err = r.uint32("kparam_info.index"); err != nil {
		return nil, err
	}
	if info.Ordinal, err = r.uint16("kparam_info.ordinal"); err != nil {
		return nil, err
	}
	if info.Offset, err = r.uint16("kparam_info.offset"); err != nil {
		return nil, err
	}
	packed, err := r.uint32("kparam_info.flags")
	if err != nil {
		return nil, err
	}
	unpackParamInfo(&info, packed)

	return info, nil
}

// unpackParamInfo fills the bit-packed fields of a parameter description
func unpackParamInfo(info *ParamInfo, tmp uint32) {
	info.LogAlignment = uint8(tmp & 0xff)
	info.Space = uint8((tmp >> 8) & 0xf)
	info.CBank = uint8((tmp >> 12) & 0x1f)

	q := (tmp >> 16) & 0xffff
	info.IsCBank = q&2 == 0
	info.SizeBytes = uint16(q >> 2)
}

func decodeExternSymbol(r *byteReader, size uint16, resolver SymbolResolver) (SizedPayload, error) {
	if size != externSymbolSize {
		return nil, newParseError(ErrSizeMismatch, r.offset(), "externs.size", externSymbolSize, size)
	}

	offset := r.offset()
	index, err := r.uint32("externs.index")
	if err != nil {
		return nil, err
	}

	if resolver == nil {
		return nil, newParseError(ErrUnresolvedSymbol, offset, "externs.index", "symbol table", index)
	}
	name, err := resolver.SymbolName(index)
	if err != nil {
		// resolvers know nothing about file layout, report the index field itself
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			rebased := *parseErr
			rebased.Offset = offset
			rebased.Field = "externs.index"
			return nil, &rebased
		}
		return nil, newParseError(ErrUnresolvedSymbol, offset, "externs.index", "resolvable symbol", err.Error())
	}

	return ExternSymbol{Index: index, Name: name}, nil
}

func decodeRawWords(r *byteReader, size uint16, _ SymbolResolver) (SizedPayload, error) {
	if size%4 != 0 {
		return nil, newParseError(ErrSizeMismatch, r.offset(), "sval.size", "multiple of 4", size)
	}

	words := make(RawWords, size/4)
	for i := range words {
		w, err := r.uint32("sval.data")
		if err != nil {
			return nil, err
		}
		words[i] = w
	}
	return words, nil
}
