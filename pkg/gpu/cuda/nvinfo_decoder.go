// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package cuda

// ParseNVInfoSection decodes the items of a single .nv.info.* section.
// sectionOffset is the file offset of data, used only to report error
// positions. The resolver is used to get the names of EIATTR_EXTERNS symbols.
func ParseNVInfoSection(data []byte, sectionOffset int, resolver SymbolResolver) ([]NVInfoItem, error) {
	r := newByteReader(data, sectionOffset)

	var items []NVInfoItem
	for r.remaining() > 0 {
		item, err := parseNVInfoItem(r, resolver)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}

func parseNVInfoItem(r *byteReader, resolver SymbolResolver) (NVInfoItem, error) {
	formatOffset := r.offset()
	format, err := r.uint8("nvinfo.format")
	if err != nil {
		return NVInfoItem{}, err
	}
	attr, err := r.uint8("nvinfo.attribute")
	if err != nil {
		return NVInfoItem{}, err
	}

	item := NVInfoItem{
		Format:    NVInfoFormat(format),
		Attribute: NVInfoAttribute(attr),
	}

	switch item.Format {
	case EIFMT_NVAL:
		if err := r.skip(2, "nvinfo.reserved"); err != nil {
			return NVInfoItem{}, err
		}
		item.Value = NoValue{}
	case EIFMT_BVAL, EIFMT_HVAL:
		// Byte values take two bytes on disk, same as half-words
		v, err := r.uint16("nvinfo.value")
		if err != nil {
			return NVInfoItem{}, err
		}
		item.Value = ImmediateValue(v)
	case EIFMT_SVAL:
		size, err := r.uint16("nvinfo.size")
		if err != nil {
			return NVInfoItem{}, err
		}

		// Bound the payload decoder to the declared size so that it can never
		// consume bytes from the next item
		payloadBytes, err := r.bytes(int(size), "nvinfo.payload")
		if err != nil {
			return NVInfoItem{}, err
		}
		payloadReader := newByteReader(payloadBytes, r.offset()-int(size))

		payload, err := decodeSizedPayload(payloadReader, item.Attribute, size, resolver)
		if err != nil {
			return NVInfoItem{}, err
		}
		item.Value = SizedValue{Size: size, Payload: payload}
	default:
		return NVInfoItem{}, newParseError(ErrFormat, formatOffset, "nvinfo.format", "EIFMT_NVAL..EIFMT_SVAL", format)
	}

	return item, nil
}
