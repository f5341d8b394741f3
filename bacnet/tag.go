// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bacnet

// Tag is one decoded BACnet tag header.
//
// Value is the length/value/type field: for primitive data it is the length
// of the contents that follow (or, for application booleans, the value
// itself). Opening and closing tags carry a zero Value.
type Tag struct {
	Number  uint8
	Class   TagClass
	Value   uint32
	Opening bool
	Closing bool
}

// IsContext reports whether the tag is context specific
func (t Tag) IsContext() bool {
	return t.Class == TagClassContext
}

const (
	tagExtendedNumber = 0x0F
	tagExtendedValue  = 5
	tagOpening        = 6
	tagClosing        = 7

	extendedValueU16 = 254
	extendedValueU32 = 255
)

// DecodeTag decodes the tag starting at data[0] and returns it along with
// the bytes that follow the tag header.
func DecodeTag(data []byte) (Tag, []byte, error) {
	if len(data) < 1 {
		return Tag{}, nil, lengthError("cannot read tag")
	}

	first := data[0]
	tag := Tag{
		Number: first >> 4,
		Class:  TagClass((first >> 3) & 0x01),
	}
	rest := data[1:]

	if tag.Number == tagExtendedNumber {
		if len(rest) < 1 {
			return Tag{}, nil, lengthError("cannot read extended tag number")
		}
		tag.Number = rest[0]
		rest = rest[1:]
	}

	switch first & 0x07 {
	case tagOpening:
		tag.Opening = true
		return tag, rest, nil
	case tagClosing:
		tag.Closing = true
		return tag, rest, nil
	case tagExtendedValue:
		if len(rest) < 1 {
			return Tag{}, nil, lengthError("parsing extended tag value")
		}
		switch rest[0] {
		case extendedValueU32:
			if len(rest) < 5 {
				return Tag{}, nil, lengthError("parsing u32 tag value")
			}
			tag.Value = decodeUint32(rest[1:5])
			return tag, rest[5:], nil
		case extendedValueU16:
			if len(rest) < 3 {
				return Tag{}, nil, lengthError("parsing u16 tag value")
			}
			tag.Value = uint32(decodeUint16(rest[1:3]))
			return tag, rest[3:], nil
		default:
			tag.Value = uint32(rest[0])
			return tag, rest[1:], nil
		}
	default:
		tag.Value = uint32(first & 0x07)
		return tag, rest, nil
	}
}

// DecodeUnsigned decodes a big-endian unsigned integer of size bytes (1-4)
// and returns it along with the remaining bytes.
func DecodeUnsigned(data []byte, size uint32) (uint32, []byte, error) {
	if size == 0 || size > 4 {
		return 0, nil, invalidValueError("unsigned size must be 1-4")
	}
	if uint32(len(data)) < size {
		return 0, nil, lengthError("parsing unsigned value")
	}

	var value uint32
	switch size {
	case 1:
		value = uint32(data[0])
	case 2:
		value = uint32(decodeUint16(data))
	case 3:
		value = uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2])
	case 4:
		value = decodeUint32(data)
	}
	return value, data[size:], nil
}

// decodeTaggedUnsigned reads a tag followed by the unsigned value it sizes.
func decodeTaggedUnsigned(data []byte) (Tag, uint32, []byte, error) {
	tag, rest, err := DecodeTag(data)
	if err != nil {
		return Tag{}, 0, nil, err
	}
	value, rest, err := DecodeUnsigned(rest, tag.Value)
	if err != nil {
		return Tag{}, 0, nil, err
	}
	return tag, value, rest, nil
}
