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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTag(t *testing.T) {
	cases := []struct {
		desc string
		data string
		want Tag
		rest []byte
	}{
		{
			desc: "context length 2",
			data: "0a 0b 54",
			want: Tag{Number: 0, Class: TagClassContext, Value: 2},
			rest: []byte{0x0b, 0x54},
		},
		{
			desc: "application unsigned",
			data: "21 0f",
			want: Tag{Number: 2, Class: TagClassApplication, Value: 1},
			rest: []byte{0x0f},
		},
		{
			desc: "opening",
			data: "3e 21",
			want: Tag{Number: 3, Class: TagClassContext, Opening: true},
			rest: []byte{0x21},
		},
		{
			desc: "closing",
			data: "3f",
			want: Tag{Number: 3, Class: TagClassContext, Closing: true},
			rest: []byte{},
		},
		{
			desc: "extended number",
			data: "f9 1f 05",
			want: Tag{Number: 31, Class: TagClassContext, Value: 1},
			rest: []byte{0x05},
		},
		{
			desc: "extended value in one byte",
			data: "65 07 aa",
			want: Tag{Number: 6, Class: TagClassApplication, Value: 7},
			rest: []byte{0xaa},
		},
		{
			desc: "extended value u16",
			data: "65 fe 01 00 aa",
			want: Tag{Number: 6, Class: TagClassApplication, Value: 256},
			rest: []byte{0xaa},
		},
		{
			desc: "extended value u32",
			data: "75 ff 00 01 00 00",
			want: Tag{Number: 7, Class: TagClassApplication, Value: 65536},
			rest: []byte{},
		},
		{
			desc: "extended number and value",
			data: "fd 80 fe 12 34",
			want: Tag{Number: 128, Class: TagClassContext, Value: 0x1234},
			rest: []byte{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			data := mustHex(t, tc.data)
			tag, rest, err := DecodeTag(data)
			require.NoError(t, err)
			assert.Equal(t, tc.want, tag)
			assert.Equal(t, tc.rest, rest)

			again, againRest, err := DecodeTag(data)
			require.NoError(t, err)
			assert.Equal(t, tag, again)
			assert.Equal(t, rest, againRest)
		})
	}
}

func TestDecodeTagErrors(t *testing.T) {
	cases := []string{
		"",
		"f9",
		"65",
		"65 fe 01",
		"75 ff 00 01 00",
		"fd 80",
	}
	for _, s := range cases {
		_, _, err := DecodeTag(mustHex(t, s))
		assert.ErrorIs(t, err, ErrLength, "input %q", s)
	}
}

func TestDecodeUnsigned(t *testing.T) {
	data := mustHex(t, "01 02 03 04 05")
	cases := []struct {
		size uint32
		want uint32
	}{
		{size: 1, want: 0x01},
		{size: 2, want: 0x0102},
		{size: 3, want: 0x010203},
		{size: 4, want: 0x01020304},
	}

	for _, tc := range cases {
		value, rest, err := DecodeUnsigned(data, tc.size)
		require.NoError(t, err)
		assert.Equal(t, tc.want, value)
		assert.Len(t, rest, len(data)-int(tc.size))
	}

	_, _, err := DecodeUnsigned(data, 0)
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, _, err = DecodeUnsigned(data, 5)
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, _, err = DecodeUnsigned(data[:2], 3)
	assert.ErrorIs(t, err, ErrLength)
}
