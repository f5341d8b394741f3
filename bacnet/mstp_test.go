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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dataExpectingReply carries a ReadProperty request from 192.168.1.18:47808
// on network 1.
const dataExpectingReply = "55 ff 05 0c 7f 00 1f 35 01 0c 00 01 06 c0 a8 01 12 ba c0 02 01 6a 0f 0c 00 80 00 0a 19 55 3e 44 41 e8 00 01 3f 49 09 c9 6f"

func TestHeaderCRC(t *testing.T) {
	header := mustHex(t, "55 ff 06 7f 02 00 1d 90")
	assert.Equal(t, uint8(0x90), HeaderCRC(header[2:7]))
}

func TestDataCRC(t *testing.T) {
	cases := []struct {
		desc string
		data string
		want uint16
	}{
		{desc: "check string", data: hex123456789, want: 0x906e},
		{desc: "complex ack", data: "01 20 00 01 06 c0 a8 01 0a ba c0 ff 30 bd 0c 0c 00 80 00 0e 19 55 3e 44 3e ce 72 ad 3f", want: 0xade7},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, DataCRC(mustHex(t, tc.data)))
		})
	}
}

const hex123456789 = "31 32 33 34 35 36 37 38 39"

func TestDecodeMSTPSkipCRC(t *testing.T) {
	frame, err := DecodeMSTPSkipCRC(mustHex(t, dataExpectingReply))
	require.NoError(t, err)

	assert.Equal(t, MSTPBACnetDataExpectingReply, frame.Type)
	assert.Equal(t, uint8(12), frame.Destination)
	assert.Equal(t, uint8(127), frame.Source)
	assert.Equal(t, uint16(31), frame.Length)
	assert.Nil(t, frame.CRCs)
	assert.Len(t, frame.Data, 31)

	npdu := frame.NPDU
	require.NotNil(t, npdu)
	assert.Equal(t, NPDUControl(0x0c), npdu.Control)
	assert.True(t, npdu.Control.IsAPDU())
	assert.False(t, npdu.Control.DestinationPresent())
	assert.True(t, npdu.Control.SourcePresent())
	assert.True(t, npdu.Control.ExpectingReply())
	assert.Equal(t, PriorityNormal, npdu.Control.Priority())
	assert.Nil(t, npdu.Destination)

	require.NotNil(t, npdu.Source)
	assert.Equal(t, uint16(1), npdu.Source.Net)
	assert.Equal(t, []byte{0xc0, 0xa8, 0x01, 0x12, 0xba, 0xc0}, npdu.Source.Addr)
	assert.Equal(t, "1:192.168.1.18:47808", npdu.Source.String())
}

func TestDecodeMSTPCRC(t *testing.T) {
	frame, err := DecodeMSTP(mustHex(t, dataExpectingReply))
	require.NoError(t, err)
	require.NotNil(t, frame.CRCs)

	actual, computed := frame.CRCs.Header()
	assert.Equal(t, uint8(0x35), actual)
	assert.Equal(t, actual, computed)
	assert.True(t, frame.CRCs.HeaderValid())

	dataActual, dataComputed := frame.CRCs.Data()
	assert.Equal(t, uint16(0x6fc9), dataActual)
	assert.Equal(t, dataActual, dataComputed)
	assert.True(t, frame.CRCs.DataValid())
}

func TestDecodeMSTPCRCMismatch(t *testing.T) {
	data := mustHex(t, dataExpectingReply)
	data[7] = 0x34
	data[len(data)-1] = 0x6e

	frame, err := DecodeMSTP(data)
	require.NoError(t, err)
	require.NotNil(t, frame.NPDU)

	actual, computed := frame.CRCs.Header()
	assert.Equal(t, uint8(0x34), actual)
	assert.NotEqual(t, actual, computed)
	assert.False(t, frame.CRCs.HeaderValid())

	dataActual, dataComputed := frame.CRCs.Data()
	assert.Equal(t, uint16(0x6ec9), dataActual)
	assert.NotEqual(t, dataActual, dataComputed)
	assert.False(t, frame.CRCs.DataValid())
}

func TestDecodeMSTPBitFlips(t *testing.T) {
	orig := mustHex(t, dataExpectingReply)
	for i := 2; i < len(orig); i++ {
		for bit := 0; bit < 8; bit++ {
			data := append([]byte(nil), orig...)
			data[i] ^= 1 << bit

			frame, err := DecodeMSTP(data)
			require.NoError(t, err)
			if i < 8 {
				assert.False(t, frame.CRCs.HeaderValid(), "byte %d bit %d", i, bit)
			} else {
				assert.False(t, frame.CRCs.DataValid(), "byte %d bit %d", i, bit)
			}
		}
	}
}

func TestDecodeMSTPNoData(t *testing.T) {
	token := mustHex(t, "55 ff 00 10 05 00 00")
	token = append(token, HeaderCRC(token[2:7]))

	frame, err := DecodeMSTP(token)
	require.NoError(t, err)
	assert.Equal(t, MSTPToken, frame.Type)
	assert.Nil(t, frame.NPDU)
	assert.Nil(t, frame.Data)
	assert.True(t, frame.CRCs.HeaderValid())
	assert.False(t, frame.CRCs.DataPresent)
	assert.True(t, frame.CRCs.DataValid())
}

func TestDecodeMSTPLengthMismatch(t *testing.T) {
	data := mustHex(t, dataExpectingReply)
	data[6] = 0x20

	frame, err := DecodeMSTP(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x20), frame.Length)
	assert.Nil(t, frame.NPDU)
	assert.Nil(t, frame.Data)
	assert.False(t, frame.CRCs.HeaderValid())
	assert.True(t, frame.CRCs.DataValid())
}

func TestDecodeMSTPErrors(t *testing.T) {
	cases := []struct {
		desc    string
		data    string
		wantErr error
	}{
		{desc: "empty", data: "", wantErr: ErrLength},
		{desc: "short", data: "55 ff 00 01 02 00", wantErr: ErrLength},
		{desc: "bad preamble", data: "55 fe 00 01 02 00 00 00", wantErr: ErrInvalidValue},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := DecodeMSTP(mustHex(t, tc.data))
			assert.ErrorIs(t, err, tc.wantErr)
			_, err = DecodeMSTPSkipCRC(mustHex(t, tc.data))
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestMSTPFrameType(t *testing.T) {
	for i := 0; i < 256; i++ {
		ft := MSTPFrameType(i)
		switch {
		case i < 8:
			assert.False(t, ft.IsReserved())
			assert.False(t, ft.IsProprietary())
		case i < 128:
			assert.True(t, ft.IsReserved())
			assert.Equal(t, fmt.Sprintf("Reserved(%d)", i), ft.String())
		default:
			assert.True(t, ft.IsProprietary())
			assert.Equal(t, fmt.Sprintf("Proprietary(%d)", i), ft.String())
		}
	}
	assert.Equal(t, "Poll-For-Master", MSTPPollForMaster.String())
}
