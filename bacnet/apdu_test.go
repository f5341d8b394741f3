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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeWhoIs(t *testing.T) {
	cases := []struct {
		desc    string
		data    string
		limits  *WhoIsLimits
		wantErr error
	}{
		{desc: "unbounded", data: "10 08"},
		{desc: "single device", data: "10 08 0a 0b 54 1a 0b 54", limits: &WhoIsLimits{Low: 2900, High: 2900}},
		{desc: "range", data: "10 08 09 00 1b 3f ff ff", limits: &WhoIsLimits{Low: 0, High: 0x3fffff}},
		{desc: "wrong low tag", data: "10 08 1a 0b 54 1a 0b 54", wantErr: ErrInvalidValue},
		{desc: "truncated low", data: "10 08 0a 0b", wantErr: ErrLength},
		{desc: "missing high", data: "10 08 0a 0b 54", wantErr: ErrLength},
		{desc: "zero size high", data: "10 08 09 01 18", wantErr: ErrInvalidValue},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			apdu, err := DecodeAPDU(mustHex(t, tc.data))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, PDUTypeUnconfirmedRequest, apdu.Type)
			require.NotNil(t, apdu.Unconfirmed)
			assert.Equal(t, ServiceWhoIs, apdu.Unconfirmed.Service)
			require.NotNil(t, apdu.Unconfirmed.WhoIs)
			assert.Equal(t, tc.limits, apdu.Unconfirmed.WhoIs.Limits)
		})
	}
}

func TestWhoIsLimitsContains(t *testing.T) {
	l := &WhoIsLimits{Low: 10, High: 20}
	assert.True(t, l.Contains(10))
	assert.True(t, l.Contains(20))
	assert.False(t, l.Contains(9))
	assert.False(t, l.Contains(21))
}

func TestDecodeUnconfirmedRequest(t *testing.T) {
	_, err := DecodeAPDU(mustHex(t, "10"))
	assert.ErrorIs(t, err, ErrLength)

	apdu, err := DecodeAPDU(mustHex(t, "10 06 aa bb"))
	require.NoError(t, err)
	assert.Equal(t, ServiceTimeSynchronization, apdu.Unconfirmed.Service)
	assert.False(t, apdu.Unconfirmed.Service.IsDecoded())
	assert.Nil(t, apdu.Unconfirmed.WhoIs)
	assert.Equal(t, []byte{0xaa, 0xbb}, apdu.Unconfirmed.ServiceData)

	apdu, err = DecodeAPDU(mustHex(t, "10 7f"))
	require.NoError(t, err)
	assert.Equal(t, "Unknown(127)", apdu.Unconfirmed.Service.String())
}

func TestDecodeIAm(t *testing.T) {
	apdu, err := DecodeAPDU(mustHex(t, "10 00 c4 02 00 00 6f 22 05 c4 91 00 21 0f"))
	require.NoError(t, err)
	assert.True(t, apdu.Unconfirmed.Service.IsDecoded())

	iam, err := apdu.Unconfirmed.IAm()
	require.NoError(t, err)
	assert.Equal(t, ObjectTypeDevice, iam.Device.Type)
	assert.Equal(t, uint32(111), iam.Device.Instance)
	assert.Equal(t, uint32(1476), iam.MaxAPDULength)
	assert.Equal(t, SegmentationBoth, iam.Segmentation)
	assert.Equal(t, uint32(15), iam.VendorID)

	truncated, err := DecodeAPDU(mustHex(t, "10 00 c4 02 00 00 6f 22 05"))
	require.NoError(t, err)
	_, err = truncated.Unconfirmed.IAm()
	assert.ErrorIs(t, err, ErrLength)

	whoIs, err := DecodeAPDU(mustHex(t, "10 08"))
	require.NoError(t, err)
	_, err = whoIs.Unconfirmed.IAm()
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestDecodeErrorPDU(t *testing.T) {
	apdu, err := DecodeAPDU(mustHex(t, "50 01 02 1f"))
	require.NoError(t, err)
	require.NotNil(t, apdu.Error)
	assert.Equal(t, uint8(1), apdu.Error.InvokeID)
	assert.Equal(t, ErrorClassProperty, apdu.Error.Class)
	assert.Equal(t, ErrorCodeUnknownObject, apdu.Error.Code)

	target := &BACnetError{Class: ErrorClassProperty, Code: ErrorCodeUnknownObject}
	assert.True(t, errors.Is(apdu.Error.Err(), target))

	for _, s := range []string{"50", "50 01 02", "50 01 02 1f 00"} {
		_, err := DecodeAPDU(mustHex(t, s))
		assert.ErrorIs(t, err, ErrLength, "input %q", s)
	}
}

func TestDecodeAPDUTypes(t *testing.T) {
	_, err := DecodeAPDU(nil)
	assert.ErrorIs(t, err, ErrLength)

	for i := 0; i < 256; i++ {
		data := []byte{byte(i), 0x00, 0x00, 0x00}
		apdu, err := DecodeAPDU(data)
		require.NoError(t, err, "type octet 0x%02x", i)
		assert.Equal(t, PDUType(i&0xf0), apdu.Type)
		assert.Equal(t, i >= 0x80, apdu.Type.IsReserved())
		assert.Equal(t, data, apdu.Data)
	}
}

func TestConfirmedRequest(t *testing.T) {
	apdu, err := DecodeAPDU(mustHex(t, "02 01 6a 0f 0c 00 80 00 0a"))
	require.NoError(t, err)

	req, err := apdu.ConfirmedRequest()
	require.NoError(t, err)
	assert.False(t, req.Segmented)
	assert.True(t, req.SegmentedResponseAccepted)
	assert.Equal(t, uint8(1), req.MaxAPDU)
	assert.Equal(t, uint8(0x6a), req.InvokeID)
	assert.Equal(t, ServiceWriteProperty, req.Service)
	assert.Equal(t, []byte{0x0c, 0x00, 0x80, 0x00, 0x0a}, req.ServiceData)

	segmented, err := DecodeAPDU(mustHex(t, "0c 35 01 02 03 0c 0c"))
	require.NoError(t, err)
	req, err = segmented.ConfirmedRequest()
	require.NoError(t, err)
	assert.True(t, req.Segmented)
	assert.True(t, req.MoreFollows)
	assert.Equal(t, uint8(3), req.MaxSegments)
	assert.Equal(t, uint8(5), req.MaxAPDU)
	assert.Equal(t, uint8(1), req.InvokeID)
	assert.Equal(t, uint8(2), req.SequenceNumber)
	assert.Equal(t, uint8(3), req.WindowSize)
	assert.Equal(t, ServiceReadProperty, req.Service)
	assert.Equal(t, []byte{0x0c}, req.ServiceData)

	short, err := DecodeAPDU(mustHex(t, "08 05 01 02"))
	require.NoError(t, err)
	_, err = short.ConfirmedRequest()
	assert.ErrorIs(t, err, ErrLength)

	_, err = segmented.SimpleAck()
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestAckAndAbortAccessors(t *testing.T) {
	simple, err := DecodeAPDU(mustHex(t, "20 05 0f"))
	require.NoError(t, err)
	ack, err := simple.SimpleAck()
	require.NoError(t, err)
	assert.Equal(t, uint8(5), ack.InvokeID)
	assert.Equal(t, ServiceWriteProperty, ack.Service)

	complexAck, err := DecodeAPDU(mustHex(t, "38 09 00 04 0c 0c"))
	require.NoError(t, err)
	ack, err = complexAck.ComplexAck()
	require.NoError(t, err)
	assert.True(t, ack.Segmented)
	assert.Equal(t, uint8(9), ack.InvokeID)
	assert.Equal(t, uint8(0), ack.SequenceNumber)
	assert.Equal(t, uint8(4), ack.WindowSize)
	assert.Equal(t, ServiceReadProperty, ack.Service)

	segAck, err := DecodeAPDU(mustHex(t, "42 07 03 04"))
	require.NoError(t, err)
	sa, err := segAck.SegmentAck()
	require.NoError(t, err)
	assert.True(t, sa.NegativeAck)
	assert.False(t, sa.Server)
	assert.Equal(t, uint8(3), sa.SequenceNumber)
	assert.Equal(t, uint8(4), sa.WindowSize)

	reject, err := DecodeAPDU(mustHex(t, "60 03 09"))
	require.NoError(t, err)
	rej, err := reject.Reject()
	require.NoError(t, err)
	assert.Equal(t, RejectReasonUnrecognizedService, rej.Reason)
	assert.Equal(t, "bacnet reject: invoke-id=3, reason=unrecognized-service", rej.Error())

	abort, err := DecodeAPDU(mustHex(t, "71 04 05"))
	require.NoError(t, err)
	ab, err := abort.Abort()
	require.NoError(t, err)
	assert.True(t, ab.Server)
	assert.Equal(t, uint8(4), ab.InvokeID)
	assert.Equal(t, AbortReasonSecurityError, ab.Reason)

	_, err = abort.Reject()
	assert.ErrorIs(t, err, ErrInvalidValue)
}
