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
	"encoding/binary"
	"fmt"
)

// MSTPFrameType is the frame type octet of an MS/TP frame
type MSTPFrameType uint8

const (
	MSTPToken                       MSTPFrameType = 0
	MSTPPollForMaster               MSTPFrameType = 1
	MSTPReplyToPollForMaster        MSTPFrameType = 2
	MSTPTestRequest                 MSTPFrameType = 3
	MSTPTestResponse                MSTPFrameType = 4
	MSTPBACnetDataExpectingReply    MSTPFrameType = 5
	MSTPBACnetDataNotExpectingReply MSTPFrameType = 6
	MSTPReplyPostponed              MSTPFrameType = 7
)

// IsReserved reports whether t falls in the reserved range 8-127
func (t MSTPFrameType) IsReserved() bool {
	return t >= 8 && t < 128
}

// IsProprietary reports whether t falls in the vendor range 128-255
func (t MSTPFrameType) IsProprietary() bool {
	return t >= 128
}

func (t MSTPFrameType) String() string {
	names := map[MSTPFrameType]string{
		MSTPToken:                       "Token",
		MSTPPollForMaster:               "Poll-For-Master",
		MSTPReplyToPollForMaster:        "Reply-To-Poll-For-Master",
		MSTPTestRequest:                 "Test-Request",
		MSTPTestResponse:                "Test-Response",
		MSTPBACnetDataExpectingReply:    "BACnet-Data-Expecting-Reply",
		MSTPBACnetDataNotExpectingReply: "BACnet-Data-Not-Expecting-Reply",
		MSTPReplyPostponed:              "Reply-Postponed",
	}
	if name, ok := names[t]; ok {
		return name
	}
	if t.IsProprietary() {
		return fmt.Sprintf("Proprietary(%d)", uint8(t))
	}
	return fmt.Sprintf("Reserved(%d)", uint8(t))
}

const (
	mstpPreamble1 = 0x55
	mstpPreamble2 = 0xFF
	mstpHeaderLen = 8
	mstpCRCLen    = 2
)

// MSTPFrame is a decoded MS/TP frame
type MSTPFrame struct {
	Type        MSTPFrameType
	Destination uint8
	Source      uint8
	// Length is the data length declared in the header.
	Length uint16
	// CRCs is nil when the frame was decoded without CRC computation.
	CRCs *CRCPair
	// NPDU is nil when the frame has no data, the declared length does not
	// match the frame, or the NPDU did not decode.
	NPDU *NPDU
	// Data is the data field between the header CRC and the data CRC. It is
	// nil unless the declared length matches the frame.
	Data []byte
}

// DecodeMSTP decodes an MS/TP frame starting at the preamble and recomputes
// both CRCs. CRC mismatches are reported through CRCs, never as errors.
func DecodeMSTP(data []byte) (*MSTPFrame, error) {
	frame, err := DecodeMSTPSkipCRC(data)
	if err != nil {
		return nil, err
	}

	crcs := &CRCPair{
		HeaderActual:   data[7],
		HeaderComputed: HeaderCRC(data[2:7]),
	}
	if n := len(data); n > mstpHeaderLen+mstpCRCLen {
		crcs.DataPresent = true
		crcs.DataActual = binary.LittleEndian.Uint16(data[n-mstpCRCLen:])
		crcs.DataComputed = DataCRC(data[mstpHeaderLen : n-mstpCRCLen])
	}
	frame.CRCs = crcs
	return frame, nil
}

// DecodeMSTPSkipCRC decodes an MS/TP frame without computing CRCs.
func DecodeMSTPSkipCRC(data []byte) (*MSTPFrame, error) {
	if len(data) < mstpHeaderLen {
		return nil, lengthError("data is shorter than minimum mstp frame size")
	}
	if data[0] != mstpPreamble1 || data[1] != mstpPreamble2 {
		return nil, invalidValueError("not the mstp preamble")
	}

	frame := &MSTPFrame{
		Type:        MSTPFrameType(data[2]),
		Destination: data[3],
		Source:      data[4],
		Length:      decodeUint16(data[5:]),
	}
	if frame.Length == 0 {
		return frame, nil
	}
	if mstpHeaderLen+mstpCRCLen+int(frame.Length) != len(data) {
		return frame, nil
	}

	frame.Data = data[mstpHeaderLen : len(data)-mstpCRCLen]
	if npdu, err := DecodeNPDU(data[mstpHeaderLen:]); err == nil {
		frame.NPDU = npdu
	}
	return frame, nil
}

// IsBroadcast reports whether the frame is addressed to every station
func (f *MSTPFrame) IsBroadcast() bool {
	return f.Destination == 0xFF
}
