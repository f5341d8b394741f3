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

// APDU is an application layer message. Only the Unconfirmed-Request and
// Error types have their payload decoded eagerly; the header accessors
// (ConfirmedRequest, ComplexAck, ...) decode other types on demand.
type APDU struct {
	Type PDUType
	// Data is the complete APDU including the type octet.
	Data []byte

	Unconfirmed *UnconfirmedRequest
	Error       *ErrorPDU
}

// ErrorPDU is the three octets following an Error PDU type octet
type ErrorPDU struct {
	InvokeID uint8
	Class    ErrorClass
	Code     ErrorCode
}

// Err returns the error class and code as an error value
func (e *ErrorPDU) Err() error {
	return &BACnetError{Class: e.Class, Code: e.Code}
}

// DecodeAPDU classifies the APDU and decodes the payloads it understands
func DecodeAPDU(data []byte) (*APDU, error) {
	if len(data) < 1 {
		return nil, lengthError("empty apdu")
	}

	apdu := &APDU{
		Type: PDUType(data[0] & 0xF0),
		Data: data,
	}

	var err error
	switch apdu.Type {
	case PDUTypeUnconfirmedRequest:
		apdu.Unconfirmed, err = decodeUnconfirmedRequest(data)
	case PDUTypeError:
		apdu.Error, err = decodeErrorPDU(data)
	}
	if err != nil {
		return nil, err
	}
	return apdu, nil
}

func decodeErrorPDU(data []byte) (*ErrorPDU, error) {
	if len(data) != 4 {
		return nil, lengthError("wrong len for error pdu")
	}
	return &ErrorPDU{
		InvokeID: data[1],
		Class:    ErrorClass(data[2]),
		Code:     ErrorCode(data[3]),
	}, nil
}

// ConfirmedRequestHeader is the fixed part of a Confirmed-Request PDU
type ConfirmedRequestHeader struct {
	Segmented                 bool
	MoreFollows               bool
	SegmentedResponseAccepted bool
	MaxSegments               uint8
	MaxAPDU                   uint8
	InvokeID                  uint8
	SequenceNumber            uint8
	WindowSize                uint8
	Service                   ConfirmedServiceChoice
	// ServiceData follows the service choice octet.
	ServiceData []byte
}

// ConfirmedRequest decodes the Confirmed-Request header
func (a *APDU) ConfirmedRequest() (*ConfirmedRequestHeader, error) {
	if a.Type != PDUTypeConfirmedRequest {
		return nil, invalidValueError("not a confirmed request")
	}
	data := a.Data
	if len(data) < 4 {
		return nil, lengthError("insufficient size for confirmed request")
	}

	hdr := &ConfirmedRequestHeader{
		Segmented:                 data[0]&0x08 != 0,
		MoreFollows:               data[0]&0x04 != 0,
		SegmentedResponseAccepted: data[0]&0x02 != 0,
		MaxSegments:               (data[1] >> 4) & 0x07,
		MaxAPDU:                   data[1] & 0x0F,
		InvokeID:                  data[2],
	}

	offset := 3
	if hdr.Segmented {
		if len(data) < 6 {
			return nil, lengthError("insufficient size for segmented confirmed request")
		}
		hdr.SequenceNumber = data[3]
		hdr.WindowSize = data[4]
		offset = 5
	}
	hdr.Service = ConfirmedServiceChoice(data[offset])
	hdr.ServiceData = data[offset+1:]
	return hdr, nil
}

// AckHeader is the fixed part of Simple-ACK and Complex-ACK PDUs
type AckHeader struct {
	Segmented      bool
	MoreFollows    bool
	InvokeID       uint8
	SequenceNumber uint8
	WindowSize     uint8
	Service        ConfirmedServiceChoice
	ServiceData    []byte
}

// SimpleAck decodes a Simple-ACK PDU
func (a *APDU) SimpleAck() (*AckHeader, error) {
	if a.Type != PDUTypeSimpleAck {
		return nil, invalidValueError("not a simple ack")
	}
	if len(a.Data) < 3 {
		return nil, lengthError("insufficient size for simple ack")
	}
	return &AckHeader{
		InvokeID: a.Data[1],
		Service:  ConfirmedServiceChoice(a.Data[2]),
	}, nil
}

// ComplexAck decodes the Complex-ACK header
func (a *APDU) ComplexAck() (*AckHeader, error) {
	if a.Type != PDUTypeComplexAck {
		return nil, invalidValueError("not a complex ack")
	}
	data := a.Data
	if len(data) < 3 {
		return nil, lengthError("insufficient size for complex ack")
	}

	ack := &AckHeader{
		Segmented:   data[0]&0x08 != 0,
		MoreFollows: data[0]&0x04 != 0,
		InvokeID:    data[1],
	}

	offset := 2
	if ack.Segmented {
		if len(data) < 5 {
			return nil, lengthError("insufficient size for segmented complex ack")
		}
		ack.SequenceNumber = data[2]
		ack.WindowSize = data[3]
		offset = 4
	}
	ack.Service = ConfirmedServiceChoice(data[offset])
	ack.ServiceData = data[offset+1:]
	return ack, nil
}

// SegmentAckPDU is a Segment-ACK PDU
type SegmentAckPDU struct {
	NegativeAck    bool
	Server         bool
	InvokeID       uint8
	SequenceNumber uint8
	WindowSize     uint8
}

// SegmentAck decodes a Segment-ACK PDU
func (a *APDU) SegmentAck() (*SegmentAckPDU, error) {
	if a.Type != PDUTypeSegmentAck {
		return nil, invalidValueError("not a segment ack")
	}
	if len(a.Data) < 4 {
		return nil, lengthError("insufficient size for segment ack")
	}
	return &SegmentAckPDU{
		NegativeAck:    a.Data[0]&0x02 != 0,
		Server:         a.Data[0]&0x01 != 0,
		InvokeID:       a.Data[1],
		SequenceNumber: a.Data[2],
		WindowSize:     a.Data[3],
	}, nil
}

// Reject decodes a Reject PDU
func (a *APDU) Reject() (*RejectError, error) {
	if a.Type != PDUTypeReject {
		return nil, invalidValueError("not a reject")
	}
	if len(a.Data) < 3 {
		return nil, lengthError("insufficient size for reject")
	}
	return &RejectError{
		InvokeID: a.Data[1],
		Reason:   RejectReason(a.Data[2]),
	}, nil
}

// Abort decodes an Abort PDU
func (a *APDU) Abort() (*AbortError, error) {
	if a.Type != PDUTypeAbort {
		return nil, invalidValueError("not an abort")
	}
	if len(a.Data) < 3 {
		return nil, lengthError("insufficient size for abort")
	}
	return &AbortError{
		InvokeID: a.Data[1],
		Server:   a.Data[0]&0x01 != 0,
		Reason:   AbortReason(a.Data[2]),
	}, nil
}
