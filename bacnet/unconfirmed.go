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

// UnconfirmedRequest is an Unconfirmed-Request PDU
type UnconfirmedRequest struct {
	Service UnconfirmedServiceChoice
	// ServiceData follows the service choice octet.
	ServiceData []byte

	// WhoIs is set when Service is ServiceWhoIs.
	WhoIs *WhoIs
}

// WhoIs is a Who-Is request. Limits is nil when the request asks every
// device to answer.
type WhoIs struct {
	Limits *WhoIsLimits
}

// WhoIsLimits is the device instance range of a Who-Is request
type WhoIsLimits struct {
	Low  uint32
	High uint32
}

// Contains reports whether instance falls inside the range
func (l *WhoIsLimits) Contains(instance uint32) bool {
	return instance >= l.Low && instance <= l.High
}

func decodeUnconfirmedRequest(data []byte) (*UnconfirmedRequest, error) {
	if len(data) < 2 {
		return nil, lengthError("wrong len for unconfirmed service choice")
	}

	req := &UnconfirmedRequest{
		Service:     UnconfirmedServiceChoice(data[1]),
		ServiceData: data[2:],
	}

	if req.Service == ServiceWhoIs {
		whoIs, err := decodeWhoIs(data)
		if err != nil {
			return nil, err
		}
		req.WhoIs = whoIs
	}
	return req, nil
}

func decodeWhoIs(data []byte) (*WhoIs, error) {
	if len(data) == 2 {
		return &WhoIs{}, nil
	}

	lowTag, rest, err := DecodeTag(data[2:])
	if err != nil {
		return nil, err
	}
	if lowTag.Number != 0 {
		return nil, invalidValueError("who-is low limit must use tag 0")
	}
	low, rest, err := DecodeUnsigned(rest, lowTag.Value)
	if err != nil {
		return nil, err
	}

	_, high, _, err := decodeTaggedUnsigned(rest)
	if err != nil {
		return nil, err
	}

	return &WhoIs{Limits: &WhoIsLimits{Low: low, High: high}}, nil
}

// IAm is the payload of an I-Am request
type IAm struct {
	Device        ObjectIdentifier
	MaxAPDULength uint32
	Segmentation  Segmentation
	VendorID      uint32
}

// IAm decodes the service data of an I-Am request
func (r *UnconfirmedRequest) IAm() (*IAm, error) {
	if r.Service != ServiceIAm {
		return nil, invalidValueError("not an i-am request")
	}

	tag, rest, err := DecodeTag(r.ServiceData)
	if err != nil {
		return nil, err
	}
	if tag.IsContext() || tag.Number != uint8(TagObjectID) || tag.Value != 4 {
		return nil, invalidValueError("i-am device identifier tag")
	}
	oid, rest, err := DecodeUnsigned(rest, 4)
	if err != nil {
		return nil, err
	}

	iam := &IAm{Device: DecodeObjectIdentifier(oid)}

	tag, iam.MaxAPDULength, rest, err = decodeTaggedUnsigned(rest)
	if err != nil {
		return nil, err
	}
	if tag.Number != uint8(TagUnsignedInt) {
		return nil, invalidValueError("i-am max apdu tag")
	}

	var seg uint32
	tag, seg, rest, err = decodeTaggedUnsigned(rest)
	if err != nil {
		return nil, err
	}
	if tag.Number != uint8(TagEnumerated) {
		return nil, invalidValueError("i-am segmentation tag")
	}
	iam.Segmentation = Segmentation(seg)

	tag, iam.VendorID, _, err = decodeTaggedUnsigned(rest)
	if err != nil {
		return nil, err
	}
	if tag.Number != uint8(TagUnsignedInt) {
		return nil, invalidValueError("i-am vendor id tag")
	}
	return iam, nil
}
