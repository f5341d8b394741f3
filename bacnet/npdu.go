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
	"net/netip"
)

// NPDUVersion is the only protocol version the NPDU decoder accepts
const NPDUVersion = 0x01

// NPDU Network Layer Protocol Control Information
type NPDUControl uint8

const (
	NPDUControlNetworkLayerMessage NPDUControl = 0x80
	NPDUControlDestSpecifier       NPDUControl = 0x20
	NPDUControlSourceSpecifier     NPDUControl = 0x08
	NPDUControlExpectingReply      NPDUControl = 0x04
	npduControlPriorityMask        NPDUControl = 0x03
)

// IsAPDU reports whether the payload is an APDU (bit 7 clear)
func (c NPDUControl) IsAPDU() bool {
	return c&NPDUControlNetworkLayerMessage == 0
}

// IsNetworkMessage reports whether the payload is a network layer message
func (c NPDUControl) IsNetworkMessage() bool {
	return !c.IsAPDU()
}

// DestinationPresent reports whether DNET, DLEN, DADR and hop count are present
func (c NPDUControl) DestinationPresent() bool {
	return c&NPDUControlDestSpecifier != 0
}

// SourcePresent reports whether SNET, SLEN and SADR are present
func (c NPDUControl) SourcePresent() bool {
	return c&NPDUControlSourceSpecifier != 0
}

// ExpectingReply returns the data expecting reply flag
func (c NPDUControl) ExpectingReply() bool {
	return c&NPDUControlExpectingReply != 0
}

// Priority returns the network priority held in the two low bits
func (c NPDUControl) Priority() NPDUPriority {
	return NPDUPriority(c & npduControlPriorityMask)
}

// NPDUPriority is the network priority of an NPDU
type NPDUPriority uint8

const (
	PriorityNormal            NPDUPriority = 0
	PriorityUrgent            NPDUPriority = 1
	PriorityCriticalEquipment NPDUPriority = 2
	PriorityLifeSafety        NPDUPriority = 3
)

func (p NPDUPriority) String() string {
	switch p & 0x03 {
	case PriorityNormal:
		return "normal"
	case PriorityUrgent:
		return "urgent"
	case PriorityCriticalEquipment:
		return "critical-equipment"
	default:
		return "life-safety"
	}
}

// NetworkAddress is a network number and the MAC layer address on it.
// Addr references the decoded buffer.
type NetworkAddress struct {
	Net  uint16
	Addr []byte
}

// IsBroadcast reports a global broadcast network number
func (a NetworkAddress) IsBroadcast() bool {
	return a.Net == 0xFFFF
}

func (a NetworkAddress) String() string {
	if len(a.Addr) == 6 {
		ip := netip.AddrFrom4([4]byte{a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3]})
		port := decodeUint16(a.Addr[4:6])
		return fmt.Sprintf("%d:%s", a.Net, netip.AddrPortFrom(ip, port))
	}
	return fmt.Sprintf("%d:%x", a.Net, a.Addr)
}

// DecodeNetworkAddress decodes a network number, address length and address
// from the front of data and returns the bytes after the address.
func DecodeNetworkAddress(data []byte) (NetworkAddress, []byte, error) {
	if len(data) < 3 {
		return NetworkAddress{}, nil, lengthError("insufficient size for netaddr")
	}
	addrLen := int(data[2])
	if len(data) < 3+addrLen {
		return NetworkAddress{}, nil, lengthError("insufficient size for netaddr address")
	}
	addr := NetworkAddress{
		Net:  decodeUint16(data[0:2]),
		Addr: data[3 : 3+addrLen : 3+addrLen],
	}
	return addr, data[3+addrLen:], nil
}

// Destination is the NPDU destination specifier with its hop count
type Destination struct {
	NetworkAddress
	HopCount uint8
}

// NPDU (Network Protocol Data Unit)
type NPDU struct {
	Version     uint8
	Control     NPDUControl
	Destination *Destination
	Source      *NetworkAddress
	Payload     []byte
}

// DecodeNPDU decodes the network layer header. The bytes after the header
// are exposed as Payload; decoding them is left to DecodeAPDU or DecodeNLM
// (or DecodeNSDU, which picks one from the control octet).
//
// A destination specifier that fails to decode is ignored and decoding
// resumes right after the control octet. A source specifier that fails to
// decode fails the whole NPDU.
func DecodeNPDU(data []byte) (*NPDU, error) {
	if len(data) < 3 {
		return nil, lengthError("insufficient size for npdu")
	}
	if data[0] != NPDUVersion {
		return nil, invalidValueError("unhandled npdu version")
	}

	npdu := &NPDU{
		Version: data[0],
		Control: NPDUControl(data[1]),
	}
	rest := data[2:]

	if npdu.Control.DestinationPresent() {
		if dst, after, err := DecodeNetworkAddress(rest); err == nil {
			npdu.Destination = &Destination{NetworkAddress: dst}
			rest = after
		}
	}

	if npdu.Control.SourcePresent() {
		src, after, err := DecodeNetworkAddress(rest)
		if err != nil {
			return nil, err
		}
		npdu.Source = &src
		rest = after
	}

	if npdu.Destination != nil {
		if len(rest) < 1 {
			return nil, lengthError("insufficient size for hopcount")
		}
		npdu.Destination.HopCount = rest[0]
		rest = rest[1:]
	}

	npdu.Payload = rest
	return npdu, nil
}

// NSDUKind classifies an NPDU payload
type NSDUKind uint8

const (
	NSDUInvalid NSDUKind = iota
	NSDUAPDU
	NSDUNLM
)

func (k NSDUKind) String() string {
	switch k {
	case NSDUAPDU:
		return "APDU"
	case NSDUNLM:
		return "NLM"
	default:
		return "Invalid"
	}
}

// Kind classifies the payload from the control octet. An empty payload is
// Invalid regardless of the control octet.
func (n *NPDU) Kind() NSDUKind {
	if len(n.Payload) == 0 {
		return NSDUInvalid
	}
	if n.Control.IsAPDU() {
		return NSDUAPDU
	}
	return NSDUNLM
}

// NSDU is the decoded NPDU payload; exactly one of APDU and NLM is set
// unless Kind is NSDUInvalid.
type NSDU struct {
	Kind NSDUKind
	APDU *APDU
	NLM  *NLM
}

// DecodeNSDU decodes the payload with the decoder selected by Kind.
func (n *NPDU) DecodeNSDU() (*NSDU, error) {
	nsdu := &NSDU{Kind: n.Kind()}
	var err error
	switch nsdu.Kind {
	case NSDUAPDU:
		nsdu.APDU, err = DecodeAPDU(n.Payload)
	case NSDUNLM:
		nsdu.NLM, err = DecodeNLM(n.Payload)
	}
	if err != nil {
		return nil, err
	}
	return nsdu, nil
}
