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

import "fmt"

// NetworkMessageType is the first octet of a network layer message
type NetworkMessageType uint8

const (
	NetworkMessageWhoIsRouterToNetwork          NetworkMessageType = 0x00
	NetworkMessageIAmRouterToNetwork            NetworkMessageType = 0x01
	NetworkMessageICouldBeRouterToNetwork       NetworkMessageType = 0x02
	NetworkMessageRejectMessageToNetwork        NetworkMessageType = 0x03
	NetworkMessageRouterBusyToNetwork           NetworkMessageType = 0x04
	NetworkMessageRouterAvailableToNetwork      NetworkMessageType = 0x05
	NetworkMessageInitializeRoutingTable        NetworkMessageType = 0x06
	NetworkMessageInitializeRoutingTableAck     NetworkMessageType = 0x07
	NetworkMessageEstablishConnectionToNetwork  NetworkMessageType = 0x08
	NetworkMessageDisconnectConnectionToNetwork NetworkMessageType = 0x09
	NetworkMessageChallengeRequest              NetworkMessageType = 0x0A
	NetworkMessageSecurityPayload               NetworkMessageType = 0x0B
	NetworkMessageSecurityResponse              NetworkMessageType = 0x0C
	NetworkMessageRequestKeyUpdate              NetworkMessageType = 0x0D
	NetworkMessageUpdateKeySet                  NetworkMessageType = 0x0E
	NetworkMessageUpdateDistributionKey         NetworkMessageType = 0x0F
	NetworkMessageRequestMasterKey              NetworkMessageType = 0x10
	NetworkMessageSetMasterKey                  NetworkMessageType = 0x11
)

// IsReserved reports whether t falls in the reserved range 0x12-0x7F
func (t NetworkMessageType) IsReserved() bool {
	return t >= 0x12 && t < 0x80
}

// IsProprietary reports whether t falls in the vendor range 0x80-0xFF
func (t NetworkMessageType) IsProprietary() bool {
	return t >= 0x80
}

func (t NetworkMessageType) String() string {
	names := map[NetworkMessageType]string{
		NetworkMessageWhoIsRouterToNetwork:          "Who-Is-Router-To-Network",
		NetworkMessageIAmRouterToNetwork:            "I-Am-Router-To-Network",
		NetworkMessageICouldBeRouterToNetwork:       "I-Could-Be-Router-To-Network",
		NetworkMessageRejectMessageToNetwork:        "Reject-Message-To-Network",
		NetworkMessageRouterBusyToNetwork:           "Router-Busy-To-Network",
		NetworkMessageRouterAvailableToNetwork:      "Router-Available-To-Network",
		NetworkMessageInitializeRoutingTable:        "Initialize-Routing-Table",
		NetworkMessageInitializeRoutingTableAck:     "Initialize-Routing-Table-Ack",
		NetworkMessageEstablishConnectionToNetwork:  "Establish-Connection-To-Network",
		NetworkMessageDisconnectConnectionToNetwork: "Disconnect-Connection-To-Network",
		NetworkMessageChallengeRequest:              "Challenge-Request",
		NetworkMessageSecurityPayload:               "Security-Payload",
		NetworkMessageSecurityResponse:              "Security-Response",
		NetworkMessageRequestKeyUpdate:              "Request-Key-Update",
		NetworkMessageUpdateKeySet:                  "Update-Key-Set",
		NetworkMessageUpdateDistributionKey:         "Update-Distribution-Key",
		NetworkMessageRequestMasterKey:              "Request-Master-Key",
		NetworkMessageSetMasterKey:                  "Set-Master-Key",
	}
	if name, ok := names[t]; ok {
		return name
	}
	if t.IsProprietary() {
		return fmt.Sprintf("Proprietary(0x%02X)", uint8(t))
	}
	return fmt.Sprintf("Reserved(0x%02X)", uint8(t))
}

// NLM is a network layer message (router PDU)
type NLM struct {
	Type NetworkMessageType
	// Data is the complete message including the type octet.
	Data []byte
}

// DecodeNLM classifies a network layer message. The message body is decoded
// by the accessors matching its type.
func DecodeNLM(data []byte) (*NLM, error) {
	if len(data) < 1 {
		return nil, lengthError("empty nlm")
	}
	return &NLM{
		Type: NetworkMessageType(data[0]),
		Data: data,
	}, nil
}

// Body returns the bytes following the type octet
func (n *NLM) Body() []byte {
	return n.Data[1:]
}

// WhoIsRouterDNET returns the network a Who-Is-Router-To-Network asks
// about. ok is false when the message asks about every network.
func (n *NLM) WhoIsRouterDNET() (dnet uint16, ok bool) {
	if n.Type != NetworkMessageWhoIsRouterToNetwork {
		return 0, false
	}
	body := n.Body()
	if len(body) < 2 {
		return 0, false
	}
	return decodeUint16(body), true
}

// DNETs iterates over the network numbers that follow the type octet. It is
// meaningful for I-Am-Router-To-Network, I-Could-Be-Router-To-Network,
// Router-Busy-To-Network and Router-Available-To-Network.
func (n *NLM) DNETs() *DNETIterator {
	return &DNETIterator{data: n.Body()}
}

// DNETIterator walks a list of 16-bit network numbers. A trailing odd byte
// is ignored.
type DNETIterator struct {
	data []byte
	pos  int
}

// Next returns the next network number. ok is false once fewer than two
// bytes remain.
func (it *DNETIterator) Next() (dnet uint16, ok bool) {
	if len(it.data)-it.pos < 2 {
		return 0, false
	}
	dnet = decodeUint16(it.data[it.pos:])
	it.pos += 2
	return dnet, true
}

// Reset rewinds the iterator to the first network number
func (it *DNETIterator) Reset() {
	it.pos = 0
}

// Collect drains the remaining network numbers into a slice
func (it *DNETIterator) Collect() []uint16 {
	var dnets []uint16
	for {
		dnet, ok := it.Next()
		if !ok {
			return dnets
		}
		dnets = append(dnets, dnet)
	}
}

// PerformanceIndex returns the network and performance index offered by an
// I-Could-Be-Router-To-Network message.
func (n *NLM) PerformanceIndex() (dnet uint16, index uint8, err error) {
	if n.Type != NetworkMessageICouldBeRouterToNetwork {
		return 0, 0, invalidValueError("not an i-could-be-router message")
	}
	body := n.Body()
	if len(body) < 3 {
		return 0, 0, lengthError("insufficient size for i-could-be-router")
	}
	return decodeUint16(body), body[2], nil
}

// NetworkRejectReason is the reason carried by Reject-Message-To-Network
type NetworkRejectReason uint8

const (
	NetworkRejectOther           NetworkRejectReason = 0
	NetworkRejectUnknownNetwork  NetworkRejectReason = 1
	NetworkRejectRouterBusy      NetworkRejectReason = 2
	NetworkRejectUnknownMessage  NetworkRejectReason = 3
	NetworkRejectMessageTooLong  NetworkRejectReason = 4
	NetworkRejectSecurityError   NetworkRejectReason = 5
	NetworkRejectAddressingError NetworkRejectReason = 6
)

func (r NetworkRejectReason) String() string {
	names := map[NetworkRejectReason]string{
		NetworkRejectOther:           "other",
		NetworkRejectUnknownNetwork:  "unknown-network",
		NetworkRejectRouterBusy:      "router-busy",
		NetworkRejectUnknownMessage:  "unknown-message-type",
		NetworkRejectMessageTooLong:  "message-too-long",
		NetworkRejectSecurityError:   "security-error",
		NetworkRejectAddressingError: "addressing-error",
	}
	if name, ok := names[r]; ok {
		return name
	}
	return fmt.Sprintf("network-reject-reason(%d)", r)
}

// RejectReason returns the reason and network of a
// Reject-Message-To-Network message.
func (n *NLM) RejectReason() (NetworkRejectReason, uint16, error) {
	if n.Type != NetworkMessageRejectMessageToNetwork {
		return 0, 0, invalidValueError("not a reject-message-to-network")
	}
	body := n.Body()
	if len(body) < 3 {
		return 0, 0, lengthError("insufficient size for reject-message-to-network")
	}
	return NetworkRejectReason(body[0]), decodeUint16(body[1:]), nil
}

// VendorID returns the vendor identifier that leads the body of a
// proprietary message.
func (n *NLM) VendorID() (uint16, error) {
	if !n.Type.IsProprietary() {
		return 0, invalidValueError("not a proprietary network message")
	}
	body := n.Body()
	if len(body) < 2 {
		return 0, lengthError("insufficient size for vendor id")
	}
	return decodeUint16(body), nil
}
