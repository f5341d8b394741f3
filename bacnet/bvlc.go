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
	"time"
)

// BVLCType is the first octet of a BVLC header
type BVLCType uint8

const (
	BVLCTypeBACnetIP BVLCType = 0x81
)

// BVLCFunction is the second octet of a BVLC header
type BVLCFunction uint8

const (
	BVLCResult                            BVLCFunction = 0x00
	BVLCWriteBroadcastDistributionTable   BVLCFunction = 0x01
	BVLCReadBroadcastDistributionTable    BVLCFunction = 0x02
	BVLCReadBroadcastDistributionTableAck BVLCFunction = 0x03
	BVLCForwardedNPDU                     BVLCFunction = 0x04
	BVLCRegisterForeignDevice             BVLCFunction = 0x05
	BVLCReadForeignDeviceTable            BVLCFunction = 0x06
	BVLCReadForeignDeviceTableAck         BVLCFunction = 0x07
	BVLCDeleteForeignDeviceTableEntry     BVLCFunction = 0x08
	BVLCDistributeBroadcastToNetwork      BVLCFunction = 0x09
	BVLCOriginalUnicastNPDU               BVLCFunction = 0x0A
	BVLCOriginalBroadcastNPDU             BVLCFunction = 0x0B
	BVLCSecureBVLL                        BVLCFunction = 0x0C
)

// IsKnown reports whether f is one of the functions the decoder
// distinguishes. Other values decode without error.
func (f BVLCFunction) IsKnown() bool {
	switch f {
	case BVLCResult, BVLCWriteBroadcastDistributionTable,
		BVLCReadBroadcastDistributionTable, BVLCReadBroadcastDistributionTableAck,
		BVLCForwardedNPDU, BVLCRegisterForeignDevice,
		BVLCOriginalUnicastNPDU, BVLCOriginalBroadcastNPDU, BVLCSecureBVLL:
		return true
	}
	return false
}

// HasNPDU reports whether frames of this function carry an NPDU
func (f BVLCFunction) HasNPDU() bool {
	return f == BVLCForwardedNPDU || f == BVLCOriginalUnicastNPDU || f == BVLCOriginalBroadcastNPDU
}

func (f BVLCFunction) String() string {
	names := map[BVLCFunction]string{
		BVLCResult:                            "Result",
		BVLCWriteBroadcastDistributionTable:   "Write-Broadcast-Distribution-Table",
		BVLCReadBroadcastDistributionTable:    "Read-Broadcast-Distribution-Table",
		BVLCReadBroadcastDistributionTableAck: "Read-Broadcast-Distribution-Table-Ack",
		BVLCForwardedNPDU:                     "Forwarded-NPDU",
		BVLCRegisterForeignDevice:             "Register-Foreign-Device",
		BVLCReadForeignDeviceTable:            "Read-Foreign-Device-Table",
		BVLCReadForeignDeviceTableAck:         "Read-Foreign-Device-Table-Ack",
		BVLCDeleteForeignDeviceTableEntry:     "Delete-Foreign-Device-Table-Entry",
		BVLCDistributeBroadcastToNetwork:      "Distribute-Broadcast-To-Network",
		BVLCOriginalUnicastNPDU:               "Original-Unicast-NPDU",
		BVLCOriginalBroadcastNPDU:             "Original-Broadcast-NPDU",
		BVLCSecureBVLL:                        "Secure-BVLL",
	}
	if name, ok := names[f]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02X)", uint8(f))
}

const (
	bvlcHeaderLen    = 4
	bvlcForwardedLen = 10
	bdtEntryLen      = 10
)

// IPPort is a B/IP address as carried on the wire
type IPPort struct {
	IP   uint32
	Port uint16
}

// AddrPort converts the address to a netip.AddrPort
func (a IPPort) AddrPort() netip.AddrPort {
	ip := netip.AddrFrom4([4]byte{byte(a.IP >> 24), byte(a.IP >> 16), byte(a.IP >> 8), byte(a.IP)})
	return netip.AddrPortFrom(ip, a.Port)
}

func (a IPPort) String() string {
	return a.AddrPort().String()
}

func decodeIPPort(data []byte) IPPort {
	return IPPort{IP: decodeUint32(data), Port: decodeUint16(data[4:])}
}

// BVLC is a decoded BACnet Virtual Link Control frame
type BVLC struct {
	Function BVLCFunction
	Length   uint16
	// Origin is the originating device of a Forwarded-NPDU.
	Origin *IPPort
	// NPDU is nil when the function carries none or the NPDU did not decode.
	NPDU *NPDU

	data []byte
}

// DecodeBVLC decodes a BACnet/IP frame starting at the BVLC header. A
// malformed NPDU does not fail the frame: NPDU is left nil instead.
func DecodeBVLC(data []byte) (*BVLC, error) {
	if len(data) < bvlcHeaderLen {
		return nil, lengthError("insufficient size for bvlc")
	}
	if BVLCType(data[0]) != BVLCTypeBACnetIP {
		return nil, invalidValueError("invalid bvlc type")
	}

	bvlc := &BVLC{
		Function: BVLCFunction(data[1]),
		Length:   decodeUint16(data[2:]),
		data:     data,
	}
	if int(bvlc.Length) != len(data) {
		return nil, lengthError("inconsistent bvlc length")
	}

	npduOffset := bvlcHeaderLen
	if bvlc.Function == BVLCForwardedNPDU {
		if len(data) < bvlcForwardedLen {
			return nil, lengthError("insufficient size for forwarded npdu origin")
		}
		origin := decodeIPPort(data[bvlcHeaderLen:])
		bvlc.Origin = &origin
		npduOffset = bvlcForwardedLen
	}

	if bvlc.Function.HasNPDU() {
		if npdu, err := DecodeNPDU(data[npduOffset:]); err == nil {
			bvlc.NPDU = npdu
		}
	}
	return bvlc, nil
}

// HasNPDU reports whether an NPDU was decoded
func (b *BVLC) HasNPDU() bool {
	return b.NPDU != nil
}

// HasIPPort reports whether the frame carries an originating address
func (b *BVLC) HasIPPort() bool {
	return b.Origin != nil
}

// Bytes returns the complete frame
func (b *BVLC) Bytes() []byte {
	return b.data
}

// Payload returns the bytes following the four octet header
func (b *BVLC) Payload() []byte {
	return b.data[bvlcHeaderLen:]
}

// BVLCResultCode is the code carried by a BVLC-Result
type BVLCResultCode uint16

const (
	BVLCResultSuccessful                      BVLCResultCode = 0x0000
	BVLCResultWriteBDTNAK                     BVLCResultCode = 0x0010
	BVLCResultReadBDTNAK                      BVLCResultCode = 0x0020
	BVLCResultRegisterForeignDeviceNAK        BVLCResultCode = 0x0030
	BVLCResultReadFDTNAK                      BVLCResultCode = 0x0040
	BVLCResultDeleteFDTEntryNAK               BVLCResultCode = 0x0050
	BVLCResultDistributeBroadcastToNetworkNAK BVLCResultCode = 0x0060
)

func (c BVLCResultCode) String() string {
	names := map[BVLCResultCode]string{
		BVLCResultSuccessful:                      "Successful-Completion",
		BVLCResultWriteBDTNAK:                     "Write-BDT-NAK",
		BVLCResultReadBDTNAK:                      "Read-BDT-NAK",
		BVLCResultRegisterForeignDeviceNAK:        "Register-Foreign-Device-NAK",
		BVLCResultReadFDTNAK:                      "Read-FDT-NAK",
		BVLCResultDeleteFDTEntryNAK:               "Delete-FDT-Entry-NAK",
		BVLCResultDistributeBroadcastToNetworkNAK: "Distribute-Broadcast-To-Network-NAK",
	}
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%04X)", uint16(c))
}

// ResultCode returns the code of a BVLC-Result frame
func (b *BVLC) ResultCode() (BVLCResultCode, error) {
	if b.Function != BVLCResult {
		return 0, invalidValueError("not a bvlc result")
	}
	payload := b.Payload()
	if len(payload) < 2 {
		return 0, lengthError("insufficient size for bvlc result code")
	}
	return BVLCResultCode(decodeUint16(payload)), nil
}

// RegistrationTTL returns the time-to-live requested by a
// Register-Foreign-Device frame.
func (b *BVLC) RegistrationTTL() (time.Duration, error) {
	if b.Function != BVLCRegisterForeignDevice {
		return 0, invalidValueError("not a register foreign device")
	}
	payload := b.Payload()
	if len(payload) < 2 {
		return 0, lengthError("insufficient size for registration ttl")
	}
	return time.Duration(decodeUint16(payload)) * time.Second, nil
}

// BDTEntry is one broadcast distribution table entry
type BDTEntry struct {
	Address IPPort
	Mask    uint32
}

// BDTEntries iterates over the broadcast distribution table carried by a
// Write-Broadcast-Distribution-Table or Read-Broadcast-Distribution-Table-Ack
// frame. Other functions yield an empty iterator.
func (b *BVLC) BDTEntries() *BDTIterator {
	if b.Function != BVLCWriteBroadcastDistributionTable && b.Function != BVLCReadBroadcastDistributionTableAck {
		return &BDTIterator{}
	}
	return &BDTIterator{data: b.Payload()}
}

// BDTIterator walks broadcast distribution table entries. A trailing
// partial entry is ignored.
type BDTIterator struct {
	data []byte
	pos  int
}

// Next returns the next entry. ok is false once no complete entry remains.
func (it *BDTIterator) Next() (entry BDTEntry, ok bool) {
	if len(it.data)-it.pos < bdtEntryLen {
		return BDTEntry{}, false
	}
	raw := it.data[it.pos:]
	entry = BDTEntry{
		Address: decodeIPPort(raw),
		Mask:    decodeUint32(raw[6:]),
	}
	it.pos += bdtEntryLen
	return entry, true
}

// Reset rewinds the iterator to the first entry
func (it *BDTIterator) Reset() {
	it.pos = 0
}
