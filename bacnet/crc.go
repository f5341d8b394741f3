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

import "github.com/sigurn/crc16"

var dataCRCTable = crc16.MakeTable(crc16.CRC16_X_25)

// HeaderCRC computes the MS/TP header CRC over the frame type, destination,
// source and length octets.
func HeaderCRC(header []byte) uint8 {
	crc := uint16(0xFF)
	for _, b := range header {
		crc ^= uint16(b)
		crc ^= (crc << 1) ^ (crc << 2) ^ (crc << 3) ^ (crc << 4) ^
			(crc << 5) ^ (crc << 6) ^ (crc << 7)
		crc = (crc & 0xFE) ^ ((crc >> 8) & 1)
	}
	return uint8(^crc)
}

// DataCRC computes the MS/TP data CRC. The result is already complemented
// and compares equal to the two trailing octets read little-endian.
func DataCRC(data []byte) uint16 {
	return crc16.Checksum(data, dataCRCTable)
}

// CRCPair holds the CRC values read from an MS/TP frame next to the values
// recomputed from its contents.
type CRCPair struct {
	HeaderActual   uint8
	HeaderComputed uint8
	DataActual     uint16
	DataComputed   uint16
	// DataPresent is false for frames too short to carry a data CRC.
	DataPresent bool
}

// Header returns the header CRC as (actual, computed)
func (c CRCPair) Header() (uint8, uint8) {
	return c.HeaderActual, c.HeaderComputed
}

// Data returns the data CRC as (actual, computed)
func (c CRCPair) Data() (uint16, uint16) {
	return c.DataActual, c.DataComputed
}

// HeaderValid reports whether the header CRC matches
func (c CRCPair) HeaderValid() bool {
	return c.HeaderActual == c.HeaderComputed
}

// DataValid reports whether the data CRC matches. Frames without a data CRC
// are valid.
func (c CRCPair) DataValid() bool {
	return !c.DataPresent || c.DataActual == c.DataComputed
}
