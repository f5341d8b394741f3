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

// Package capture reads BACnet traffic from pcap and pcapng files.
package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/edgeo-scada/bacdecode/bacnet"
)

// LinkTypeMSTP is the pcap link type for BACnet MS/TP frames starting at
// the preamble.
const LinkTypeMSTP layers.LinkType = 165

var pcapngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

// Link identifies the data link encapsulation of a frame
type Link uint8

const (
	LinkBVLC Link = iota + 1
	LinkMSTP
)

func (l Link) String() string {
	switch l {
	case LinkBVLC:
		return "bvlc"
	case LinkMSTP:
		return "mstp"
	default:
		return fmt.Sprintf("link(%d)", l)
	}
}

// Frame is a BACnet frame extracted from a capture
type Frame struct {
	Link        Link
	Time        time.Time
	Source      string
	Destination string
	// Data starts at the BVLC header or the MS/TP preamble.
	Data []byte
}

// Stats counts the packets a Reader has consumed
type Stats struct {
	Packets int
	Frames  int
	Skipped int
}

type packetSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

type options struct {
	port   uint16
	logger *slog.Logger
}

// Option configures a Reader
type Option func(*options)

// WithPort sets the UDP port carrying BACnet/IP
func WithPort(port uint16) Option {
	return func(o *options) {
		o.port = port
	}
}

// WithLogger sets the logger for skipped packets
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Reader yields the BACnet frames of a capture file
type Reader struct {
	file     *os.File
	src      packetSource
	linkType layers.LinkType
	port     layers.UDPPort
	logger   *slog.Logger
	stats    Stats
}

// Open opens a pcap or pcapng file
func Open(path string, opts ...Option) (*Reader, error) {
	o := &options{
		port:   bacnet.DefaultPort,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}

	src, err := newPacketSource(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Reader{
		file:     f,
		src:      src,
		linkType: src.LinkType(),
		port:     layers.UDPPort(o.port),
		logger:   o.logger,
	}, nil
}

func newPacketSource(r *bufio.Reader) (packetSource, error) {
	magic, err := r.Peek(len(pcapngMagic))
	if err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}

	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(r, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("read pcapng header: %w", err)
		}
		return ng, nil
	}

	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("read pcap header: %w", err)
	}
	return pr, nil
}

// LinkType returns the link type of the capture
func (r *Reader) LinkType() layers.LinkType {
	return r.linkType
}

// Stats returns the packet counts so far
func (r *Reader) Stats() Stats {
	return r.stats
}

// Next returns the next BACnet frame. It returns io.EOF once the capture
// is exhausted.
func (r *Reader) Next() (Frame, error) {
	for {
		data, ci, err := r.src.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Frame{}, io.EOF
			}
			return Frame{}, fmt.Errorf("read packet: %w", err)
		}
		r.stats.Packets++

		frame, ok := r.extract(data, ci)
		if !ok {
			r.stats.Skipped++
			continue
		}
		r.stats.Frames++
		return frame, nil
	}
}

func (r *Reader) extract(data []byte, ci gopacket.CaptureInfo) (Frame, bool) {
	if r.linkType == LinkTypeMSTP {
		return Frame{Link: LinkMSTP, Time: ci.Timestamp, Data: data}, true
	}

	packet := gopacket.NewPacket(data, r.linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return Frame{}, false
	}
	udp, _ := udpLayer.(*layers.UDP)
	if udp.SrcPort != r.port && udp.DstPort != r.port {
		return Frame{}, false
	}
	if len(udp.Payload) == 0 {
		r.logger.Debug("empty bacnet datagram", slog.Time("time", ci.Timestamp))
		return Frame{}, false
	}

	frame := Frame{
		Link: LinkBVLC,
		Time: ci.Timestamp,
		Data: udp.Payload,
	}
	if nl := packet.NetworkLayer(); nl != nil {
		flow := nl.NetworkFlow()
		frame.Source = net.JoinHostPort(flow.Src().String(), strconv.Itoa(int(udp.SrcPort)))
		frame.Destination = net.JoinHostPort(flow.Dst().String(), strconv.Itoa(int(udp.DstPort)))
	}
	return frame, true
}

// Close closes the capture file
func (r *Reader) Close() error {
	return r.file.Close()
}
