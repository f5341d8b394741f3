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

// Package monitor drives the BACnet decoders over a stream of frames and
// keeps statistics about what it sees.
package monitor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/edgeo-scada/bacdecode/bacnet"
	"github.com/edgeo-scada/bacdecode/internal/capture"
)

// Monitor decodes frames and records metrics. It is safe for concurrent use.
type Monitor struct {
	opts      *options
	logger    *slog.Logger
	metrics   *Metrics
	collector *Collector
}

// New creates a monitor
func New(opts ...Option) *Monitor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	m := &Monitor{
		opts:    o,
		logger:  o.logger,
		metrics: NewMetrics(),
	}
	m.collector = NewCollector(m.metrics, o.namespace)

	if o.registerer != nil {
		if err := o.registerer.Register(m.collector); err != nil {
			m.logger.Warn("register metrics collector", slog.String("error", err.Error()))
		}
	}

	return m
}

// Metrics returns the monitor metrics
func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

// Collector returns the Prometheus collector backed by the monitor metrics
func (m *Monitor) Collector() *Collector {
	return m.collector
}

// HandleFrame decodes a frame read from a capture
func (m *Monitor) HandleFrame(f capture.Frame) (*Report, error) {
	var (
		report *Report
		err    error
	)
	switch f.Link {
	case capture.LinkBVLC:
		report, err = m.HandleBVLC(f.Data)
	case capture.LinkMSTP:
		report, err = m.HandleMSTP(f.Data)
	default:
		return nil, fmt.Errorf("%w: %s", bacnet.ErrUnknown, f.Link)
	}

	report.Time = f.Time
	report.Source = f.Source
	report.Destination = f.Destination
	return report, err
}

// HandleBVLC decodes a BACnet/IP frame. On error the returned report holds
// what was known about the frame.
func (m *Monitor) HandleBVLC(data []byte) (*Report, error) {
	start := m.begin(len(data))
	defer m.metrics.InFlight.Dec()
	m.metrics.FramesBVLC.Inc()

	report := &Report{Link: capture.LinkBVLC.String(), Length: len(data)}

	bvlc, err := bacnet.DecodeBVLC(data)
	if err != nil {
		return m.fail(report, err)
	}
	report.addBVLC(bvlc)

	if bvlc.NPDU == nil {
		if bvlc.Function.HasNPDU() {
			m.metrics.FramesWithoutNPDU.Inc()
			m.logger.Debug("bvlc frame without npdu", slog.String("function", bvlc.Function.String()))
		}
	} else {
		m.handleNPDU(report, bvlc.NPDU)
	}

	m.metrics.DecodeLatency.Record(time.Since(start))
	return report, nil
}

// HandleMSTP decodes an MS/TP frame
func (m *Monitor) HandleMSTP(data []byte) (*Report, error) {
	start := m.begin(len(data))
	defer m.metrics.InFlight.Dec()
	m.metrics.FramesMSTP.Inc()

	report := &Report{Link: capture.LinkMSTP.String(), Length: len(data)}

	decode := bacnet.DecodeMSTPSkipCRC
	if m.opts.validateCRC {
		decode = bacnet.DecodeMSTP
	}
	frame, err := decode(data)
	if err != nil {
		return m.fail(report, err)
	}
	report.addMSTP(frame)

	if frame.CRCs != nil {
		m.checkCRCs(frame)
	}

	if frame.NPDU == nil {
		if frame.Length > 0 {
			m.metrics.FramesWithoutNPDU.Inc()
			m.logger.Debug("mstp frame without npdu",
				slog.String("type", frame.Type.String()),
				slog.Int("declared", int(frame.Length)),
				slog.Int("length", len(data)))
		}
	} else {
		m.handleNPDU(report, frame.NPDU)
	}

	m.metrics.DecodeLatency.Record(time.Since(start))
	return report, nil
}

func (m *Monitor) begin(n int) time.Time {
	m.metrics.InFlight.Inc()
	m.metrics.BytesDecoded.Add(int64(n))
	m.metrics.RecordActivity()
	return time.Now()
}

func (m *Monitor) fail(report *Report, err error) (*Report, error) {
	m.metrics.DecodeFailures.Inc()
	m.logger.Debug("decode failed",
		slog.String("link", report.Link),
		slog.Int("length", report.Length),
		slog.String("error", err.Error()))
	report.Error = err.Error()
	return report, err
}

func (m *Monitor) checkCRCs(frame *bacnet.MSTPFrame) {
	if !frame.CRCs.HeaderValid() {
		m.metrics.HeaderCRCErrors.Inc()
		actual, computed := frame.CRCs.Header()
		m.logger.Warn("mstp header crc mismatch",
			slog.Int("source", int(frame.Source)),
			slog.String("actual", fmt.Sprintf("0x%02x", actual)),
			slog.String("computed", fmt.Sprintf("0x%02x", computed)))
	}
	if !frame.CRCs.DataValid() {
		m.metrics.DataCRCErrors.Inc()
		actual, computed := frame.CRCs.Data()
		m.logger.Warn("mstp data crc mismatch",
			slog.Int("source", int(frame.Source)),
			slog.String("actual", fmt.Sprintf("0x%04x", actual)),
			slog.String("computed", fmt.Sprintf("0x%04x", computed)))
	}
}

// handleNPDU decodes the NPDU payload. Payload failures are recorded on the
// report but do not fail the frame.
func (m *Monitor) handleNPDU(report *Report, npdu *bacnet.NPDU) {
	report.addNPDU(npdu)

	nsdu, err := npdu.DecodeNSDU()
	if err != nil {
		m.metrics.NSDUFailures.Inc()
		report.Error = err.Error()
		m.logger.Debug("nsdu decode failed",
			slog.String("kind", npdu.Kind().String()),
			slog.String("error", err.Error()))
		return
	}
	report.NSDU = nsdu.Kind.String()

	switch nsdu.Kind {
	case bacnet.NSDUAPDU:
		m.metrics.APDUs.Inc()
		m.countAPDU(nsdu.APDU)
		report.addAPDU(nsdu.APDU)
	case bacnet.NSDUNLM:
		m.metrics.NLMs.Inc()
		report.addNLM(nsdu.NLM)
	default:
		m.metrics.EmptyNSDUs.Inc()
	}
}

func (m *Monitor) countAPDU(apdu *bacnet.APDU) {
	switch apdu.Type {
	case bacnet.PDUTypeUnconfirmedRequest:
		switch apdu.Unconfirmed.Service {
		case bacnet.ServiceWhoIs:
			m.metrics.WhoIs.Inc()
		case bacnet.ServiceIAm:
			m.metrics.IAm.Inc()
		}
	case bacnet.PDUTypeError:
		m.metrics.ErrorPDUs.Inc()
	case bacnet.PDUTypeReject:
		m.metrics.Rejects.Inc()
	case bacnet.PDUTypeAbort:
		m.metrics.Aborts.Inc()
	}
}
