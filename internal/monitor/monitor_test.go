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

package monitor

import (
	"encoding/hex"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/bacdecode/bacnet"
	"github.com/edgeo-scada/bacdecode/internal/capture"
)

const (
	readPropertyAck = "81 0a 00 1b 01 20 00 0d 01 3d ff 30 c9 0c 0c 02 00 00 6f 19 4c 29 00 3e 21 21 3f"
	mstpRequest     = "55 ff 05 0c 7f 00 1f 35 01 0c 00 01 06 c0 a8 01 12 ba c0 02 01 6a 0f 0c 00 80 00 0a 19 55 3e 44 41 e8 00 01 3f 49 09 c9 6f"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	require.NoError(t, err)
	return b
}

func newTestMonitor(opts ...Option) *Monitor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(append([]Option{WithLogger(logger)}, opts...)...)
}

func TestHandleBVLC(t *testing.T) {
	m := newTestMonitor()

	report, err := m.HandleBVLC(mustHex(t, readPropertyAck))
	require.NoError(t, err)
	assert.Equal(t, "bvlc", report.Link)
	assert.Equal(t, 27, report.Length)
	assert.Equal(t, "Original-Unicast-NPDU", report.BVLCFunction)
	assert.Equal(t, "0x20", report.NPDUControl)
	assert.Equal(t, "13:3d", report.DestNetwork)
	require.NotNil(t, report.HopCount)
	assert.Equal(t, uint8(255), *report.HopCount)
	assert.Equal(t, "APDU", report.NSDU)
	assert.Equal(t, "Complex-ACK", report.PDUType)
	assert.Equal(t, "ReadProperty", report.Service)
	require.NotNil(t, report.InvokeID)
	assert.Equal(t, uint8(0xc9), *report.InvokeID)
	assert.Equal(t, "Complex-ACK ReadProperty invoke=201", report.Summary())
	assert.Len(t, report.Row(), len(ReportHeaders))

	s := m.Metrics().Snapshot()
	assert.Equal(t, int64(1), s.FramesBVLC)
	assert.Equal(t, int64(1), s.Frames())
	assert.Equal(t, int64(1), s.APDUs)
	assert.Equal(t, int64(27), s.BytesDecoded)
	assert.Equal(t, int64(1), s.LatencyStats.Count)
	assert.Equal(t, int64(0), s.InFlight)
}

func TestHandleBVLCWhoIs(t *testing.T) {
	m := newTestMonitor()

	report, err := m.HandleBVLC(mustHex(t, "81 0b 00 0e 01 00 10 08 0a 0b 54 1a 0b 54"))
	require.NoError(t, err)
	assert.Equal(t, "Unconfirmed-Request Who-Is range=2900-2900", report.Summary())
	assert.Equal(t, int64(1), m.Metrics().WhoIs.Value())
}

func TestHandleBVLCIAm(t *testing.T) {
	m := newTestMonitor()

	report, err := m.HandleBVLC(mustHex(t, "81 0b 00 14 01 00 10 00 c4 02 00 00 6f 22 05 c4 91 00 21 0f"))
	require.NoError(t, err)
	assert.Equal(t, "device:111", strings.ToLower(report.Device))
	require.NotNil(t, report.VendorID)
	assert.Equal(t, uint32(15), *report.VendorID)
	assert.Equal(t, int64(1), m.Metrics().IAm.Value())
}

func TestHandleBVLCNetworkMessage(t *testing.T) {
	m := newTestMonitor()

	report, err := m.HandleBVLC(mustHex(t, "81 0b 00 0b 01 80 01 00 05 00 06"))
	require.NoError(t, err)
	assert.Equal(t, "NLM", report.NSDU)
	assert.Equal(t, []uint16{5, 6}, report.DNETs)
	assert.Equal(t, "I-Am-Router-To-Network [5,6]", report.Summary())
	assert.Equal(t, int64(1), m.Metrics().NLMs.Value())
}

func TestHandleBVLCFailures(t *testing.T) {
	m := newTestMonitor()

	report, err := m.HandleBVLC(mustHex(t, "81 0a 00 09 01"))
	assert.ErrorIs(t, err, bacnet.ErrLength)
	require.NotNil(t, report)
	assert.NotEmpty(t, report.Error)

	report, err = m.HandleBVLC(mustHex(t, "81 0b 00 07 02 00 10"))
	require.NoError(t, err)
	assert.Empty(t, report.NPDUControl)

	report, err = m.HandleBVLC(mustHex(t, "81 0b 00 07 01 00 10"))
	require.NoError(t, err)
	assert.NotEmpty(t, report.Error)

	s := m.Metrics().Snapshot()
	assert.Equal(t, int64(3), s.FramesBVLC)
	assert.Equal(t, int64(1), s.DecodeFailures)
	assert.Equal(t, int64(1), s.FramesWithoutNPDU)
	assert.Equal(t, int64(1), s.NSDUFailures)
	assert.Equal(t, int64(2), s.LatencyStats.Count)
}

func TestHandleMSTP(t *testing.T) {
	m := newTestMonitor()

	report, err := m.HandleMSTP(mustHex(t, mstpRequest))
	require.NoError(t, err)
	assert.Equal(t, "BACnet-Data-Expecting-Reply", report.MSTPType)
	assert.Equal(t, "ok", report.HeaderCRC)
	assert.Equal(t, "ok", report.DataCRC)
	assert.Equal(t, "1:192.168.1.18:47808", report.SourceNetwork)
	assert.True(t, report.ExpectingReply)
	assert.Equal(t, "Confirmed-Request", report.PDUType)
	assert.Equal(t, int64(1), m.Metrics().FramesMSTP.Value())
}

func TestHandleMSTPCRCMismatch(t *testing.T) {
	data := mustHex(t, mstpRequest)
	data[7] = 0x34
	data[len(data)-1] = 0x6e

	m := newTestMonitor()
	report, err := m.HandleMSTP(data)
	require.NoError(t, err)
	assert.Equal(t, "0x34!=0x35", report.HeaderCRC)
	assert.Equal(t, "0x6ec9!=0x6fc9", report.DataCRC)
	assert.Equal(t, int64(1), m.Metrics().HeaderCRCErrors.Value())
	assert.Equal(t, int64(1), m.Metrics().DataCRCErrors.Value())

	skip := newTestMonitor(WithCRCValidation(false))
	report, err = skip.HandleMSTP(data)
	require.NoError(t, err)
	assert.Empty(t, report.HeaderCRC)
	assert.Equal(t, int64(0), skip.Metrics().HeaderCRCErrors.Value())
}

func TestHandleMSTPNoData(t *testing.T) {
	token := []byte{0x55, 0xff, 0x00, 0x10, 0x05, 0x00, 0x00}
	token = append(token, bacnet.HeaderCRC(token[2:7]))

	m := newTestMonitor()
	report, err := m.HandleMSTP(token)
	require.NoError(t, err)
	assert.Equal(t, "Token", report.MSTPType)
	assert.Empty(t, report.DataCRC)
	assert.Equal(t, int64(0), m.Metrics().FramesWithoutNPDU.Value())
}

func TestHandleFrame(t *testing.T) {
	m := newTestMonitor()
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	report, err := m.HandleFrame(capture.Frame{
		Link:        capture.LinkBVLC,
		Time:        ts,
		Source:      "10.0.0.1:47808",
		Destination: "10.0.0.255:47808",
		Data:        mustHex(t, readPropertyAck),
	})
	require.NoError(t, err)
	assert.Equal(t, ts, report.Time)
	assert.Equal(t, "10.0.0.1:47808", report.Source)
	assert.Equal(t, "07:08:09.000000", report.Row()[0])

	_, err = m.HandleFrame(capture.Frame{Link: capture.Link(42)})
	assert.ErrorIs(t, err, bacnet.ErrUnknown)
}

func TestCollector(t *testing.T) {
	m := newTestMonitor()
	_, err := m.HandleBVLC(mustHex(t, readPropertyAck))
	require.NoError(t, err)

	expected := `
# HELP bacdecode_frames_total BACnet frames handled by data link.
# TYPE bacdecode_frames_total counter
bacdecode_frames_total{link="bvlc"} 1
bacdecode_frames_total{link="mstp"} 0
`
	require.NoError(t, testutil.CollectAndCompare(m.Collector(), strings.NewReader(expected), "bacdecode_frames_total"))
	assert.Equal(t, 4, testutil.CollectAndCount(m.Collector(), "bacdecode_nsdus_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Collector(), "bacdecode_decode_duration_seconds"))
}

func TestWithRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newTestMonitor(WithRegisterer(reg), WithNamespace("test"))
	_, err := m.HandleMSTP(mustHex(t, mstpRequest))
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["test_frames_total"])
	assert.True(t, names["test_mstp_crc_errors_total"])
	assert.True(t, names["test_decode_duration_seconds"])
}

func TestLatencyHistogram(t *testing.T) {
	h := NewLatencyHistogram()
	h.Record(500 * time.Nanosecond)
	h.Record(2 * time.Microsecond)
	h.Record(time.Second)

	stats := h.Stats()
	assert.Equal(t, int64(3), stats.Count)
	assert.Equal(t, 500*time.Nanosecond, stats.Min)
	assert.Equal(t, time.Second, stats.Max)
	assert.Equal(t, int64(1), stats.Buckets[0])
	assert.Equal(t, int64(1), stats.Buckets[1])
	assert.Equal(t, int64(1), stats.Buckets[len(LatencyBounds)])

	h.Reset()
	assert.Equal(t, int64(0), h.Stats().Count)
}
