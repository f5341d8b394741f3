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
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports Metrics to Prometheus. Values are read from a snapshot
// at scrape time.
type Collector struct {
	metrics *Metrics

	frames      *prometheus.Desc
	failures    *prometheus.Desc
	withoutNPDU *prometheus.Desc
	crcErrors   *prometheus.Desc
	nsdus       *prometheus.Desc
	services    *prometheus.Desc
	bytes       *prometheus.Desc
	latency     *prometheus.Desc
	inFlight    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector for m under namespace
func NewCollector(m *Metrics, namespace string) *Collector {
	return &Collector{
		metrics: m,
		frames: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "frames_total"),
			"BACnet frames handled by data link.",
			[]string{"link"}, nil),
		failures: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "decode_failures_total"),
			"Frames rejected by the data link decoder.",
			nil, nil),
		withoutNPDU: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "frames_without_npdu_total"),
			"Frames expected to carry an NPDU that did not decode.",
			nil, nil),
		crcErrors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "mstp", "crc_errors_total"),
			"MS/TP CRC mismatches.",
			[]string{"crc"}, nil),
		nsdus: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "nsdus_total"),
			"NPDU payloads by kind.",
			[]string{"kind"}, nil),
		services: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "apdus_total"),
			"Selected application messages.",
			[]string{"message"}, nil),
		bytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "bytes_total"),
			"Bytes handed to the decoders.",
			nil, nil),
		latency: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "decode_duration_seconds"),
			"Time spent decoding successfully decoded frames.",
			nil, nil),
		inFlight: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "decodes_in_flight"),
			"Frames currently being decoded.",
			nil, nil),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.frames
	ch <- c.failures
	ch <- c.withoutNPDU
	ch <- c.crcErrors
	ch <- c.nsdus
	ch <- c.services
	ch <- c.bytes
	ch <- c.latency
	ch <- c.inFlight
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.metrics.Snapshot()

	counter := func(desc *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}

	counter(c.frames, s.FramesBVLC, "bvlc")
	counter(c.frames, s.FramesMSTP, "mstp")
	counter(c.failures, s.DecodeFailures)
	counter(c.withoutNPDU, s.FramesWithoutNPDU)
	counter(c.crcErrors, s.HeaderCRCErrors, "header")
	counter(c.crcErrors, s.DataCRCErrors, "data")
	counter(c.nsdus, s.APDUs, "apdu")
	counter(c.nsdus, s.NLMs, "nlm")
	counter(c.nsdus, s.EmptyNSDUs, "empty")
	counter(c.nsdus, s.NSDUFailures, "failed")
	counter(c.services, s.WhoIs, "who-is")
	counter(c.services, s.IAm, "i-am")
	counter(c.services, s.ErrorPDUs, "error")
	counter(c.services, s.Rejects, "reject")
	counter(c.services, s.Aborts, "abort")
	counter(c.bytes, s.BytesDecoded)

	lat := s.LatencyStats
	buckets := make(map[float64]uint64, len(LatencyBounds))
	var cumulative uint64
	for i, bound := range LatencyBounds {
		cumulative += uint64(lat.Buckets[i])
		buckets[bound.Seconds()] = cumulative
	}
	ch <- prometheus.MustNewConstHistogram(c.latency, uint64(lat.Count), lat.Sum.Seconds(), buckets)

	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(s.InFlight))
}
