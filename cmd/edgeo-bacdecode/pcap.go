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


package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeo-scada/bacdecode/internal/capture"
	"github.com/edgeo-scada/bacdecode/internal/monitor"
)

var (
	pcapLimit      int
	pcapErrorsOnly bool
)

var pcapCmd = &cobra.Command{
	Use:   "pcap FILE",
	Short: "Decode the BACnet frames of a capture file",
	Long: `Pcap reads a pcap or pcapng capture and decodes every BACnet frame in it.

BACnet/IP is taken from UDP datagrams on the BACnet port (--port). Captures
with the BACnet MS/TP link type (165) are decoded as MS/TP.

Examples:
  # Decode a capture as a table
  edgeo-bacdecode pcap trace.pcapng

  # Only frames that failed to decode, as JSON
  edgeo-bacdecode pcap trace.pcap --errors -o json

  # BACnet/IP on a non-standard port
  edgeo-bacdecode pcap trace.pcap --port 47809`,

	Args: cobra.ExactArgs(1),
	RunE: runPcap,
}

func init() {
	pcapCmd.Flags().IntVarP(&pcapLimit, "limit", "n", 0, "Stop after this many frames (0 = all)")
	pcapCmd.Flags().BoolVar(&pcapErrorsOnly, "errors", false, "Only print frames with decode errors")
}

func runPcap(cmd *cobra.Command, args []string) error {
	udpPort := viper.GetInt("port")
	if udpPort <= 0 || udpPort > 0xFFFF {
		return fmt.Errorf("invalid port %d", udpPort)
	}

	reader, err := capture.Open(args[0],
		capture.WithPort(uint16(udpPort)),
		capture.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer reader.Close()

	logger.Debug("capture opened",
		slog.String("file", args[0]),
		slog.String("link_type", reader.LinkType().String()))

	mon := createMonitor()
	formatter := NewFormatter(viper.GetString("output"))
	formatter.SetWriter(cmd.OutOrStdout())

	var reports []*monitor.Report
	for pcapLimit <= 0 || len(reports) < pcapLimit {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		report, err := mon.HandleFrame(frame)
		if pcapErrorsOnly && err == nil && report.Error == "" {
			continue
		}
		reports = append(reports, report)
	}

	if err := formatter.PrintReports(reports); err != nil {
		return err
	}

	stats := reader.Stats()
	logger.Info("capture decoded",
		slog.Int("packets", stats.Packets),
		slog.Int("frames", stats.Frames),
		slog.Int("skipped", stats.Skipped))

	return formatter.PrintStats(mon.Metrics().Snapshot())
}
