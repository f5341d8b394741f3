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
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeo-scada/bacdecode/internal/capture"
	"github.com/edgeo-scada/bacdecode/internal/monitor"
)

var decodeLink string

var decodeCmd = &cobra.Command{
	Use:   "decode [hex...]",
	Short: "Decode frames given as hex",
	Long: `Decode decodes one BACnet frame per argument. Without arguments frames are
read from standard input, one per line.

Hex may contain spaces, colons or dashes and an optional 0x prefix.

Examples:
  # Who-Is broadcast over BACnet/IP
  edgeo-bacdecode decode 810b000801001008

  # MS/TP token
  edgeo-bacdecode decode --link mstp "55 ff 00 10 05 00 00 8c"

  # Frames from a file
  edgeo-bacdecode decode < frames.txt -o json`,

	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().StringVarP(&decodeLink, "link", "l", "bvlc", "Data link of the frames (bvlc, mstp)")
	viper.BindPFlag("link", decodeCmd.Flags().Lookup("link"))
}

func runDecode(cmd *cobra.Command, args []string) error {
	link, err := parseLink(viper.GetString("link"))
	if err != nil {
		return err
	}

	frames := args
	if len(frames) == 0 {
		frames, err = readHexLines(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read frames: %w", err)
		}
	}

	mon := createMonitor()
	formatter := NewFormatter(viper.GetString("output"))
	formatter.SetWriter(cmd.OutOrStdout())

	reports := make([]*monitor.Report, 0, len(frames))
	for i, s := range frames {
		data, err := parseHex(s)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i+1, err)
		}

		// Decode errors are carried in the report.
		report, _ := mon.HandleFrame(capture.Frame{Link: link, Data: data})
		reports = append(reports, report)
	}

	return formatter.PrintReports(reports)
}

func parseLink(s string) (capture.Link, error) {
	switch strings.ToLower(s) {
	case "bvlc", "ip", "bip":
		return capture.LinkBVLC, nil
	case "mstp", "ms/tp":
		return capture.LinkMSTP, nil
	default:
		return 0, fmt.Errorf("unknown link %q (want bvlc or mstp)", s)
	}
}

// parseHex decodes a hex string, ignoring common separators
func parseHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "-", "", "\t", "").Replace(s)
	if s == "" {
		return nil, fmt.Errorf("empty frame")
	}

	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}

func readHexLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

