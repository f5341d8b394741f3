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
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeo-scada/bacdecode/bacnet"
	"github.com/edgeo-scada/bacdecode/internal/monitor"
)

var (
	cfgFile   string
	port      int
	outputFmt string
	verbose   bool
	skipCRC   bool

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "edgeo-bacdecode",
	Short: "A passive BACnet frame decoder",
	Long: `edgeo-bacdecode decodes BACnet/IP and MS/TP frames without sending anything.

Frames can be given as hex on the command line, read from pcap/pcapng
captures, or received on a UDP socket.

Examples:
  # Decode a BVLC frame given as hex
  edgeo-bacdecode decode 810b000801001008

  # Decode an MS/TP frame
  edgeo-bacdecode decode --link mstp 55ff00100500008c

  # Decode every BACnet frame of a capture
  edgeo-bacdecode pcap trace.pcapng -o json

  # Sniff BACnet/IP and expose Prometheus metrics
  edgeo-bacdecode listen --metrics-addr :9108`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := slog.LevelInfo
		if viper.GetBool("verbose") {
			logLevel = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))

		switch OutputFormat(viper.GetString("output")) {
		case FormatTable, FormatJSON, FormatCSV, FormatRaw:
			return nil
		default:
			return fmt.Errorf("unknown output format %q", viper.GetString("output"))
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.edgeo-bacdecode.yaml)")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", bacnet.DefaultPort, "BACnet/IP UDP port")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format (table, json, csv, raw)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&skipCRC, "skip-crc", false, "Do not validate MS/TP CRCs")

	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("skip-crc", rootCmd.PersistentFlags().Lookup("skip-crc"))

	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(pcapCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigName(".edgeo-bacdecode")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BACDECODE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// createMonitor creates a monitor with the current configuration
func createMonitor(opts ...monitor.Option) *monitor.Monitor {
	opts = append([]monitor.Option{
		monitor.WithLogger(logger),
		monitor.WithCRCValidation(!viper.GetBool("skip-crc")),
	}, opts...)
	return monitor.New(opts...)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("edgeo-bacdecode version 1.0.0")
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
