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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeo-scada/bacdecode/internal/capture"
	"github.com/edgeo-scada/bacdecode/internal/monitor"
	"github.com/edgeo-scada/bacdecode/internal/transport"
)

var (
	listenLocal       string
	listenMetricsAddr string
	listenPoll        time.Duration
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Decode BACnet/IP traffic received on a UDP socket",
	Long: `Listen binds a UDP socket and decodes every datagram it receives. Nothing
is ever sent. Broadcasts such as Who-Is and I-Am reach any host on the
segment bound to the BACnet port.

Examples:
  # Listen on the standard port
  edgeo-bacdecode listen

  # Expose decode counters to Prometheus
  edgeo-bacdecode listen --metrics-addr :9108

  # JSON lines for another tool
  edgeo-bacdecode listen -o json`,

	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringVar(&listenLocal, "local", "", "Local address to bind to (default 0.0.0.0:<port>)")
	listenCmd.Flags().StringVar(&listenMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	listenCmd.Flags().DurationVar(&listenPoll, "poll", time.Second, "Receive timeout between shutdown checks")

	viper.BindPFlag("local", listenCmd.Flags().Lookup("local"))
	viper.BindPFlag("metrics-addr", listenCmd.Flags().Lookup("metrics-addr"))
}

func runListen(cmd *cobra.Command, args []string) error {
	local := viper.GetString("local")
	if local == "" {
		local = fmt.Sprintf("0.0.0.0:%d", viper.GetInt("port"))
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nStopping listener...")
			cancel()
		case <-ctx.Done():
		}
	}()

	registry := prometheus.NewRegistry()
	mon := createMonitor(monitor.WithRegisterer(registry))

	if addr := viper.GetString("metrics-addr"); addr != "" {
		registry.MustRegister(collectors.NewGoCollector())
		stop := serveMetrics(addr, registry)
		defer stop()
	}

	listener := transport.NewUDPListener(local)
	listener.SetReadTimeout(listenPoll)
	if err := listener.Open(ctx); err != nil {
		return err
	}
	defer listener.Close()

	logger.Info("listening", slog.String("address", listener.LocalAddr().String()))

	formatter := NewFormatter(viper.GetString("output"))
	formatter.SetWriter(cmd.OutOrStdout())

	for {
		dg, err := listener.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if transport.IsTimeout(err) {
				continue
			}
			return fmt.Errorf("receive: %w", err)
		}

		report, _ := mon.HandleFrame(capture.Frame{
			Link:        capture.LinkBVLC,
			Time:        dg.Time,
			Source:      dg.From.String(),
			Destination: dg.To.String(),
			Data:        dg.Data,
		})
		if err := formatter.StreamReport(report); err != nil {
			return err
		}
	}
}

// serveMetrics serves the registry in the background. The returned function
// shuts the server down and waits for it.
func serveMetrics(addr string, registry *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("serving metrics", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", slog.String("error", err.Error()))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", slog.String("error", err.Error()))
		}
		<-done
	}
}
